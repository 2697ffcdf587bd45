package redis

import "fmt"

// DoorStatusKey returns the key for the current door status (hash)
// Pattern: meta:door:{location}
func DoorStatusKey(location string) string {
	return fmt.Sprintf("meta:door:%s", location)
}

// EstimateKey returns the key for a cached occupancy estimate (string)
// Pattern: estimate:door:{location}:{start}:{end}:{slots}:{policy}
func EstimateKey(location string, start, end int64, slots int, policy string) string {
	return fmt.Sprintf("estimate:door:%s:%d:%d:%d:%s", location, start, end, slots, policy)
}
