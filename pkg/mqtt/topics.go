package mqtt

import (
	"fmt"
	"strings"
)

// Door topic layout
const (
	// Raw door sensor messages (input)
	TopicRawDoor = "automation/raw/door/+"

	// Stored door transitions (output)
	TopicSensorDoor = "automation/sensor/door/+"
)

// RawDoorTopic constructs the raw door topic for a location
// Pattern: automation/raw/door/{location}
func RawDoorTopic(location string) string {
	return fmt.Sprintf("automation/raw/door/%s", location)
}

// DoorTriggerTopic constructs the topic announcing a stored door transition
// Pattern: automation/sensor/door/{location}
func DoorTriggerTopic(location string) string {
	return fmt.Sprintf("automation/sensor/door/%s", location)
}

// ParseSensorTopic splits automation/{stage}/{sensor_type}/{location}
func ParseSensorTopic(topic string) (sensorType, location string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "automation" || parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("invalid topic format: %s (expected automation/{stage}/{type}/{location})", topic)
	}
	return parts[2], parts[3], nil
}
