package redis

import "testing"

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"door status", DoorStatusKey("front"), "meta:door:front"},
		{"estimate", EstimateKey("front", 10, 20, 3, "after_now"), "estimate:door:front:10:20:3:after_now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
