package mqtt

import "testing"

func TestParseSensorTopic(t *testing.T) {
	tests := []struct {
		topic    string
		wantType string
		wantLoc  string
		wantErr  bool
	}{
		{"automation/raw/door/front", "door", "front", false},
		{"automation/sensor/door/garage", "door", "garage", false},
		{"automation/raw/door", "", "", true},
		{"automation/raw/door/front/extra", "", "", true},
		{"home/raw/door/front", "", "", true},
		{"automation/raw/door/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			gotType, gotLoc, err := ParseSensorTopic(tt.topic)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseSensorTopic(%q) expected error", tt.topic)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSensorTopic(%q) unexpected error: %v", tt.topic, err)
			}
			if gotType != tt.wantType || gotLoc != tt.wantLoc {
				t.Errorf("ParseSensorTopic(%q) = %q, %q; want %q, %q", tt.topic, gotType, gotLoc, tt.wantType, tt.wantLoc)
			}
		})
	}
}

func TestDoorTopics(t *testing.T) {
	if got := RawDoorTopic("front"); got != "automation/raw/door/front" {
		t.Errorf("RawDoorTopic() = %q", got)
	}
	if got := DoorTriggerTopic("front"); got != "automation/sensor/door/front" {
		t.Errorf("DoorTriggerTopic() = %q", got)
	}
}
