package schema

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		floating bool
	}{
		{"2024-01-02T08:00:00", "2024-01-02T08:00:00", true},
		{"2024-01-02T08:00", "2024-01-02T08:00:00", true},
		{"2024-01-02 08:15:30", "2024-01-02T08:15:30", true},
		{"2024-01-02", "2024-01-02T00:00:00", true},
		{"2024-01-02T08:00:00Z", "2024-01-02T08:00:00Z", false},
		{"2024-01-02T08:00:00+02:00", "2024-01-02T08:00:00+02:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if err != nil {
				t.Fatalf("ParseTime(%q) failed: %v", tt.in, err)
			}
			if got.Floating != tt.floating {
				t.Errorf("Floating = %v, want %v", got.Floating, tt.floating)
			}
			if got.String() != tt.want {
				t.Errorf("String() = %q, want %q", got.String(), tt.want)
			}
		})
	}

	if _, err := ParseTime("next tuesday"); err == nil {
		t.Error("ParseTime() should reject free text")
	}
}

func TestTime_JSON(t *testing.T) {
	var v struct {
		At *Time `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"2024-06-01T12:00:00"}`), &v); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if v.At == nil {
		t.Fatal("Unmarshal() left At nil")
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if string(data) != `{"at":"2024-06-01T12:00:00"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var bad Time
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Error("Unmarshal() should reject a number")
	}
}

func TestTime_ScanValue(t *testing.T) {
	orig, err := ParseTime("2024-06-01T12:00:00")
	if err != nil {
		t.Fatalf("ParseTime() failed: %v", err)
	}

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("Value() failed: %v", err)
	}

	var back Time
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan(%v) failed: %v", v, err)
	}
	if !back.Equal(orig) {
		t.Errorf("Scan(Value()) = %s, want %s", back, orig)
	}

	if err := back.Scan([]byte("2024-06-02")); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}
	if back.String() != "2024-06-02T00:00:00" {
		t.Errorf("Scan([]byte) = %s", back)
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := back.Scan(now); err != nil {
		t.Fatalf("Scan(time.Time) failed: %v", err)
	}
	if back.Floating || !back.Time.Equal(now) {
		t.Errorf("Scan(time.Time) = %+v", back)
	}

	if err := back.Scan(3.5); err == nil {
		t.Error("Scan(float64) should fail")
	}
}
