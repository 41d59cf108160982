package timestamp

import (
	"testing"
	"time"
)

// Test constants
var (
	testTime    = time.Date(2019, 5, 25, 1, 20, 18, 0, time.UTC)
	testTimeSec = int64(1558747218) // Correct timestamp for the date above
)

func TestNow(t *testing.T) {
	before := time.Now().Unix()
	ts := Now()
	after := time.Now().Unix()

	if ts < before || ts > after {
		t.Errorf("Now() = %d, expected between %d and %d", ts, before, after)
	}
}

func TestToUnix(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected int64
	}{
		{
			name:     "normal time",
			input:    testTime,
			expected: testTimeSec,
		},
		{
			name:     "zero time",
			input:    time.Time{},
			expected: 0,
		},
		{
			name:     "unix epoch",
			input:    time.Unix(0, 0),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToUnix(tt.input)
			if result != tt.expected {
				t.Errorf("ToUnix(%v) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFromUnix(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected time.Time
	}{
		{
			name:     "normal timestamp",
			input:    testTimeSec,
			expected: time.Unix(testTimeSec, 0),
		},
		{
			name:     "zero timestamp",
			input:    0,
			expected: time.Time{},
		},
		{
			name:     "negative timestamp",
			input:    -1000,
			expected: time.Unix(-1000, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FromUnix(tt.input)
			if !result.Equal(tt.expected) {
				t.Errorf("FromUnix(%d) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{
			name:     "event record field",
			input:    "1558747218",
			expected: testTimeSec,
		},
		{
			name:     "empty field",
			input:    "",
			expected: 0,
		},
		{
			name:     "zero field",
			input:    "0",
			expected: 0,
		},
		{
			name:     "garbage field",
			input:    "not-a-timestamp",
			expected: 0,
		},
		{
			name:     "negative field",
			input:    "-42",
			expected: 0,
		},
		{
			name:     "fractional field",
			input:    "1558747218.5",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseField(tt.input)
			if result != tt.expected {
				t.Errorf("ParseField(%q) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{
			name:     "normal timestamp",
			input:    testTimeSec,
			expected: "2019-05-25T01:20:18Z",
		},
		{
			name:     "zero timestamp",
			input:    0,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.input)
			if result != tt.expected {
				t.Errorf("Format(%d) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsZero(t *testing.T) {
	if !IsZero(0) {
		t.Error("IsZero(0) = false, expected true")
	}
	if IsZero(testTimeSec) {
		t.Errorf("IsZero(%d) = true, expected false", testTimeSec)
	}
}

func TestSince(t *testing.T) {
	if d := Since(0); d != 0 {
		t.Errorf("Since(0) = %v, expected 0", d)
	}

	past := time.Now().Add(-10 * time.Second).Unix()
	d := Since(past)
	if d < 9*time.Second || d > 12*time.Second {
		t.Errorf("Since(%d) = %v, expected roughly 10s", past, d)
	}
}

func TestBetween(t *testing.T) {
	tests := []struct {
		name     string
		start    int64
		end      int64
		expected time.Duration
	}{
		{
			name:     "forward interval",
			start:    testTimeSec,
			end:      testTimeSec + 2400,
			expected: 40 * time.Minute,
		},
		{
			name:     "reversed interval",
			start:    testTimeSec + 60,
			end:      testTimeSec,
			expected: -time.Minute,
		},
		{
			name:     "zero start",
			start:    0,
			end:      testTimeSec,
			expected: 0,
		},
		{
			name:     "zero end",
			start:    testTimeSec,
			end:      0,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Between(tt.start, tt.end)
			if result != tt.expected {
				t.Errorf("Between(%d, %d) = %v, expected %v", tt.start, tt.end, result, tt.expected)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	ts := ParseField("1558747218")
	back := ToUnix(FromUnix(ts))
	if back != ts {
		t.Errorf("round trip changed timestamp: %d != %d", back, ts)
	}
}
