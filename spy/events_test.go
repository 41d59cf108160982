package spy

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/camstream/scan"
	"github.com/c360/camstream/testutil"
)

// recordSink collects scanner matches for grammar assertions.
type recordSink struct {
	labels []string
	groups [][]string
}

func (r *recordSink) Match(label string, groups []string) {
	r.labels = append(r.labels, label)
	r.groups = append(r.groups, groups)
}

func (r *recordSink) Raw([]byte) {}

func (r *recordSink) End(error) {}

// Test each record form matches its rule with the expected captures
func TestTapRules_Grammar(t *testing.T) {
	tests := []struct {
		record string
		label  string
		groups []string
	}{
		{testutil.TapRecords[0], "motion", []string{"1558749618", "101", "0"}},
		{testutil.TapRecords[1], "trigger", []string{"1558749619", "102", "0", "M", "5"}},
		{testutil.TapRecords[2], "trigger", []string{"1558749620", "103", "1", "A", "0"}},
		{testutil.TapRecords[3], "classify", []string{"1558749621", "104", "0", "HUMAN 95 VEHICLE 10"}},
		{testutil.TapRecords[4], "online", []string{"1558749622", "105", "2"}},
		{testutil.TapRecords[5], "offline", []string{"1558749623", "106", "2"}},
		{testutil.TapRecords[6], "change", []string{"1558749624", "107", "NULL "}},
		{testutil.TapRecords[7], "error", []string{"1558749625", "108", "1", "camera unreachable"}},
		{testutil.TapRecords[8], "active", []string{"1558749626", "109", "0"}},
		{testutil.TapRecords[9], "passive", []string{"1558749627", "110", "0"}},
		{testutil.TapRecords[10], "arm", []string{"1558749628", "111", "1", "C"}},
		{testutil.TapRecords[11], "disarm", []string{"1558749629", "112", "1", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.label+" "+tt.record, func(t *testing.T) {
			sink := &recordSink{}
			s := scan.NewScanner(sink, tapRules)
			require.NoError(t, s.Feed([]byte(tt.record)))
			require.Len(t, sink.labels, 1)
			assert.Equal(t, tt.label, sink.labels[0])
			assert.Equal(t, tt.groups, sink.groups[0])
		})
	}
}

// Test a full stream parses the same whether it arrives whole or byte by byte
func TestTapRules_IncrementalStream(t *testing.T) {
	var stream []byte
	for _, rec := range testutil.TapRecords {
		stream = append(stream, rec...)
	}

	whole := &recordSink{}
	s := scan.NewScanner(whole, tapRules)
	require.NoError(t, s.Feed(stream))

	trickled := &recordSink{}
	s = scan.NewScanner(trickled, tapRules)
	for i := range stream {
		require.NoError(t, s.Feed(stream[i:i+1]))
	}

	require.Len(t, whole.labels, len(testutil.TapRecords))
	assert.Equal(t, whole.labels, trickled.labels)
	assert.Equal(t, whole.groups, trickled.groups)
}

// Test camera numbers match with and without the CAM prefix
func TestTapRules_BareCameraNumber(t *testing.T) {
	sink := &recordSink{}
	s := scan.NewScanner(sink, tapRules)
	require.NoError(t, s.Feed([]byte("1558749618 101 3 MOTION\r")))
	require.Len(t, sink.labels, 1)
	assert.Equal(t, "motion", sink.labels[0])
	assert.Equal(t, []string{"1558749618", "101", "3"}, sink.groups[0])
}

// Test unrecognized records fall through to the catch-all without desyncing
func TestTapRules_UnknownCatchAll(t *testing.T) {
	sink := &recordSink{}
	s := scan.NewScanner(sink, tapRules)
	require.NoError(t, s.Feed([]byte("500 really not an event\r1558749618 101 CAM0 MOTION\r")))
	require.Len(t, sink.labels, 2)
	assert.Equal(t, "unknown", sink.labels[0])
	assert.Equal(t, []string{"500 really not an event"}, sink.groups[0])
	assert.Equal(t, "motion", sink.labels[1])
}

// Test reason masks expand to named causes with zero reading as plain motion
func TestMotionReasons(t *testing.T) {
	tests := []struct {
		mask int
		want []string
	}{
		{0, []string{"motion"}},
		{1, []string{"motion"}},
		{2, []string{"audio"}},
		{3, []string{"motion", "audio"}},
		{5, []string{"motion", "applescript"}},
		{384, []string{"human", "vehicle"}},
		{511, []string{"motion", "audio", "applescript", "camera", "web", "crosscamera", "manual", "human", "vehicle"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MotionReasons(tt.mask), "mask %d", tt.mask)
	}
}

// Test the timestamp field converts to wall time, zero when malformed
func TestEvent_Time(t *testing.T) {
	ev := Event{Label: "motion", Timestamp: "1558749618", Sequence: 101, Camera: 0}
	assert.Equal(t, time.Date(2019, 5, 25, 2, 0, 18, 0, time.UTC), ev.Time().UTC())

	assert.True(t, Event{Timestamp: "soon"}.Time().IsZero())
	assert.True(t, Event{}.Time().IsZero())
}

// Test classification payloads parse pairwise, skipping malformed pairs
func TestParseClassifications(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		payload string
		want    map[string]int
	}{
		{"HUMAN 95 VEHICLE 10", map[string]int{"human": 95, "vehicle": 10}},
		{"Human 50", map[string]int{"human": 50}},
		{"HUMAN", map[string]int{}},
		{"", map[string]int{}},
		{"HUMAN x VEHICLE 4", map[string]int{"vehicle": 4}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseClassifications(tt.payload, logger), "payload %q", tt.payload)
	}
}
