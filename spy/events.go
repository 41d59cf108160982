package spy

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/c360/camstream/pkg/timestamp"
	"github.com/c360/camstream/scan"
)

// ArmMode identifies one of a camera's independently armed capture modes.
// The mode names double as the path suffix of the per-mode control
// operation.
type ArmMode string

const (
	// ArmMotion is motion-triggered recording.
	ArmMotion ArmMode = "MotionCapture"
	// ArmContinuous is continuous recording.
	ArmContinuous ArmMode = "ContinuousCapture"
	// ArmActions is the camera's event actions, scripts and sounds.
	ArmActions ArmMode = "Actions"
)

// armReports maps the mode code carried by ARM_ and DISARM_ records to the
// capture mode it reports on.
var armReports = map[string]ArmMode{
	"M": ArmMotion,
	"C": ArmContinuous,
	"A": ArmActions,
}

// triggerTypes maps the code in a TRIGGER_ record to the kind of response
// the server started.
var triggerTypes = map[string]string{
	"M": "recording",
	"A": "action",
}

// motionCodes names the bits of a trigger reason mask, lowest bit first.
var motionCodes = []struct {
	bit  int
	name string
}{
	{1, "motion"},
	{2, "audio"},
	{4, "applescript"},
	{8, "camera"},
	{16, "web"},
	{32, "crosscamera"},
	{64, "manual"},
	{128, "human"},
	{256, "vehicle"},
}

// MotionReasons expands a trigger reason mask into its named causes,
// ordered by bit value. Servers predating reason masks send zero, which
// reads as plain motion.
func MotionReasons(mask int) []string {
	reasons := make([]string, 0, 2)
	for _, c := range motionCodes {
		if mask&c.bit != 0 {
			reasons = append(reasons, c.name)
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "motion")
	}
	return reasons
}

// parseClassifications splits a CLASSIFY payload of alternating labels and
// percentages, "HUMAN 95 VEHICLE 3", into a map keyed by lowercased label.
// Malformed pairs are skipped.
func parseClassifications(payload string, logger *slog.Logger) map[string]int {
	fields := strings.Fields(payload)
	out := make(map[string]int, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		score, err := strconv.Atoi(fields[i+1])
		if err != nil {
			logger.Debug("skipping malformed classification pair",
				"label", fields[i], "value", fields[i+1])
			continue
		}
		out[strings.ToLower(fields[i])] = score
	}
	return out
}

// Event is one record from the server's event stream, delivered through the
// CameraEvent callout after camera state has been updated.
type Event struct {
	Label     string   // grammar rule that matched the record
	Timestamp string   // server timestamp field, verbatim
	Sequence  int      // server event sequence number
	Camera    int      // camera number the record addresses
	Args      []string // trailing captures specific to the record type
}

// Time converts the record's Unix-seconds timestamp field. The zero time
// means the field did not parse.
func (ev Event) Time() time.Time {
	return timestamp.FromUnix(timestamp.ParseField(ev.Timestamp))
}

// tapRules is the grammar of the version 2 event stream. Records are
// CR-terminated lines of space-separated fields: timestamp, sequence
// number, camera number, then the event name and its arguments. The
// catch-all rule must stay last so unrecognized records surface as errors
// instead of desynchronizing the stream.
var tapRules = scan.RuleSet{
	scan.MustRule("motion", `(\d+) (\d+) (?:CAM)?(\d+) MOTION\r`),
	scan.MustRule("trigger", `(\d+) (\d+) (?:CAM)?(\d+) TRIGGER_([MA]) ([0-9]+)\r`),
	scan.MustRule("classify", `(\d+) (\d+) (?:CAM)?(\d+) CLASSIFY ([^\r]*)\r`),
	scan.MustRule("online", `(\d+) (\d+) (?:CAM)?(\d+) ONLINE\r`),
	scan.MustRule("offline", `(\d+) (\d+) (?:CAM)?(\d+) OFFLINE\r`),
	scan.MustRule("change", `(\d+) (\d+) ([^ ]+ )?CONFIGCHANGE\r`),
	scan.MustRule("error", `(\d+) (\d+) (?:CAM)?(\d+) ERROR ([^\r]*)\r`),
	scan.MustRule("active", `(\d+) (\d+) (?:CAM)?(\d+) ACTIVE\r`),
	scan.MustRule("passive", `(\d+) (\d+) (?:CAM)?(\d+) PASSIVE\r`),
	scan.MustRule("arm", `(\d+) (\d+) (?:CAM)?(\d+) ARM_(\w+)\r`),
	scan.MustRule("disarm", `(\d+) (\d+) (?:CAM)?(\d+) DISARM_(\w+)\r`),
	scan.MustRule("unknown", `([^\r]*)\r`),
}
