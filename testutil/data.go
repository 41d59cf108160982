package testutil

import (
	"bytes"
	"compress/gzip"
	"fmt"
)

// HTTPReply builds a complete close-framed reply: status line, headers, a
// blank line, and the body. Headers go in "Name: value" form.
func HTTPReply(code int, reason string, headers []string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", code, reason)
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}

// ChunkedBody frames each piece as one chunk and appends the terminal zero
// chunk.
func ChunkedBody(pieces ...[]byte) []byte {
	var b bytes.Buffer
	for _, p := range pieces {
		fmt.Fprintf(&b, "%x\r\n", len(p))
		b.Write(p)
		b.WriteString("\r\n")
	}
	b.WriteString("0\r\n\r\n")
	return b.Bytes()
}

// GzipBody compresses data as a complete gzip stream.
func GzipBody(data []byte) []byte {
	var b bytes.Buffer
	zw := gzip.NewWriter(&b)
	if _, err := zw.Write(data); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return b.Bytes()
}

// ServerHeader is the version header a modern camera server sends.
const ServerHeader = "Server: BBVS/5.2"

// ServerHeaderV3 is the version header of a pre-4 server, which lacks
// per-mode arming.
const ServerHeaderV3 = "Server: BBVS/3.4"

// SystemInfoXML describes a three-camera server in the modern layout:
// per-mode arming fields, one disconnected camera, one camera with a device
// address.
const SystemInfoXML = `<?xml version="1.0" encoding="UTF-8"?>
<system>
<server>
<name>Test Server</name>
<version>5.2.1</version>
<eventstreamcount>42</eventstreamcount>
</server>
<cameralist>
<camera>
<number>0</number>
<name>Front Door</name>
<connected>yes</connected>
<width>1920</width>
<height>1080</height>
<mode-m>armed</mode-m>
<mode-c>disarmed</mode-c>
<mode-a>armed</mode-a>
<hasaudio>yes</hasaudio>
<devicename>Network Camera</devicename>
<devicetype>Network</devicetype>
<ptzcapabilities>31</ptzcapabilities>
<mdsensitivity>75</mdsensitivity>
<address>192.168.1.50</address>
<port>554</port>
</camera>
<camera>
<number>1</number>
<name>Garage</name>
<connected>yes</connected>
<width>1280</width>
<height>720</height>
<mode-m>armed</mode-m>
<mode-c>armed</mode-c>
<mode-a>disarmed</mode-a>
<hasaudio>no</hasaudio>
<devicename>Local Camera</devicename>
<devicetype>Local</devicetype>
<ptzcapabilities>0</ptzcapabilities>
<mdsensitivity>50</mdsensitivity>
</camera>
<camera>
<number>2</number>
<name>Backyard</name>
<connected>no</connected>
<width>640</width>
<height>480</height>
<mode-m>disarmed</mode-m>
<mode-c>disarmed</mode-c>
<mode-a>disarmed</mode-a>
<hasaudio>no</hasaudio>
<devicename>Network Camera</devicename>
<devicetype>Network</devicetype>
<ptzcapabilities>0</ptzcapabilities>
<mdsensitivity>60</mdsensitivity>
</camera>
</cameralist>
</system>
`

// SystemInfoXMLv3 describes a one-camera server in the pre-4 layout, where
// a single mode field carries the active/passive state.
const SystemInfoXMLv3 = `<?xml version="1.0" encoding="UTF-8"?>
<system>
<server>
<name>Old Server</name>
<version>3.4.1</version>
</server>
<cameralist>
<camera>
<number>0</number>
<name>Porch</name>
<connected>yes</connected>
<width>640</width>
<height>480</height>
<mode>active</mode>
<hasaudio>no</hasaudio>
<devicename>Network Camera</devicename>
<devicetype>Network</devicetype>
<mdsensitivity>50</mdsensitivity>
</camera>
</cameralist>
</system>
`

// TapRecords is a sample of well-formed event stream records, one per
// grammar rule.
var TapRecords = []string{
	"1558749618 101 CAM0 MOTION\r",
	"1558749619 102 CAM0 TRIGGER_M 5\r",
	"1558749620 103 CAM1 TRIGGER_A 0\r",
	"1558749621 104 CAM0 CLASSIFY HUMAN 95 VEHICLE 10\r",
	"1558749622 105 CAM2 ONLINE\r",
	"1558749623 106 CAM2 OFFLINE\r",
	"1558749624 107 NULL CONFIGCHANGE\r",
	"1558749625 108 CAM1 ERROR camera unreachable\r",
	"1558749626 109 CAM0 ACTIVE\r",
	"1558749627 110 CAM0 PASSIVE\r",
	"1558749628 111 CAM1 ARM_C\r",
	"1558749629 112 CAM1 DISARM_A\r",
}

// ScriptsHTML is the file list page the scripts endpoint serves.
const ScriptsHTML = `<html><body>
<a href="/scripts/Alarm.scpt">Alarm.scpt</a><br>
<a href="/scripts/Notify.scpt">Notify.scpt</a><br>
</body></html>
`

// SoundsHTML is the file list page the sounds endpoint serves.
const SoundsHTML = `<html><body>
<a href="/sounds/Beep.aiff">Beep.aiff</a><br>
<a href="/sounds/Siren.aiff">Siren.aiff</a><br>
</body></html>
`
