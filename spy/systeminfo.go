package spy

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"

	"github.com/c360/camstream/errors"
)

// ServerInfo describes the far end of a session. Name, Version, and
// EventStreamCount come from the configuration snapshot; WebVersion comes
// from the Server header the snapshot reply carried and gates which control
// operations the session uses.
type ServerInfo struct {
	Name             string
	Version          string
	WebVersion       float64
	EventStreamCount int
}

// systemDoc mirrors the /++systemInfo XML document. Numeric fields whose
// absence matters are pointers; everything else decodes to its zero value
// when the server omits it.
type systemDoc struct {
	XMLName xml.Name    `xml:"system"`
	Server  serverDoc   `xml:"server"`
	Cameras []cameraDoc `xml:"cameralist>camera"`
}

type serverDoc struct {
	Name             string `xml:"name"`
	Version          string `xml:"version"`
	EventStreamCount int    `xml:"eventstreamcount"`
}

type cameraDoc struct {
	Number          *int   `xml:"number"`
	Name            string `xml:"name"`
	Connected       string `xml:"connected"`
	Width           int    `xml:"width"`
	Height          int    `xml:"height"`
	Mode            string `xml:"mode"`
	ModeMotion      string `xml:"mode-m"`
	ModeContinuous  string `xml:"mode-c"`
	ModeActions     string `xml:"mode-a"`
	HasAudio        string `xml:"hasaudio"`
	DeviceName      string `xml:"devicename"`
	DeviceType      string `xml:"devicetype"`
	PTZCapabilities *int   `xml:"ptzcapabilities"`
	Sensitivity     *int   `xml:"mdsensitivity"`
	Address         string `xml:"address"`
	Port            *int   `xml:"port"`
}

func parseSystemInfo(data []byte) (*systemDoc, error) {
	var doc systemDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(err, "Session", "parseSystemInfo", "decode system info document")
	}
	return &doc, nil
}

// bbvsPattern recognizes the Server header a camera server sends.
var bbvsPattern = regexp.MustCompile(`^BBVS/([0-9.]+)`)

// parseWebVersion extracts the numeric web interface version from a Server
// reply header such as "BBVS/5.2". Components beyond major.minor are
// dropped, so "BBVS/5.0.1" parses as 5.0. Anything that is not a BBVS
// header means the host is not a camera server.
func parseWebVersion(header string) (float64, error) {
	m := bbvsPattern.FindStringSubmatch(header)
	if m == nil {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "Session", "parseWebVersion",
			"unrecognized server version "+strconv.Quote(header))
	}
	parts := strings.SplitN(m[1], ".", 3)
	number := parts[0]
	if len(parts) > 1 {
		number += "." + parts[1]
	}
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, errors.WrapInvalid(err, "Session", "parseWebVersion",
			"unrecognized server version "+strconv.Quote(header))
	}
	return v, nil
}

// majorVersion extracts the leading component of a dotted version string,
// or zero if there is none.
func majorVersion(version string) int {
	head, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}
