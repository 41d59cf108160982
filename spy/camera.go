package spy

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/c360/camstream/errors"
)

// Camera is the live model of one camera on the server. The session creates
// and retires instances as configuration snapshots arrive; state flows in
// from snapshots and from the event tap. Accessors are safe for concurrent
// use and return the most recent state the server reported.
type Camera struct {
	session *Session

	mu              sync.RWMutex
	number          int
	name            string
	connected       bool
	width           int
	height          int
	armed           map[ArmMode]bool
	classifications map[string]int
	hasAudio        bool
	device          string
	deviceType      string
	ptzCapabilities int
	sensitivity     int
	address         string
	devicePort      int
}

// newCamera builds a camera from one snapshot element. Version 4 servers
// report the three capture modes separately; version 3 servers report a
// single active/passive mode that covers motion capture only.
func newCamera(s *Session, doc cameraDoc, webVersion float64) *Camera {
	c := &Camera{
		session:    s,
		number:     *doc.Number,
		name:       doc.Name,
		connected:  doc.Connected == "yes",
		width:      doc.Width,
		height:     doc.Height,
		armed:      make(map[ArmMode]bool, 3),
		hasAudio:   doc.HasAudio == "yes",
		device:     doc.DeviceName,
		deviceType: doc.DeviceType,
		address:    doc.Address,
	}
	if webVersion >= 4 {
		c.armed[ArmMotion] = doc.ModeMotion == "armed"
		c.armed[ArmContinuous] = doc.ModeContinuous == "armed"
		c.armed[ArmActions] = doc.ModeActions == "armed"
	} else {
		c.armed[ArmMotion] = doc.Mode == "active"
		c.armed[ArmContinuous] = false
		c.armed[ArmActions] = false
	}
	if doc.PTZCapabilities != nil {
		c.ptzCapabilities = *doc.PTZCapabilities
	}
	if doc.Sensitivity != nil {
		c.sensitivity = *doc.Sensitivity
	}
	if doc.Address != "" && doc.Port != nil {
		c.devicePort = *doc.Port
	}
	return c
}

// refresh merges a snapshot element into the live model. Only the fields
// the server changes at runtime are copied; identity fields such as the
// device name stay as first seen. It reports whether the armed state,
// connection state, or sensitivity differ, which is what a status callout
// announces.
func (c *Camera) refresh(update *Camera) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.connected != update.connected || c.sensitivity != update.sensitivity
	if !changed {
		for mode, armed := range update.armed {
			if c.armed[mode] != armed {
				changed = true
				break
			}
		}
	}
	c.name = update.name
	c.width = update.width
	c.height = update.height
	c.connected = update.connected
	c.armed = update.armed
	c.sensitivity = update.sensitivity
	return changed
}

// Number returns the camera's number on the server. Numbers are stable
// across snapshots and identify cameras in event stream records.
func (c *Camera) Number() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.number
}

// Name returns the camera's display name.
func (c *Camera) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Connected reports whether the server can currently reach the camera.
func (c *Camera) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Size returns the camera's frame dimensions in pixels.
func (c *Camera) Size() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// Armed reports whether the given capture mode is armed.
func (c *Camera) Armed(mode ArmMode) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.armed[mode]
}

// Classifications returns the most recent object classification result,
// keyed by lowercased label with confidence percentages as values. It is
// empty until the first CLASSIFY record arrives.
func (c *Camera) Classifications() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.classifications))
	for label, score := range c.classifications {
		out[label] = score
	}
	return out
}

// HasAudio reports whether the camera supplies an audio track.
func (c *Camera) HasAudio() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasAudio
}

// Device returns the camera's device name on the server.
func (c *Camera) Device() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device
}

// DeviceType returns the camera's device type on the server.
func (c *Camera) DeviceType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceType
}

// PTZCapabilities returns the camera's pan/tilt/zoom capability mask.
func (c *Camera) PTZCapabilities() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ptzCapabilities
}

// Sensitivity returns the motion detection sensitivity, 1 to 100.
func (c *Camera) Sensitivity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sensitivity
}

// Location returns the network address of the camera device itself, when
// the server exposes one. ok is false for local devices.
func (c *Camera) Location() (host string, port int, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address, c.devicePort, c.address != ""
}

func (c *Camera) setArmed(mode ArmMode, armed bool) {
	c.mu.Lock()
	c.armed[mode] = armed
	c.mu.Unlock()
}

func (c *Camera) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
	c.session.updateCameraHealth(c)
}

// handleTapEvent applies one event stream record addressed to this camera
// and raises the matching callout. Trigger and classify records have
// dedicated callouts; every other record updates state and falls through to
// the generic CameraEvent callout.
func (c *Camera) handleTapEvent(ev Event) {
	s := c.session
	switch ev.Label {
	case "active":
		c.setArmed(ArmMotion, true)
	case "passive":
		c.setArmed(ArmMotion, false)
	case "arm", "disarm":
		mode, ok := armReports[ev.Args[0]]
		if !ok {
			s.calloutError(errors.WrapInvalid(errors.ErrInvalidData, "Camera", "tap",
				"arm report with unknown mode code "+strconv.Quote(ev.Args[0])))
			return
		}
		c.setArmed(mode, ev.Label == "arm")
	case "classify":
		classifications := parseClassifications(ev.Args[0], s.logger)
		c.mu.Lock()
		c.classifications = classifications
		c.mu.Unlock()
		s.recordCallout("classify")
		s.callouts.Classify(c, classifications)
		return
	case "trigger":
		mask, _ := strconv.Atoi(ev.Args[1])
		s.recordCallout("trigger")
		s.callouts.Trigger(c, triggerTypes[ev.Args[0]], MotionReasons(mask))
		return
	case "online":
		c.setConnected(true)
	case "offline":
		// the camera may have been removed rather than unplugged
		s.Refresh()
		c.setConnected(false)
	}
	s.recordCallout("event")
	s.callouts.CameraEvent(c, ev)
}

// SetActive arms or disarms motion capture. Version 3 servers expose this
// as their single active/passive mode toggle.
func (c *Camera) SetActive(ctx context.Context, active bool) error {
	if c.session.webVersion() >= 4 {
		return c.control(ctx, "GET", "/++ssControlMotionCapture", url.Values{"arm": {armFlag(active)}})
	}
	path := "/++ssControlPassiveMode"
	if active {
		path = "/++ssControlActiveMode"
	}
	return c.control(ctx, "GET", path, nil)
}

// SetArm arms or disarms one capture mode. Per-mode arming needs a version
// 4 server; on older servers only SetActive is available.
func (c *Camera) SetArm(ctx context.Context, mode ArmMode, armed bool) error {
	if c.session.webVersion() < 4 {
		return errors.WrapInvalid(errors.ErrUnsupportedVersion, "Camera", "SetArm",
			"per-mode arming needs a version 4 server")
	}
	return c.control(ctx, "GET", "/++ssControl"+string(mode), url.Values{"arm": {armFlag(armed)}})
}

// TriggerMotion makes the server respond as if this camera had detected
// motion.
func (c *Camera) TriggerMotion(ctx context.Context) error {
	return c.control(ctx, "GET", "/++triggermd", nil)
}

// SetOverlay sets the camera's overlay text, font size in points, and
// position menu value. Version 2 servers take the same settings on a
// different form.
func (c *Camera) SetOverlay(ctx context.Context, text string, fontSize int, position string) error {
	if majorVersion(c.session.Server().Version) >= 3 {
		return c.control(ctx, "POST", "/camerasettings", url.Values{
			"overlayText":     {text},
			"overlayFontSize": {strconv.Itoa(fontSize)},
			"overlayPosition": {position},
			"action":          {"save"},
			"Save":            {"Save"},
		})
	}
	return c.control(ctx, "POST", "/++overlaysettings", url.Values{
		"overlayText":  {text},
		"fontSizeText": {strconv.Itoa(fontSize)},
		"positionMenu": {position},
		"Save":         {"Save"},
	})
}

// SetSensitivity sets the motion detection sensitivity, 1 to 100.
func (c *Camera) SetSensitivity(ctx context.Context, level int) error {
	return c.control(ctx, "POST", "/++camerasetup", url.Values{
		"mdSensitivityText": {strconv.Itoa(level)},
		"action":            {"save"},
		"Submit":            {"Submit"},
	})
}

// PTZ sends a pan/tilt/zoom command number to the camera. Which commands
// the camera honors depends on PTZCapabilities.
func (c *Camera) PTZ(ctx context.Context, command int) error {
	return c.control(ctx, "GET", "/++ptz/command", url.Values{"command": {strconv.Itoa(command)}})
}

// control issues a camera-scoped operation, merging the camera number into
// the query.
func (c *Camera) control(ctx context.Context, action, path string, query url.Values) error {
	q := url.Values{"cameraNum": {strconv.Itoa(c.Number())}}
	for name, values := range query {
		q[name] = values
	}
	return c.session.control(ctx, action, path, q)
}

func armFlag(armed bool) string {
	if armed {
		return "1"
	}
	return "0"
}
