package spy

// Callouts receives session notifications. Methods run on the session's
// request goroutines, so implementations must return promptly; anything
// slow belongs on a goroutine or channel of the implementation's own.
// Calling back into the session from a callout is allowed.
//
// Nothing is delivered before Start or after Stop begins.
type Callouts interface {
	// Ready reports a completed configuration pass and the camera model it
	// produced. It fires once per snapshot, after any add, remove, and
	// status callouts from the same pass.
	Ready(cameras map[int]*Camera)

	// CameraAdded reports a camera seen for the first time.
	CameraAdded(c *Camera)

	// CameraRemoved reports a camera missing from the latest snapshot. The
	// instance is already detached from the session.
	CameraRemoved(c *Camera)

	// CameraStatus reports a snapshot change to a camera's armed state,
	// connection state, or sensitivity.
	CameraStatus(c *Camera)

	// Trigger reports that the server started a recording or action in
	// response to this camera, with the named causes.
	Trigger(c *Camera, kind string, reasons []string)

	// Classify reports an object classification result, keyed by
	// lowercased label with confidence percentages as values.
	Classify(c *Camera, classifications map[string]int)

	// CameraEvent reports any other camera-scoped event stream record.
	CameraEvent(c *Camera, ev Event)

	// TapStatus reports the HTTP status of an event tap connection attempt.
	TapStatus(code int)

	// ListAvailable reports a fetched server file list, "scripts" or
	// "sounds".
	ListAvailable(name string, entries []string)

	// Error reports a failure the session absorbed and kept running
	// through.
	Error(err error)
}

// CalloutFuncs adapts plain functions to the Callouts interface. Nil fields
// are skipped, so callers implement only the notifications they care about.
type CalloutFuncs struct {
	OnReady         func(cameras map[int]*Camera)
	OnCameraAdded   func(c *Camera)
	OnCameraRemoved func(c *Camera)
	OnCameraStatus  func(c *Camera)
	OnTrigger       func(c *Camera, kind string, reasons []string)
	OnClassify      func(c *Camera, classifications map[string]int)
	OnCameraEvent   func(c *Camera, ev Event)
	OnTapStatus     func(code int)
	OnListAvailable func(name string, entries []string)
	OnError         func(err error)
}

var _ Callouts = (*CalloutFuncs)(nil)

func (f *CalloutFuncs) Ready(cameras map[int]*Camera) {
	if f.OnReady != nil {
		f.OnReady(cameras)
	}
}

func (f *CalloutFuncs) CameraAdded(c *Camera) {
	if f.OnCameraAdded != nil {
		f.OnCameraAdded(c)
	}
}

func (f *CalloutFuncs) CameraRemoved(c *Camera) {
	if f.OnCameraRemoved != nil {
		f.OnCameraRemoved(c)
	}
}

func (f *CalloutFuncs) CameraStatus(c *Camera) {
	if f.OnCameraStatus != nil {
		f.OnCameraStatus(c)
	}
}

func (f *CalloutFuncs) Trigger(c *Camera, kind string, reasons []string) {
	if f.OnTrigger != nil {
		f.OnTrigger(c, kind, reasons)
	}
}

func (f *CalloutFuncs) Classify(c *Camera, classifications map[string]int) {
	if f.OnClassify != nil {
		f.OnClassify(c, classifications)
	}
}

func (f *CalloutFuncs) CameraEvent(c *Camera, ev Event) {
	if f.OnCameraEvent != nil {
		f.OnCameraEvent(c, ev)
	}
}

func (f *CalloutFuncs) TapStatus(code int) {
	if f.OnTapStatus != nil {
		f.OnTapStatus(code)
	}
}

func (f *CalloutFuncs) ListAvailable(name string, entries []string) {
	if f.OnListAvailable != nil {
		f.OnListAvailable(name, entries)
	}
}

func (f *CalloutFuncs) Error(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}
