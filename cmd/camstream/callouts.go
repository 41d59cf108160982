package main

import (
	"log/slog"

	"github.com/c360/camstream/spy"
)

// eventCallouts narrates session activity into the log. The metrics side
// counts everything already; the log carries the detail.
func eventCallouts(logger *slog.Logger) *spy.CalloutFuncs {
	return &spy.CalloutFuncs{
		OnReady: func(cameras map[int]*spy.Camera) {
			logger.Info("Camera model ready", "cameras", len(cameras))
		},
		OnCameraAdded: func(c *spy.Camera) {
			logger.Info("Camera added",
				"camera", c.Number(),
				"name", c.Name(),
				"connected", c.Connected())
		},
		OnCameraRemoved: func(c *spy.Camera) {
			logger.Info("Camera removed", "camera", c.Number(), "name", c.Name())
		},
		OnCameraStatus: func(c *spy.Camera) {
			logger.Info("Camera status changed",
				"camera", c.Number(),
				"name", c.Name(),
				"connected", c.Connected(),
				"motion_armed", c.Armed(spy.ArmMotion),
				"continuous_armed", c.Armed(spy.ArmContinuous),
				"actions_armed", c.Armed(spy.ArmActions),
				"sensitivity", c.Sensitivity())
		},
		OnTrigger: func(c *spy.Camera, kind string, reasons []string) {
			logger.Info("Camera triggered",
				"camera", c.Number(),
				"name", c.Name(),
				"kind", kind,
				"reasons", reasons)
		},
		OnClassify: func(c *spy.Camera, classifications map[string]int) {
			logger.Info("Objects classified",
				"camera", c.Number(),
				"name", c.Name(),
				"classifications", classifications)
		},
		OnCameraEvent: func(c *spy.Camera, ev spy.Event) {
			logger.Debug("Camera event",
				"camera", c.Number(),
				"label", ev.Label,
				"sequence", ev.Sequence,
				"time", ev.Time(),
				"args", ev.Args)
		},
		OnTapStatus: func(code int) {
			logger.Debug("Event tap handshake", "status", code)
		},
		OnListAvailable: func(name string, entries []string) {
			logger.Debug("Server file list fetched", "list", name, "entries", len(entries))
		},
		OnError: func(err error) {
			logger.Error("Session error", "error", err)
		},
	}
}
