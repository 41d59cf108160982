package spy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	camerrors "github.com/c360/camstream/errors"
	"github.com/c360/camstream/testutil"
)

func intPtr(n int) *int {
	return &n
}

// Test the modern snapshot layout decodes fully
func TestParseSystemInfo(t *testing.T) {
	doc, err := parseSystemInfo([]byte(testutil.SystemInfoXML))
	require.NoError(t, err)

	assert.Equal(t, "Test Server", doc.Server.Name)
	assert.Equal(t, "5.2.1", doc.Server.Version)
	assert.Equal(t, 42, doc.Server.EventStreamCount)

	require.Len(t, doc.Cameras, 3)

	front := doc.Cameras[0]
	require.NotNil(t, front.Number)
	assert.Equal(t, 0, *front.Number)
	assert.Equal(t, "Front Door", front.Name)
	assert.Equal(t, "yes", front.Connected)
	assert.Equal(t, 1920, front.Width)
	assert.Equal(t, 1080, front.Height)
	assert.Equal(t, "armed", front.ModeMotion)
	assert.Equal(t, "disarmed", front.ModeContinuous)
	assert.Equal(t, "armed", front.ModeActions)
	assert.Equal(t, "yes", front.HasAudio)
	assert.Equal(t, "Network Camera", front.DeviceName)
	assert.Equal(t, "Network", front.DeviceType)
	require.NotNil(t, front.PTZCapabilities)
	assert.Equal(t, 31, *front.PTZCapabilities)
	require.NotNil(t, front.Sensitivity)
	assert.Equal(t, 75, *front.Sensitivity)
	assert.Equal(t, "192.168.1.50", front.Address)
	require.NotNil(t, front.Port)
	assert.Equal(t, 554, *front.Port)

	garage := doc.Cameras[1]
	assert.Equal(t, "Garage", garage.Name)
	assert.Empty(t, garage.Address)
	assert.Nil(t, garage.Port)
}

// Test the pre-4 layout carries the single mode field
func TestParseSystemInfo_V3(t *testing.T) {
	doc, err := parseSystemInfo([]byte(testutil.SystemInfoXMLv3))
	require.NoError(t, err)

	assert.Equal(t, "Old Server", doc.Server.Name)
	assert.Equal(t, "3.4.1", doc.Server.Version)
	assert.Zero(t, doc.Server.EventStreamCount)

	require.Len(t, doc.Cameras, 1)
	porch := doc.Cameras[0]
	assert.Equal(t, "Porch", porch.Name)
	assert.Equal(t, "active", porch.Mode)
	assert.Empty(t, porch.ModeMotion)
}

// Test malformed documents are rejected as invalid
func TestParseSystemInfo_Malformed(t *testing.T) {
	_, err := parseSystemInfo([]byte("this is not xml"))
	require.Error(t, err)
	assert.True(t, camerrors.IsInvalid(err))

	_, err = parseSystemInfo([]byte("<other></other>"))
	require.Error(t, err)
	assert.True(t, camerrors.IsInvalid(err))
}

// Test the Server header version parses to major.minor
func TestParseWebVersion(t *testing.T) {
	tests := []struct {
		header string
		want   float64
	}{
		{"BBVS/5.2", 5.2},
		{"BBVS/5.0.1", 5.0},
		{"BBVS/4", 4},
		{"BBVS/3.4", 3.4},
		{"BBVS/5.2 something", 5.2},
	}
	for _, tt := range tests {
		got, err := parseWebVersion(tt.header)
		require.NoError(t, err, "header %q", tt.header)
		assert.Equal(t, tt.want, got, "header %q", tt.header)
	}

	for _, header := range []string{"", "Apache/2.4", "BBVS/x", "bbvs/5.2"} {
		_, err := parseWebVersion(header)
		require.Error(t, err, "header %q", header)
		assert.True(t, camerrors.IsInvalid(err), "header %q", header)
	}
}

func TestMajorVersion(t *testing.T) {
	assert.Equal(t, 5, majorVersion("5.2.1"))
	assert.Equal(t, 3, majorVersion("3.4.1"))
	assert.Equal(t, 2, majorVersion("2.0"))
	assert.Equal(t, 0, majorVersion(""))
	assert.Equal(t, 0, majorVersion("beta"))
}

// Test mode parsing differs between version 4 and version 3 servers
func TestNewCamera_ArmModes(t *testing.T) {
	doc, err := parseSystemInfo([]byte(testutil.SystemInfoXML))
	require.NoError(t, err)
	front := newCamera(nil, doc.Cameras[0], 5.2)
	assert.True(t, front.Armed(ArmMotion))
	assert.False(t, front.Armed(ArmContinuous))
	assert.True(t, front.Armed(ArmActions))

	v3doc, err := parseSystemInfo([]byte(testutil.SystemInfoXMLv3))
	require.NoError(t, err)
	porch := newCamera(nil, v3doc.Cameras[0], 3.4)
	assert.True(t, porch.Armed(ArmMotion))
	assert.False(t, porch.Armed(ArmContinuous))
	assert.False(t, porch.Armed(ArmActions))
}

// Test refresh reports only armed, connected, and sensitivity changes
func TestCameraRefresh_ChangeDetection(t *testing.T) {
	base := cameraDoc{
		Number:      intPtr(1),
		Name:        "Cam",
		Connected:   "yes",
		Width:       640,
		Height:      480,
		ModeMotion:  "armed",
		Sensitivity: intPtr(50),
	}

	t.Run("sensitivity change", func(t *testing.T) {
		live := newCamera(nil, base, 5.0)
		update := base
		update.Sensitivity = intPtr(60)
		assert.True(t, live.refresh(newCamera(nil, update, 5.0)))
		assert.Equal(t, 60, live.Sensitivity())
	})

	t.Run("armed change", func(t *testing.T) {
		live := newCamera(nil, base, 5.0)
		update := base
		update.ModeMotion = "disarmed"
		assert.True(t, live.refresh(newCamera(nil, update, 5.0)))
		assert.False(t, live.Armed(ArmMotion))
	})

	t.Run("connection change", func(t *testing.T) {
		live := newCamera(nil, base, 5.0)
		update := base
		update.Connected = "no"
		assert.True(t, live.refresh(newCamera(nil, update, 5.0)))
		assert.False(t, live.Connected())
	})

	t.Run("name change alone is silent", func(t *testing.T) {
		live := newCamera(nil, base, 5.0)
		update := base
		update.Name = "Renamed"
		update.Width = 1280
		assert.False(t, live.refresh(newCamera(nil, update, 5.0)))
		assert.Equal(t, "Renamed", live.Name())
		w, _ := live.Size()
		assert.Equal(t, 1280, w)
	})

	t.Run("identity fields keep first value", func(t *testing.T) {
		live := newCamera(nil, base, 5.0)
		update := base
		update.DeviceName = "Other Device"
		assert.False(t, live.refresh(newCamera(nil, update, 5.0)))
		assert.Empty(t, live.Device())
	})
}
