package wasapi

import (
	"testing"

	"github.com/companyzero/winaudio/internal/assert"
)

func newPathPlatform() *fakePlatform {
	return &fakePlatform{dosDevices: map[string]string{
		"C:": `\Device\HarddiskVolume3`,
		"D:": `\Device\HarddiskVolume10`,
		"E:": `\Device\HarddiskVolume1`,
	}}
}

func TestNTPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    string
		wantErr error
	}{
		{`C:\Windows\explorer.exe`, `\Device\HarddiskVolume3\Windows\explorer.exe`, nil},
		{`c:\app.exe`, `\Device\HarddiskVolume3\app.exe`, nil},
		{`D:\`, `\Device\HarddiskVolume10\`, nil},
		{`Z:\app.exe`, "", ErrFailedGettingNTPath},
		{`app.exe`, "", ErrInvalidPath},
		{`C:app.exe`, "", ErrInvalidPath},
		{`1:\app.exe`, "", ErrInvalidPath},
		{`\\?\C:\app.exe`, "", ErrInvalidPath},
		{"", "", ErrInvalidPath},
	}
	fp := newPathPlatform()
	for _, tc := range tests {
		got, err := ntPath(fp, tc.path)
		if tc.wantErr != nil {
			assert.ErrorIs(t, err, tc.wantErr)
			continue
		}
		assert.NilErr(t, err)
		assert.DeepEqual(t, got, tc.want)
	}
}

func TestDOSPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    string
		wantErr error
	}{
		{`\Device\HarddiskVolume3\Windows\explorer.exe`, `C:\Windows\explorer.exe`, nil},
		{`\Device\HarddiskVolume1\app.exe`, `E:\app.exe`, nil},
		{`\Device\HarddiskVolume10\app.exe`, `D:\app.exe`, nil},
		{`\Device\harddiskvolume3\app.exe`, `C:\app.exe`, nil},
		{`\Device\HarddiskVolume3`, `C:\`, nil},
		{`\Device\HarddiskVolume7\app.exe`, "", ErrFailedGettingDOSPath},
		{`\Device\`, "", ErrInvalidPath},
		{`\Device`, "", ErrInvalidPath},
		{`C:\app.exe`, "", ErrInvalidPath},
		{"", "", ErrInvalidPath},
	}
	fp := newPathPlatform()
	for _, tc := range tests {
		got, err := dosPath(fp, tc.path)
		if tc.wantErr != nil {
			assert.ErrorIs(t, err, tc.wantErr)
			continue
		}
		assert.NilErr(t, err)
		assert.DeepEqual(t, got, tc.want)
	}
}

// TestPathRoundTrip asserts a session process name converts back to the NT
// path it came from.
func TestPathRoundTrip(t *testing.T) {
	t.Parallel()

	fp := newPathPlatform()
	const name = `\Device\HarddiskVolume3\app.exe`
	dos, err := dosPath(fp, name)
	assert.NilErr(t, err)
	nt, err := ntPath(fp, dos)
	assert.NilErr(t, err)
	assert.DeepEqual(t, nt, name)
}

// TestDOSPathUnsupportedPlatform asserts conversions stop at the first query
// on platforms without DOS devices.
func TestDOSPathUnsupportedPlatform(t *testing.T) {
	t.Parallel()

	fp := &fakePlatform{dosDeviceErr: ErrPlatformUnsupported}
	_, err := dosPath(fp, `\Device\HarddiskVolume3\app.exe`)
	assert.ErrorIs(t, err, ErrFailedGettingDOSPath)
	assert.ErrorIs(t, err, ErrPlatformUnsupported)
	assert.DeepEqual(t, fp.dosDeviceRuns.Load(), int64(1))

	_, err = ntPath(fp, `C:\app.exe`)
	assert.ErrorIs(t, err, ErrFailedGettingNTPath)
	assert.ErrorIs(t, err, ErrPlatformUnsupported)
}
