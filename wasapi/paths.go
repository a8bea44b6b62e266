package wasapi

import (
	"errors"
	"strings"
)

// ntDevicePrefix starts every NT device path.
const ntDevicePrefix = `\Device\`

// splitDrivePath splits a path such as `C:\dir\file` into its drive name
// ("C:") and the path relative to the drive root.
func splitDrivePath(path string) (string, string, error) {
	if len(path) < 3 || path[1:3] != `:\` {
		return "", "", ErrInvalidPath
	}
	letter := path[0] &^ 0x20
	if letter < 'A' || letter > 'Z' {
		return "", "", ErrInvalidPath
	}
	return string(letter) + ":", path[3:], nil
}

// splitNTPath splits a path such as `\Device\HarddiskVolume3\dir\file` into
// its device path and the path relative to the device root.
func splitNTPath(path string) (string, string, error) {
	rest, ok := strings.CutPrefix(path, ntDevicePrefix)
	if !ok {
		return "", "", ErrInvalidPath
	}
	device, rel, _ := strings.Cut(rest, `\`)
	if device == "" {
		return "", "", ErrInvalidPath
	}
	return ntDevicePrefix + device, rel, nil
}

func ntPath(p platform, path string) (string, error) {
	drive, rel, err := splitDrivePath(path)
	if err != nil {
		return "", err
	}
	target, err := p.queryDosDevice(drive)
	if err != nil {
		return "", wrapErr(ErrFailedGettingNTPath, err)
	}
	return target + `\` + rel, nil
}

func dosPath(p platform, path string) (string, error) {
	device, rel, err := splitNTPath(path)
	if err != nil {
		return "", err
	}
	for letter := 'A'; letter <= 'Z'; letter++ {
		drive := string(letter) + ":"
		target, err := p.queryDosDevice(drive)
		switch {
		case errors.Is(err, ErrPlatformUnsupported):
			return "", wrapErr(ErrFailedGettingDOSPath, err)
		case err != nil:
			// Unmapped letter.
			continue
		}
		if strings.EqualFold(target, device) {
			return drive + `\` + rel, nil
		}
	}
	return "", wrapErr(ErrFailedGettingDOSPath, errDeviceNotMapped)
}

// NTPath converts a drive letter path such as `C:\Windows\explorer.exe`
// into the NT device path of the same file, such as
// `\Device\HarddiskVolume3\Windows\explorer.exe`.
func NTPath(path string) (string, error) {
	return ntPath(defaultPlatform, path)
}

// DOSPath converts an NT device path, as returned by Session.ProcessName,
// into a path rooted at the drive letter the device is mapped to.
func DOSPath(path string) (string, error) {
	return dosPath(defaultPlatform, path)
}
