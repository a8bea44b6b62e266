package wasapi

import (
	"encoding/binary"
	"fmt"
)

// GUID is a platform globally unique identifier. It shares the memory layout
// of the platform's GUID structure.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// IsZero is true for the all zeroes (null) GUID.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// String returns the registry form of the GUID, without braces.
func (g GUID) String() string {
	return fmt.Sprintf("%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X",
		g.Data1, g.Data2, g.Data3, g.Data4[0], g.Data4[1], g.Data4[2],
		g.Data4[3], g.Data4[4], g.Data4[5], g.Data4[6], g.Data4[7])
}

// put writes the GUID in its little endian memory layout into b.
func (g GUID) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], g.Data1)
	binary.LittleEndian.PutUint16(b[4:], g.Data2)
	binary.LittleEndian.PutUint16(b[6:], g.Data3)
	copy(b[8:16], g.Data4[:])
}

func guidFromBytes(b []byte) GUID {
	var g GUID
	g.Data1 = binary.LittleEndian.Uint32(b[0:])
	g.Data2 = binary.LittleEndian.Uint16(b[4:])
	g.Data3 = binary.LittleEndian.Uint16(b[6:])
	copy(g.Data4[:], b[8:16])
	return g
}

// PropertyKey identifies a device property.
type PropertyKey struct {
	FmtID GUID
	PID   uint32
}

func (k PropertyKey) String() string {
	return fmt.Sprintf("{%s} %d", k.FmtID, k.PID)
}
