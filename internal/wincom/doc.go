// Package wincom contains the minimal COM plumbing needed to drive the
// platform audio interfaces without cgo: vtable calls, task allocator
// memory, thread initialization and COM objects implemented in Go.
package wincom
