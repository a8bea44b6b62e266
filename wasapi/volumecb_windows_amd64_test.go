package wasapi

// volumeCallbackArgs lays out OnSimpleVolumeChanged integer arguments as
// received on amd64, where the float volume keeps its own slot.
func volumeCallbackArgs(this, muted, eventContext uintptr) []uintptr {
	return []uintptr{this, 0, muted, eventContext}
}
