package wasapi

// volumeCallbackArgs lays out OnSimpleVolumeChanged integer arguments as
// received on arm64, where the float volume travels in a vector register.
func volumeCallbackArgs(this, muted, eventContext uintptr) []uintptr {
	return []uintptr{this, muted, eventContext}
}
