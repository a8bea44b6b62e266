package wasapi

// onSimpleVolumeChanged receives the float volume in v0, so the integer
// arguments that follow it take x1 and x2.
func onSimpleVolumeChanged(this, muted, eventContext uintptr) uintptr {
	return simpleVolumeChanged(this, muted, eventContext)
}
