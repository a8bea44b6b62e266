package wasapi

// onSimpleVolumeChanged receives the float volume in XMM1, which leaves its
// integer slot unused.
func onSimpleVolumeChanged(this, _, muted, eventContext uintptr) uintptr {
	return simpleVolumeChanged(this, muted, eventContext)
}
