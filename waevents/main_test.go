package main

import (
	"testing"

	"github.com/companyzero/winaudio/wasapi"
)

func TestDescribeEvents(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{describeSessionEvent(wasapi.StateChanged{State: wasapi.SessionStateExpired}),
			"state changed to expired"},
		{describeSessionEvent(wasapi.SessionDisconnected{Reason: wasapi.DisconnectServerShutdown}),
			"disconnected (server shutdown)"},
		{describeSessionEvent(wasapi.SimpleVolumeChanged{Volume: 0.25, Muted: true}),
			"volume changed to 0.25 (muted true)"},
		{describeDeviceEvent(wasapi.DefaultDeviceChanged{Flow: wasapi.DataFlowRender,
			Role: wasapi.RoleMultimedia, DeviceID: "spk"}),
			"default render multimedia device changed to spk"},
		{describeDeviceEvent(wasapi.DeviceStateChanged{DeviceID: "mic",
			State: wasapi.DeviceStateDisabled}),
			"device mic is now disabled"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Fatalf("got %q, want %q", tc.got, tc.want)
		}
	}
}
