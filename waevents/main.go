package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/companyzero/winaudio/internal/clilog"
	"github.com/companyzero/winaudio/wasapi"
	"github.com/decred/slog"
	"github.com/mitchellh/go-homedir"
)

// watcher logs every event of the audio subsystem.
type watcher struct {
	log slog.Logger
	n   *wasapi.Notifications
}

// watchSession registers the event callback of a session.
func (w *watcher) watchSession(s *wasapi.Session) {
	err := w.n.RegisterSessionEvent(s, func(ev wasapi.AudioSessionEvent) {
		w.log.Infof("Session %s: %s", s, describeSessionEvent(ev))
		if _, ok := ev.(wasapi.SessionDisconnected); ok {
			// Disconnected sessions send no further events.
			go w.n.UnregisterSessionEvent(s)
		}
	})
	switch {
	case errors.Is(err, wasapi.ErrNotificationAlreadyRegistered):
	case err != nil:
		w.log.Warnf("Unable to watch session %s: %v", s, err)
	default:
		w.log.Debugf("Watching session %s", s)
	}
}

func (w *watcher) sessionCreated(ev wasapi.SessionCreated) {
	w.log.Infof("Session created: %s (%s)", ev.Session, ev.Session.Name())

	// Registering from a platform callback thread is not allowed.
	go w.watchSession(ev.Session)
}

func (w *watcher) deviceEvent(ev wasapi.DeviceEvent) {
	w.log.Infof("Device event: %s", describeDeviceEvent(ev))
}

func (w *watcher) run(ctx context.Context) error {
	if err := w.n.RegisterDeviceNotification(w.deviceEvent); err != nil {
		return err
	}

	devs, err := wasapi.PlaybackDevices()
	if err != nil {
		return err
	}
	for _, dev := range devs {
		if err := w.n.RegisterSessionNotification(dev, w.sessionCreated); err != nil {
			return fmt.Errorf("unable to watch sessions of %s: %w", dev, err)
		}
		w.log.Infof("Watching new sessions of %s", dev)
	}

	sessions, err := wasapi.Sessions()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		w.watchSession(s)
	}

	<-ctx.Done()
	return nil
}

func describeSessionEvent(ev wasapi.AudioSessionEvent) string {
	switch ev := ev.(type) {
	case wasapi.DisplayNameChanged:
		return fmt.Sprintf("display name changed to %q", ev.DisplayName)
	case wasapi.IconPathChanged:
		return fmt.Sprintf("icon path changed to %q", ev.IconPath)
	case wasapi.SimpleVolumeChanged:
		return fmt.Sprintf("volume changed to %.2f (muted %v)", ev.Volume, ev.Muted)
	case wasapi.ChannelVolumeChanged:
		return fmt.Sprintf("channel %d volume changed (%v)", ev.ChangedChannel, ev.Volumes)
	case wasapi.GroupingParamChanged:
		return fmt.Sprintf("grouping param changed to %s", ev.GroupingParam)
	case wasapi.StateChanged:
		return fmt.Sprintf("state changed to %s", ev.State)
	case wasapi.SessionDisconnected:
		return fmt.Sprintf("disconnected (%s)", ev.Reason)
	default:
		return fmt.Sprintf("unknown event %T", ev)
	}
}

func describeDeviceEvent(ev wasapi.DeviceEvent) string {
	switch ev := ev.(type) {
	case wasapi.DefaultDeviceChanged:
		return fmt.Sprintf("default %s %s device changed to %s", ev.Flow,
			ev.Role, ev.DeviceID)
	case wasapi.DeviceAdded:
		return fmt.Sprintf("device %s added", ev.DeviceID)
	case wasapi.DeviceRemoved:
		return fmt.Sprintf("device %s removed", ev.DeviceID)
	case wasapi.DeviceStateChanged:
		return fmt.Sprintf("device %s is now %s", ev.DeviceID, ev.State)
	case wasapi.DevicePropertyValueChanged:
		return fmt.Sprintf("device %s property %s changed", ev.DeviceID, ev.Key)
	default:
		return fmt.Sprintf("unknown event %T", ev)
	}
}

func realMain() error {
	logFile := flag.String("logfile", "", "also write the events to this file")
	debugLevel := flag.String("debuglevel", "info", "log level")
	flag.Parse()

	if *logFile != "" {
		var err error
		if *logFile, err = homedir.Expand(*logFile); err != nil {
			return err
		}
	}
	logBknd, err := clilog.New(os.Stdout, *logFile, *debugLevel)
	if err != nil {
		return err
	}
	defer logBknd.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n := wasapi.NewNotifications(wasapi.WithLogger(logBknd.Logger("WASA")))
	defer n.Close()
	w := &watcher{log: logBknd.Logger("EVNT"), n: n}
	return w.run(ctx)
}

func main() {
	err := realMain()
	if err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
