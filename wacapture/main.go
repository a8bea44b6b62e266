package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/companyzero/winaudio/internal/clilog"
	"github.com/companyzero/winaudio/wasapi"
	"github.com/davecgh/go-spew/spew"
	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"
)

// packetQueueSize is the number of captured packets buffered between the
// stream thread and the file writer.
const packetQueueSize = 256

// findDevice returns the first device whose friendly name contains filter,
// case insensitive.
func findDevice(devs []*wasapi.Device, filter string) (*wasapi.Device, error) {
	filter = strings.ToLower(filter)
	for _, dev := range devs {
		name, err := dev.FriendlyName()
		if err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(name), filter) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no device matches %q", filter)
}

// prepareCapture creates the stream config for the configured source.
func prepareCapture(ac *wasapi.AudioClient, cfg *settings, dataCB wasapi.CaptureFunc,
	errCB wasapi.ErrorFunc) (*wasapi.StreamConfig, error) {

	switch cfg.Source {
	case sourceProcess:
		return ac.StartRecordingProcess(cfg.ProcessID, cfg.IncludeTree, dataCB, errCB)

	case sourceDevice:
		devs, err := wasapi.CaptureDevices()
		if err != nil {
			return nil, err
		}
		dev, err := findDevice(devs, cfg.Device)
		if err != nil {
			return nil, err
		}
		return ac.StartRecordingDevice(dev, dataCB, errCB)

	case sourceLoopback:
		if cfg.Device == "" {
			return ac.StartRecordingDefaultLoopback(dataCB, errCB)
		}
		devs, err := wasapi.PlaybackDevices()
		if err != nil {
			return nil, err
		}
		dev, err := findDevice(devs, cfg.Device)
		if err != nil {
			return nil, err
		}
		return ac.StartRecordingLoopbackDevice(dev, dataCB, errCB)

	default:
		return ac.StartRecordingDefaultDevice(dataCB, errCB)
	}
}

// listEndpoints logs the devices and sessions of the system.
func listEndpoints(log slog.Logger) error {
	for _, playback := range []bool{false, true} {
		list := wasapi.CaptureDevices
		kind := "Capture"
		if playback {
			list, kind = wasapi.PlaybackDevices, "Playback"
		}
		devs, err := list()
		if err != nil {
			return err
		}
		for _, dev := range devs {
			id, _ := dev.ID()
			mix, err := dev.MixFormat()
			if err != nil {
				log.Warnf("Unable to read mix format of %s: %v", dev, err)
			}
			log.Infof("%s device %q (%s) mix format %s", kind, dev, id, mix)
		}
	}

	sessions, err := wasapi.Sessions()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		state, err := s.State()
		if err != nil {
			return err
		}
		exe := s.ProcessName()
		if dos, err := wasapi.DOSPath(exe); err == nil {
			exe = dos
		}
		log.Infof("Session %s state %s process %q id %s", s, state, exe, s.Name())
	}
	return nil
}

func realMain() error {
	// Settings.
	cfg, list, err := obtainSettings()
	if err != nil {
		return err
	}

	// Log.
	logBknd, err := clilog.New(os.Stdout, cfg.LogFile, cfg.DebugLevel)
	if err != nil {
		return err
	}
	defer logBknd.Close()
	log := logBknd.Logger("WACP")
	log.Infof("Running wacapture version %s", appVersion)
	log.Debugf("Effective settings:\n%s", spew.Sdump(cfg))

	if list {
		return listEndpoints(log)
	}

	// Main context.
	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelCapture := context.WithCancel(sigCtx)
	defer cancelCapture()

	// Stream.
	opts := []wasapi.Option{wasapi.WithLogger(logBknd.Logger("WASA"))}
	if cfg.Format != nil {
		opts = append(opts, wasapi.WithFormat(*cfg.Format))
	}
	if cfg.ActivationTimeout > 0 {
		opts = append(opts, wasapi.WithActivationTimeout(cfg.ActivationTimeout))
	}
	if cfg.BufferDuration > 0 {
		opts = append(opts, wasapi.WithCaptureBufferDuration(cfg.BufferDuration))
	}
	ac := wasapi.NewAudioClient(opts...)

	st := newStats()
	pkts := make(chan packet, packetQueueSize)
	dataCB := func(pkt wasapi.CapturePacket) {
		st.captured(pkt)
		p := packet{frames: pkt.Frames, silent: pkt.Flags.Silent()}
		if !p.silent {
			p.data = append([]byte(nil), pkt.Data...)
		}
		select {
		case pkts <- p:
		default:
			st.dropped()
		}
	}
	errCB := func(err error) {
		log.Errorf("Capture stream failed: %v", err)
	}

	sc, err := prepareCapture(ac, cfg, dataCB, errCB)
	if err != nil {
		return err
	}
	w, err := newWAVWriter(cfg.OutFile, sc.Format())
	if err != nil {
		sc.Close()
		return err
	}
	stream, err := sc.Start()
	if err != nil {
		w.Close()
		return err
	}
	log.Infof("Capturing %s source with format %s to %s", cfg.Source,
		sc.Format(), cfg.OutFile)

	g, gctx := errgroup.WithContext(ctx)

	// Stop the stream once the capture is done. Closing pkts is only safe
	// after Stop returns, when the data callback is no longer called.
	g.Go(func() error {
		var timeout <-chan time.Time
		if cfg.Duration > 0 {
			timeout = time.After(cfg.Duration)
		}
		select {
		case <-gctx.Done():
		case <-timeout:
			log.Infof("Capture duration elapsed")
		case <-stream.Done():
		}
		stream.Stop()
		close(pkts)
		cancelCapture()
		return stream.Err()
	})

	g.Go(func() error {
		var writeErr error
		for p := range pkts {
			if writeErr != nil {
				continue
			}
			writeErr = w.write(p)
		}
		if err := w.Close(); writeErr == nil {
			writeErr = err
		}
		log.Infof("Wrote %d frames to %s", w.frames, cfg.OutFile)
		return writeErr
	})

	g.Go(func() error {
		return st.runReportStatsLoop(gctx, cfg.StatsInterval, log)
	})
	if cfg.ListenPrometheus != "" {
		g.Go(func() error {
			return st.runPrometheusListener(gctx, cfg.ListenPrometheus, log)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	err := realMain()
	if err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
