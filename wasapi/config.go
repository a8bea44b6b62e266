package wasapi

import (
	"time"

	"github.com/decred/slog"
)

const (
	// defaultCaptureBufferDuration is the buffer duration requested when
	// initializing capture streams.
	defaultCaptureBufferDuration = 20 * time.Millisecond

	// defaultPlaybackPollInterval bounds the wait of the playback loop for
	// the device to request more data.
	defaultPlaybackPollInterval = 10 * time.Millisecond
)

type config struct {
	log                   slog.Logger
	format                *SampleFormat
	activationTimeout     time.Duration
	captureBufferDuration time.Duration
	playbackPollInterval  time.Duration
	boostPriority         bool
	platform              platform
}

func fillConfig(opts ...Option) config {
	cfg := config{
		log:                   slog.Disabled,
		activationTimeout:     infiniteTimeout,
		captureBufferDuration: defaultCaptureBufferDuration,
		playbackPollInterval:  defaultPlaybackPollInterval,
		boostPriority:         true,
		platform:              defaultPlatform,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option is a functional AudioClient or Notifications config option.
type Option func(c *config)

// WithLogger sets the logger to use.
func WithLogger(l slog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithFormat sets the sample format requested for new streams. Process
// loopback streams use DefaultSampleFormat when this is not set. Device
// streams use the device mix format when this is not set.
func WithFormat(f SampleFormat) Option {
	return func(c *config) {
		c.format = &f
	}
}

// WithActivationTimeout bounds the wait for asynchronous audio interface
// activations. By default, the wait is unbounded.
func WithActivationTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("activation timeout must be positive")
	}
	return func(c *config) {
		c.activationTimeout = d
	}
}

// WithCaptureBufferDuration sets the buffer duration requested for capture
// streams.
func WithCaptureBufferDuration(d time.Duration) Option {
	if d <= 0 {
		panic("capture buffer duration must be positive")
	}
	return func(c *config) {
		c.captureBufferDuration = d
	}
}

// WithPlaybackPollInterval sets the maximum time the playback loop waits for
// the device to request data before checking the buffer padding again.
func WithPlaybackPollInterval(d time.Duration) Option {
	if d <= 0 {
		panic("playback poll interval must be positive")
	}
	return func(c *config) {
		c.playbackPollInterval = d
	}
}

// WithoutPriorityBoost disables raising the priority of stream threads to
// time critical.
func WithoutPriorityBoost() Option {
	return func(c *config) {
		c.boostPriority = false
	}
}

// withPlatform replaces the platform binding.
func withPlatform(p platform) Option {
	return func(c *config) {
		c.platform = p
	}
}
