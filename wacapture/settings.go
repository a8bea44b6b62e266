package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/companyzero/winaudio/wasapi"
	"github.com/mitchellh/go-homedir"
	"github.com/vaughan0/go-ini"
	strduration "github.com/xhit/go-str2duration/v2"
)

const appVersion = "0.1.0"

// Capture sources.
const (
	sourceDefault  = "default"
	sourceDevice   = "device"
	sourceLoopback = "loopback"
	sourceProcess  = "process"
)

type settings struct {
	Source      string // one of the source constants
	Device      string // device name filter for device and loopback sources
	ProcessID   uint32
	IncludeTree bool

	OutFile  string
	Duration time.Duration // zero captures until interrupted

	// Format overrides the stream format when set.
	Format *wasapi.SampleFormat

	ActivationTimeout time.Duration
	BufferDuration    time.Duration

	ListenPrometheus string

	// log section
	LogFile       string
	DebugLevel    string
	StatsInterval time.Duration
}

func defaultSettings(rootDir string) *settings {
	return &settings{
		Source:        sourceDefault,
		IncludeTree:   true,
		OutFile:       "capture.wav",
		LogFile:       filepath.Join(rootDir, "logs", "wacapture.log"),
		DebugLevel:    "info",
		StatsInterval: 10 * time.Second,
	}
}

// parseSettings fills the defaults with the values of an ini config.
func parseSettings(cfg ini.File, rootDir string) (*settings, error) {
	get := func(s *string, section, field string) bool {
		v, ok := cfg.Get(section, field)
		if ok {
			*s = v
		}
		return ok
	}
	getBool := func(b *bool, section, field string) error {
		s, ok := cfg.Get(section, field)
		if !ok {
			return nil
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid %s.%s: %w", section, field, err)
		}
		*b = v
		return nil
	}
	getUint := func(i *uint64, bits int, section, field string) (bool, error) {
		s, ok := cfg.Get(section, field)
		if !ok {
			return false, nil
		}
		v, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return false, fmt.Errorf("invalid %s.%s: %w", section, field, err)
		}
		*i = v
		return true, nil
	}
	getDuration := func(d *time.Duration, section, field string) error {
		s, ok := cfg.Get(section, field)
		if !ok {
			return nil
		}
		if s == "" {
			*d = 0
			return nil
		}
		v, err := strduration.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid %s.%s: %w", section, field, err)
		}
		*d = v
		return nil
	}
	getPath := func(p *string, section, field string) error {
		if !get(p, section, field) || *p == "" {
			return nil
		}
		v, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("invalid %s.%s: %w", section, field, err)
		}
		*p = v
		return nil
	}

	s := defaultSettings(rootDir)
	var errs []error

	// capture section
	get(&s.Source, "capture", "source")
	s.Source = strings.ToLower(strings.TrimSpace(s.Source))
	get(&s.Device, "capture", "device")
	var pid uint64
	if _, err := getUint(&pid, 32, "capture", "pid"); err != nil {
		errs = append(errs, err)
	}
	s.ProcessID = uint32(pid)
	errs = append(errs, getBool(&s.IncludeTree, "capture", "includetree"))
	errs = append(errs, getPath(&s.OutFile, "capture", "outfile"))
	errs = append(errs, getDuration(&s.Duration, "capture", "duration"))
	errs = append(errs, getDuration(&s.ActivationTimeout, "capture", "activationtimeout"))
	errs = append(errs, getDuration(&s.BufferDuration, "capture", "bufferduration"))

	// format section
	var channels, rate, bits uint64
	hasChannels, err := getUint(&channels, 16, "format", "channels")
	errs = append(errs, err)
	_, err = getUint(&rate, 32, "format", "samplerate")
	errs = append(errs, err)
	_, err = getUint(&bits, 16, "format", "bitspersample")
	errs = append(errs, err)
	var isFloat bool
	errs = append(errs, getBool(&isFloat, "format", "float"))
	if hasChannels {
		f := wasapi.NewSampleFormat(uint16(channels), uint32(rate), uint16(bits))
		if isFloat {
			f.Tag = wasapi.FormatTagIEEEFloat
		}
		if err := f.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("invalid format section: %w", err))
		}
		s.Format = &f
	}

	// log section
	errs = append(errs, getPath(&s.LogFile, "log", "logfile"))
	get(&s.DebugLevel, "log", "debuglevel")
	errs = append(errs, getDuration(&s.StatsInterval, "log", "statsinterval"))
	get(&s.ListenPrometheus, "log", "listenprometheus")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	switch s.Source {
	case sourceDefault, sourceDevice, sourceLoopback:
	case sourceProcess:
		if s.ProcessID == 0 {
			return nil, errors.New("process source requires capture.pid")
		}
	default:
		return nil, fmt.Errorf("unknown capture source %q", s.Source)
	}
	if s.Source == sourceDevice && s.Device == "" {
		return nil, errors.New("device source requires capture.device")
	}
	if s.OutFile == "" {
		return nil, errors.New("empty capture.outfile")
	}

	return s, nil
}

// obtainSettings parses the command line flags and the config file. A
// missing config file leaves the defaults in place.
func obtainSettings() (*settings, bool, error) {
	rootDir, err := homedir.Expand("~/.wacapture")
	if err != nil {
		return nil, false, err
	}

	filename := flag.String("cfg", filepath.Join(rootDir, "wacapture.conf"), "config file")
	versionFlag := flag.Bool("version", false, "show version")
	showEnvFlag := flag.Bool("showenv", false, "show environment and config information")
	listFlag := flag.Bool("list", false, "list devices and sessions and exit")
	flag.Parse()

	println := func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	if *versionFlag || *showEnvFlag {
		println("wacapture %s (%s)", appVersion, runtime.Version())
	}
	if *versionFlag {
		os.Exit(0)
	}
	if *showEnvFlag {
		println("Root dir: %s", rootDir)
		println("Config file path: %s", *filename)
	}

	cfg, err := ini.LoadFile(*filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = make(ini.File)
		if *showEnvFlag {
			println("Config file not found, using defaults")
		}
	case err != nil:
		return nil, false, err
	case *showEnvFlag:
		println("Config file successfully loaded!")
	}

	s, err := parseSettings(cfg, rootDir)
	if err != nil {
		return nil, false, err
	}

	if *showEnvFlag {
		println("Source: %s", s.Source)
		println("Output file: %s", s.OutFile)
		println("Log file: %s", s.LogFile)
		os.Exit(0)
	}

	return s, *listFlag, nil
}
