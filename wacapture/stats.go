package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/companyzero/winaudio/wasapi"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// stats holds capture statistics. The prometheus metrics are updated from
// the stream thread, the atomic counters are drained by the report loop.
type stats struct {
	reg *prometheus.Registry

	packets         prometheus.Counter
	bytes           prometheus.Counter
	silentPackets   prometheus.Counter
	discontinuities prometheus.Counter
	droppedPackets  prometheus.Counter
	packetFrames    prometheus.Histogram

	packetsAtomic atomic.Uint64
	bytesAtomic   atomic.Uint64
	droppedAtomic atomic.Uint64
}

func newStats() *stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return &stats{
		reg: reg,

		packets: f.NewCounter(prometheus.CounterOpts{
			Name: "wacapture_packets",
			Help: "Total number of captured packets",
		}),
		bytes: f.NewCounter(prometheus.CounterOpts{
			Name: "wacapture_bytes",
			Help: "Total captured bytes",
		}),
		silentPackets: f.NewCounter(prometheus.CounterOpts{
			Name: "wacapture_silent_packets",
			Help: "Count of packets flagged as silent by the device",
		}),
		discontinuities: f.NewCounter(prometheus.CounterOpts{
			Name: "wacapture_discontinuities",
			Help: "Count of packets flagged with a data discontinuity",
		}),
		droppedPackets: f.NewCounter(prometheus.CounterOpts{
			Name: "wacapture_dropped_packets",
			Help: "Count of packets dropped because the writer fell behind",
		}),
		packetFrames: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wacapture_packet_frames",
			Help:    "Histogram of the number of frames per captured packet",
			Buckets: []float64{16, 64, 128, 256, 480, 512, 960, 1024, 2048, 4096},
		}),
	}
}

// captured records a packet delivered by the stream.
func (s *stats) captured(pkt wasapi.CapturePacket) {
	s.packets.Inc()
	s.bytes.Add(float64(len(pkt.Data)))
	s.packetFrames.Observe(float64(pkt.Frames))
	if pkt.Flags.Silent() {
		s.silentPackets.Inc()
	}
	if pkt.Flags.Discontinuity() {
		s.discontinuities.Inc()
	}
	s.packetsAtomic.Add(1)
	s.bytesAtomic.Add(uint64(len(pkt.Data)))
}

// dropped records a packet the writer could not keep up with.
func (s *stats) dropped() {
	s.droppedPackets.Inc()
	s.droppedAtomic.Add(1)
}

// runReportStatsLoop logs the capture rates every reportInterval.
func (s *stats) runReportStatsLoop(ctx context.Context, reportInterval time.Duration,
	log slog.Logger) error {

	if reportInterval <= 0 {
		log.Infof("Logging of stats is disabled")
		return nil
	}

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	tickTime := time.Now()
	for {
		lastTick := tickTime
		select {
		case <-ctx.Done():
			return nil
		case tickTime = <-ticker.C:
		}

		packets := s.packetsAtomic.Swap(0)
		bytes := s.bytesAtomic.Swap(0)
		dropped := s.droppedAtomic.Swap(0)
		if packets|dropped == 0 {
			continue
		}

		dts := tickTime.Sub(lastTick).Seconds()
		if dts <= 0 {
			continue
		}
		log.Infof("Stats for the last %s - %8s (%7sB/sec) %6d pkts "+
			"(%7s/sec) %d dropped",
			tickTime.Sub(lastTick).Round(time.Millisecond),
			hbytes(bytes), hrate(float64(bytes)/dts), packets,
			hrate(float64(packets)/dts), dropped)
	}
}

// runPrometheusListener serves the metrics on addr until ctx is done.
func (s *stats) runPrometheusListener(ctx context.Context, addr string, log slog.Logger) error {
	mux := http.NewServeMux()
	promHandler := promhttp.InstrumentMetricHandler(
		s.reg, promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}),
	)
	mux.Handle("/metrics", promHandler)
	hs := http.Server{
		Addr:        addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     mux,
	}
	log.Infof("Exposing prometheus metrics on %s", addr)
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	}()
	err := hs.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
