package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradesync-api/internal/dto"
	"github.com/noah-isme/gradesync-api/internal/models"
)

type healthProber interface {
	Ping(ctx context.Context) (models.ProbeResult, error)
}

type connectivitySink interface {
	ProbeConnectivity(ctx context.Context, reachable bool) (*dto.ConnectivityResponse, error)
}

// ConnectivityMonitor probes the grade API on an interval and reports the result
// as a connectivity signal.
type ConnectivityMonitor struct {
	prober   healthProber
	sink     connectivitySink
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewConnectivityMonitor constructs a monitor. A non-positive interval disables probing.
func NewConnectivityMonitor(prober healthProber, sink connectivitySink, interval time.Duration, logger *zap.Logger) *ConnectivityMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &ConnectivityMonitor{prober: prober, sink: sink, interval: interval, timeout: timeout, logger: logger}
}

// Run probes until ctx is cancelled.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	if m.interval <= 0 || m.prober == nil || m.sink == nil {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe runs one health check and forwards the result. The sink decides
// whether a probe may override an explicit signal.
func (m *ConnectivityMonitor) Probe(ctx context.Context) models.ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := m.prober.Ping(probeCtx)
	if err != nil {
		m.logger.Debug("grade api probe failed", zap.String("url", result.URL), zap.Error(err))
	}
	if _, sinkErr := m.sink.ProbeConnectivity(ctx, result.Reachable); sinkErr != nil {
		m.logger.Warn("failed to apply probe result", zap.Bool("reachable", result.Reachable), zap.Error(sinkErr))
	}
	return result
}
