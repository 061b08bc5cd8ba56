package repository

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthMonitor tracks whether the store is reachable so write-heavy routes
// can fail fast instead of queueing requests against a dead connection.
type HealthMonitor struct {
	pinger   Pinger
	interval time.Duration

	mu      sync.RWMutex
	healthy bool
}

// NewHealthMonitor creates a monitor. A nil pinger (no store configured)
// is permanently unhealthy.
func NewHealthMonitor(pinger Pinger, interval time.Duration) *HealthMonitor {
	return &HealthMonitor{pinger: pinger, interval: interval}
}

// Start probes once immediately, then on every interval until ctx is done.
func (m *HealthMonitor) Start(ctx context.Context) {
	if m.pinger == nil {
		return
	}
	m.check(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

func (m *HealthMonitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := m.pinger.Ping(pingCtx)

	m.mu.Lock()
	was := m.healthy
	m.healthy = err == nil
	m.mu.Unlock()

	if was && err != nil {
		log.Printf("store became unreachable: %v", err)
	} else if !was && err == nil {
		log.Println("store connection healthy")
	}
}

// Healthy reports the last observed store state.
func (m *HealthMonitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// SetHealthy overrides the flag; used by tests and by startup wiring when
// the initial connection already succeeded.
func (m *HealthMonitor) SetHealthy(v bool) {
	m.mu.Lock()
	m.healthy = v
	m.mu.Unlock()
}
