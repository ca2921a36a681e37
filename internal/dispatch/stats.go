package dispatch

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats counts traffic since process start. Safe for concurrent use.
type Stats struct {
	started       time.Time
	requests      atomic.Int64
	emailsSent    atomic.Int64
	emailsFailed  atomic.Int64
	lastMessageNs atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Started      time.Time
	Requests     int64
	EmailsSent   int64
	EmailsFailed int64
	LastMessage  time.Time
}

// NewStats starts the uptime clock at now.
func NewStats(now time.Time) *Stats {
	return &Stats{started: now}
}

func (s *Stats) message(at time.Time) {
	s.requests.Add(1)
	s.lastMessageNs.Store(at.UnixNano())
}

func (s *Stats) emailSent()   { s.emailsSent.Add(1) }
func (s *Stats) emailFailed() { s.emailsFailed.Add(1) }

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Started:      s.started,
		Requests:     s.requests.Load(),
		EmailsSent:   s.emailsSent.Load(),
		EmailsFailed: s.emailsFailed.Load(),
	}
	if ns := s.lastMessageNs.Load(); ns != 0 {
		snap.LastMessage = time.Unix(0, ns)
	}
	return snap
}

// formatUptime renders d as "Xh Ym Zs".
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
}
