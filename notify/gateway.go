// Copyright (c) 2026 Quanta Exchange Contributors
//
// gateway fans a Broker's drained notifications out to per-session
// outgoing queues, flushing each session's queue by size or time and
// applying the spec's drop-oldest-half backpressure policy. Session
// reaping on a missed heartbeat follows the same ticker-driven sweep
// shape as the broker's own drain loop.

package notify

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

const (
	DefaultBatchSize             = 100
	DefaultBatchInterval         = 100 * time.Millisecond
	DefaultBackpressureThreshold = 500
	DefaultHeartbeatTimeout      = 5 * time.Minute
	backpressureLogInterval      = 5 * time.Second
)

// FlushFunc delivers one batch of notifications to a session's transport
// (e.g. a diff.Session's WebSocket connection, or a test double).
type FlushFunc func(sessionID string, batch []Notification)

type session struct {
	mu                   sync.Mutex
	id                   string
	outgoing             []Notification
	lastHeartbeat        time.Time
	lastBackpressureLog  time.Time
	closed               bool
}

// Gateway batches and delivers notifications to registered sessions,
// dropping the oldest half of a session's queue under sustained
// backpressure and reaping sessions whose heartbeat has gone silent.
type Gateway struct {
	log               *slog.Logger
	flush             FlushFunc
	batchSize         int
	batchInterval     time.Duration
	backpressureLimit int
	heartbeatTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*session

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewGateway creates a Gateway. Zero-valued size/interval/limit/timeout
// arguments fall back to the spec defaults.
func NewGateway(batchSize int, batchInterval time.Duration, backpressureLimit int, heartbeatTimeout time.Duration, flush FlushFunc, logger *slog.Logger) *Gateway {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchInterval <= 0 {
		batchInterval = DefaultBatchInterval
	}
	if backpressureLimit <= 0 {
		backpressureLimit = DefaultBackpressureThreshold
	}
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = DefaultHeartbeatTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Gateway{
		log:               logger,
		flush:             flush,
		batchSize:         batchSize,
		batchInterval:     batchInterval,
		backpressureLimit: backpressureLimit,
		heartbeatTimeout:  heartbeatTimeout,
		sessions:          make(map[string]*session),
		ticker:            time.NewTicker(batchInterval),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// RegisterSession starts tracking sessionID, idempotent.
func (g *Gateway) RegisterSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[sessionID]; ok {
		return
	}
	g.sessions[sessionID] = &session{id: sessionID, lastHeartbeat: time.Now()}
}

// RemoveSession stops tracking sessionID and drops its pending queue.
func (g *Gateway) RemoveSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, sessionID)
}

// SessionCount returns the number of sessions currently registered, for
// introspection (e.g. cmd/qx-tui's connection-count panel).
func (g *Gateway) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// PendingCount returns how many notifications are currently queued for
// sessionID, for metrics/backpressure observability.
func (g *Gateway) PendingCount(sessionID string) int {
	g.mu.Lock()
	s, ok := g.sessions[sessionID]
	g.mu.Unlock()
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outgoing)
}

// Heartbeat marks sessionID as alive, resetting its silence timer.
func (g *Gateway) Heartbeat(sessionID string) {
	g.mu.Lock()
	s, ok := g.sessions[sessionID]
	g.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.lastHeartbeat = time.Now()
	s.mu.Unlock()
}

// route enqueues n onto every session it targets (all sessions if
// n.SessionID is empty), applying backpressure in-line.
func (g *Gateway) route(n Notification) {
	g.mu.Lock()
	var targets []*session
	if n.SessionID == "" {
		for _, s := range g.sessions {
			targets = append(targets, s)
		}
	} else if s, ok := g.sessions[n.SessionID]; ok {
		targets = append(targets, s)
	}
	g.mu.Unlock()

	for _, s := range targets {
		g.enqueue(s, n)
	}
}

func (g *Gateway) enqueue(s *session, n Notification) {
	s.mu.Lock()
	s.outgoing = append(s.outgoing, n)
	if len(s.outgoing) > g.backpressureLimit {
		drop := len(s.outgoing) / 2
		s.outgoing = append([]Notification(nil), s.outgoing[drop:]...)
		if time.Since(s.lastBackpressureLog) >= backpressureLogInterval {
			g.log.Warn("notify: session backpressure, dropping oldest half",
				"session_id", s.id, "dropped", drop)
			s.lastBackpressureLog = time.Now()
		}
	}
	full := len(s.outgoing) >= g.batchSize
	s.mu.Unlock()

	// Flush as soon as a full batch accumulates, rather than waiting for
	// the next tick: "by size or time, whichever first".
	if full {
		g.flushOne(s)
	}
}

func (g *Gateway) flushOne(s *session) {
	s.mu.Lock()
	if len(s.outgoing) == 0 {
		s.mu.Unlock()
		return
	}
	n := len(s.outgoing)
	if n > g.batchSize {
		n = g.batchSize
	}
	batch := s.outgoing[:n]
	s.outgoing = s.outgoing[n:]
	s.mu.Unlock()

	if g.flush != nil {
		g.flush(s.id, batch)
	}
}

// Start launches the batch-flush and heartbeat-reap loop.
func (g *Gateway) Start() {
	go g.loop()
}

// Close stops the loop and waits for it to exit.
func (g *Gateway) Close() {
	close(g.stopCh)
	<-g.doneCh
	g.ticker.Stop()
}

func (g *Gateway) loop() {
	defer close(g.doneCh)
	for {
		select {
		case <-g.stopCh:
			return
		case <-g.ticker.C:
			g.flushDue()
			g.reapStale()
		}
	}
}

// flushDue flushes every session whose queue has reached batchSize, or
// that has anything queued at all (since the ticker itself already fires
// every batchInterval, so any non-empty queue has waited at least one
// full interval since its last flush opportunity).
func (g *Gateway) flushDue() {
	g.mu.Lock()
	sessions := make([]*session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()

	for _, s := range sessions {
		g.flushOne(s)
	}
}

// reapStale drops any session whose heartbeat has been silent
// for longer than heartbeatTimeout.
func (g *Gateway) reapStale() {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, s := range g.sessions {
		s.mu.Lock()
		stale := now.Sub(s.lastHeartbeat) > g.heartbeatTimeout
		s.mu.Unlock()
		if stale {
			delete(g.sessions, id)
			g.log.Info("notify: reaped silent session", "session_id", id)
		}
	}
}
