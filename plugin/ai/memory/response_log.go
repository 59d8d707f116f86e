// Package memory keeps a short-term, per-session log of assistant responses.
// Cached context payloads are augmented with recent entries of this log.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Response is one logged assistant response.
type Response struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ResponseLog manages in-memory session responses with a sliding window.
// Thread-safe for concurrent access.
type ResponseLog struct {
	mu       sync.RWMutex
	sessions map[string]*sessionData
	maxSize  int
	idleTTL  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type sessionData struct {
	responses  []Response
	lastAccess time.Time
}

// NewResponseLog creates a response log keeping maxSize responses per session
// (default 10). Sessions idle for longer than idleTTL (default 1 hour) are
// dropped by a background loop until Close is called.
func NewResponseLog(maxSize int, idleTTL time.Duration) *ResponseLog {
	if maxSize <= 0 {
		maxSize = 10
	}
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &ResponseLog{
		sessions: make(map[string]*sessionData),
		maxSize:  maxSize,
		idleTTL:  idleTTL,
		ctx:      ctx,
		cancel:   cancel,
	}
	l.wg.Add(1)
	go l.cleanupLoop()
	return l
}

// Close stops the cleanup goroutine.
func (l *ResponseLog) Close() {
	l.cancel()
	l.wg.Wait()
}

// Add appends a response to a session. Blank responses are ignored.
func (l *ResponseLog) Add(sessionID string, resp Response) {
	if strings.TrimSpace(resp.Content) == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	session, exists := l.sessions[sessionID]
	if !exists {
		session = &sessionData{responses: make([]Response, 0, l.maxSize)}
		l.sessions[sessionID] = session
	}
	if resp.Timestamp.IsZero() {
		resp.Timestamp = time.Now()
	}

	session.responses = append(session.responses, resp)
	session.lastAccess = time.Now()
	if len(session.responses) > l.maxSize {
		session.responses = session.responses[len(session.responses)-l.maxSize:]
	}
}

// Recent returns up to limit response contents of a session, newest first.
func (l *ResponseLog) Recent(sessionID string, limit int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	session, exists := l.sessions[sessionID]
	if !exists || len(session.responses) == 0 {
		return nil
	}
	session.lastAccess = time.Now()

	if limit <= 0 || limit > len(session.responses) {
		limit = len(session.responses)
	}
	out := make([]string, 0, limit)
	for i := len(session.responses) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, session.responses[i].Content)
	}
	return out
}

// ClearSession removes all responses of a session.
func (l *ResponseLog) ClearSession(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
}

// SessionCount returns the number of active sessions.
func (l *ResponseLog) SessionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions)
}

// evictIdle drops sessions not touched since the idle TTL.
func (l *ResponseLog) evictIdle(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for sessionID, session := range l.sessions {
		if now.Sub(session.lastAccess) > l.idleTTL {
			delete(l.sessions, sessionID)
			removed++
		}
	}
	return removed
}

func (l *ResponseLog) cleanupLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case now := <-ticker.C:
			l.evictIdle(now)
		}
	}
}
