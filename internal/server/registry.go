package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FlowerWrong/websock-server/internal/session"
)

// sessionEntry tracks one live connection for the registry. Counters
// are atomics: the session goroutine updates them while stats streamers
// read snapshots concurrently.
type sessionEntry struct {
	id       uuid.UUID
	remote   string
	path     string
	sess     *session.Session
	openedAt time.Time

	messagesIn  atomic.Int64
	messagesOut atomic.Int64
	bytesIn     atomic.Int64
	bytesOut    atomic.Int64
}

func (e *sessionEntry) countIn(n int) {
	e.messagesIn.Add(1)
	e.bytesIn.Add(int64(n))
}

func (e *sessionEntry) countOut(n int) {
	e.messagesOut.Add(1)
	e.bytesOut.Add(int64(n))
}

// registry is the server's view of its live sessions, keyed by the
// uuid issued at accept time.
type registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
	accepted atomic.Int64
}

func newRegistry() *registry {
	return &registry{sessions: make(map[uuid.UUID]*sessionEntry)}
}

// add registers a freshly upgraded connection and issues its ID.
func (r *registry) add(sess *session.Session, path string) *sessionEntry {
	entry := &sessionEntry{
		id:       uuid.New(),
		remote:   sess.RemoteAddr(),
		path:     path,
		sess:     sess,
		openedAt: time.Now(),
	}
	r.mu.Lock()
	r.sessions[entry.id] = entry
	r.mu.Unlock()
	r.accepted.Add(1)
	return entry
}

func (r *registry) remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// active returns the number of live sessions.
func (r *registry) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// each calls fn for every live session. fn must not call back into the
// registry.
func (r *registry) each(fn func(*sessionEntry)) {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.Unlock()
	for _, e := range entries {
		fn(e)
	}
}

// snapshot captures the registry state for the stats stream.
func (r *registry) snapshot() Snapshot {
	snap := Snapshot{
		Timestamp: time.Now(),
		Accepted:  r.accepted.Load(),
	}
	r.each(func(e *sessionEntry) {
		snap.Sessions = append(snap.Sessions, SessionStats{
			ID:            e.id.String(),
			RemoteAddr:    e.remote,
			Path:          e.path,
			State:         e.sess.State().String(),
			UptimeSeconds: int64(time.Since(e.openedAt).Seconds()),
			MessagesIn:    e.messagesIn.Load(),
			MessagesOut:   e.messagesOut.Load(),
			BytesIn:       e.bytesIn.Load(),
			BytesOut:      e.bytesOut.Load(),
		})
	})
	snap.Active = len(snap.Sessions)
	return snap
}
