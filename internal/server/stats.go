package server

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/FlowerWrong/websock-server/internal/logging"
	"github.com/FlowerWrong/websock-server/internal/session"
)

// statsInterval is how often a /stats session receives a snapshot.
const statsInterval = time.Second

// SessionStats is one row of the stats stream, describing a live
// connection.
type SessionStats struct {
	ID            string `json:"id"`
	RemoteAddr    string `json:"remote_addr"`
	Path          string `json:"path"`
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	MessagesIn    int64  `json:"messages_in"`
	MessagesOut   int64  `json:"messages_out"`
	BytesIn       int64  `json:"bytes_in"`
	BytesOut      int64  `json:"bytes_out"`
}

// Snapshot is one stats payload: server totals plus a row per live
// session, including the stats session itself.
type Snapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Accepted  int64          `json:"accepted_total"`
	Active    int            `json:"active"`
	Sessions  []SessionStats `json:"sessions"`
}

// streamStats pushes a JSON snapshot to the session once per second
// until the session closes. The first snapshot goes out immediately so
// the monitor has data before the first tick.
func (s *Server) streamStats(sess *session.Session) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		if !s.sendSnapshot(sess) {
			return
		}
		select {
		case <-sess.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) sendSnapshot(sess *session.Session) bool {
	data, err := json.Marshal(s.registry.snapshot())
	if err != nil {
		logging.Error("Failed to marshal stats snapshot", zap.Error(err))
		return false
	}
	if err := sess.SendText(data); err != nil {
		// Session closed between the tick and the send.
		return false
	}
	return true
}
