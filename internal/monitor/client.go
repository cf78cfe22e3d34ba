package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/FlowerWrong/websock-server/internal/server"
)

// dialTimeout bounds the initial connection to the stats endpoint.
const dialTimeout = 5 * time.Second

// Messages delivered into the bubbletea update loop.
type (
	connectedMsg struct{ conn *websocket.Conn }
	snapshotMsg  struct{ snapshot server.Snapshot }
	streamErrMsg struct{ err error }
)

// connect dials the /stats endpoint as a tea.Cmd.
func connect(url string) tea.Cmd {
	return func() tea.Msg {
		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		conn, _, err := dialer.Dial(url, nil)
		if err != nil {
			return streamErrMsg{err: fmt.Errorf("dial %s: %w", url, err)}
		}
		return connectedMsg{conn: conn}
	}
}

// readSnapshot blocks on the next stats message. The server pushes one
// per second, so this doubles as the refresh tick.
func readSnapshot(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return streamErrMsg{err: fmt.Errorf("stats stream: %w", err)}
		}
		var snap server.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return streamErrMsg{err: fmt.Errorf("malformed snapshot: %w", err)}
		}
		return snapshotMsg{snapshot: snap}
	}
}
