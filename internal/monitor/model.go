package monitor

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/FlowerWrong/websock-server/internal/server"
)

// keyMap defines key bindings for the monitor screen
type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Help key.Binding
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Help, k.Quit},
	}
}

var defaultKeys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// Model is the monitor TUI: a live table of sessions fed by the /stats
// stream.
type Model struct {
	url  string
	conn *websocket.Conn

	snapshot  *server.Snapshot
	connected bool
	err       error

	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width  int
	height int
}

// New creates a monitor model for the given ws:// stats URL.
func New(url string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	columns := []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Remote", Width: 21},
		{Title: "Path", Width: 10},
		{Title: "State", Width: 16},
		{Title: "Up (s)", Width: 7},
		{Title: "Msgs In", Width: 8},
		{Title: "Msgs Out", Width: 9},
		{Title: "Bytes In", Width: 10},
		{Title: "Bytes Out", Width: 10},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Bold(true).
		Foreground(TextColor).
		BorderForeground(PrimaryColor).
		BorderBottom(true)
	styles.Selected = styles.Selected.
		Foreground(TextColor).
		Background(PrimaryColor)
	tbl.SetStyles(styles)

	return Model{
		url:     url,
		table:   tbl,
		spinner: sp,
		help:    help.New(),
		keys:    defaultKeys,
	}
}

// Init starts the spinner and dials the stats endpoint.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, connect(m.url))
}

// Update handles UI events and stream messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.conn != nil {
				_ = m.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = m.conn.Close()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if msg.Height > 10 {
			m.table.SetHeight(msg.Height - 8)
		}
		return m, nil

	case connectedMsg:
		m.conn = msg.conn
		m.connected = true
		m.err = nil
		return m, readSnapshot(m.conn)

	case snapshotMsg:
		m.snapshot = &msg.snapshot
		m.table.SetRows(snapshotRows(&msg.snapshot))
		return m, readSnapshot(m.conn)

	case streamErrMsg:
		m.err = msg.err
		m.connected = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the title bar, totals, session table, and help.
func (m Model) View() string {
	view := TitleStyle.Render("websock monitor — "+m.url) + "\n\n"

	switch {
	case m.err != nil:
		view += ErrorStyle.Render("✗ "+m.err.Error()) + "\n\n"
		view += HelpStyle.Render(m.help.View(m.keys))
		return view
	case !m.connected:
		view += ConnectingStyle.Render(m.spinner.View()+" connecting...") + "\n\n"
		view += HelpStyle.Render(m.help.View(m.keys))
		return view
	}

	if m.snapshot != nil {
		view += TotalsStyle.Render(fmt.Sprintf("%s %d   %s %d   %s %s",
			TotalsLabelStyle.Render("active:"), m.snapshot.Active,
			TotalsLabelStyle.Render("accepted:"), m.snapshot.Accepted,
			TotalsLabelStyle.Render("as of:"), m.snapshot.Timestamp.Format("15:04:05"),
		)) + "\n\n"
	}

	view += TableBorderStyle.Render(m.table.View()) + "\n"
	view += HelpStyle.Render(m.help.View(m.keys))
	return view
}

func snapshotRows(snap *server.Snapshot) []table.Row {
	rows := make([]table.Row, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		id := s.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, table.Row{
			id,
			s.RemoteAddr,
			s.Path,
			s.State,
			strconv.FormatInt(s.UptimeSeconds, 10),
			strconv.FormatInt(s.MessagesIn, 10),
			strconv.FormatInt(s.MessagesOut, 10),
			strconv.FormatInt(s.BytesIn, 10),
			strconv.FormatInt(s.BytesOut, 10),
		})
	}
	return rows
}

// Run starts the monitor TUI and blocks until quit.
func Run(url string) error {
	program := tea.NewProgram(New(url), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
