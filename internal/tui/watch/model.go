// Package watch is a terminal dashboard that follows a running notifyd over
// its HTTP API.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/notifyd/internal/api"
	"github.com/mattjoyce/notifyd/internal/events"
)

const (
	maxRows        = 200
	healthInterval = 5 * time.Second
)


// Activity is one row of the dashboard.
type Activity struct {
	At     time.Time
	Type   string
	Plugin string
	Kind   string
	Detail string
}

type (
	eventMsg      events.Event
	healthMsg     api.HealthzResponse
	errMsg        struct{ err error }
	streamEndMsg  struct{ err error }
	healthTickMsg struct{}
)

// Model is the Bubble Tea model for `notifyd watch`.
type Model struct {
	ctx    context.Context
	client *http.Client
	apiURL string
	apiKey string
	stream chan events.Event

	width  int
	height int

	health    api.HealthzResponse
	connected bool
	lastErr   error

	rows   []Activity
	counts map[string]int

	table table.Model
	pulse Pulse
	theme Theme
}

// New builds a dashboard for the API at apiURL. ctx bounds the event stream.
func New(ctx context.Context, apiURL, apiKey string) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Time", Width: 8},
			{Title: "Event", Width: 20},
			{Title: "Plugin", Width: 16},
			{Title: "Kind", Width: 22},
			{Title: "Detail", Width: 40},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		ctx:    ctx,
		client: &http.Client{},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		stream: make(chan events.Event, 100),
		counts: make(map[string]int),
		table:  t,
		theme:  NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.subscribe(),
		m.receiveNextEvent(),
		m.fetchHealth(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			m.rows = nil
			m.counts = make(map[string]int)
			m.table.SetRows(nil)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(max(m.width-6, 20))
		m.table.SetHeight(max(m.height-14, 5))

	case eventMsg:
		m.connected = true
		m = m.record(events.Event(msg))
		m.pulse.OnEvent(time.Now())
		return m, m.receiveNextEvent()

	case streamEndMsg:
		m.connected = false
		m.lastErr = msg.err
		return m, nil

	case healthMsg:
		m.health = api.HealthzResponse(msg)
		return m, tea.Tick(healthInterval, func(time.Time) tea.Msg { return healthTickMsg{} })

	case healthTickMsg:
		m.pulse.Decay(time.Now())
		return m, m.fetchHealth()

	case errMsg:
		m.lastErr = msg.err
		m.health.Status = "unreachable"
		return m, tea.Tick(healthInterval, func(time.Time) tea.Msg { return healthTickMsg{} })
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// record prepends the activity for ev and refreshes the table.
func (m Model) record(ev events.Event) Model {
	a := toActivity(ev)
	m.counts[a.Type]++
	m.rows = append([]Activity{a}, m.rows...)
	if len(m.rows) > maxRows {
		m.rows = m.rows[:maxRows]
	}

	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, table.Row{
			m.symbol(r.Type),
			r.At.Local().Format("15:04:05"),
			r.Type,
			r.Plugin,
			r.Kind,
			r.Detail,
		})
	}
	m.table.SetRows(rows)
	return m
}

func toActivity(ev events.Event) Activity {
	var data map[string]any
	_ = json.Unmarshal(ev.Data, &data)
	str := func(key string) string {
		v, _ := data[key].(string)
		return v
	}

	a := Activity{
		At:     ev.At,
		Type:   ev.Type,
		Plugin: str("plugin"),
		Kind:   str("kind"),
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	if a.Kind == "" {
		a.Kind = str("request_name")
	}

	switch {
	case str("error") != "":
		a.Detail = str("error")
	case str("summary") != "":
		a.Detail = str("summary")
	case str("message_id") != "":
		a.Detail = str("message_id")
	}
	if attempt, ok := data["attempt"].(float64); ok && attempt > 1 {
		a.Detail = fmt.Sprintf("attempt %d: %s", int(attempt), a.Detail)
	}
	return a
}

func (m Model) symbol(eventType string) string {
	switch eventType {
	case events.NotificationPosted:
		return m.theme.StatusQueued.Render("○")
	case events.DeliverySucceeded:
		return m.theme.StatusOK.Render("●")
	case events.DeliveryRetry:
		return m.theme.StatusWarn.Render("◑")
	case events.DeliveryDead, events.NotificationFailed:
		return m.theme.StatusFailed.Render("∅")
	default:
		return " "
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	activity := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Activity"),
			m.table.View(),
		),
	)

	footer := " [q] Quit • [c] Clear • [↑/↓] Scroll"
	if m.lastErr != nil {
		footer = m.theme.StatusFailed.Render(" "+m.lastErr.Error()) + "\n" + footer
	}

	return m.theme.Doc.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(),
			m.renderCounts(),
			activity,
			m.theme.Help.Render(footer),
		),
	)
}

func (m Model) renderHeader() string {
	status := m.theme.StatusWarn.Render("CONNECTING")
	switch {
	case m.health.Status == "ok" && m.connected:
		status = m.theme.StatusOK.Render("STREAMING")
	case m.health.Status == "ok":
		status = m.theme.StatusOK.Render("OK")
	case m.health.Status != "":
		status = m.theme.StatusFailed.Render(strings.ToUpper(m.health.Status))
	}

	uptime := time.Duration(m.health.UptimeSeconds) * time.Second
	items := []string{
		fmt.Sprintf("Status: %s %s", status, m.pulse.Render(m.theme)),
		fmt.Sprintf("Uptime: %s", uptime),
		fmt.Sprintf("Queue: %s", humanize.Comma(int64(m.health.QueueDepth))),
		fmt.Sprintf("Plugins: %d", m.health.PluginsLoaded),
	}

	cell := lipgloss.NewStyle().Width((m.width - 4) / len(items))
	cells := make([]string, 0, len(items))
	for _, it := range items {
		cells = append(cells, cell.Render(it))
	}
	return m.theme.Border.Width(m.width - 4).Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

func (m Model) renderCounts() string {
	return lipgloss.NewStyle().Padding(0, 1).Render(fmt.Sprintf(
		"posted %s  delivered %s  retried %s  dead %s  failed %s",
		humanize.Comma(int64(m.counts[events.NotificationPosted])),
		humanize.Comma(int64(m.counts[events.DeliverySucceeded])),
		humanize.Comma(int64(m.counts[events.DeliveryRetry])),
		humanize.Comma(int64(m.counts[events.DeliveryDead])),
		humanize.Comma(int64(m.counts[events.NotificationFailed])),
	))
}

func (m Model) subscribe() tea.Cmd {
	return func() tea.Msg {
		err := Subscribe(m.ctx, m.client, m.apiURL, m.apiKey, m.stream)
		if err == nil {
			err = fmt.Errorf("event stream closed")
		}
		return streamEndMsg{err: err}
	}
}

func (m Model) receiveNextEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.stream:
			return eventMsg(ev)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) fetchHealth() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiURL+"/healthz", nil)
		if err != nil {
			return errMsg{err}
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return errMsg{err}
		}
		defer resp.Body.Close()

		var h api.HealthzResponse
		if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
			return errMsg{fmt.Errorf("decode health: %w", err)}
		}
		return healthMsg(h)
	}
}

// Rows returns the recorded activity, newest first.
func (m Model) Rows() []Activity {
	return m.rows
}
