package sessionscmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/store"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

type browseView int

const (
	viewSessions browseView = iota
	viewTranscript
)

// transcriptChromeLines is the header and footer around the viewport.
const transcriptChromeLines = 2

var (
	browseTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	browseIDStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	browseDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	browseErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	browseUserStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	browseAgentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	browseSpinStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// sessionItem adapts a stored session summary to the bubbles list.
type sessionItem struct {
	session *agent.Session
}

func (i sessionItem) Title() string { return i.session.ID }

func (i sessionItem) Description() string {
	return fmt.Sprintf("%s · %s · %d events",
		i.session.AppName,
		i.session.CreatedAt.Local().Format("2006-01-02 15:04"),
		i.session.EventCount,
	)
}

func (i sessionItem) FilterValue() string { return i.session.ID + " " + i.session.AppName }

type transcriptLoadedMsg struct {
	session *agent.Session
	err     error
}

func loadTranscriptCmd(storer store.Driver, sessionID string) bubbletea.Cmd {
	return func() bubbletea.Msg {
		session, err := storer.GetSession(context.Background(), sessionID)
		return transcriptLoadedMsg{session: session, err: err}
	}
}

type browseModel struct {
	storer   store.Driver
	list     list.Model
	viewport viewport.Model
	spin     spinner.Model
	view     browseView
	current  *agent.Session
	loading  bool
	err      error
	width    int
	height   int
}

func runBrowseTUI(ctx context.Context, storer store.Driver, sessions []*agent.Session) error {
	items := make([]list.Item, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, sessionItem{session: session})
	}

	sessionList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	sessionList.Title = "reel sessions"
	sessionList.Styles.Title = browseTitleStyle

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = browseSpinStyle

	model := browseModel{
		storer:   storer,
		list:     sessionList,
		viewport: viewport.New(0, 0),
		spin:     spin,
	}

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

func (m browseModel) Init() bubbletea.Cmd {
	return nil
}

func (m browseModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-1)
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - transcriptChromeLines
		if m.current != nil {
			m.viewport.SetContent(renderTranscript(m.current, m.viewport.Width))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd bubbletea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case transcriptLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.current = msg.session
		m.viewport.SetContent(renderTranscript(msg.session, m.viewport.Width))
		m.viewport.GotoTop()
		m.view = viewTranscript
		return m, nil

	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActive(msg)
}

func (m browseModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	if m.view == viewTranscript {
		switch msg.String() {
		case "q", "ctrl+c":
			return m, bubbletea.Quit
		case "esc", "h":
			m.view = viewSessions
			return m, nil
		}
		return m.updateActive(msg)
	}

	// The session list handles its own quit, filter, and navigation keys.
	if msg.String() == "enter" && m.list.FilterState() != list.Filtering {
		return m.openSelected()
	}
	return m.updateActive(msg)
}

func (m browseModel) updateActive(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	var cmd bubbletea.Cmd
	if m.view == viewTranscript {
		m.viewport, cmd = m.viewport.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m browseModel) openSelected() (bubbletea.Model, bubbletea.Cmd) {
	if m.loading {
		return m, nil
	}

	item, ok := m.list.SelectedItem().(sessionItem)
	if !ok {
		return m, nil
	}

	m.loading = true
	m.err = nil
	return m, bubbletea.Batch(m.spin.Tick, loadTranscriptCmd(m.storer, item.session.ID))
}

func (m browseModel) View() string {
	if m.view == viewTranscript {
		return m.viewTranscript()
	}
	return m.viewSessions()
}

func (m browseModel) viewSessions() string {
	status := ""
	switch {
	case m.loading:
		status = m.spin.View() + " " + browseDimStyle.Render("loading transcript")
	case m.err != nil:
		status = browseErrStyle.Render("  " + m.err.Error())
	}
	return m.list.View() + "\n" + fitLine(status, m.width)
}

func (m browseModel) viewTranscript() string {
	header := fitLine(fmt.Sprintf("%s %s %s",
		browseTitleStyle.Render("reel sessions"),
		browseIDStyle.Render(m.current.ID),
		browseDimStyle.Render(fmt.Sprintf("%s · %d events", m.current.AppName, m.current.EventCount)),
	), m.width)

	footer := fitLine(browseDimStyle.Render(
		fmt.Sprintf("%3.0f%% · esc back · q quit", m.viewport.ScrollPercent()*100),
	), m.width)

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// renderTranscript lays out a session's turns for the viewport. Agent
// turns go through the markdown renderer; user turns print verbatim.
func renderTranscript(session *agent.Session, width int) string {
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	for _, event := range session.Events {
		b.WriteString(fmt.Sprintf("%s %s\n",
			roleHeading(event.Role),
			browseDimStyle.Render(event.Timestamp.Local().Format("15:04:05")),
		))

		text := event.Content.Text()
		if text == "" {
			b.WriteString(browseDimStyle.Render("(no text content)") + "\n\n")
			continue
		}

		if event.Role == agent.RoleAssistant {
			rendered, err := cliui.RenderMarkdownWidth(text, width-2)
			if err == nil {
				b.WriteString(strings.TrimRight(rendered, "\n") + "\n\n")
				continue
			}
		}
		b.WriteString(text + "\n\n")
	}
	return b.String()
}

func roleHeading(role string) string {
	if role == agent.RoleUser {
		return browseUserStyle.Render("you")
	}
	return browseAgentStyle.Render("agent")
}

// fitLine truncates a styled line to the window width.
func fitLine(line string, width int) string {
	if width <= 0 {
		return line
	}
	return ansi.Truncate(line, width, "…")
}
