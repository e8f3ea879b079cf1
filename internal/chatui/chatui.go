// Package chatui implements the interactive counseling chat terminal UI.
// The user plays the client; the counselor side runs through a session.
//
// The model follows the standard bubbletea shape: blocking session calls
// run inside commands and report back as messages, so Update and View
// never touch the session while a call is in flight.
package chatui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/policy"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

// clientPlaceholder is the input hint during normal dialogue.
const clientPlaceholder = "Say something as the client"

// chromeLines is the number of non-viewport lines in the layout: header,
// status, input, footer.
const chromeLines = 4

// Options configures the chat model.
type Options struct {
	// TrustEval enables periodic trust self-rating on the case's cadence.
	TrustEval bool

	// NoColor disables styled output.
	NoColor bool
}

// entryKind says who a transcript entry belongs to.
type entryKind int

const (
	entryCounselor entryKind = iota
	entryClient
	entryNote
)

// entry is one displayed transcript line. The display transcript is kept
// separately from session history, which windows itself for prompting.
type entry struct {
	kind entryKind
	text string
}

// Model is the bubbletea model for the chat session.
type Model struct {
	sess      *session.Session
	rec       casedata.Record
	interval  int
	trustEval bool

	transcript  []entry
	phase       policy.Phase
	trustScores []int
	turns       int
	busy        bool
	awaitTrust  bool
	err         error
	quitting    bool
	ready       bool
	width       int
	height      int

	input  textinput.Model
	view   viewport.Model
	spin   spinner.Model
	styles styles
}

// styles holds the lipgloss styles for the chat view.
type styles struct {
	header    lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	dim       lipgloss.Style
	counselor lipgloss.Style
	client    lipgloss.Style
	note      lipgloss.Style
	errText   lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{
			header:    plain,
			label:     plain,
			value:     plain,
			dim:       plain,
			counselor: plain,
			client:    plain,
			note:      plain,
			errText:   plain,
		}
	}
	return styles{
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("51")).Bold(true),
		label:     lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		value:     lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true),
		dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		counselor: lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true),
		client:    lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
		note:      lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		errText:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

// Message types carrying session call results back onto the update loop.
type startedMsg struct{ err error }

type replyMsg struct {
	reply string
	err   error
}

// New builds the chat model over an unstarted session for the given case.
func New(sess *session.Session, rec casedata.Record, opts Options) Model {
	input := textinput.New()
	input.Placeholder = clientPlaceholder
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if !opts.NoColor {
		sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	}

	return Model{
		sess:      sess,
		rec:       rec,
		interval:  policy.TrustEvalInterval(rec.String("resistance_level")),
		trustEval: opts.TrustEval,
		phase:     sess.Phase(),
		busy:      true,
		input:     input,
		view:      viewport.New(0, 0),
		spin:      sp,
		styles:    newStyles(opts.NoColor),
	}
}

// Init starts the session and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textinput.Blink, m.startCmd())
}

// startCmd runs session start (intake, greeting, planning) off the update
// loop.
func (m Model) startCmd() tea.Cmd {
	sess := m.sess
	intake, reason := casedata.IntakeReason(m.rec)
	return func() tea.Msg {
		return startedMsg{err: sess.Start(context.Background(), intake, reason, "")}
	}
}

// stepCmd runs one counselor turn off the update loop.
func (m Model) stepCmd(clientMessage string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		reply, err := sess.Step(context.Background(), clientMessage)
		return replyMsg{reply: reply, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.view.Width = msg.Width
		m.view.Height = msg.Height - chromeLines
		if m.view.Height < 1 {
			m.view.Height = 1
		}
		m.input.Width = msg.Width - 4
		m.ready = true
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}

	case startedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.transcript = append(m.transcript, entry{kind: entryNote, text: "session failed to start: " + msg.err.Error()})
			m.refreshViewport()
			return m, nil
		}
		m.phase = m.sess.Phase()
		m.transcript = append(m.transcript, entry{kind: entryCounselor, text: session.Greeting})
		m.refreshViewport()
		return m, nil

	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.transcript = append(m.transcript, entry{kind: entryNote, text: "counselor call failed: " + msg.err.Error()})
			m.refreshViewport()
			return m, nil
		}
		m.err = nil
		m.turns++
		m.phase = m.sess.Phase()
		m.transcript = append(m.transcript, entry{kind: entryCounselor, text: msg.reply})
		if m.trustEval && m.turns%m.interval == 0 {
			m.awaitTrust = true
			m.input.Placeholder = "Rate your trust from 1 to 5"
		}
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit consumes the input line: a trust rating when one is pending,
// otherwise a client message that triggers a counselor turn.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if m.awaitTrust {
		score, ok := policy.ParseTrustScore(text)
		if !ok {
			m.transcript = append(m.transcript, entry{kind: entryNote, text: "enter a whole number from 1 to 5"})
			m.input.Reset()
			m.refreshViewport()
			return m, nil
		}
		m.sess.RecordTrust(score)
		m.awaitTrust = false
		m.phase = m.sess.Phase()
		m.trustScores = append(m.trustScores, score)
		m.transcript = append(m.transcript, entry{
			kind: entryNote,
			text: fmt.Sprintf("trust %d recorded, phase %s", score, m.phase),
		})
		m.input.Reset()
		m.input.Placeholder = clientPlaceholder
		m.refreshViewport()
		return m, nil
	}

	m.transcript = append(m.transcript, entry{kind: entryClient, text: text})
	m.input.Reset()
	m.busy = true
	m.refreshViewport()
	return m, tea.Batch(m.stepCmd(text), m.spin.Tick)
}

// refreshViewport re-renders the transcript and pins the view to the
// newest entry.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.view.SetContent(m.renderTranscript())
	m.view.GotoBottom()
}

// renderTranscript renders the display transcript wrapped to the viewport
// width.
func (m *Model) renderTranscript() string {
	wrap := lipgloss.NewStyle().Width(m.view.Width)

	var b strings.Builder
	for _, e := range m.transcript {
		var line string
		switch e.kind {
		case entryCounselor:
			line = m.styles.counselor.Render("Counselor:") + " " + e.text
		case entryClient:
			line = m.styles.client.Render("You:") + " " + e.text
		case entryNote:
			line = m.styles.note.Render("* " + e.text)
		}
		b.WriteString(wrap.Render(line))
		b.WriteString("\n\n")
	}
	return b.String()
}

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}

	header := m.styles.header.Render(" counselsim chat ") + " " +
		m.styles.label.Render("case:") + " " + m.styles.value.Render(m.rec.ID()) + "  " +
		m.styles.label.Render("phase:") + " " + m.styles.value.Render(string(m.phase)) + "  " +
		m.styles.label.Render("trust:") + " " + m.styles.value.Render(m.trustLabel())

	var status string
	switch {
	case m.busy && m.turns == 0 && len(m.transcript) == 0:
		status = m.spin.View() + " planning the session..."
	case m.busy:
		status = m.spin.View() + " counselor is thinking..."
	case m.awaitTrust:
		status = m.styles.note.Render("how much do you trust the counselor right now? (1-5)")
	case m.err != nil:
		status = m.styles.errText.Render(m.err.Error())
	}

	footer := m.styles.dim.Render("[enter] send  [pgup/pgdn] scroll  [esc] quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, m.view.View(), status, m.input.View(), footer)
}

// trustLabel formats the latest trust score for the header.
func (m Model) trustLabel() string {
	if len(m.trustScores) == 0 {
		return "-"
	}
	return strconv.Itoa(m.trustScores[len(m.trustScores)-1])
}
