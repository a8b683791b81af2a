package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"whisperkey/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type transitionMsg struct{ T session.Transition }
type noticeMsg struct{ Text string }
type tickMsg time.Time

type tuiModel struct {
	state      session.State
	recStart   time.Time
	procStart  time.Time
	now        time.Time
	width      int
	key        string
	modeLine   string // "[whisper-cpp base.en | clipboard]"
	deviceLine string
	notice     string
	lastText   string
	lastErr    error
	count      int
	latencies  []float64 // ms from key release to insertion
}

var (
	statusRec  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusProc = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	statusIdle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

func newTUIModel(key, modeLine, deviceLine string) tuiModel {
	return tuiModel{key: key, modeLine: modeLine, deviceLine: deviceLine}
}

func NewTUIProgram(key, modeLine, deviceLine string) *tea.Program {
	return tea.NewProgram(newTUIModel(key, modeLine, deviceLine), tea.WithAltScreen())
}

// tui forwards controller activity to a running program.
type tui struct {
	mu sync.Mutex
	p  *tea.Program
}

func (t *tui) set(p *tea.Program) {
	t.mu.Lock()
	t.p = p
	t.mu.Unlock()
}

func (t *tui) send(msg tea.Msg) {
	t.mu.Lock()
	p := t.p
	t.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (t *tui) Observe(tr session.Transition) { t.send(transitionMsg{T: tr}) }

func (t *tui) Notify(_, message string) { t.send(noticeMsg{Text: message}) }

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case noticeMsg:
		m.notice = msg.Text

	case transitionMsg:
		t := msg.T
		m.state = t.To
		switch t.To {
		case session.Recording:
			m.recStart = t.At
			m.lastErr = nil
		case session.Processing:
			m.procStart = t.At
		case session.Failed:
			m.lastErr = t.Reason
		case session.Idle:
			if t.Outcome == session.OutcomeInserted {
				m.count++
				m.lastText = t.Text
				if !m.procStart.IsZero() {
					m.latencies = append(m.latencies, float64(t.At.Sub(m.procStart).Milliseconds()))
				}
			}
			m.procStart = time.Time{}
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	var lines []string

	switch m.state {
	case session.Recording:
		elapsed := 0.0
		if m.now.After(m.recStart) {
			elapsed = m.now.Sub(m.recStart).Seconds()
		}
		lines = append(lines, statusRec.Render(fmt.Sprintf("● REC %.1fs", elapsed)))
	case session.Processing:
		lines = append(lines, statusProc.Render("◌ PROCESSING"))
	default:
		lines = append(lines, statusIdle.Render("○ STANDBY"))
	}

	if m.modeLine != "" {
		lines = append(lines, dimStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		lines = append(lines, dimStyle.Render(m.deviceLine))
	}

	if table := renderLatencyTable(m.latencies); table != "" {
		lines = append(lines, "")
		for _, line := range strings.Split(table, "\n") {
			lines = append(lines, dimStyle.Render(line))
		}
	}

	lines = append(lines, "")
	width := m.width - 2
	if width < 20 {
		width = 20
	}
	if m.lastText != "" {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.count)))
		for _, l := range wrapText(m.lastText, width) {
			lines = append(lines, textStyle.Render(l))
		}
	} else {
		lines = append(lines, dimStyle.Render("No transcriptions yet"))
	}
	if m.lastErr != nil {
		lines = append(lines, errStyle.Render(m.notice))
	} else if m.notice != "" {
		lines = append(lines, dimStyle.Render(m.notice))
	}

	lines = append(lines, "")
	lines = append(lines, boldStyle.Render(m.key)+helpStyle.Render(" hold to record, q to quit"))
	lines = append(lines, helpStyle.Render("whisperkey "+version))
	return strings.Join(lines, "\n") + "\n"
}

func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		var cur strings.Builder
		for _, word := range strings.Fields(para) {
			if cur.Len() > 0 && cur.Len()+1+len(word) > width {
				lines = append(lines, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(word)
		}
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// percentiles returns min, p50, p90, p95 and max of vals.
func percentiles(vals []float64) [5]float64 {
	var out [5]float64
	if len(vals) == 0 {
		return out
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	at := func(p float64) float64 {
		i := int(p * float64(len(s)-1))
		return s[i]
	}
	out[0], out[1], out[2], out[3], out[4] = s[0], at(0.5), at(0.9), at(0.95), s[len(s)-1]
	return out
}

func renderLatencyTable(latencies []float64) string {
	if len(latencies) == 0 {
		return ""
	}
	p := percentiles(latencies)
	return fmt.Sprintf(
		"        %5s %5s %5s %5s %5s\n"+
			"ms      %5.0f %5.0f %5.0f %5.0f %5.0f",
		"min", "p50", "p90", "p95", "max",
		p[0], p[1], p[2], p[3], p[4],
	)
}
