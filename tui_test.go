package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"whisperkey/session"
)

func TestWrapText(t *testing.T) {
	got := wrapText("the quick brown fox jumps", 10)
	want := []string{"the quick", "brown fox", "jumps"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}

	if got := wrapText("", 10); len(got) != 1 || got[0] != "" {
		t.Errorf("empty text: got %q", got)
	}
}

func TestPercentiles(t *testing.T) {
	var vals []float64
	for i := 100; i >= 1; i-- {
		vals = append(vals, float64(i))
	}
	p := percentiles(vals)
	if p[0] != 1 || p[4] != 100 {
		t.Errorf("min/max = %v/%v, want 1/100", p[0], p[4])
	}
	if p[1] != 50 {
		t.Errorf("p50 = %v, want 50", p[1])
	}
	if vals[0] != 100 {
		t.Error("percentiles reordered its input")
	}
	if p := percentiles(nil); p != [5]float64{} {
		t.Errorf("empty input: got %v", p)
	}
}

func TestTUITracksSessions(t *testing.T) {
	m := newTUIModel("ctrl+shift+space", "[groq]", "mic: default")
	t0 := time.Unix(1000, 0)
	step := func(tr session.Transition) {
		next, _ := m.Update(transitionMsg{T: tr})
		m = next.(tuiModel)
	}

	step(session.Transition{To: session.Recording, At: t0})
	if m.state != session.Recording {
		t.Fatalf("state = %v, want recording", m.state)
	}
	next, _ := m.Update(tickMsg(t0.Add(1500 * time.Millisecond)))
	m = next.(tuiModel)
	if !strings.Contains(m.View(), "REC 1.5s") {
		t.Errorf("view missing elapsed time:\n%s", m.View())
	}

	step(session.Transition{To: session.Processing, At: t0.Add(2 * time.Second)})
	step(session.Transition{To: session.Idle, Outcome: session.OutcomeInserted, Text: "hello world", At: t0.Add(2400 * time.Millisecond)})
	if m.count != 1 || m.lastText != "hello world" {
		t.Fatalf("count=%d text=%q", m.count, m.lastText)
	}
	if len(m.latencies) != 1 || m.latencies[0] != 400 {
		t.Errorf("latencies = %v, want [400]", m.latencies)
	}
	view := m.View()
	if !strings.Contains(view, "hello world") || !strings.Contains(view, "STANDBY") {
		t.Errorf("unexpected view:\n%s", view)
	}

	step(session.Transition{To: session.Recording, At: t0.Add(3 * time.Second)})
	step(session.Transition{To: session.Processing, At: t0.Add(4 * time.Second)})
	step(session.Transition{To: session.Failed, Reason: errors.New("boom"), At: t0.Add(4 * time.Second)})
	next, _ = m.Update(noticeMsg{Text: "Transcription failed: boom"})
	m = next.(tuiModel)
	step(session.Transition{To: session.Idle, Outcome: session.OutcomeFailed, At: t0.Add(4 * time.Second)})
	if m.count != 1 || len(m.latencies) != 1 {
		t.Errorf("failed session counted: count=%d latencies=%v", m.count, m.latencies)
	}
	if !strings.Contains(m.View(), "Transcription failed: boom") {
		t.Errorf("view missing failure notice:\n%s", m.View())
	}
}
