package session

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"whisperkey/audio"
	"whisperkey/hotkey"
	"whisperkey/insert"
	"whisperkey/transcriber"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1700000000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeInserter struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeInserter) Insert(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeInserter) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(_, message string) {
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.mu.Unlock()
}

func (f *fakeNotifier) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type recorder struct {
	mu  sync.Mutex
	all []Transition
	ch  chan Transition
}

func newRecorder() *recorder { return &recorder{ch: make(chan Transition, 256)} }

func (r *recorder) observe(t Transition) {
	r.mu.Lock()
	r.all = append(r.all, t)
	r.mu.Unlock()
	select {
	case r.ch <- t:
	default:
	}
}

func (r *recorder) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.all...)
}

// waitIdle blocks until a transition back to Idle arrives.
func (r *recorder) waitIdle(t *testing.T) Transition {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case tr := <-r.ch:
			if tr.To == Idle {
				return tr
			}
		case <-timeout:
			t.Fatal("timed out waiting for Idle")
		}
	}
}

func tone(seconds float64) audio.Recording {
	const rate = 16000
	n := int(seconds * rate)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(0.3 * 32767 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	return audio.Recording{Samples: samples, SampleRate: rate, Channels: 1}
}

type harness struct {
	ctl      *Controller
	clock    *fakeClock
	actx     *audio.FakeContext
	tr       *transcriber.FakeTranscriber
	ins      *fakeInserter
	notifier *fakeNotifier
	rec      *recorder
}

func newHarness(t *testing.T, cfg Config, tr *transcriber.FakeTranscriber) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		actx:     audio.NewFakeContextFrom(tone(2), false),
		tr:       tr,
		ins:      &fakeInserter{},
		notifier: &fakeNotifier{},
		rec:      newRecorder(),
	}
	capture := &audio.Capturer{Context: h.actx}
	h.ctl = New(cfg, capture, tr, h.ins, h.notifier,
		WithClock(h.clock.Now), WithObserver(h.rec.observe))
	t.Cleanup(h.ctl.Stop)
	return h
}

func (h *harness) press(d time.Duration) {
	h.ctl.KeyDown()
	h.clock.Advance(d)
	h.ctl.KeyUp()
}

func states(ts []Transition) string {
	var parts []string
	for i, t := range ts {
		if i == 0 {
			parts = append(parts, t.From.String())
		}
		parts = append(parts, t.To.String())
	}
	return strings.Join(parts, ">")
}

func TestShortPressSkipsTranscription(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("hello", nil))

	h.press(100 * time.Millisecond)
	h.ctl.Wait()

	if got := h.ctl.State(); got != Idle {
		t.Fatalf("state = %s, want idle", got)
	}
	if n := len(h.tr.Calls()); n != 0 {
		t.Errorf("transcriber called %d times, want 0", n)
	}
	if n := len(h.ins.Texts()); n != 0 {
		t.Errorf("inserter called %d times, want 0", n)
	}
	ts := h.rec.Transitions()
	if got := states(ts); got != "idle>recording>idle" {
		t.Fatalf("transitions = %s", got)
	}
	if ts[1].Outcome != OutcomeTooShort {
		t.Errorf("outcome = %q, want %q", ts[1].Outcome, OutcomeTooShort)
	}
	if caps := h.actx.Captures(); len(caps) != 1 || !caps[0].Closed() {
		t.Errorf("capture not closed after short press")
	}
}

func TestPressInsertsTranscript(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("hello world", nil))

	h.press(2 * time.Second)
	end := h.rec.waitIdle(t)
	h.ctl.Wait()

	texts := h.ins.Texts()
	if len(texts) != 1 || texts[0] != "hello world" {
		t.Fatalf("inserted %q, want exactly [\"hello world\"]", texts)
	}
	if end.Outcome != OutcomeInserted || end.Text != "hello world" {
		t.Errorf("final transition = %+v", end)
	}
	if got := states(h.rec.Transitions()); got != "idle>recording>processing>idle" {
		t.Errorf("transitions = %s", got)
	}
	calls := h.tr.Calls()
	if len(calls) != 1 || calls[0].Frames() == 0 {
		t.Fatalf("transcriber calls = %d", len(calls))
	}

	msgs := h.notifier.Messages()
	want := []string{"Recording... (release key to process)", "Processing audio...", "Inserted: hello world"}
	if len(msgs) != len(want) {
		t.Fatalf("notifications = %q, want %q", msgs, want)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("notification %d = %q, want %q", i, msgs[i], want[i])
		}
	}
}

func TestTranscriptionErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("", errors.New("model exploded")))

	h.press(2 * time.Second)
	end := h.rec.waitIdle(t)
	h.ctl.Wait()

	if n := len(h.ins.Texts()); n != 0 {
		t.Fatalf("inserter called %d times, want 0", n)
	}
	if got := states(h.rec.Transitions()); got != "idle>recording>processing>failed>idle" {
		t.Fatalf("transitions = %s", got)
	}
	var te *TranscriptionError
	if !errors.As(end.Reason, &te) {
		t.Fatalf("reason = %v, want TranscriptionError", end.Reason)
	}
	if end.Outcome != OutcomeFailed {
		t.Errorf("outcome = %q", end.Outcome)
	}
	st := h.ctl.Status()
	if st.State != Idle || Stage(st.LastError) != "transcription" {
		t.Errorf("status = %+v", st)
	}
	msgs := h.notifier.Messages()
	if last := msgs[len(msgs)-1]; !strings.HasPrefix(last, "Transcription failed:") {
		t.Errorf("last notification = %q", last)
	}
}

func TestEmptyTranscriptIsFailure(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("  \n", nil))

	h.press(time.Second)
	end := h.rec.waitIdle(t)
	h.ctl.Wait()

	if !errors.Is(end.Reason, ErrEmptyTranscript) {
		t.Fatalf("reason = %v, want ErrEmptyTranscript", end.Reason)
	}
	if n := len(h.ins.Texts()); n != 0 {
		t.Errorf("inserter called %d times", n)
	}
	msgs := h.notifier.Messages()
	if last := msgs[len(msgs)-1]; last != "No speech detected. Try speaking louder or check mic." {
		t.Errorf("last notification = %q", last)
	}
}

func TestInsertionErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("hi", nil))
	h.ins.err = errors.New("no display")

	h.press(time.Second)
	end := h.rec.waitIdle(t)
	h.ctl.Wait()

	var ie *InsertionError
	if !errors.As(end.Reason, &ie) {
		t.Fatalf("reason = %v, want InsertionError", end.Reason)
	}
	if h.ctl.State() != Idle {
		t.Errorf("state = %s", h.ctl.State())
	}
}

func TestRepeatedKeyDownOpensCaptureOnce(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("hello", nil))

	h.ctl.KeyDown()
	h.ctl.KeyDown()
	if n := len(h.actx.Captures()); n != 1 {
		t.Fatalf("captures = %d, want 1", n)
	}
	if h.ctl.State() != Recording {
		t.Fatalf("state = %s, want recording", h.ctl.State())
	}
	h.clock.Advance(time.Second)
	h.ctl.KeyUp()
	h.rec.waitIdle(t)
	h.ctl.Wait()

	if n := len(h.tr.Calls()); n != 1 {
		t.Errorf("transcriber calls = %d, want 1", n)
	}
}

func TestKeyDownIgnoredWhileProcessing(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("slow", nil).WithDelay(200*time.Millisecond))

	h.press(time.Second)
	if h.ctl.State() != Processing {
		t.Fatalf("state = %s, want processing", h.ctl.State())
	}
	h.ctl.KeyDown()
	h.ctl.KeyUp()
	if n := len(h.actx.Captures()); n != 1 {
		t.Fatalf("captures = %d, want 1", n)
	}
	h.rec.waitIdle(t)
	h.ctl.Wait()

	// the key was released, so a new press starts a new session
	h.ctl.KeyDown()
	if h.ctl.State() != Recording {
		t.Fatalf("state = %s, want recording", h.ctl.State())
	}
}

func TestCaptureFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("x", nil))
	h.actx.FailStart(errors.New("device busy"))

	h.ctl.KeyDown()
	h.ctl.Wait()
	if h.ctl.State() != Idle {
		t.Fatalf("state = %s", h.ctl.State())
	}
	ts := h.rec.Transitions()
	if got := states(ts); got != "idle>failed>idle" {
		t.Fatalf("transitions = %s", got)
	}
	var ce *CaptureError
	if !errors.As(ts[0].Reason, &ce) {
		t.Errorf("reason = %v, want CaptureError", ts[0].Reason)
	}
	msgs := h.notifier.Messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "Microphone error:") {
		t.Errorf("notifications = %q", msgs)
	}

	// release is harmless; the next press retries
	h.ctl.KeyUp()
	h.actx.FailStart(nil)
	h.ctl.KeyDown()
	if h.ctl.State() != Recording {
		t.Errorf("state after retry = %s", h.ctl.State())
	}
}

func TestWatchdogDiscardsLongRecording(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watchdog = 30 * time.Millisecond
	h := newHarness(t, cfg, transcriber.NewFake("never", nil))

	h.ctl.KeyDown()
	end := h.rec.waitIdle(t)
	if !errors.Is(end.Reason, ErrRecordingTimeout) {
		t.Fatalf("reason = %v, want ErrRecordingTimeout", end.Reason)
	}
	if !h.actx.Captures()[0].Closed() {
		t.Error("capture left open after watchdog")
	}

	h.clock.Advance(time.Minute)
	h.ctl.KeyUp()
	h.ctl.Wait()
	if n := len(h.tr.Calls()); n != 0 {
		t.Errorf("transcriber called %d times after watchdog", n)
	}
	if h.ctl.State() != Idle {
		t.Errorf("state = %s", h.ctl.State())
	}
}

type blockingTranscriber struct{ release chan struct{} }

func (b *blockingTranscriber) Name() string { return "blocking" }

func (b *blockingTranscriber) Transcribe(context.Context, audio.Recording) (transcriber.Result, error) {
	<-b.release
	return transcriber.Result{Text: "late"}, nil
}

func TestProcessTimeoutAbandonsStuckTranscriber(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProcessTimeout = 50 * time.Millisecond
	bt := &blockingTranscriber{release: make(chan struct{})}
	defer close(bt.release)

	clock := newFakeClock()
	ins := &fakeInserter{}
	rec := newRecorder()
	ctl := New(cfg, &audio.Capturer{Context: audio.NewFakeContextFrom(tone(1), false)}, bt, ins, nil,
		WithClock(clock.Now), WithObserver(rec.observe))
	defer ctl.Stop()

	ctl.KeyDown()
	clock.Advance(time.Second)
	ctl.KeyUp()
	end := rec.waitIdle(t)

	if !errors.Is(end.Reason, ErrProcessTimeout) {
		t.Fatalf("reason = %v, want ErrProcessTimeout", end.Reason)
	}
	if n := len(ins.Texts()); n != 0 {
		t.Errorf("inserter called %d times", n)
	}
}

func TestLateTranscriptAfterTimeoutIsDropped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProcessTimeout = 50 * time.Millisecond
	bt := &blockingTranscriber{release: make(chan struct{})}

	clock := newFakeClock()
	ins := &fakeInserter{}
	rec := newRecorder()
	ctl := New(cfg, &audio.Capturer{Context: audio.NewFakeContextFrom(tone(1), false)}, bt, ins, nil,
		WithClock(clock.Now), WithObserver(rec.observe))
	defer ctl.Stop()

	ctl.KeyDown()
	clock.Advance(time.Second)
	ctl.KeyUp()
	rec.waitIdle(t)

	close(bt.release)
	ctl.Wait()
	time.Sleep(50 * time.Millisecond)
	if n := len(ins.Texts()); n != 0 {
		t.Errorf("late transcript inserted %d times", n)
	}
	if got := rec.Transitions()[len(rec.Transitions())-1].To; got != Idle {
		t.Errorf("final state = %s, want idle", got)
	}
}

// slowCopyBackend stalls Copy past the processing deadline.
type slowCopyBackend struct {
	*insert.FakeBackend
	delay time.Duration
}

func (b slowCopyBackend) Copy(text string) error {
	time.Sleep(b.delay)
	return b.FakeBackend.Copy(text)
}

func TestSlowInsertionTimesOutWithoutPasting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProcessTimeout = 50 * time.Millisecond
	b := insert.NewFakeBackend("")
	ins, err := insert.New(insert.MethodClipboard, slowCopyBackend{FakeBackend: b, delay: 150 * time.Millisecond}, insert.WithSettle(0))
	if err != nil {
		t.Fatal(err)
	}

	clock := newFakeClock()
	rec := newRecorder()
	ctl := New(cfg, &audio.Capturer{Context: audio.NewFakeContextFrom(tone(1), false)}, transcriber.NewFake("too slow", nil), ins, nil,
		WithClock(clock.Now), WithObserver(rec.observe))
	defer ctl.Stop()

	ctl.KeyDown()
	clock.Advance(time.Second)
	ctl.KeyUp()
	end := rec.waitIdle(t)

	var ie *InsertionError
	if !errors.As(end.Reason, &ie) || !errors.Is(end.Reason, ErrProcessTimeout) {
		t.Fatalf("reason = %v, want an insertion timeout", end.Reason)
	}
	time.Sleep(250 * time.Millisecond)
	if slices.Contains(b.Calls(), "paste") {
		t.Errorf("pasted after the session timed out: %v", b.Calls())
	}
}

func TestRunFollowsTriggerEvents(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("from hotkey", nil))
	hk := hotkey.NewFake()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctl.Run(ctx, hk) }()

	hk.SimKeydown()
	for h.ctl.State() != Recording {
		time.Sleep(time.Millisecond)
	}
	h.clock.Advance(time.Second)
	hk.SimKeyup()
	h.rec.waitIdle(t)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if texts := h.ins.Texts(); len(texts) != 1 || texts[0] != "from hotkey" {
		t.Errorf("inserted %q", texts)
	}
}

func TestStopCancelsRecording(t *testing.T) {
	h := newHarness(t, DefaultConfig(), transcriber.NewFake("x", nil))

	h.ctl.KeyDown()
	h.ctl.Stop()

	end := h.rec.waitIdle(t)
	if end.Outcome != OutcomeCancelled {
		t.Errorf("outcome = %q, want cancelled", end.Outcome)
	}
	h.ctl.KeyUp()
	h.ctl.KeyDown()
	if h.ctl.State() != Idle {
		t.Errorf("stopped controller accepted a new recording")
	}
}

func TestInsertedNoticeTruncates(t *testing.T) {
	long := strings.Repeat("é", 60)
	got := insertedNotice(long)
	want := "Inserted: " + strings.Repeat("é", 50) + "..."
	if got != want {
		t.Errorf("insertedNotice = %q, want %q", got, want)
	}
	if got := insertedNotice("short"); got != "Inserted: short" {
		t.Errorf("insertedNotice(short) = %q", got)
	}
}

func TestRandomKeySequencesSettleIdle(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		h := newHarness(t, DefaultConfig(), transcriber.NewFake("ok", nil))
		for i := 0; i < 30; i++ {
			if rng.Intn(2) == 0 {
				h.ctl.KeyDown()
			} else {
				h.ctl.KeyUp()
			}
			h.clock.Advance(time.Duration(rng.Intn(600)) * time.Millisecond)
		}
		h.ctl.KeyUp()
		h.ctl.Wait()

		if st := h.ctl.State(); st != Idle {
			t.Fatalf("round %d: state = %s, want idle", round, st)
		}
		var inserted int
		for _, tr := range h.rec.Transitions() {
			if tr.Outcome == OutcomeInserted {
				inserted++
			}
		}
		if n := len(h.ins.Texts()); n != inserted {
			t.Fatalf("round %d: %d inserts, %d inserted outcomes", round, n, inserted)
		}
	}
}
