package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"whisperkey/audio"
	"whisperkey/hotkey"
	"whisperkey/log"
	"whisperkey/transcriber"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Capturer interface {
	Open(sampleRate int) (audio.Stream, error)
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, rec audio.Recording) (transcriber.Result, error)
}

type Inserter interface {
	Insert(ctx context.Context, text string) error
}

// Notifier shows short status messages to the user. It must not block for long.
type Notifier interface {
	Notify(title, message string)
}

// Trigger is a source of key edges, normally a hotkey.Hotkey.
type Trigger interface {
	Events() <-chan hotkey.Event
}

type Config struct {
	SampleRate     int
	MinDuration    time.Duration // shorter recordings are discarded
	Watchdog       time.Duration // longest allowed recording
	ProcessTimeout time.Duration // bound on transcription plus insertion
	NotifyTitle    string
}

func DefaultConfig() Config {
	return Config{
		SampleRate:     16000,
		MinDuration:    300 * time.Millisecond,
		Watchdog:       2 * time.Minute,
		ProcessTimeout: 2 * time.Minute,
		NotifyTitle:    "Whisper",
	}
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithObserver registers fn for every transition. Observers run outside the
// controller lock, one at a time, in transition order.
func WithObserver(fn func(Transition)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// WithRecordingHook runs fn with each recording before it is transcribed.
func WithRecordingHook(fn func(sessionID string, rec audio.Recording)) Option {
	return func(c *Controller) { c.onRecording = fn }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

type activeSession struct {
	id       string
	started  time.Time
	stream   audio.Stream
	watchdog *time.Timer
}

type queued struct {
	tr     Transition
	notice string
}

// Controller runs the hold-to-record lifecycle: key down starts capture, key
// up transcribes and inserts, and every failure ends back in Idle.
type Controller struct {
	cfg         Config
	capture     Capturer
	tr          Transcriber
	ins         Inserter
	notifier    Notifier
	now         func() time.Time
	observers   []func(Transition)
	onRecording func(string, audio.Recording)
	tracer      trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	held    bool
	active  *activeSession
	lastID  string
	lastErr error
	closed  bool
	queue   []queued

	emitMu sync.Mutex
}

func New(cfg Config, capture Capturer, tr Transcriber, ins Inserter, n Notifier, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.NotifyTitle == "" {
		cfg.NotifyTitle = def.NotifyTitle
	}
	c := &Controller{
		cfg:      cfg,
		capture:  capture,
		tr:       tr,
		ins:      ins,
		notifier: n,
		now:      time.Now,
		tracer:   otel.Tracer("whisperkey/session"),
	}
	for _, o := range opts {
		o(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, SessionID: c.lastID, LastError: c.lastErr}
}

// Run feeds trigger events into the controller until ctx is done, then stops it.
func (c *Controller) Run(ctx context.Context, trig Trigger) error {
	defer c.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-trig.Events():
			switch ev {
			case hotkey.Down:
				c.KeyDown()
			case hotkey.Up:
				c.KeyUp()
			}
		}
	}
}

func (c *Controller) KeyDown() {
	defer c.drain()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held {
		log.Debugf("key-down ignored: key already held")
		return
	}
	c.held = true
	if c.closed {
		return
	}
	if c.state != Idle {
		log.Debugf("key-down ignored while %s", c.state)
		return
	}

	id := uuid.NewString()
	now := c.now()
	c.lastID = id
	stream, err := c.capture.Open(c.cfg.SampleRate)
	if err != nil {
		c.failLocked(Transition{SessionID: id, Started: now}, &CaptureError{Err: err})
		return
	}

	s := &activeSession{id: id, started: now, stream: stream}
	if c.cfg.Watchdog > 0 {
		s.watchdog = time.AfterFunc(c.cfg.Watchdog, func() { c.expire(s) })
	}
	c.active = s
	c.transitionLocked(Transition{SessionID: id, To: Recording, Started: now},
		"Recording... (release key to process)")
}

func (c *Controller) KeyUp() {
	defer c.drain()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.held = false
	s := c.active
	if c.state != Recording || s == nil {
		return
	}
	if s.watchdog != nil {
		s.watchdog.Stop()
	}

	rec, err := s.stream.Close()
	elapsed := c.now().Sub(s.started)
	base := Transition{SessionID: s.id, Started: s.started, Audio: rec.Duration()}
	switch {
	case err != nil:
		c.active = nil
		c.failLocked(base, &CaptureError{Err: err})
		return
	case elapsed < c.cfg.MinDuration:
		c.active = nil
		log.Infof("recording too short (%s < %s), discarded", elapsed.Round(time.Millisecond), c.cfg.MinDuration)
		base.To, base.Outcome = Idle, OutcomeTooShort
		c.transitionLocked(base, "")
		return
	case rec.Frames() == 0:
		c.active = nil
		c.failLocked(base, &CaptureError{Err: ErrNoAudio})
		return
	}

	if st := rec.Stats(); st.Mean < audio.SilenceThreshold {
		log.Warnf("recording is mostly silence (mean %.5f, max %.5f); check the microphone", st.Mean, st.Max)
	}
	base.To = Processing
	c.transitionLocked(base, "Processing audio...")
	c.wg.Add(1)
	go c.process(s, rec)
}

// Stop discards a recording in progress, cancels processing and waits for
// the worker to finish. The controller ignores input afterwards.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.closed = true
	if s := c.active; c.state == Recording && s != nil {
		if s.watchdog != nil {
			s.watchdog.Stop()
		}
		c.active = nil
		rec, _ := s.stream.Close()
		c.transitionLocked(Transition{
			SessionID: s.id, To: Idle, Outcome: OutcomeCancelled, Reason: ErrShutdown,
			Started: s.started, Audio: rec.Duration(),
		}, "")
	}
	c.mu.Unlock()
	c.cancel()
	c.drain()
	c.Wait()
}

// Wait blocks until no transcription is in flight and all transitions so
// far have been delivered to observers.
func (c *Controller) Wait() {
	c.wg.Wait()
	c.emitMu.Lock()
	c.emitMu.Unlock()
	c.drain()
}

func (c *Controller) expire(s *activeSession) {
	defer c.drain()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Recording || c.active != s {
		return
	}
	c.active = nil
	c.held = false
	rec, _ := s.stream.Close()
	log.Warnf("recording %s exceeded %s, discarding", s.id, c.cfg.Watchdog)
	c.failLocked(Transition{SessionID: s.id, Started: s.started, Audio: rec.Duration()},
		&CaptureError{Err: ErrRecordingTimeout})
}

func (c *Controller) process(s *activeSession, rec audio.Recording) {
	defer c.wg.Done()

	ctx := c.ctx
	if c.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ProcessTimeout)
		defer cancel()
	}
	ctx, span := c.tracer.Start(ctx, "session.process", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.Float64("audio.seconds", rec.Duration().Seconds()),
	))
	defer span.End()

	if c.onRecording != nil {
		c.onRecording(s.id, rec)
	}

	text, err := c.transcribe(ctx, s, rec)
	if err == nil {
		err = c.insert(ctx, text)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.finish(s, rec, text, err)
}

func (c *Controller) transcribe(ctx context.Context, s *activeSession, rec audio.Recording) (string, error) {
	ctx, span := c.tracer.Start(ctx, "session.transcribe", trace.WithAttributes(
		attribute.String("transcriber", c.tr.Name()),
	))
	defer span.End()

	res, err := await(ctx, func(ctx context.Context) (transcriber.Result, error) {
		return c.tr.Transcribe(ctx, rec)
	})
	if err != nil {
		err = deadline(ctx, err)
		span.SetStatus(codes.Error, err.Error())
		return "", &TranscriptionError{Err: err}
	}

	text := strings.TrimSpace(res.Text)
	m := log.Transcription{
		SessionID: s.id,
		Variant:   c.tr.Name(),
		AudioS:    rec.Duration().Seconds(),
		InferMs:   float64(res.Inference.Milliseconds()),
		Chars:     utf8.RuneCountInString(text),
		RateLimit: res.RateLimit,
	}
	if nm := res.Metrics; nm != nil {
		m.DNSMs = float64(nm.DNS.Microseconds()) / 1000
		m.TLSMs = float64(nm.TLS.Microseconds()) / 1000
		m.TTFBMs = float64(nm.TTFB.Microseconds()) / 1000
		m.Reused = nm.ConnReused
	}
	log.TranscriptionMetrics(m)

	if text == "" {
		return "", &TranscriptionError{Err: ErrEmptyTranscript}
	}
	return text, nil
}

func (c *Controller) insert(ctx context.Context, text string) error {
	ctx, span := c.tracer.Start(ctx, "session.insert")
	defer span.End()

	_, err := await(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.ins.Insert(ctx, text)
	})
	if err != nil {
		err = deadline(ctx, err)
		span.SetStatus(codes.Error, err.Error())
		return &InsertionError{Err: err}
	}
	return nil
}

func (c *Controller) finish(s *activeSession, rec audio.Recording, text string, err error) {
	defer c.drain()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Processing || c.active != s {
		return
	}
	c.active = nil
	base := Transition{SessionID: s.id, Started: s.started, Audio: rec.Duration()}
	switch {
	case err != nil && c.closed:
		base.To, base.Outcome, base.Reason = Idle, OutcomeCancelled, ErrShutdown
		c.transitionLocked(base, "")
	case err != nil:
		c.failLocked(base, err)
	default:
		base.To, base.Outcome, base.Text = Idle, OutcomeInserted, text
		c.transitionLocked(base, insertedNotice(text))
	}
}

// failLocked reports err and passes through Failed back to Idle.
func (c *Controller) failLocked(base Transition, err error) {
	base.Reason = err
	base.To = Failed
	c.transitionLocked(base, failureNotice(err))
	base.To, base.Outcome = Idle, OutcomeFailed
	c.transitionLocked(base, "")
}

func (c *Controller) transitionLocked(t Transition, notice string) {
	t.From = c.state
	t.At = c.now()
	c.state = t.To
	if t.To == Failed {
		c.lastErr = t.Reason
		log.Errorf("session %s failed: %v", t.SessionID, t.Reason)
	}
	log.State(t.SessionID, t.From.String(), t.To.String(), t.Reason)
	c.queue = append(c.queue, queued{tr: t, notice: notice})
}

// drain delivers queued transitions. Only one goroutine drains at a time; a
// caller that finds another drainer active leaves its items to that one.
func (c *Controller) drain() {
	for {
		if !c.emitMu.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			q := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()

			for _, fn := range c.observers {
				fn(q.tr)
			}
			if q.notice != "" && c.notifier != nil {
				c.notifier.Notify(c.cfg.NotifyTitle, q.notice)
			}
		}
		c.emitMu.Unlock()

		c.mu.Lock()
		empty := len(c.queue) == 0
		c.mu.Unlock()
		if empty {
			return
		}
	}
}

// await runs fn but stops waiting when ctx ends; a late result is dropped.
func await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func deadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrProcessTimeout
	}
	return err
}

func insertedNotice(text string) string {
	const max = 50
	if utf8.RuneCountInString(text) <= max {
		return "Inserted: " + text
	}
	return "Inserted: " + string([]rune(text)[:max]) + "..."
}

func failureNotice(err error) string {
	var ce *CaptureError
	var te *TranscriptionError
	var ie *InsertionError
	switch {
	case errors.Is(err, ErrEmptyTranscript):
		return "No speech detected. Try speaking louder or check mic."
	case errors.Is(err, ErrRecordingTimeout):
		return "Recording stopped: key held too long."
	case errors.Is(err, ErrProcessTimeout):
		return "Transcription timed out."
	case errors.As(err, &ce):
		return fmt.Sprintf("Microphone error: %v", ce.Err)
	case errors.As(err, &te):
		return fmt.Sprintf("Transcription failed: %v", te.Err)
	case errors.As(err, &ie):
		return fmt.Sprintf("Could not insert text: %v", ie.Err)
	}
	return fmt.Sprintf("Error: %v", err)
}
