package transcriber

import (
	"context"
	"fmt"
	"time"

	"whisperkey/audio"
	"whisperkey/log"
)

// Lazy loads a transcriber on a background goroutine so startup does not
// wait for the model. Transcribe blocks until the load finishes.
type Lazy struct {
	name  string
	ready chan struct{}
	t     Transcriber
	err   error
}

func NewLazy(name string, load func() (Transcriber, error)) *Lazy {
	l := &Lazy{name: name, ready: make(chan struct{})}
	go func() {
		defer close(l.ready)
		start := time.Now()
		t, err := load()
		if err != nil {
			l.err = fmt.Errorf("%w: %w", ErrModelLoad, err)
			log.Errorf("%s: %v", name, l.err)
			return
		}
		l.t = t
		log.Infof("%s: model loaded in %s", name, time.Since(start).Round(time.Millisecond))
	}()
	return l
}

func (l *Lazy) Name() string { return l.name }

// Ready is closed once loading has finished, successfully or not.
func (l *Lazy) Ready() <-chan struct{} { return l.ready }

// Wait blocks until the model is loaded and returns the load error, if any.
func (l *Lazy) Wait(ctx context.Context) error {
	select {
	case <-l.ready:
		return l.err
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s model: %w", l.name, ctx.Err())
	}
}

func (l *Lazy) Transcribe(ctx context.Context, rec audio.Recording) (Result, error) {
	if err := l.Wait(ctx); err != nil {
		return Result{}, err
	}
	return l.t.Transcribe(ctx, rec)
}

func (l *Lazy) Close() error {
	<-l.ready
	if l.t == nil {
		return nil
	}
	return l.t.Close()
}
