// Package insert places transcribed text at the cursor of the focused window.
package insert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"whisperkey/log"
)

const (
	MethodClipboard   = "clipboard"
	MethodMiddleClick = "middle-click"
	MethodBoth        = "both"
	MethodType        = "type"
)

var Methods = []string{MethodClipboard, MethodMiddleClick, MethodBoth, MethodType}

// Backend is the clipboard and synthetic input of the desktop.
// clipboard.System is the real one.
type Backend interface {
	Read() (string, error)
	Copy(text string) error
	CopyPrimary(text string) error
	Paste() error
	MiddleClick() error
	Type(text string) error
}

type Option func(*Inserter)

// WithSettle sets the pause between writing a selection and pasting it.
func WithSettle(d time.Duration) Option {
	return func(i *Inserter) { i.settle = d }
}

// WithRestore puts the previous clipboard back after d. Zero keeps the
// transcript on the clipboard.
func WithRestore(d time.Duration) Option {
	return func(i *Inserter) { i.restore = d }
}

type Inserter struct {
	method  string
	b       Backend
	settle  time.Duration
	restore time.Duration
}

func New(method string, b Backend, opts ...Option) (*Inserter, error) {
	switch method {
	case MethodClipboard, MethodMiddleClick, MethodBoth, MethodType:
	default:
		return nil, fmt.Errorf("unknown paste method %q (want one of %s)", method, strings.Join(Methods, ", "))
	}
	i := &Inserter{method: method, b: b, settle: 100 * time.Millisecond}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

func (i *Inserter) Method() string { return i.method }

// Insert never sends synthetic input once ctx is done, so an abandoned
// insertion cannot paste into whatever window has focus later.
func (i *Inserter) Insert(ctx context.Context, text string) error {
	switch i.method {
	case MethodType:
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := i.b.Type(text); err != nil {
			return fmt.Errorf("type text: %w", err)
		}
		return nil
	case MethodMiddleClick:
		return i.middleClick(ctx, text)
	case MethodBoth:
		if err := i.middleClick(ctx, text); err != nil {
			return err
		}
	}
	return i.clipboard(ctx, text)
}

func (i *Inserter) middleClick(ctx context.Context, text string) error {
	if err := i.b.CopyPrimary(text); err != nil {
		return fmt.Errorf("copy to primary selection: %w", err)
	}
	if err := sleep(ctx, i.settle); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.b.MiddleClick(); err != nil {
		return fmt.Errorf("middle click: %w", err)
	}
	return nil
}

func (i *Inserter) clipboard(ctx context.Context, text string) error {
	var prev string
	var readErr error
	if i.restore > 0 {
		prev, readErr = i.b.Read()
		if readErr != nil {
			log.Debugf("clipboard read failed, not restoring: %v", readErr)
		}
	}
	if err := i.b.Copy(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	if err := sleep(ctx, i.settle); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.b.Paste(); err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	if i.restore > 0 && readErr == nil {
		go func() {
			time.Sleep(i.restore)
			if err := i.b.Copy(prev); err != nil {
				log.Warnf("clipboard restore failed: %v", err)
			}
		}()
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
