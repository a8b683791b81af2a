package insert

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestNewRejectsUnknownMethod(t *testing.T) {
	if _, err := New("telepathy", NewFakeBackend("")); err == nil {
		t.Fatal("expected error for unknown method")
	}
	for _, m := range Methods {
		if _, err := New(m, NewFakeBackend("")); err != nil {
			t.Errorf("New(%q): %v", m, err)
		}
	}
}

func TestStrategies(t *testing.T) {
	tests := []struct {
		method string
		calls  []string
	}{
		{MethodClipboard, []string{"copy", "paste"}},
		{MethodMiddleClick, []string{"primary", "click"}},
		{MethodBoth, []string{"primary", "click", "copy", "paste"}},
		{MethodType, []string{"type"}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			b := NewFakeBackend("old")
			ins, err := New(tt.method, b, WithSettle(0))
			if err != nil {
				t.Fatal(err)
			}
			if err := ins.Insert(context.Background(), "hello world"); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if got := b.Calls(); !slices.Equal(got, tt.calls) {
				t.Errorf("calls = %v, want %v", got, tt.calls)
			}
		})
	}
}

func TestClipboardKeepsTextWithoutRestore(t *testing.T) {
	b := NewFakeBackend("old")
	ins, _ := New(MethodClipboard, b, WithSettle(0))
	if err := ins.Insert(context.Background(), "new text"); err != nil {
		t.Fatal(err)
	}
	if got := b.Clipboard(); got != "new text" {
		t.Errorf("clipboard = %q", got)
	}
}

func TestClipboardRestoresPrevious(t *testing.T) {
	b := NewFakeBackend("old")
	ins, _ := New(MethodClipboard, b, WithSettle(0), WithRestore(10*time.Millisecond))
	if err := ins.Insert(context.Background(), "new text"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.Clipboard() != "old" {
		if time.Now().After(deadline) {
			t.Fatalf("clipboard = %q, want restored %q", b.Clipboard(), "old")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMiddleClickUsesPrimary(t *testing.T) {
	b := NewFakeBackend("old")
	ins, _ := New(MethodMiddleClick, b, WithSettle(0))
	if err := ins.Insert(context.Background(), "selected"); err != nil {
		t.Fatal(err)
	}
	if b.Primary() != "selected" {
		t.Errorf("primary = %q", b.Primary())
	}
	if b.Clipboard() != "old" {
		t.Errorf("clipboard changed to %q", b.Clipboard())
	}
}

func TestTypeSendsText(t *testing.T) {
	b := NewFakeBackend("")
	ins, _ := New(MethodType, b)
	if err := ins.Insert(context.Background(), "typed words"); err != nil {
		t.Fatal(err)
	}
	if got := b.Typed(); len(got) != 1 || got[0] != "typed words" {
		t.Errorf("typed = %q", got)
	}
}

func TestBackendErrorsPropagate(t *testing.T) {
	boom := errors.New("no display")
	tests := []struct {
		method, fail string
	}{
		{MethodClipboard, "copy"},
		{MethodClipboard, "paste"},
		{MethodMiddleClick, "primary"},
		{MethodMiddleClick, "click"},
		{MethodType, "type"},
	}
	for _, tt := range tests {
		b := NewFakeBackend("")
		b.Fail[tt.fail] = boom
		ins, _ := New(tt.method, b, WithSettle(0))
		if err := ins.Insert(context.Background(), "x"); !errors.Is(err, boom) {
			t.Errorf("%s with failing %s: err = %v", tt.method, tt.fail, err)
		}
	}
}

func TestCancelledContextStopsBeforePaste(t *testing.T) {
	b := NewFakeBackend("")
	ins, _ := New(MethodClipboard, b, WithSettle(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ins.Insert(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if slices.Contains(b.Calls(), "paste") {
		t.Error("pasted after cancellation")
	}
}

// slowCopy holds Copy long enough for the caller's deadline to pass.
type slowCopy struct {
	*FakeBackend
	delay time.Duration
}

func (s slowCopy) Copy(text string) error {
	time.Sleep(s.delay)
	return s.FakeBackend.Copy(text)
}

func TestDeadlineDuringCopySkipsPaste(t *testing.T) {
	for _, method := range []string{MethodClipboard, MethodBoth} {
		b := NewFakeBackend("")
		ins, _ := New(method, slowCopy{FakeBackend: b, delay: 50 * time.Millisecond}, WithSettle(0))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		err := ins.Insert(ctx, "x")
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("%s: err = %v, want DeadlineExceeded", method, err)
		}
		if slices.Contains(b.Calls(), "paste") {
			t.Errorf("%s: pasted after the deadline: %v", method, b.Calls())
		}
	}
}

func TestCancelledContextSendsNoInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, method := range Methods {
		b := NewFakeBackend("")
		ins, _ := New(method, b, WithSettle(0))
		if err := ins.Insert(ctx, "x"); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: err = %v, want context.Canceled", method, err)
		}
		for _, c := range b.Calls() {
			if c == "paste" || c == "click" || c == "type" {
				t.Errorf("%s: sent %s after cancellation", method, c)
			}
		}
	}
}
