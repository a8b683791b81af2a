package insert

import "sync"

// FakeBackend records every call and can fail any of them.
type FakeBackend struct {
	mu        sync.Mutex
	clipboard string
	primary   string
	calls     []string
	typed     []string

	Fail map[string]error // keyed by call name: copy, primary, paste, click, type, read
}

func NewFakeBackend(clipboard string) *FakeBackend {
	return &FakeBackend{clipboard: clipboard, Fail: map[string]error{}}
}

func (f *FakeBackend) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.Fail[name]
}

func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeBackend) Clipboard() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clipboard
}

func (f *FakeBackend) Primary() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.primary
}

func (f *FakeBackend) Typed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.typed...)
}

func (f *FakeBackend) Read() (string, error) {
	if err := f.record("read"); err != nil {
		return "", err
	}
	return f.Clipboard(), nil
}

func (f *FakeBackend) Copy(text string) error {
	if err := f.record("copy"); err != nil {
		return err
	}
	f.mu.Lock()
	f.clipboard = text
	f.mu.Unlock()
	return nil
}

func (f *FakeBackend) CopyPrimary(text string) error {
	if err := f.record("primary"); err != nil {
		return err
	}
	f.mu.Lock()
	f.primary = text
	f.mu.Unlock()
	return nil
}

func (f *FakeBackend) Paste() error       { return f.record("paste") }
func (f *FakeBackend) MiddleClick() error { return f.record("click") }

func (f *FakeBackend) Type(text string) error {
	if err := f.record("type"); err != nil {
		return err
	}
	f.mu.Lock()
	f.typed = append(f.typed, text)
	f.mu.Unlock()
	return nil
}
