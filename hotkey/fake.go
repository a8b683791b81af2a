package hotkey

type FakeHotkey struct {
	events chan Event
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{events: make(chan Event, eventBuffer)}
}

func (f *FakeHotkey) Register() error      { return nil }
func (f *FakeHotkey) Unregister()          {}
func (f *FakeHotkey) Events() <-chan Event { return f.events }

func (f *FakeHotkey) SimKeydown() { f.events <- Down }
func (f *FakeHotkey) SimKeyup()   { f.events <- Up }
