package hotkey

// Event is a trigger key edge.
type Event int

const (
	Down Event = iota + 1
	Up
)

func (e Event) String() string {
	switch e {
	case Down:
		return "down"
	case Up:
		return "up"
	}
	return "unknown"
}

// Hotkey delivers press and release of one global trigger key. Both edges go
// through a single channel so a fast tap is never reordered.
type Hotkey interface {
	Register() error
	Unregister()
	Events() <-chan Event
}

const eventBuffer = 16

// send drops the event if the consumer is far behind; a stuck consumer must
// not block the input reader.
func send(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}
