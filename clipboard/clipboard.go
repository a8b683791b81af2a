package clipboard

import (
	"errors"
	"sync"

	cb "github.com/atotto/clipboard"
)

// ErrUnsupported is returned by operations this platform cannot perform.
var ErrUnsupported = errors.New("not supported on this platform")

// selectionMu guards cb.Primary, which picks the selection every atotto
// call reads or writes.
var selectionMu sync.Mutex

func Read() (string, error) {
	selectionMu.Lock()
	defer selectionMu.Unlock()
	return cb.ReadAll()
}

func Copy(text string) error {
	selectionMu.Lock()
	defer selectionMu.Unlock()
	return cb.WriteAll(text)
}

// System is the real clipboard and keyboard of this machine.
type System struct{}

func (System) Read() (string, error)         { return Read() }
func (System) Copy(text string) error        { return Copy(text) }
func (System) CopyPrimary(text string) error { return CopyPrimary(text) }
func (System) Paste() error                  { return Paste() }
func (System) MiddleClick() error            { return MiddleClick() }
func (System) Type(text string) error        { return Type(text) }
