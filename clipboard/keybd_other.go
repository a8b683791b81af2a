//go:build !linux

package clipboard

import (
	"runtime"
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
	kbMu   sync.Mutex
)

func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	return kbErr
}

// Paste sends Cmd+V on macOS and Ctrl+V elsewhere.
func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	kbMu.Lock()
	defer kbMu.Unlock()
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

// Type goes through the clipboard; keybd_event has no layout-independent
// way to send arbitrary characters.
func Type(text string) error {
	if err := Copy(text); err != nil {
		return err
	}
	return Paste()
}

// CopyPrimary is Linux only; there is no PRIMARY selection here.
func CopyPrimary(string) error { return ErrUnsupported }

func MiddleClick() error { return ErrUnsupported }

// Verify checks that the keyboard event binding is initialized.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return "keyboard event binding OK (Cmd+V)", nil
	}
	return "keyboard event binding OK (Ctrl+V)", nil
}
