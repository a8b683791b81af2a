//go:build linux

package clipboard

import cb "github.com/atotto/clipboard"

// CopyPrimary writes text to the X11/Wayland PRIMARY selection, the buffer a
// middle click pastes from.
func CopyPrimary(text string) error {
	selectionMu.Lock()
	defer selectionMu.Unlock()
	cb.Primary = true
	defer func() { cb.Primary = false }()
	return cb.WriteAll(text)
}
