//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey       = 1
	valRelease  = 0
	valPress    = 1
	valRepeat   = 2
	codeLCtrl   = 29
	codeRCtrl   = 97
	codeLShift  = 42
	codeRShift  = 54
	codeLAlt    = 56
	codeRAlt    = 100
	eventLength = 24 // struct input_event on 64-bit
)

type linuxHotkey struct {
	key    Key
	events chan Event
	files  []*os.File
	stop   chan struct{}
	once   sync.Once
}

func New(k Key) (Hotkey, error) {
	if k.Code == 0 {
		return nil, fmt.Errorf("hotkey: key %q has no evdev code", k.Name)
	}
	return &linuxHotkey{key: k, events: make(chan Event, eventBuffer)}, nil
}

func (h *linuxHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

// keyState tracks modifiers and the trigger on one keyboard device.
type keyState struct {
	mods Modifier
	down bool
}

func modifierFor(code uint16) Modifier {
	switch code {
	case codeLCtrl, codeRCtrl:
		return ModCtrl
	case codeLShift, codeRShift:
		return ModShift
	case codeLAlt, codeRAlt:
		return ModAlt
	}
	return 0
}

// handle applies one key event and returns the edge to emit, if any.
func (s *keyState) handle(k Key, code uint16, value int32) (Event, bool) {
	if code == k.Code {
		switch {
		case value == valPress && !s.down && s.mods&k.Mods == k.Mods:
			s.down = true
			return Down, true
		case value == valRelease && s.down:
			s.down = false
			return Up, true
		}
		return 0, false
	}
	if m := modifierFor(code); m != 0 && value != valRepeat {
		if value == valPress {
			s.mods |= m
		} else {
			s.mods &^= m
		}
	}
	return 0, false
}

func (h *linuxHotkey) readEvents(f *os.File) {
	buf := make([]byte, eventLength*16)
	var st keyState
	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i+eventLength <= n; i += eventLength {
			if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
				continue
			}
			code := binary.LittleEndian.Uint16(buf[i+18:])
			value := int32(binary.LittleEndian.Uint32(buf[i+20:]))
			if ev, ok := st.handle(h.key, code, value); ok {
				send(h.events, ev)
			}
		}
	}
}

func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Events() <-chan Event {
	return h.events
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}
	var keyboards []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "event") && isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

// isKeyboard filters out mice and power buttons, whose key capability
// bitmap is only a few words long.
func isKeyboard(eventName string) bool {
	data, err := os.ReadFile(filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key"))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}
	for _, path := range keyboards {
		if f, err := os.Open(path); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
