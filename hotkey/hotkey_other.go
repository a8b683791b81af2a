//go:build !linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var xLetters = [26]hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF, hotkey.KeyG,
	hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL, hotkey.KeyM, hotkey.KeyN,
	hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR, hotkey.KeyS, hotkey.KeyT, hotkey.KeyU,
	hotkey.KeyV, hotkey.KeyW, hotkey.KeyX, hotkey.KeyY, hotkey.KeyZ,
}

var xDigits = [10]hotkey.Key{
	hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
	hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
}

var xNamed = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"tab":   hotkey.KeyTab,
	"f1":    hotkey.KeyF1,
	"f2":    hotkey.KeyF2,
	"f3":    hotkey.KeyF3,
	"f4":    hotkey.KeyF4,
	"f5":    hotkey.KeyF5,
	"f6":    hotkey.KeyF6,
	"f7":    hotkey.KeyF7,
	"f8":    hotkey.KeyF8,
	"f9":    hotkey.KeyF9,
	"f10":   hotkey.KeyF10,
	"f11":   hotkey.KeyF11,
	"f12":   hotkey.KeyF12,
}

func xKey(k Key) (hotkey.Key, []hotkey.Modifier, error) {
	var mods []hotkey.Modifier
	if k.Mods&ModCtrl != 0 {
		mods = append(mods, hotkey.ModCtrl)
	}
	if k.Mods&ModShift != 0 {
		mods = append(mods, hotkey.ModShift)
	}
	if k.Mods&ModAlt != 0 {
		return 0, nil, fmt.Errorf("alt modifier is only supported on Linux")
	}
	if len(k.Name) == 1 {
		switch c := k.Name[0]; {
		case c >= 'a' && c <= 'z':
			return xLetters[c-'a'], mods, nil
		case c >= '0' && c <= '9':
			return xDigits[c-'0'], mods, nil
		}
	}
	if key, ok := xNamed[k.Name]; ok {
		return key, mods, nil
	}
	return 0, nil, fmt.Errorf("key %q is not supported on this platform", k.Name)
}

type xHotkey struct {
	hk     *hotkey.Hotkey
	events chan Event
	stop   chan struct{}
	once   sync.Once
}

func New(k Key) (Hotkey, error) {
	key, mods, err := xKey(k)
	if err != nil {
		return nil, fmt.Errorf("hotkey: %w", err)
	}
	return &xHotkey{
		hk:     hotkey.New(mods, key),
		events: make(chan Event, eventBuffer),
		stop:   make(chan struct{}),
	}, nil
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.hk.Keydown():
				send(h.events, Down)
			case <-h.hk.Keyup():
				send(h.events, Up)
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		_ = h.hk.Unregister()
	})
}

func (h *xHotkey) Events() <-chan Event {
	return h.events
}

func Diagnose() (string, error) {
	return "global hotkey support available (golang.design/x/hotkey)", nil
}
