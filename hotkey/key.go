package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
)

// Key is a parsed trigger: one key plus the modifiers that must be held.
type Key struct {
	Name string
	Mods Modifier
	Code uint16 // Linux evdev key code
}

// evdev codes for a..z
var letterCodes = [26]uint16{
	30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
	37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
	22, 47, 17, 45, 21, 44,
}

var namedCodes = map[string]uint16{
	"space":      57,
	"tab":        15,
	"capslock":   58,
	"scrolllock": 70,
	"pause":      119,
	"insert":     110,
	"menu":       127,
	"rightctrl":  97,
	"rightalt":   100,
	"rightshift": 54,
}

func (k Key) String() string {
	var parts []string
	if k.Mods&ModCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	if k.Mods&ModShift != 0 {
		parts = append(parts, "shift")
	}
	if k.Mods&ModAlt != 0 {
		parts = append(parts, "alt")
	}
	return strings.Join(append(parts, k.Name), "+")
}

// ParseKey parses strings like "z", "f13", "rightalt" or "ctrl+shift+space".
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	var k Key
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Key{}, fmt.Errorf("invalid key %q", s)
		}
		if i < len(parts)-1 {
			switch p {
			case "ctrl", "control":
				k.Mods |= ModCtrl
			case "shift":
				k.Mods |= ModShift
			case "alt", "option":
				k.Mods |= ModAlt
			default:
				return Key{}, fmt.Errorf("unknown modifier %q in %q", p, s)
			}
			continue
		}
		code, err := keyCode(p)
		if err != nil {
			return Key{}, fmt.Errorf("key %q: %w", s, err)
		}
		k.Name, k.Code = p, code
	}
	return k, nil
}

func keyCode(name string) (uint16, error) {
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return letterCodes[c-'a'], nil
		case c == '0':
			return 11, nil
		case c >= '1' && c <= '9':
			return uint16(c-'1') + 2, nil
		}
	}
	if code, ok := namedCodes[name]; ok {
		return code, nil
	}
	if n, ok := strings.CutPrefix(name, "f"); ok {
		if num, err := strconv.Atoi(n); err == nil {
			switch {
			case num >= 1 && num <= 10:
				return uint16(58 + num), nil
			case num == 11, num == 12:
				return uint16(76 + num), nil
			case num >= 13 && num <= 24:
				return uint16(170 + num), nil
			}
		}
	}
	return 0, fmt.Errorf("unsupported key name %q", name)
}
