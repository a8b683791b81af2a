//go:build linux

package clipboard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

const deviceName = "whisperkey-paste"

// ioctl constants from linux/uinput.h
const (
	uiSetEvbit  = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit = 0x40045565 // UI_SET_KEYBIT
	uiSetRelbit = 0x40045566 // UI_SET_RELBIT
	uiDevCreate = 0x5501     // UI_DEV_CREATE
)

// from linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	relX = 0x00
	relY = 0x01

	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47
	btnMiddle    = 0x112
)

const busUSB = 0x03

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

var (
	mu     sync.Mutex
	fd     *os.File
	fdOnce sync.Once
	fdErr  error
)

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

// Init creates the virtual keyboard-and-pointer device used for pasting.
func Init() error {
	fdOnce.Do(func() {
		path := "/dev/uinput"
		if _, err := os.Stat(path); err != nil {
			path = "/dev/input/uinput"
			if _, err := os.Stat(path); err != nil {
				fdErr = errors.New("uinput device not found, try: sudo modprobe uinput")
				return
			}
		}
		f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
		if err != nil {
			fdErr = err
			return
		}
		if err := setup(f); err != nil {
			fdErr = err
			f.Close()
			return
		}
		fd = f
		// Give compositor time to recognize the new input device
		time.Sleep(200 * time.Millisecond)
	})
	return fdErr
}

func setup(f *os.File) error {
	for _, ev := range []uintptr{evKey, evSyn, evRel} {
		if err := ioctl(f, uiSetEvbit, ev); err != nil {
			return err
		}
	}
	// Register all standard keys so udev classifies this as a keyboard
	for i := uintptr(0); i < 256; i++ {
		if err := ioctl(f, uiSetKeybit, i); err != nil {
			return err
		}
	}
	// A middle button plus relative axes makes it a pointer as well
	if err := ioctl(f, uiSetKeybit, btnMiddle); err != nil {
		return err
	}
	for _, rel := range []uintptr{relX, relY} {
		if err := ioctl(f, uiSetRelbit, rel); err != nil {
			return err
		}
	}

	dev := uinputUserDev{}
	copy(dev.Name[:], deviceName)
	dev.ID.Bustype = busUSB
	dev.ID.Vendor = 0x1234
	dev.ID.Product = 0x5678
	dev.ID.Version = 1
	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		return err
	}
	return ioctl(f, uiDevCreate, 0)
}

func writeEvent(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	return binary.Write(fd, binary.LittleEndian, &ev)
}

// emit writes one key or button change followed by a sync report.
func emit(code uint16, value int32) error {
	if err := writeEvent(evKey, code, value); err != nil {
		return err
	}
	return writeEvent(evSyn, 0, 0)
}

func press(codes ...uint16) error {
	for _, c := range codes {
		if err := emit(c, 1); err != nil {
			return err
		}
		// Let compositor register modifier state
		time.Sleep(5 * time.Millisecond)
	}
	for i := len(codes) - 1; i >= 0; i-- {
		if err := emit(codes[i], 0); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// Paste sends Ctrl+V.
func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return press(keyLeftCtrl, keyV)
}

// MiddleClick clicks the middle button at the current pointer position.
func MiddleClick() error {
	if err := Init(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return press(btnMiddle)
}

// Type sends each character of text as a keystroke. Characters without a
// US-layout key are skipped.
func Type(text string) error {
	if err := Init(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	for _, r := range text {
		code, shift, ok := charToKey(r)
		if !ok {
			continue
		}
		keys := []uint16{code}
		if shift {
			keys = []uint16{keyLeftShift, code}
		}
		if err := press(keys...); err != nil {
			return err
		}
	}
	return nil
}

// Verify sends a Ctrl+V through the virtual device and reads it back from
// the kernel input layer to confirm delivery.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}

	evdevPath, err := findDevice()
	if err != nil {
		return "", err
	}
	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := Paste(); err != nil {
		return "", fmt.Errorf("paste send: %w", err)
	}

	type result struct {
		ctrl, v bool
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, 24*32)
		var r result
		n, err := evdev.Read(buf)
		if err != nil {
			r.err = err
			ch <- r
			return
		}
		for i := 0; i+24 <= n; i += 24 {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			if evType != evKey {
				continue
			}
			switch evCode {
			case keyLeftCtrl:
				r.ctrl = true
			case keyV:
				r.v = true
			}
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		if !r.ctrl || !r.v {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", r.ctrl, r.v)
		}
		return fmt.Sprintf("Ctrl+V keystroke verified via %s", evdevPath), nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}

func findDevice() (string, error) {
	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == deviceName {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", errors.New(deviceName + " evdev device not found")
}
