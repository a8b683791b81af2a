package audio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrSelectionAborted is returned when the user presses Ctrl+C in the picker.
var ErrSelectionAborted = errors.New("device selection aborted")

// SelectDevice presents an interactive device picker on the terminal.
// With a single device available it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func(redraw bool) {
		if redraw {
			fmt.Printf("\x1b[%dA", len(devices)+2)
		}
		fmt.Print("\r\x1b[J")
		fmt.Print("Select microphone (↑/↓ or j/k, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s\x1b[0m\r\n", d.Name)
			} else {
				fmt.Printf("    %s\r\n", d.Name)
			}
		}
	}
	up := func() {
		if cursor > 0 {
			cursor--
		}
	}
	down := func() {
		if cursor < len(devices)-1 {
			cursor++
		}
	}

	render(false)
	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch {
		case n == 1 && (buf[0] == '\r' || buf[0] == '\n'):
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case n == 1 && buf[0] == 3: // Ctrl+C
			fmt.Print("\r\n")
			return nil, ErrSelectionAborted
		case n == 1 && buf[0] == 'k', n == 3 && buf[0] == 0x1b && buf[2] == 'A':
			up()
		case n == 1 && buf[0] == 'j', n == 3 && buf[0] == 0x1b && buf[2] == 'B':
			down()
		}
		render(true)
	}
}
