// Package doctor runs interactive checks of everything a dictation session
// depends on: keyboard access, microphone, model and text insertion.
package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"whisperkey/audio"
	"whisperkey/clipboard"
	"whisperkey/hotkey"
	"whisperkey/shutdown"
	"whisperkey/transcriber"
)

type Options struct {
	Key        hotkey.Key
	SampleRate int
	Device     *audio.DeviceInfo

	// Transcriber is optional; without it the model check is skipped.
	Transcriber transcriber.Transcriber

	In  io.Reader
	Out io.Writer
}

type check struct {
	name string
	run  func() (string, error)
}

// errSkipped marks a check that did not apply.
var errSkipped = errors.New("skipped")

// Run executes the checks in order and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	restore := saveTerminal()
	defer restore()
	setupInterruptHandler(restore)

	d := &doctor{opts: opts, in: bufio.NewReader(opts.In), restore: restore}

	fmt.Fprintln(opts.Out, "whisperkey doctor - interactive system diagnostics")
	fmt.Fprintln(opts.Out, "==================================================")

	ok := runChecks(opts.Out, []check{
		{"Keyboard access", hotkey.Diagnose},
		{"Hotkey detection", d.checkHotkey},
		{"Microphone", d.checkMicrophone},
		{"Transcription", d.checkTranscription},
		{"Clipboard", checkClipboard},
		{"Keystroke output", clipboard.Verify},
	})

	fmt.Fprintln(opts.Out)
	if ok {
		fmt.Fprintln(opts.Out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(opts.Out, "Some checks failed. See details above.")
	return 1
}

// runChecks stops at the first failure; later checks depend on earlier ones.
func runChecks(out io.Writer, checks []check) bool {
	for i, c := range checks {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(checks), c.name)
		msg, err := c.run()
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(out, "  SKIP: %s\n", msg)
		case err != nil:
			fmt.Fprintf(out, "  FAIL: %v\n", err)
			return false
		default:
			fmt.Fprintf(out, "  PASS: %s\n", msg)
		}
	}
	return true
}

type doctor struct {
	opts    Options
	in      *bufio.Reader
	restore func()
	rec     audio.Recording
}

func (d *doctor) checkHotkey() (string, error) {
	fmt.Fprintf(d.opts.Out, "Press %s...\n", d.opts.Key)

	hk, err := hotkey.New(d.opts.Key)
	if err != nil {
		return "", err
	}
	if err := hk.Register(); err != nil {
		return "", fmt.Errorf("could not register hotkey: %w", err)
	}
	defer hk.Unregister()
	// the evdev reader may leave the terminal in raw mode
	defer d.restore()

	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-hk.Events():
			if ev != hotkey.Down {
				continue
			}
			// Wait for keyup to avoid triggering next step
			select {
			case <-hk.Events():
			case <-time.After(5 * time.Second):
			}
			return "hotkey detected", nil
		case <-timeout:
			return "", errors.New("timeout waiting for hotkey")
		}
	}
}

func (d *doctor) checkMicrophone() (string, error) {
	actx, err := audio.NewContext()
	if err != nil {
		return "", fmt.Errorf("cannot connect to audio: %w", err)
	}
	defer actx.Close()

	fmt.Fprint(d.opts.Out, "Press Enter and speak for 3 seconds...")
	d.in.ReadString('\n')

	c := &audio.Capturer{Context: actx, Device: d.opts.Device}
	stream, err := c.Open(d.opts.SampleRate)
	if err != nil {
		return "", err
	}
	fmt.Fprint(d.opts.Out, "  Recording")
	for range 6 {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(d.opts.Out, ".")
	}
	fmt.Fprintln(d.opts.Out, " done")

	rec, err := stream.Close()
	if err != nil {
		return "", err
	}
	if rec.Frames() == 0 {
		return "", errors.New("no audio captured")
	}
	st := rec.Stats()
	if rec.Silent() {
		return "", fmt.Errorf("recording is silent (mean %.5f, max %.5f); check the input device and its volume", st.Mean, st.Max)
	}
	d.rec = rec
	return fmt.Sprintf("%.1fs captured, mean %.4f, max %.4f", rec.Duration().Seconds(), st.Mean, st.Max), nil
}

func (d *doctor) checkTranscription() (string, error) {
	if d.opts.Transcriber == nil {
		return "no transcriber configured", errSkipped
	}
	fmt.Fprintf(d.opts.Out, "  Transcribing with %s...\n", d.opts.Transcriber.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	res, err := d.opts.Transcriber.Transcribe(ctx, d.rec)
	if err != nil {
		return "", fmt.Errorf("transcription error: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Fprintf(d.opts.Out, "\n  Transcribed text: %s\n\n", text)

	if !d.confirm("Is this correct?") {
		return "", errors.New("transcription not confirmed")
	}
	return fmt.Sprintf("verified by user (%s inference)", res.Inference.Round(time.Millisecond)), nil
}

func (d *doctor) confirm(question string) bool {
	fmt.Fprintf(d.opts.Out, "%s [y/n]: ", question)
	answer, _ := d.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func checkClipboard() (string, error) {
	testStr := fmt.Sprintf("whisperkey-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("clipboard %s failed: %w", res.phase, res.err)
		}
		if res.readback != testStr {
			return "", fmt.Errorf("clipboard mismatch: wrote %q, got %q", testStr, res.readback)
		}
		return "clipboard write/read verified", nil
	case <-time.After(3 * time.Second):
		return "", errors.New("clipboard timed out (clipboard tool hung - display server not accessible?)")
	}
}

// saveTerminal captures the stdin terminal state and returns a function
// that puts it back.
func saveTerminal() func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.GetState(fd)
	if err != nil {
		return func() {}
	}
	return func() { term.Restore(fd, state) }
}

func setupInterruptHandler(restore func()) {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		restore()
		println("\nInterrupted")
		os.Exit(1)
	}()
}
