package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"whisperkey/audio"
	"whisperkey/beep"
	"whisperkey/clipboard"
	"whisperkey/config"
	"whisperkey/hotkey"
	"whisperkey/insert"
	"whisperkey/log"
	"whisperkey/notify"
	"whisperkey/session"
)

// testDriver runs a controller against a WAV file, driven by stdin commands:
//
//	KEYDOWN, KEYUP      simulate the hotkey
//	WAIT                block until the next session ends
//	WAIT_AUDIO_DONE     block until the current capture has played the whole file
//	SLEEP <ms>
//	QUIT
type testDriver struct {
	hk    *hotkey.FakeHotkey
	audio *audio.FakeContext
	ended chan session.Transition
	count int
}

func newTestDriver(fctx *audio.FakeContext) *testDriver {
	return &testDriver{
		hk:    hotkey.NewFake(),
		audio: fctx,
		ended: make(chan session.Transition, 64),
	}
}

func (d *testDriver) observe(t session.Transition) {
	if t.To != session.Idle {
		return
	}
	if t.Outcome == session.OutcomeInserted {
		log.TranscriptionText(t.Text)
	}
	select {
	case d.ended <- t:
	default:
	}
}

func (d *testDriver) currentCapture(timeout time.Duration) (*audio.FakeCapture, error) {
	deadline := time.Now().Add(timeout)
	for {
		if cs := d.audio.Captures(); len(cs) > 0 {
			return cs[len(cs)-1], nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no capture started within %s", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (d *testDriver) run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "":
		case "KEYDOWN":
			d.hk.SimKeydown()
		case "KEYUP":
			d.hk.SimKeyup()
		case "WAIT":
			<-d.ended
			d.count++
		case "WAIT_AUDIO_DONE":
			c, err := d.currentCapture(5 * time.Second)
			if err != nil {
				return err
			}
			<-c.AudioDone()
		case "QUIT":
			return nil
		default:
			if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
				n, err := strconv.Atoi(ms)
				if err != nil {
					return fmt.Errorf("bad command %q", cmd)
				}
				time.Sleep(time.Duration(n) * time.Millisecond)
				continue
			}
			return fmt.Errorf("unknown command %q", cmd)
		}
	}
	return scanner.Err()
}

// runTestMode is the headless mode used by the integration tests: the WAV
// file plays in real time as the microphone and the hotkey comes from stdin.
func runTestMode(cfg config.Config, tr session.Transcriber, wavPath string, stdin io.Reader) error {
	beep.Disable()

	if err := clipboard.Init(); err != nil {
		log.Warnf("paste init failed: %v", err)
	}
	ins, err := insert.New(cfg.Paste, clipboard.System{}, insert.WithRestore(cfg.RestoreClip))
	if err != nil {
		return err
	}

	fctx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		return fmt.Errorf("load WAV: %w", err)
	}
	d := newTestDriver(fctx)

	ctl := session.New(sessionConfig(cfg), &audio.Capturer{Context: fctx}, tr, ins,
		notify.NewDesktop(false), session.WithObserver(d.observe))

	log.SessionStart(tr.Name(), cfg.Model, "fake", cfg.Paste)
	defer func() { log.SessionEnd(d.count) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctl.Run(ctx, d.hk) }()

	err = d.run(stdin)
	cancel()
	<-done
	ctl.Wait()
	return err
}
