package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"whisperkey/audio"
	"whisperkey/beep"
	"whisperkey/clipboard"
	"whisperkey/config"
	"whisperkey/doctor"
	"whisperkey/history"
	"whisperkey/hotkey"
	"whisperkey/insert"
	"whisperkey/log"
	"whisperkey/notify"
	"whisperkey/observe"
	"whisperkey/session"
	"whisperkey/shutdown"
	"whisperkey/transcriber"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func deviceLineText(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "mic: system default"
	}
	return "mic: " + dev.Name
}

func modeLineText(cfg config.Config, tr transcriber.Transcriber) string {
	provider := tr.Name()
	if provider == transcriber.VariantWhisperCpp {
		provider += " " + cfg.Model
	}
	if cfg.Language != "" {
		provider += " (" + cfg.Language + ")"
	}
	return fmt.Sprintf("[%s | %s]", provider, cfg.Paste)
}

func sessionConfig(cfg config.Config) session.Config {
	return session.Config{
		SampleRate:     cfg.SampleRate,
		MinDuration:    cfg.MinDuration,
		Watchdog:       cfg.Watchdog,
		ProcessTimeout: cfg.ProcessTimeout,
		NotifyTitle:    "Whisper",
	}
}

func transcriberConfig(cfg config.Config) transcriber.Config {
	return transcriber.Config{
		Variant:   cfg.Variant,
		Model:     cfg.Model,
		ModelDir:  cfg.ModelDir,
		ServerURL: cfg.Server,
		Language:  cfg.Language,
		Threads:   cfg.Threads,
		GroqKey:   os.Getenv("GROQ_API_KEY"),
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
	}
}

// cueFor maps a transition to the sound played for it.
func cueFor(t session.Transition) (beep.Cue, bool) {
	switch t.To {
	case session.Recording:
		return beep.Start, true
	case session.Processing:
		return beep.End, true
	case session.Failed:
		return beep.Error, true
	}
	return 0, false
}

func playCue(t session.Transition) {
	if c, ok := cueFor(t); ok {
		go beep.Play(c)
	}
}

// saveDebugRecording writes each recording to ~/speech/last_recording.wav.
func saveDebugRecording(id string, rec audio.Recording) {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("debug recording: %v", err)
		return
	}
	path := filepath.Join(home, "speech", "last_recording.wav")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warnf("debug recording: %v", err)
		return
	}
	if err := audio.SaveWAV(path, rec); err != nil {
		log.Warnf("debug recording: %v", err)
		return
	}
	check, err := audio.ReadWAV(path)
	if err != nil || check.Frames() != rec.Frames() {
		log.Warnf("debug recording %s: wrote %d frames, read back %d (%v)", id, rec.Frames(), check.Frames(), err)
		return
	}
	log.Debugf("session %s: saved %s (%d frames)", id, path, rec.Frames())
}

func setupCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func printHistory(path string, n int) error {
	if path == "" {
		return errors.New("session history is disabled (history_db is empty)")
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		detail := e.Text
		if e.Outcome != string(session.OutcomeInserted) {
			detail = strings.TrimSpace(e.Stage + " " + e.Reason)
		}
		fmt.Printf("%s  %-9s %5.1fs  %s\n", e.Started.Format("2006-01-02 15:04:05"), e.Outcome, e.Audio.Seconds(), detail)
	}
	return nil
}

func resolveDevice(ctx audio.Context, name string, setup bool) *audio.DeviceInfo {
	if name != "" {
		devices, err := ctx.Devices()
		if err != nil {
			log.Warnf("list devices: %v", err)
			return nil
		}
		for i := range devices {
			if devices[i].Name == name {
				return &devices[i]
			}
		}
		log.Warnf("device %q not found, using system default", name)
		return nil
	}
	if setup {
		dev, err := audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Println("Falling back to default device")
			return nil
		}
		return dev
	}
	return nil
}

func run() {
	cfg, cli, err := parseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if cli.version {
		fmt.Printf("whisperkey %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	setupCrashLog()

	if cli.history > 0 {
		if err := printHistory(cfg.HistoryDB, cli.history); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	opts := log.Options{Debug: cfg.Debug}
	if !cli.tui {
		opts.Console = os.Stderr
	}
	if err := log.Init(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	key, err := hotkey.ParseKey(cfg.Key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	tr, err := transcriber.New(transcriberConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer tr.Close()

	if cli.doctor {
		os.Exit(doctor.Run(doctor.Options{
			Key:         key,
			SampleRate:  cfg.SampleRate,
			Transcriber: tr,
		}))
	}

	if cli.benchmark != "" {
		if err := runBenchmark(context.Background(), tr, cli.benchmark, cli.runs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if cli.testWAV != "" {
		if err := runTestMode(cfg, tr, cli.testWAV, os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runDaemon(cfg, cli, key, tr); err != nil {
		log.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(cfg config.Config, cli cliFlags, key hotkey.Key, tr transcriber.Transcriber) error {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if !cfg.Beep {
		beep.Disable()
	}
	beep.Init()

	if err := clipboard.Init(); err != nil {
		log.Warnf("paste init failed: %v", err)
		fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
	}
	ins, err := insert.New(cfg.Paste, clipboard.System{}, insert.WithRestore(cfg.RestoreClip))
	if err != nil {
		return err
	}

	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("initialize audio: %w", err)
	}
	defer actx.Close()

	dev := resolveDevice(actx, cfg.Device, cli.setup)
	capturer := &audio.Capturer{Context: actx, Device: dev}

	if cli.testMic {
		report, err := audio.ProbeMicrophone(ctx, capturer, cfg.SampleRate, 3*time.Second)
		switch {
		case err != nil:
			log.Warnf("microphone test failed: %v", err)
		case !report.OK():
			log.Warnf("microphone test: no signal on %s (mean %.4f)", report.Device, report.Stats.Mean)
		default:
			log.Infof("microphone test: %s ok (mean %.4f, max %.4f)", report.Device, report.Stats.Mean, report.Stats.Max)
		}
	}

	hk, err := hotkey.New(key)
	if err != nil {
		return err
	}
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey %s: %w", key, err)
	}
	defer hk.Unregister()

	view := &tui{}
	n := notify.Multi(notify.NewDesktop(cfg.Notify), view)

	var inserted atomic.Int64
	ctlOpts := []session.Option{
		session.WithObserver(playCue),
		session.WithObserver(func(t session.Transition) {
			if t.Outcome == session.OutcomeInserted {
				inserted.Add(1)
				log.TranscriptionText(t.Text)
			}
		}),
	}

	if cfg.Metrics != "" || cfg.Trace != "" {
		pcfg := observe.ProviderConfig{ServiceVersion: version}
		if cfg.Trace != "" {
			exp, err := observe.NewTraceFile(cfg.Trace)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			pcfg.TraceExporter = exp
		}
		shutdownProvider, err := observe.InitProvider(ctx, pcfg)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			shutdownProvider(sctx)
		}()
		ctlOpts = append(ctlOpts, session.WithTracer(otel.Tracer("whisperkey/session")))
	}
	if cfg.Metrics != "" {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		ctlOpts = append(ctlOpts, session.WithObserver(m.Observe))
	}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			log.Warnf("session history disabled: %v", err)
		} else {
			defer store.Close()
			ctlOpts = append(ctlOpts, session.WithObserver(store.Observe))
		}
	}

	if cfg.Debug {
		ctlOpts = append(ctlOpts, session.WithRecordingHook(saveDebugRecording))
	}
	ctlOpts = append(ctlOpts, session.WithObserver(view.Observe))

	ctl := session.New(sessionConfig(cfg), capturer, tr, ins, n, ctlOpts...)

	log.SessionStart(tr.Name(), cfg.Model, key.String(), cfg.Paste)
	defer func() { log.SessionEnd(int(inserted.Load())) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctl.Run(gctx, hk) })
	if cfg.Metrics != "" {
		g.Go(func() error { return observe.Serve(gctx, cfg.Metrics) })
	}
	if cli.tui {
		p := NewTUIProgram(key.String(), modeLineText(cfg, tr), deviceLineText(dev))
		view.set(p)
		g.Go(func() error {
			_, err := p.Run()
			view.set(nil)
			stop()
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			p.Quit()
			return nil
		})
	}

	n.Notify("Whisper", fmt.Sprintf("Press and hold '%s' key to record, release to transcribe", strings.ToUpper(key.String())))
	return g.Wait()
}
