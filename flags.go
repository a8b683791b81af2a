package main

import (
	"flag"
	"time"

	"whisperkey/config"
)

// cliFlags are the command-line switches that are not part of the config file.
type cliFlags struct {
	configPath string
	testMic    bool
	setup      bool
	doctor     bool
	tui        bool
	version    bool
	testWAV    string
	benchmark  string
	runs       int
	history    int
}

// registerFlags binds every flag on fs. Config-backed flags write into fl,
// which starts from the defaults.
func registerFlags(fs *flag.FlagSet, fl *config.Config, cli *cliFlags) {
	fs.StringVar(&cli.configPath, "config", "", "YAML config file (default: "+config.DefaultPath()+")")
	fs.StringVar(&fl.Model, "model", fl.Model, "model size: tiny, base, small, medium, large-v3 (and .en forms)")
	fs.StringVar(&fl.ModelDir, "model-dir", fl.ModelDir, "directory holding ggml-<size>.bin model files")
	fs.StringVar(&fl.Variant, "variant", fl.Variant, "implementation: whisper-cpp, whisper-server, groq, openai")
	fs.StringVar(&fl.Server, "server", fl.Server, "whisper.cpp server URL for -variant whisper-server")
	fs.StringVar(&fl.Language, "lang", fl.Language, "language code (e.g. en, es, fr); empty = auto-detect")
	fs.IntVar(&fl.Threads, "threads", fl.Threads, "inference threads for whisper-cpp (0 = default)")
	fs.IntVar(&fl.SampleRate, "sample-rate", fl.SampleRate, "capture sample rate in Hz")
	fs.StringVar(&fl.Key, "key", fl.Key, "key to hold while speaking, e.g. z, f9, ctrl+shift+space")
	fs.StringVar(&fl.Device, "device", fl.Device, "use named microphone device")
	fs.StringVar(&fl.Paste, "paste", fl.Paste, "paste method: clipboard, middle-click, both, type")
	fs.DurationVar(&fl.RestoreClip, "restore-clipboard", fl.RestoreClip, "restore the previous clipboard after this delay (0 = keep transcript)")
	fs.DurationVar(&fl.MinDuration, "min-duration", fl.MinDuration, "discard recordings shorter than this")
	fs.DurationVar(&fl.Watchdog, "watchdog", fl.Watchdog, "abandon recordings longer than this")
	fs.DurationVar(&fl.ProcessTimeout, "process-timeout", fl.ProcessTimeout, "give up on transcription and insertion after this")
	fs.BoolVar(&fl.Notify, "notify", fl.Notify, "show desktop notifications")
	fs.BoolVar(&fl.Beep, "beep", fl.Beep, "play audible cues")
	fs.BoolVar(&fl.Debug, "debug", fl.Debug, "debug logging; save the last recording to ~/speech/last_recording.wav")
	fs.StringVar(&fl.LogPath, "logpath", fl.LogPath, "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&fl.Metrics, "metrics", fl.Metrics, "serve Prometheus metrics on this address, e.g. localhost:9464")
	fs.StringVar(&fl.Trace, "trace", fl.Trace, "append session spans as JSON to this file")
	fs.StringVar(&fl.HistoryDB, "history-db", fl.HistoryDB, "session history database (empty disables)")

	fs.BoolVar(&cli.testMic, "test-mic", false, "test the microphone before starting")
	fs.BoolVar(&cli.setup, "setup", false, "select microphone device interactively")
	fs.BoolVar(&cli.doctor, "doctor", false, "run system diagnostics and exit")
	fs.BoolVar(&cli.tui, "tui", false, "show terminal status UI")
	fs.BoolVar(&cli.version, "version", false, "print version and exit")
	fs.StringVar(&cli.testWAV, "test", "", "headless stdin-driven mode playing this WAV as the microphone")
	fs.StringVar(&cli.benchmark, "benchmark", "", "transcribe this WAV file and report timings")
	fs.IntVar(&cli.runs, "runs", 3, "number of benchmark iterations")
	fs.IntVar(&cli.history, "history", 0, "print the last N sessions and exit")
}

// mergeFlags copies the flags named in set from fl over cfg, so that
// explicit command-line values win over the config file.
func mergeFlags(cfg *config.Config, fl config.Config, set map[string]bool) {
	pick := func(name string, dst, src any) {
		if !set[name] {
			return
		}
		switch d := dst.(type) {
		case *string:
			*d = *src.(*string)
		case *int:
			*d = *src.(*int)
		case *bool:
			*d = *src.(*bool)
		case *time.Duration:
			*d = *src.(*time.Duration)
		}
	}
	pick("model", &cfg.Model, &fl.Model)
	pick("model-dir", &cfg.ModelDir, &fl.ModelDir)
	pick("variant", &cfg.Variant, &fl.Variant)
	pick("server", &cfg.Server, &fl.Server)
	pick("lang", &cfg.Language, &fl.Language)
	pick("threads", &cfg.Threads, &fl.Threads)
	pick("sample-rate", &cfg.SampleRate, &fl.SampleRate)
	pick("key", &cfg.Key, &fl.Key)
	pick("device", &cfg.Device, &fl.Device)
	pick("paste", &cfg.Paste, &fl.Paste)
	pick("restore-clipboard", &cfg.RestoreClip, &fl.RestoreClip)
	pick("min-duration", &cfg.MinDuration, &fl.MinDuration)
	pick("watchdog", &cfg.Watchdog, &fl.Watchdog)
	pick("process-timeout", &cfg.ProcessTimeout, &fl.ProcessTimeout)
	pick("notify", &cfg.Notify, &fl.Notify)
	pick("beep", &cfg.Beep, &fl.Beep)
	pick("debug", &cfg.Debug, &fl.Debug)
	pick("logpath", &cfg.LogPath, &fl.LogPath)
	pick("metrics", &cfg.Metrics, &fl.Metrics)
	pick("trace", &cfg.Trace, &fl.Trace)
	pick("history-db", &cfg.HistoryDB, &fl.HistoryDB)
}

// parseArgs parses args and resolves the effective configuration: defaults,
// then the config file, then explicitly set flags.
func parseArgs(fs *flag.FlagSet, args []string) (config.Config, cliFlags, error) {
	fl := config.Default()
	var cli cliFlags
	registerFlags(fs, &fl, &cli)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, cli, err
	}

	cfg := config.Default()
	path := cli.configPath
	if path == "" {
		if p := config.DefaultPath(); p != "" && fileExists(p) {
			path = p
		}
	}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, cli, err
		}
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	mergeFlags(&cfg, fl, set)
	return cfg, cli, config.Validate(cfg)
}
