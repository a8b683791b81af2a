//go:build integration

package test_test

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"whisperkey/audio"
	"whisperkey/clipboard"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("WHISPERKEY_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "WHISPERKEY_TEST_BIN not set; build with: go build -o /tmp/whisperkey . && WHISPERKEY_TEST_BIN=/tmp/whisperkey go test -tags integration ./test")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create data dir: %v\n", err)
		os.Exit(1)
	}
	generated := map[string]audio.Recording{
		"silence.wav": samples(16000, 1.0, 0),
		"tone.wav":    samples(16000, 2.0, 440),
	}
	for name, rec := range generated {
		path := filepath.Join("data", name)
		if err := audio.SaveWAV(path, rec); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	code := m.Run()
	for name := range generated {
		os.Remove(filepath.Join("data", name))
	}
	os.Exit(code)
}

func samples(sampleRate int, durationS, freq float64) audio.Recording {
	n := int(float64(sampleRate) * durationS)
	s := make([]int16, n)
	if freq > 0 {
		for i := range s {
			s[i] = int16(6000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		}
	}
	return audio.Recording{Samples: s, SampleRate: sampleRate, Channels: 1}
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runWhisperKey(t *testing.T, stdin string, args ...string) (logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-history-db", "", "-notify=false"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+t.TempDir())

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("whisperkey exited with error: %v\noutput: %s", err, out)
	}
	return logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireGroqKey(t *testing.T) {
	t.Helper()
	if os.Getenv("GROQ_API_KEY") == "" {
		t.Skip("GROQ_API_KEY not set")
	}
}

func groq(wav string) []string {
	return []string{"-variant", "groq", "-test", wav}
}

func TestVersion(t *testing.T) {
	out, err := exec.Command(testBinary, "-version").CombinedOutput()
	if err != nil {
		t.Fatalf("-version: %v\n%s", err, out)
	}
	if !strings.HasPrefix(string(out), "whisperkey ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestShortPressSkipsTranscription(t *testing.T) {
	// An unreachable server proves no request is made.
	logDir := runWhisperKey(t, cmds("KEYDOWN", "KEYUP", "WAIT", "QUIT"),
		"-variant", "whisper-server", "-server", "http://127.0.0.1:1", "-min-duration", "10s", "-test", "data/tone.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Contains(diag, "to=processing") {
		t.Errorf("short press reached processing:\n%s", diag)
	}
	if strings.TrimSpace(readLog(t, logDir, "transcribe_log.txt")) != "" {
		t.Error("short press produced a transcription")
	}
}

func TestServerFailureReturnsToIdle(t *testing.T) {
	logDir := runWhisperKey(t, cmds("KEYDOWN", "WAIT_AUDIO_DONE", "KEYUP", "WAIT", "QUIT"),
		"-variant", "whisper-server", "-server", "http://127.0.0.1:1", "-test", "data/tone.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "to=failed") {
		t.Errorf("expected a failed transition:\n%s", diag)
	}
	recovered := false
	for _, line := range strings.Split(diag, "\n") {
		if strings.Contains(line, "from=failed") && strings.Contains(line, "to=idle") {
			recovered = true
		}
	}
	if !recovered {
		t.Errorf("expected failed -> idle:\n%s", diag)
	}
}

func TestBatchNoVoice(t *testing.T) {
	requireGroqKey(t)
	logDir := runWhisperKey(t, cmds("KEYDOWN", "SLEEP 1500", "KEYUP", "WAIT", "QUIT"), groq("data/silence.wav")...)
	if strings.TrimSpace(readLog(t, logDir, "transcribe_log.txt")) != "" {
		t.Error("silence produced a transcription")
	}
}

func TestBatchConnReuse(t *testing.T) {
	requireGroqKey(t)
	logDir := runWhisperKey(t, cmds(
		"KEYDOWN", "WAIT_AUDIO_DONE", "KEYUP", "WAIT",
		"KEYDOWN", "WAIT_AUDIO_DONE", "KEYUP", "WAIT", "QUIT"), groq("data/tone.wav")...)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Count(diag, "to=idle") < 2 {
		t.Errorf("expected two sessions in diagnostics:\n%s", diag)
	}
	if strings.Count(diag, "INF transcription") >= 2 && !strings.Contains(diag, "conn=reused") {
		t.Error("expected conn reused on the second transcription")
	}
}

func TestClipboardRestore(t *testing.T) {
	requireGroqKey(t)

	sentinel := fmt.Sprintf("whisperkey-test-sentinel-%d", time.Now().UnixNano())
	if err := clipboard.Copy(sentinel); err != nil {
		t.Skip("clipboard not available")
	}

	_ = runWhisperKey(t, cmds("KEYDOWN", "WAIT_AUDIO_DONE", "KEYUP", "WAIT", "SLEEP 1200", "QUIT"),
		append([]string{"-restore-clipboard", "500ms"}, groq("data/tone.wav")...)...)

	clip, err := clipboard.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != sentinel {
		t.Errorf("clipboard not restored: got %q, want %q", strings.TrimSpace(clip), sentinel)
	}
}
