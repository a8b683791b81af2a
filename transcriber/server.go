package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"whisperkey/audio"
)

// Server talks to a running whisper.cpp server (examples/server) over its
// /inference endpoint.
type Server struct {
	client *TracedClient
	url    string
	lang   string
	model  string
}

func NewServer(baseURL, lang, model string) *Server {
	return &Server{
		client: NewTracedClient(),
		url:    strings.TrimRight(baseURL, "/") + "/inference",
		lang:   lang,
		model:  model,
	}
}

func (s *Server) Name() string { return VariantServer }

func (s *Server) Close() error { return nil }

func (s *Server) Transcribe(ctx context.Context, rec audio.Recording) (Result, error) {
	start := time.Now()
	wav, err := audio.EncodeWAV(rec.Mono())
	if err != nil {
		return Result{}, fmt.Errorf("whisper-server: %w", err)
	}

	resp, err := s.client.post(ctx, upload{
		url:      s.url,
		filename: "audio.wav",
		audio:    wav,
		fields: map[string]string{
			"language":        s.lang,
			"model":           s.model,
			"response_format": "json",
			"temperature":     "0.0",
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("whisper-server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("whisper-server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}

	var sr struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return Result{}, fmt.Errorf("whisper-server response parse error: %w", err)
	}
	if sr.Error != "" {
		return Result{}, fmt.Errorf("whisper-server: %s", sr.Error)
	}

	return Result{
		Text:      strings.TrimSpace(sr.Text),
		Audio:     rec.Duration(),
		Inference: time.Since(start),
		Metrics:   resp.Metrics,
	}, nil
}
