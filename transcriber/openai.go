package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"whisperkey/audio"
	"whisperkey/encoder"
)

const openaiURL = "https://api.openai.com/v1/audio/transcriptions"

type OpenAI struct {
	client *TracedClient
	apiURL string
	apiKey string
	lang   string
}

func NewOpenAI(apiKey, lang string) *OpenAI {
	o := &OpenAI{client: NewTracedClient(), apiURL: openaiURL, apiKey: apiKey, lang: lang}
	go o.client.Warm(o.apiURL)
	return o
}

func (o *OpenAI) Name() string { return VariantOpenAI }

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) Transcribe(ctx context.Context, rec audio.Recording) (Result, error) {
	start := time.Now()
	data, err := encoder.FLAC(rec)
	if err != nil {
		return Result{}, fmt.Errorf("openai: encode: %w", err)
	}

	resp, err := o.client.post(ctx, upload{
		url:      o.apiURL,
		apiKey:   o.apiKey,
		filename: "audio.flac",
		audio:    data,
		fields: map[string]string{
			"model":           "gpt-4o-transcribe",
			"response_format": "json",
			"language":        o.lang,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("openai API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var or struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &or); err != nil {
		return Result{}, fmt.Errorf("openai response parse error: %w", err)
	}

	return Result{
		Text:      or.Text,
		Audio:     rec.Duration(),
		Inference: time.Since(start),
		Metrics:   resp.Metrics,
		RateLimit: firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests") + "/" +
			firstNonEmpty(resp.Header, "x-ratelimit-limit-requests"),
	}, nil
}
