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

const groqURL = "https://api.groq.com/openai/v1/audio/transcriptions"

type Groq struct {
	client *TracedClient
	apiURL string
	apiKey string
	lang   string
}

func NewGroq(apiKey, lang string) *Groq {
	g := &Groq{client: NewTracedClient(), apiURL: groqURL, apiKey: apiKey, lang: lang}
	go g.client.Warm(g.apiURL)
	return g
}

func (g *Groq) Name() string { return VariantGroq }

func (g *Groq) Close() error { return nil }

type groqResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (g *Groq) Transcribe(ctx context.Context, rec audio.Recording) (Result, error) {
	start := time.Now()
	data, err := encoder.FLAC(rec)
	if err != nil {
		return Result{}, fmt.Errorf("groq: encode: %w", err)
	}

	resp, err := g.client.post(ctx, upload{
		url:      g.apiURL,
		apiKey:   g.apiKey,
		filename: "audio.flac",
		audio:    data,
		fields: map[string]string{
			"model":           "whisper-large-v3-turbo",
			"response_format": "verbose_json",
			"language":        g.lang,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("groq: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var gr groqResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return Result{}, fmt.Errorf("groq response parse error: %w", err)
	}
	segments := make([]Segment, 0, len(gr.Segments))
	for _, s := range gr.Segments {
		segments = append(segments, Segment{
			Text:         s.Text,
			Start:        seconds(s.Start),
			End:          seconds(s.End),
			NoSpeechProb: s.NoSpeechProb,
		})
	}

	return Result{
		Text:      gr.Text,
		Segments:  segments,
		Audio:     rec.Duration(),
		Inference: time.Since(start),
		Metrics:   resp.Metrics,
		RateLimit: firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests") + "/" +
			firstNonEmpty(resp.Header, "x-ratelimit-limit-requests"),
	}, nil
}
