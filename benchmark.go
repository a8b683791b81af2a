package main

import (
	"context"
	"fmt"
	"time"

	"whisperkey/audio"
	"whisperkey/session"
)

// runBenchmark transcribes wavFile runs times and prints the timings.
func runBenchmark(ctx context.Context, tr session.Transcriber, wavFile string, runs int) error {
	rec, err := audio.ReadWAV(wavFile)
	if err != nil {
		return err
	}
	fmt.Printf("Benchmark: %s (%.1fs audio, %s, %d runs)\n", wavFile, rec.Duration().Seconds(), tr.Name(), runs)

	var totals []float64
	for i := 1; i <= runs; i++ {
		fmt.Printf("=== Run %d ===\n", i)

		start := time.Now()
		result, err := tr.Transcribe(ctx, rec)
		if err != nil {
			return fmt.Errorf("run %d: %w", i, err)
		}
		total := time.Since(start)
		totals = append(totals, float64(total.Milliseconds()))

		displayText := result.Text
		if result.NoSpeech() {
			displayText = "(no speech detected)"
		}
		fmt.Printf("Text: %s\n", displayText)
		fmt.Printf("  total:     %s\n", total.Round(time.Millisecond))
		if result.Inference > 0 {
			fmt.Printf("  inference: %s\n", result.Inference.Round(time.Millisecond))
		}
		if m := result.Metrics; m != nil {
			fmt.Printf("  dns=%s tls=%s ttfb=%s reused=%v\n",
				m.DNS.Round(time.Millisecond), m.TLS.Round(time.Millisecond), m.TTFB.Round(time.Millisecond), m.ConnReused)
		}
		if result.RateLimit != "" {
			fmt.Printf("  rate limit: %s\n", result.RateLimit)
		}
		fmt.Println()

		if i < runs {
			time.Sleep(500 * time.Millisecond)
		}
	}

	if len(totals) > 1 {
		fmt.Println(renderLatencyTable(totals))
	}
	return nil
}
