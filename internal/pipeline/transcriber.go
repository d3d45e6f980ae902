package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hurttlocker/zoonotes/internal/audio"
)

// ErrNoTranscript is returned when no transcript can be found for a recording.
var ErrNoTranscript = errors.New("no transcript for recording")

// Transcript is speech-to-text output for one recording.
type Transcript struct {
	Text            string
	DurationSeconds float64
}

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

// TranscriberFunc adapts a plain function to Transcriber.
type TranscriberFunc func(ctx context.Context, audioPath string) (Transcript, error)

// Transcribe implements Transcriber.
func (f TranscriberFunc) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	return f(ctx, audioPath)
}

// SidecarTranscriber reads a transcript an external ASR tool wrote next to
// the recording: "lion.wav.txt" or "lion.txt". Duration comes from the WAV
// header when there is one.
type SidecarTranscriber struct{}

// Transcribe implements Transcriber.
func (SidecarTranscriber) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if err := ctx.Err(); err != nil {
		return Transcript{}, err
	}

	text, err := readSidecar(audioPath)
	if err != nil {
		return Transcript{}, err
	}

	var duration float64
	if info, err := audio.Probe(audioPath); err == nil {
		duration = info.Seconds()
	}
	return Transcript{Text: text, DurationSeconds: duration}, nil
}

// SidecarPaths lists where a transcript for audioPath may live, in lookup order.
func SidecarPaths(audioPath string) []string {
	stem := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	paths := []string{audioPath + ".txt"}
	if stem != audioPath {
		paths = append(paths, stem+".txt")
	}
	return paths
}

func readSidecar(audioPath string) (string, error) {
	for _, p := range SidecarPaths(audioPath) {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("reading transcript %s: %w", p, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("%s: %w", filepath.Base(audioPath), ErrNoTranscript)
}
