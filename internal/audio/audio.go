// Package audio reads the metadata the pipeline needs from recordings.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// ErrUnsupportedFormat is returned for files this package cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Extensions accepted for upload. Only WAV headers are decoded; other
// formats are stored and transcribed but report no duration.
var Extensions = []string{".wav", ".mp3", ".ogg", ".m4a", ".flac", ".webm"}

// Info describes a decoded recording.
type Info struct {
	SampleRate  int           `json:"sample_rate"`
	NumChannels int           `json:"channels"`
	BitDepth    int           `json:"bit_depth"`
	Duration    time.Duration `json:"duration"`
}

// Seconds returns the duration as fractional seconds.
func (i Info) Seconds() float64 {
	return i.Duration.Seconds()
}

// Accepted reports whether the file name has a known audio extension.
func Accepted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Probe reads the header of a WAV file.
func Probe(path string) (Info, error) {
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		return Info{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}

	file, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return Info{}, errors.New("invalid WAV file format")
	}

	if decoder.NumChans == 0 || decoder.SampleRate == 0 {
		return Info{}, fmt.Errorf("invalid WAV header: %d channels at %d Hz", decoder.NumChans, decoder.SampleRate)
	}

	duration, err := decoder.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("reading WAV duration: %w", err)
	}

	return Info{
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
		Duration:    duration,
	}, nil
}
