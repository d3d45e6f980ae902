package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes seconds of silence as 16-bit mono PCM.
func writeWAV(t *testing.T, path string, sampleRate int, seconds float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           make([]int, int(float64(sampleRate)*seconds)),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestProbe_WAVDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lion.wav")
	writeWAV(t, path, 16000, 2.5)

	info, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 1, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)
	assert.InDelta(t, 2.5, info.Seconds(), 0.01)
	assert.InDelta(t, float64(2500*time.Millisecond), float64(info.Duration), float64(10*time.Millisecond))
}

func TestProbe_NotWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o644))

	_, err := Probe(path)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestProbe_CorruptWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a riff file at all"), 0o644))

	_, err := Probe(path)
	assert.Error(t, err)
}

func TestProbe_Missing(t *testing.T) {
	_, err := Probe(filepath.Join(t.TempDir(), "missing.wav"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAccepted(t *testing.T) {
	tests := map[string]bool{
		"a.wav":     true,
		"B.WAV":     true,
		"c.mp3":     true,
		"d.txt":     false,
		"noext":     false,
		"e.wav.txt": false,
	}
	for name, want := range tests {
		assert.Equal(t, want, Accepted(name), name)
	}
}
