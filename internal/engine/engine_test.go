package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/zoonotes/internal/annotate"
	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/lexicon"
	"github.com/hurttlocker/zoonotes/internal/record"
	"github.com/hurttlocker/zoonotes/internal/synth"
)

const pythonTranscript = "Питон Змей Горыныч. Длина 4 метра 30 сантиметров. Вес 42 килограмма. Температура 28 градусов."

// nameAnnotator tags the first occurrence of name as a person.
func nameAnnotator(name string) annotate.Annotator {
	return annotate.Func(func(_ context.Context, text string) ([]entity.Entity, error) {
		i := strings.Index(text, name)
		if i < 0 {
			return nil, nil
		}
		start := len([]rune(text[:i]))
		return []entity.Entity{{
			Text:  name,
			Kind:  entity.Person,
			Start: start,
			End:   start + len([]rune(name)),
		}}, nil
	})
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func TestProcess_EndToEnd(t *testing.T) {
	e := newTestEngine(t, WithAnnotator(nameAnnotator("Змей Горыныч")))
	res, err := e.Process(context.Background(), Input{Transcript: pythonTranscript, AudioDurationSeconds: 6.5})
	require.NoError(t, err)

	d := res.Draft
	require.NotNil(t, d.Name)
	assert.Equal(t, "Змей Горыныч", *d.Name)
	require.NotNil(t, d.Species)
	assert.Equal(t, "Питон", *d.Species)
	assert.Equal(t, 42.0, *d.Measurements.Weight)
	assert.Equal(t, 4.0, *d.Measurements.Length)
	require.NotNil(t, d.Environment.Temperature)
	assert.Equal(t, 28.0, *d.Environment.Temperature)
	assert.Nil(t, d.Measurements.Temperature)
	assert.True(t, entity.IsSorted(d.Entities))

	assert.Equal(t, record.Animal{Name: "Змей Горыныч", Species: "Питон"}, res.Records.Animal)
	require.NotNil(t, res.Records.Measurement)
	assert.Nil(t, res.Records.Measurement.Temperature)
	assert.Nil(t, res.Records.Feeding)
	assert.Equal(t, 6.5, res.AudioDurationSeconds)
	assert.Empty(t, res.Failures)
}

func TestProcess_ShortStemCollisions(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Process(context.Background(), Input{Transcript: "Травма левой лапы, животное хромает."})
	require.NoError(t, err)
	assert.Nil(t, res.Draft.Species)
	assert.Equal(t, record.Animal{Name: record.Unknown, Species: record.Unknown}, res.Records.Animal)

	res, err = e.Process(context.Background(), Input{Transcript: "Утром дали корм, 3 кг."})
	require.NoError(t, err)
	assert.Nil(t, res.Draft.Behavior)
}

func TestProcess_EndToEndBodyMarker(t *testing.T) {
	text := strings.Replace(pythonTranscript, "Температура 28", "Температура тела 28", 1)
	e := newTestEngine(t)
	res, err := e.Process(context.Background(), Input{Transcript: text})
	require.NoError(t, err)

	require.NotNil(t, res.Draft.Measurements.Temperature)
	assert.Equal(t, 28.0, *res.Draft.Measurements.Temperature)
	assert.Nil(t, res.Draft.Environment.Temperature)
	assert.Equal(t, 28.0, *res.Records.Measurement.Temperature)
	assert.Nil(t, res.Records.Observation.Temperature)
}

func TestProcess_TemperatureRouting(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Process(context.Background(), Input{Transcript: "Температура тела 35 градусов"})
	require.NoError(t, err)
	assert.Equal(t, 35.0, *res.Draft.Measurements.Temperature)
	assert.Nil(t, res.Draft.Environment.Temperature)

	res, err = e.Process(context.Background(), Input{Transcript: "Температура воздуха 22 градуса"})
	require.NoError(t, err)
	assert.Equal(t, 22.0, *res.Draft.Environment.Temperature)
	assert.Nil(t, res.Draft.Measurements.Temperature)
}

func TestProcess_DecimalComma(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Process(context.Background(), Input{Transcript: "Игуана весит 2,5 килограмма"})
	require.NoError(t, err)
	assert.Equal(t, 2.5, *res.Draft.Measurements.Weight)
}

func TestProcess_FeedingJoin(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Process(context.Background(), Input{
		Transcript: "Слон ест сено 30 кг. Вес слона 4000 кг.",
	})
	require.NoError(t, err)

	assert.Equal(t, "сено", *res.Draft.Feeding.FoodType)
	assert.Equal(t, 30.0, *res.Draft.Feeding.Quantity)
	assert.Equal(t, 30.0, *res.Draft.Measurements.Weight)
	require.NotNil(t, res.Records.Feeding)
	assert.Equal(t, 30.0, *res.Records.Feeding.Quantity)
}

func TestProcess_Empty(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Process(context.Background(), Input{})
	require.NoError(t, err)
	assert.Nil(t, res.Draft.Name)
	assert.Empty(t, res.Draft.Entities)
	assert.Equal(t, record.Unknown, res.Records.Animal.Name)
	assert.Nil(t, res.Records.Measurement)
}

func TestProcess_MalformedInput(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Process(context.Background(), Input{Transcript: "Вес \xff кг"})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = e.Extract(context.Background(), "\xfe")
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestProcess_AnnotatorFailureDegrades(t *testing.T) {
	broken := annotate.Func(func(context.Context, string) ([]entity.Entity, error) {
		return nil, errors.New("onnxruntime: session closed")
	})
	e := newTestEngine(t, WithAnnotator(broken))
	res, err := e.Process(context.Background(), Input{Transcript: pythonTranscript})
	require.NoError(t, err)

	assert.Equal(t, []string{"statistical"}, res.FailedExtractors())
	assert.Nil(t, res.Draft.Name)
	assert.Equal(t, 42.0, *res.Draft.Measurements.Weight)
}

func TestProcess_Idempotent(t *testing.T) {
	e := newTestEngine(t, WithAnnotator(nameAnnotator("Змей Горыныч")))
	in := Input{Transcript: pythonTranscript}

	first, err := e.Process(context.Background(), in)
	require.NoError(t, err)
	second, err := e.Process(context.Background(), in)
	require.NoError(t, err)

	a, err := json.Marshal(first.Draft)
	require.NoError(t, err)
	b, err := json.Marshal(second.Draft)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestProcess_ConcurrentCallersShareEngine(t *testing.T) {
	e := newTestEngine(t, WithAnnotator(nameAnnotator("Змей Горыныч")))
	want, err := e.Process(context.Background(), Input{Transcript: pythonTranscript})
	require.NoError(t, err)
	wantJSON, _ := json.Marshal(want.Draft)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Process(context.Background(), Input{Transcript: pythonTranscript})
			if err != nil {
				errs <- err.Error()
				return
			}
			got, _ := json.Marshal(res.Draft)
			if string(got) != string(wantJSON) {
				errs <- string(got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Errorf("concurrent result differs: %s", msg)
	}
}

func TestProcess_SequentialMatchesParallel(t *testing.T) {
	par := newTestEngine(t)
	seq := newTestEngine(t, WithSequentialExtraction())
	for _, text := range []string{pythonTranscript, "Тигрица спит, 12.03.2024 в 14:30 ела мясо 3 кг"} {
		a, err := par.Process(context.Background(), Input{Transcript: text})
		require.NoError(t, err)
		b, err := seq.Process(context.Background(), Input{Transcript: text})
		require.NoError(t, err)
		assert.Equal(t, a.Draft, b.Draft)
	}
}

func TestWithDisabledKinds_DerivedEngine(t *testing.T) {
	base := newTestEngine(t)
	derived := base.WithDisabledKinds(entity.Weight)

	res, err := derived.Process(context.Background(), Input{Transcript: pythonTranscript})
	require.NoError(t, err)
	assert.Nil(t, res.Draft.Measurements.Weight)
	assert.NotEmpty(t, res.Draft.Entities)

	res, err = base.Process(context.Background(), Input{Transcript: pythonTranscript})
	require.NoError(t, err)
	assert.Equal(t, 42.0, *res.Draft.Measurements.Weight)
	assert.Empty(t, base.DisabledKinds())
	assert.Equal(t, []entity.Kind{entity.Weight}, derived.DisabledKinds())
}

func TestNew_Options(t *testing.T) {
	_, err := New(WithFuzzyThreshold(1.5))
	assert.Error(t, err)

	_, err = New(WithDisabledKinds(entity.Kind("mood")))
	assert.Error(t, err)

	opts := synth.DefaultOptions()
	opts.FeedingJoinDistance = -1
	_, err = New(WithSynthOptions(opts))
	assert.Error(t, err)

	tables := lexicon.Default()
	tables.Species = append(tables.Species, "капибара")
	e := newTestEngine(t, WithLexicon(tables), WithFuzzyThreshold(0.9))
	res, err := e.Process(context.Background(), Input{Transcript: "Капибара купается"})
	require.NoError(t, err)
	assert.Equal(t, "Капибара", *res.Draft.Species)
	assert.Equal(t, "купается", *res.Draft.Behavior)
}

func TestNew_SynthOptionsInheritBodyMarkers(t *testing.T) {
	e := newTestEngine(t, WithSynthOptions(synth.Options{BodyMarkerRadius: 10, FeedingJoinDistance: 20}))
	res, err := e.Process(context.Background(), Input{Transcript: "Температура тела 35 градусов"})
	require.NoError(t, err)
	assert.Equal(t, 35.0, *res.Draft.Measurements.Temperature)
}
