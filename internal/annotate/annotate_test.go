package annotate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/zoonotes/internal/entity"
)

func TestKindForTag(t *testing.T) {
	tests := []struct {
		tag  string
		want entity.Kind
		ok   bool
	}{
		{"PER", entity.Person, true},
		{"person", entity.Person, true},
		{"LOC", entity.Location, true},
		{"GPE", entity.Location, true},
		{"ORG", entity.Organization, true},
		{"MISC", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := KindForTag(tt.tag)
		assert.Equal(t, tt.ok, ok, tt.tag)
		assert.Equal(t, tt.want, got, tt.tag)
	}
}

func TestDecodeBIO_MultiwordName(t *testing.T) {
	text := "Питон Змей Горыныч спит"
	labels := []TokenLabel{
		{Label: "O", Start: 0, End: 5},
		{Label: "B-PER", Start: 6, End: 10},
		{Label: "I-PER", Start: 11, End: 18},
		{Label: "O", Start: 19, End: 23},
	}
	got := DecodeBIO(text, labels)
	require.Len(t, got, 1)
	assert.Equal(t, entity.Entity{Text: "Змей Горыныч", Kind: entity.Person, Start: 6, End: 18}, got[0])
}

func TestDecodeBIO_SubwordPiecesJoin(t *testing.T) {
	text := "Вольер Москвариума"
	labels := []TokenLabel{
		{Label: "O", Start: 0, End: 6},
		{Label: "B-ORG", Start: 7, End: 12},
		// A glued subword mislabelled B- still extends the word.
		{Label: "B-ORG", Start: 12, End: 18},
	}
	got := DecodeBIO(text, labels)
	require.Len(t, got, 1)
	assert.Equal(t, "Москвариума", got[0].Text)
	assert.Equal(t, entity.Organization, got[0].Kind)
}

func TestDecodeBIO_BoundaryCases(t *testing.T) {
	text := "Маша и Петя в Москве"
	labels := []TokenLabel{
		{Label: "B-PER", Start: 0, End: 4},
		{Label: "O", Start: 5, End: 6},
		{Label: "I-PER", Start: 7, End: 11}, // I- without open span starts one
		{Label: "O", Start: 12, End: 13},
		{Label: "LOC", Start: 14, End: 20}, // bare tag
		{Label: "B-PER", Start: 30, End: 40}, // out of range, skipped
		{Label: "B-MISC", Start: 0, End: 4},  // unknown tag, treated as O
	}
	got := DecodeBIO(text, labels)
	require.Len(t, got, 3)
	assert.Equal(t, "Маша", got[0].Text)
	assert.Equal(t, "Петя", got[1].Text)
	assert.Equal(t, entity.Location, got[2].Kind)
	assert.Equal(t, "Москве", got[2].Text)
	for _, e := range got {
		assert.NoError(t, entity.Validate(e, len([]rune(text))))
	}
}

func TestDecodeBIO_KindChangeSplits(t *testing.T) {
	text := "Иван Зоопарк"
	got := DecodeBIO(text, []TokenLabel{
		{Label: "B-PER", Start: 0, End: 4},
		{Label: "I-ORG", Start: 5, End: 12},
	})
	require.Len(t, got, 2)
	assert.Equal(t, entity.Person, got[0].Kind)
	assert.Equal(t, entity.Organization, got[1].Kind)
}

func TestFuncAndNop(t *testing.T) {
	want := []entity.Entity{{Text: "Маша", Kind: entity.Person, Start: 0, End: 4}}
	f := Func(func(_ context.Context, text string) ([]entity.Entity, error) {
		return want, nil
	})
	got, err := f.Annotate(context.Background(), "Маша")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = Nop{}.Annotate(context.Background(), "Маша")
	require.NoError(t, err)
	assert.Empty(t, got)

	boom := errors.New("model unavailable")
	_, err = Func(func(context.Context, string) ([]entity.Entity, error) { return nil, boom }).
		Annotate(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestONNXConfigValidate(t *testing.T) {
	assert.Error(t, ONNXConfig{}.Validate())
	assert.Error(t, ONNXConfig{ModelPath: "ner.onnx"}.Validate())
	assert.Error(t, ONNXConfig{ModelPath: "ner.onnx", TokenizerPath: "tokenizer.json", MaxTokens: -1}.Validate())
	assert.NoError(t, ONNXConfig{ModelPath: "ner.onnx", TokenizerPath: "tokenizer.json"}.Validate())

	_, err := NewONNX(ONNXConfig{TokenizerPath: "tokenizer.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model path")
}

func TestWindows(t *testing.T) {
	assert.Nil(t, windows(0, 4, 1))
	assert.Equal(t, []window{{start: 0, end: 3, ownFrom: 0, ownTo: 3}}, windows(3, 4, 1))

	assert.Equal(t, []window{
		{start: 0, end: 4, ownFrom: 0, ownTo: 3},
		{start: 2, end: 6, ownFrom: 3, ownTo: 5},
		{start: 4, end: 8, ownFrom: 5, ownTo: 7},
		{start: 6, end: 10, ownFrom: 7, ownTo: 10},
	}, windows(10, 4, 2))

	// The last window is pulled back to end at n instead of running short.
	assert.Equal(t, []window{
		{start: 0, end: 4, ownFrom: 0, ownTo: 2},
		{start: 1, end: 5, ownFrom: 2, ownTo: 5},
	}, windows(5, 4, 0))
}

func TestWindows_CoverEveryTokenOnce(t *testing.T) {
	for _, tc := range []struct{ n, size, overlap int }{
		{1300, 512, 128}, {513, 512, 128}, {1024, 512, 0}, {700, 512, 600},
	} {
		ws := windows(tc.n, tc.size, tc.overlap)
		require.NotEmpty(t, ws)
		next := 0
		for _, w := range ws {
			assert.LessOrEqual(t, w.end-w.start, tc.size)
			assert.Equal(t, next, w.ownFrom, "n=%d", tc.n)
			assert.GreaterOrEqual(t, w.ownFrom, w.start)
			assert.LessOrEqual(t, w.ownTo, w.end)
			assert.Less(t, w.ownFrom, w.ownTo)
			next = w.ownTo
		}
		assert.Equal(t, tc.n, next)
	}
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, argmax([]float32{0.1, 0.2, 0.9, 0.3}))
	assert.Equal(t, 0, argmax([]float32{1, 1}))
}
