package entity

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"species", Species, false},
		{"animal_species", Species, false},
		{" Weight ", Weight, false},
		{"health_status", HealthStatus, false},
		{"mood", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindNumeric(t *testing.T) {
	numeric := map[Kind]bool{Weight: true, Length: true, Temperature: true, Percentage: true, Age: true}
	for _, k := range Kinds() {
		assert.Equal(t, numeric[k], k.Numeric(), "kind %s", k)
	}
	assert.Len(t, Kinds(), 14)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		e       Entity
		textLen int
		wantErr bool
	}{
		{"ok", Entity{Kind: Species, Start: 0, End: 5}, 10, false},
		{"empty span ok", Entity{Kind: Date, Start: 3, End: 3}, 3, false},
		{"numeric with value", Entity{Kind: Weight, Start: 0, End: 4, Value: Float(4)}, 4, false},
		{"negative start", Entity{Kind: Species, Start: -1, End: 2}, 10, true},
		{"inverted", Entity{Kind: Species, Start: 5, End: 2}, 10, true},
		{"past end", Entity{Kind: Species, Start: 5, End: 11}, 10, true},
		{"unknown kind", Entity{Kind: "mood", Start: 0, End: 1}, 10, true},
		{"value on text kind", Entity{Kind: Species, Start: 0, End: 1, Value: Float(1)}, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.e, tt.textLen)
			if tt.wantErr {
				var spanErr *SpanError
				require.ErrorAs(t, err, &spanErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSortByStartIsStable(t *testing.T) {
	in := []Entity{
		{Text: "c", Kind: Weight, Start: 20},
		{Text: "a1", Kind: Person, Start: 5},
		{Text: "b", Kind: Species, Start: 10},
		{Text: "a2", Kind: Species, Start: 5},
		{Text: "a3", Kind: Date, Start: 5},
	}
	SortByStart(in)

	got := make([]string, 0, len(in))
	for _, e := range in {
		got = append(got, e.Text)
	}
	assert.Equal(t, []string{"a1", "a2", "a3", "b", "c"}, got)
}

func TestSortByStartOrderingProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		n := r.Intn(30)
		in := make([]Entity, n)
		for i := range in {
			in[i] = Entity{Kind: Species, Start: r.Intn(15)}
		}
		SortByStart(in)
		require.True(t, IsSorted(in), "round %d", round)
	}
}

func TestEntityJSONShape(t *testing.T) {
	e := Entity{Text: "42 кг", Kind: Weight, Start: 4, End: 9, Value: Float(42)}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"42 кг","type":"weight","start":4,"end":9,"value":42}`, string(data))

	e = Entity{Text: "тигр", Kind: Species, Start: 0, End: 4}
	data, err = json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"тигр","type":"species","start":0,"end":4,"value":null}`, string(data))
}

func TestRuneOffsets(t *testing.T) {
	text := "Лев ест 2 kg"
	idx := RuneOffsets(text)
	require.Len(t, idx, len(text)+1)
	assert.Equal(t, 0, idx[0])
	assert.Equal(t, 0, idx[1], "second byte of Л")
	assert.Equal(t, 3, idx[len("Лев")])
	assert.Equal(t, 8, idx[len("Лев ест ")])
	assert.Equal(t, 12, idx[len(text)])

	assert.Equal(t, []int{0}, RuneOffsets(""))
}
