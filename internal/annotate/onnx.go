package annotate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// DefaultLabels is the label order of the common Russian BERT NER exports
// (Slavic BERT / rubert-tiny NER heads).
var DefaultLabels = []string{"O", "B-PER", "I-PER", "B-LOC", "I-LOC", "B-ORG", "I-ORG"}

// DefaultMaxTokens caps one inference window. Longer inputs are annotated in
// overlapping windows of this size.
const DefaultMaxTokens = 512

// ONNXConfig configures a token-classification model served by ONNX Runtime.
type ONNXConfig struct {
	ModelPath     string   // .onnx token-classification export
	TokenizerPath string   // HuggingFace tokenizer.json
	RuntimePath   string   // onnxruntime shared library; empty uses the library default
	Labels        []string // id -> label; defaults to DefaultLabels
	InputNames    []string // defaults to input_ids, attention_mask
	OutputName    string   // defaults to logits
	MaxTokens     int      // defaults to DefaultMaxTokens
	Logger        *slog.Logger
}

// Validate checks that the config is complete enough to load a model.
func (c ONNXConfig) Validate() error {
	if strings.TrimSpace(c.ModelPath) == "" {
		return errors.New("model path is required")
	}
	if strings.TrimSpace(c.TokenizerPath) == "" {
		return errors.New("tokenizer path is required")
	}
	if c.MaxTokens < 0 {
		return errors.New("max tokens cannot be negative")
	}
	return nil
}

// ONNXAnnotator runs a BERT-style NER model in-process.
type ONNXAnnotator struct {
	tk        *tokenizer.Tokenizer
	session   *ort.DynamicAdvancedSession
	labels    []string
	maxTokens int
	logger    *slog.Logger

	// mu serializes inference; the tokenizer keeps internal scratch state.
	mu sync.Mutex
}

var (
	envOnce sync.Once
	envErr  error
)

func initEnvironment(runtimePath string) error {
	envOnce.Do(func() {
		if runtimePath != "" {
			ort.SetSharedLibraryPath(runtimePath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	return envErr
}

// NewONNX loads the tokenizer and model described by cfg.
func NewONNX(cfg ONNXConfig) (*ONNXAnnotator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid annotator config: %w", err)
	}
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	inputs := cfg.InputNames
	if len(inputs) == 0 {
		inputs = []string{"input_ids", "attention_mask"}
	}
	output := cfg.OutputName
	if output == "" {
		output = "logits"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", cfg.TokenizerPath, err)
	}
	if err := initEnvironment(cfg.RuntimePath); err != nil {
		return nil, fmt.Errorf("initializing onnxruntime: %w", err)
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs, []string{output}, nil)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", cfg.ModelPath, err)
	}

	return &ONNXAnnotator{
		tk:        tk,
		session:   session,
		labels:    labels,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

// Annotate implements Annotator.
func (a *ONNXAnnotator) Annotate(ctx context.Context, text string) ([]entity.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	enc, err := a.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenizing: %w", err)
	}
	n := len(enc.Ids)
	if n == 0 {
		return nil, nil
	}

	ids := make([]int64, n)
	mask := make([]int64, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(enc.Ids[i])
		mask[i] = 1
		if i < len(enc.AttentionMask) {
			mask[i] = int64(enc.AttentionMask[i])
		}
	}

	spans := windows(n, a.maxTokens, a.maxTokens/4)
	if len(spans) > 1 {
		a.logger.Debug("annotating in windows", "tokens", n, "windows", len(spans), "max_tokens", a.maxTokens)
	}
	classes := make([]int, n)
	for _, w := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores, err := a.infer(ids[w.start:w.end], mask[w.start:w.end])
		if err != nil {
			return nil, err
		}
		for i := w.ownFrom; i < w.ownTo; i++ {
			row := (i - w.start) * len(a.labels)
			classes[i] = argmax(scores[row : row+len(a.labels)])
		}
	}

	byteToRune := entity.RuneOffsets(text)
	tokens := make([]TokenLabel, 0, n)
	for i := 0; i < n; i++ {
		if i < len(enc.SpecialTokenMask) && enc.SpecialTokenMask[i] == 1 {
			continue
		}
		if i >= len(enc.Offsets) || len(enc.Offsets[i]) < 2 {
			continue
		}
		start, end := clampOffset(enc.Offsets[i][0], len(text)), clampOffset(enc.Offsets[i][1], len(text))
		tokens = append(tokens, TokenLabel{
			Label: a.labels[classes[i]],
			Start: byteToRune[start],
			End:   byteToRune[end],
		})
	}
	return DecodeBIO(text, tokens), nil
}

// infer runs the model over one window and returns its logits, one row of
// len(a.labels) scores per token.
func (a *ONNXAnnotator) infer(ids, mask []int64) ([]float32, error) {
	n := int64(len(ids))
	shape := ort.NewShape(1, n)
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("building input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("building attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, n, int64(len(a.labels))))
	if err != nil {
		return nil, fmt.Errorf("building logits tensor: %w", err)
	}
	defer logits.Destroy()

	if err := a.session.Run([]ort.Value{idsTensor, maskTensor}, []ort.Value{logits}); err != nil {
		return nil, fmt.Errorf("running model: %w", err)
	}
	// The tensor's memory is released on return.
	return append([]float32(nil), logits.GetData()...), nil
}

// window is one inference span [start, end) of the token sequence. Tokens in
// [ownFrom, ownTo) take their label from this window; an overlap is split at
// its midpoint so each token is labeled with context on both sides.
type window struct {
	start, end     int
	ownFrom, ownTo int
}

// windows splits n tokens into spans of at most size tokens, each sharing
// overlap tokens with the previous one. The last span is aligned to end at n.
func windows(n, size, overlap int) []window {
	if n <= 0 || size <= 0 {
		return nil
	}
	if n <= size {
		return []window{{start: 0, end: n, ownFrom: 0, ownTo: n}}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	stride := size - overlap

	var out []window
	for start := 0; ; start += stride {
		if start+size >= n {
			out = append(out, window{start: n - size, end: n})
			break
		}
		out = append(out, window{start: start, end: start + size})
	}
	out[len(out)-1].ownTo = n
	for k := 0; k+1 < len(out); k++ {
		mid := (out[k+1].start + out[k].end) / 2
		out[k].ownTo = mid
		out[k+1].ownFrom = mid
	}
	return out
}

// Close releases the ONNX session.
func (a *ONNXAnnotator) Close() error {
	if a.session == nil {
		return nil
	}
	return a.session.Destroy()
}

func argmax(row []float32) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}

func clampOffset(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
