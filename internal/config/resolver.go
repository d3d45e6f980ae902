package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Int parses the value, returning def when it is empty.
func (v ResolvedValue) Int(def int) (int, error) {
	if strings.TrimSpace(v.Value) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return def, fmt.Errorf("%s (from %s): %w", v.Value, v.origin(), err)
	}
	return n, nil
}

// Float parses the value, returning def when it is empty.
func (v ResolvedValue) Float(def float64) (float64, error) {
	if strings.TrimSpace(v.Value) == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return def, fmt.Errorf("%s (from %s): %w", v.Value, v.origin(), err)
	}
	return f, nil
}

// List splits a comma-separated value, dropping empty items.
func (v ResolvedValue) List() []string {
	var out []string
	for _, item := range strings.Split(v.Value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (v ResolvedValue) origin() string {
	if v.From != "" {
		return v.From
	}
	return string(v.Source)
}

type ResolveOptions struct {
	ConfigPath  string
	CLIDBPath   string
	CLILexicon  string
	CLILogLevel string
	CLIAddr     string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath      ResolvedValue `json:"db_path"`
	LexiconPath ResolvedValue `json:"lexicon_path"`
	UploadDir   ResolvedValue `json:"upload_dir"`

	LogLevel  ResolvedValue `json:"log_level"`
	LogFormat ResolvedValue `json:"log_format"`
	LogFile   ResolvedValue `json:"log_file"`

	BodyMarkerRadius    ResolvedValue `json:"body_marker_radius"`
	FeedingJoinDistance ResolvedValue `json:"feeding_join_distance"`
	FuzzyThreshold      ResolvedValue `json:"fuzzy_threshold"`
	DisabledKinds       ResolvedValue `json:"disabled_kinds"`

	AnnotatorModel     ResolvedValue `json:"annotator_model"`
	AnnotatorTokenizer ResolvedValue `json:"annotator_tokenizer"`
	AnnotatorRuntime   ResolvedValue `json:"annotator_runtime"`
	AnnotatorLabels    ResolvedValue `json:"annotator_labels"`

	ServerAddr ResolvedValue `json:"server_addr"`
	JobWorkers ResolvedValue `json:"job_workers"`
}

type fileConfig struct {
	DBPath      string `yaml:"db_path"`
	LexiconPath string `yaml:"lexicon_path"`
	UploadDir   string `yaml:"upload_dir"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	Engine struct {
		BodyMarkerRadius    *int     `yaml:"body_marker_radius"`
		FeedingJoinDistance *int     `yaml:"feeding_join_distance"`
		FuzzyThreshold      *float64 `yaml:"fuzzy_threshold"`
		DisabledKinds       []string `yaml:"disabled_kinds"`
	} `yaml:"engine"`
	Annotator struct {
		ModelPath     string   `yaml:"model_path"`
		TokenizerPath string   `yaml:"tokenizer_path"`
		RuntimePath   string   `yaml:"runtime_path"`
		Labels        []string `yaml:"labels"`
	} `yaml:"annotator"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Jobs struct {
		Workers *int `yaml:"workers"`
	} `yaml:"jobs"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".zoonotes", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}
	applyDefaults(&out)

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LexiconPath, cfg.LexiconPath, SourceConfig, path)
		apply(&out.UploadDir, cfg.UploadDir, SourceConfig, path)
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.LogFormat, cfg.Log.Format, SourceConfig, path)
		apply(&out.LogFile, cfg.Log.File, SourceConfig, path)
		applyInt(&out.BodyMarkerRadius, cfg.Engine.BodyMarkerRadius, path)
		applyInt(&out.FeedingJoinDistance, cfg.Engine.FeedingJoinDistance, path)
		if cfg.Engine.FuzzyThreshold != nil {
			apply(&out.FuzzyThreshold, strconv.FormatFloat(*cfg.Engine.FuzzyThreshold, 'f', -1, 64), SourceConfig, path)
		}
		apply(&out.DisabledKinds, strings.Join(cfg.Engine.DisabledKinds, ","), SourceConfig, path)
		apply(&out.AnnotatorModel, cfg.Annotator.ModelPath, SourceConfig, path)
		apply(&out.AnnotatorTokenizer, cfg.Annotator.TokenizerPath, SourceConfig, path)
		apply(&out.AnnotatorRuntime, cfg.Annotator.RuntimePath, SourceConfig, path)
		apply(&out.AnnotatorLabels, strings.Join(cfg.Annotator.Labels, ","), SourceConfig, path)
		apply(&out.ServerAddr, cfg.Server.Addr, SourceConfig, path)
		applyInt(&out.JobWorkers, cfg.Jobs.Workers, path)
	}

	applyEnv(&out.DBPath, "ZOONOTES_DB")
	applyEnv(&out.DBPath, "ZOONOTES_DB_PATH")
	applyEnv(&out.LexiconPath, "ZOONOTES_LEXICON")
	applyEnv(&out.UploadDir, "ZOONOTES_UPLOAD_DIR")
	applyEnv(&out.LogLevel, "ZOONOTES_LOG_LEVEL")
	applyEnv(&out.LogFormat, "ZOONOTES_LOG_FORMAT")
	applyEnv(&out.LogFile, "ZOONOTES_LOG_FILE")
	applyEnv(&out.BodyMarkerRadius, "ZOONOTES_BODY_MARKER_RADIUS")
	applyEnv(&out.FeedingJoinDistance, "ZOONOTES_FEEDING_JOIN_DISTANCE")
	applyEnv(&out.FuzzyThreshold, "ZOONOTES_FUZZY_THRESHOLD")
	applyEnv(&out.DisabledKinds, "ZOONOTES_DISABLED_KINDS")
	applyEnv(&out.AnnotatorModel, "ZOONOTES_ANNOTATOR_MODEL")
	applyEnv(&out.AnnotatorTokenizer, "ZOONOTES_ANNOTATOR_TOKENIZER")
	applyEnv(&out.AnnotatorRuntime, "ONNXRUNTIME_SHARED_LIBRARY_PATH")
	applyEnv(&out.AnnotatorRuntime, "ZOONOTES_ONNXRUNTIME_LIB")
	applyEnv(&out.AnnotatorLabels, "ZOONOTES_ANNOTATOR_LABELS")
	applyEnv(&out.ServerAddr, "ZOONOTES_ADDR")
	applyEnv(&out.JobWorkers, "ZOONOTES_JOB_WORKERS")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.LexiconPath, opts.CLILexicon, SourceCLI, "--lexicon")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")
	apply(&out.ServerAddr, opts.CLIAddr, SourceCLI, "--addr")

	for _, p := range []*ResolvedValue{
		&out.DBPath, &out.LexiconPath, &out.UploadDir, &out.LogFile,
		&out.AnnotatorModel, &out.AnnotatorTokenizer, &out.AnnotatorRuntime,
	} {
		if p.Value != "" {
			p.Value = expandUserPath(p.Value)
		}
	}

	return out, nil
}

// Validate checks that every numeric setting parses and is in range.
func (r ResolvedConfig) Validate() error {
	if n, err := r.BodyMarkerRadius.Int(0); err != nil || n < 0 {
		return fmt.Errorf("body_marker_radius must be a non-negative integer: %q", r.BodyMarkerRadius.Value)
	}
	if n, err := r.FeedingJoinDistance.Int(0); err != nil || n < 0 {
		return fmt.Errorf("feeding_join_distance must be a non-negative integer: %q", r.FeedingJoinDistance.Value)
	}
	if f, err := r.FuzzyThreshold.Float(0); err != nil || f < 0 || f > 1 {
		return fmt.Errorf("fuzzy_threshold must be between 0 and 1: %q", r.FuzzyThreshold.Value)
	}
	if n, err := r.JobWorkers.Int(1); err != nil || n < 1 {
		return fmt.Errorf("jobs.workers must be a positive integer: %q", r.JobWorkers.Value)
	}
	return nil
}

// AnnotatorEnabled reports whether both model and tokenizer are configured.
func (r ResolvedConfig) AnnotatorEnabled() bool {
	return r.AnnotatorModel.Value != "" && r.AnnotatorTokenizer.Value != ""
}

func applyDefaults(out *ResolvedConfig) {
	def := func(dst *ResolvedValue, v string) {
		*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
	}
	def(&out.DBPath, "~/.zoonotes/zoonotes.db")
	def(&out.UploadDir, "~/.zoonotes/uploads")
	def(&out.LogLevel, "info")
	def(&out.LogFormat, "text")
	def(&out.BodyMarkerRadius, "10")
	def(&out.FeedingJoinDistance, "20")
	def(&out.FuzzyThreshold, "0")
	def(&out.ServerAddr, ":8080")
	def(&out.JobWorkers, "2")
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyInt(dst *ResolvedValue, v *int, from string) {
	if v == nil {
		return
	}
	*dst = ResolvedValue{Value: strconv.Itoa(*v), Source: SourceConfig, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
