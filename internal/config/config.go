package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kvstress/internal/corpus"
	"kvstress/internal/logger"
	"kvstress/internal/scenario"
	"kvstress/internal/store"
)

// 合成 corpus のデフォルト
const (
	DefaultCorpusLines   = 1000
	DefaultCorpusLineLen = 100
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Corpus   CorpusConfig   `yaml:"corpus" json:"corpus"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// ScenarioConfig はシナリオ設定。0 や空文字はデフォルト（またはプリセット）の値を使う。
type ScenarioConfig struct {
	Preset      string `yaml:"preset" json:"preset" validate:"omitempty,valid_preset"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	KeyCount   int `yaml:"key_count" json:"key_count" validate:"gte=0"`
	HitPercent int `yaml:"hit_percent" json:"hit_percent" validate:"gte=0,lte=100"`

	Readers        int    `yaml:"readers" json:"readers" validate:"gte=0"`
	Writers        int    `yaml:"writers" json:"writers" validate:"gte=0"`
	Duration       string `yaml:"duration" json:"duration" validate:"valid_duration"`
	WriteMode      string `yaml:"write_mode" json:"write_mode" validate:"omitempty,valid_write_mode"`
	Seed           int64  `yaml:"seed" json:"seed"`
	ValidateBudget string `yaml:"validate_budget" json:"validate_budget" validate:"valid_duration"`
	Heartbeat      string `yaml:"heartbeat" json:"heartbeat" validate:"valid_duration"`
	LatencyReport  string `yaml:"latency_report" json:"latency_report" validate:"omitempty,oneof=merged first"`
	WholeTicksOnly bool   `yaml:"whole_ticks_only" json:"whole_ticks_only"`
}

// StoreConfig はストア設定
type StoreConfig struct {
	Backend     string   `yaml:"backend" json:"backend" validate:"omitempty,valid_backend"`
	Addr        string   `yaml:"addr" json:"addr" validate:"omitempty,valid_endpoint"`
	Endpoints   []string `yaml:"endpoints" json:"endpoints" validate:"omitempty,dive,valid_endpoint"`
	DialTimeout string   `yaml:"dial_timeout" json:"dial_timeout" validate:"valid_duration"`
	Prefix      string   `yaml:"prefix" json:"prefix"`
}

// CorpusConfig は seed 行の設定。Path が空なら合成する。
type CorpusConfig struct {
	Path       string `yaml:"path" json:"path"`
	Lines      int    `yaml:"lines" json:"lines" validate:"gte=0"`
	LineLength int    `yaml:"line_length" json:"line_length" validate:"gte=0"`
	Seed       int64  `yaml:"seed" json:"seed"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// ServerConfig は API サーバー設定
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// カスタムバリデーションのタグ
const (
	backendTag   = "valid_backend"
	writeModeTag = "valid_write_mode"
	presetTag    = "valid_preset"
	durationTag  = "valid_duration"
	endpointTag  = "valid_endpoint"
)

// RegisterCustomValidators はカスタムバリデーションを登録する
func RegisterCustomValidators(v *validator.Validate) error {
	custom := map[string]validator.Func{
		backendTag:   validateBackend,
		writeModeTag: validateWriteMode,
		presetTag:    validatePreset,
		durationTag:  validateDuration,
		endpointTag:  validateEndpoint,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

func validateBackend(fl validator.FieldLevel) bool {
	backend := strings.ToLower(fl.Field().String())
	for _, b := range store.Backends() {
		if backend == b {
			return true
		}
	}
	return false
}

func validateWriteMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case scenario.WriteModeHot, scenario.WriteModeSequential:
		return true
	}
	return false
}

func validatePreset(fl validator.FieldLevel) bool {
	_, ok := scenario.GetPreset(fl.Field().String())
	return ok
}

// validateDuration は空文字か time.ParseDuration で読める非負の値を許す
func validateDuration(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := time.ParseDuration(s)
	return err == nil && d >= 0
}

// validateEndpoint は host:port 形式を確認する。スキームは取り除く。
func validateEndpoint(fl validator.FieldLevel) bool {
	endpoint := fl.Field().String()
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	host, port, err := net.SplitHostPort(endpoint)
	if err != nil || host == "" {
		return false
	}
	portNum, err := strconv.Atoi(port)
	return err == nil && portNum >= 1 && portNum <= 65535
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	v := validator.New()
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(f); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する。
// preset が指定されていればそれを土台にする。
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	sc := f.Scenario

	config := scenario.DefaultConfig()
	if sc.Preset != "" {
		p, ok := scenario.GetPreset(sc.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", sc.Preset)
		}
		config = p
	}

	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	if sc.KeyCount > 0 {
		config.KeyCount = sc.KeyCount
	}
	if sc.HitPercent > 0 {
		config.HitPercent = sc.HitPercent
	}
	if sc.Readers > 0 {
		config.Readers = sc.Readers
	}
	if sc.Writers > 0 {
		config.Writers = sc.Writers
	}
	if sc.WriteMode != "" {
		config.WriteMode = sc.WriteMode
	}
	if sc.Seed != 0 {
		config.Seed = sc.Seed
	}
	if sc.LatencyReport != "" {
		config.LatencyReport = sc.LatencyReport
	}
	if sc.WholeTicksOnly {
		config.WholeTicksOnly = true
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"duration", sc.Duration, &config.TotalDuration},
		{"validate_budget", sc.ValidateBudget, &config.ValidateBudget},
		{"heartbeat", sc.Heartbeat, &config.HeartbeatInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return config, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return config, nil
}

// ToStoreConfig はFileConfigをstore.Configに変換する
func (f *FileConfig) ToStoreConfig() (store.Config, error) {
	sc := f.Store
	config := store.DefaultConfig()

	if sc.Backend != "" {
		config.Backend = strings.ToLower(sc.Backend)
	}
	if sc.Addr != "" {
		config.Addr = sc.Addr
	}
	if len(sc.Endpoints) > 0 {
		config.Endpoints = sc.Endpoints
	}
	if sc.DialTimeout != "" {
		d, err := time.ParseDuration(sc.DialTimeout)
		if err != nil {
			return config, fmt.Errorf("invalid dial_timeout: %w", err)
		}
		config.DialTimeout = d
	}
	config.Prefix = sc.Prefix

	return config, nil
}

// LoadCorpus は seed 行を読み込む。パスがなければ合成する。
func (c CorpusConfig) LoadCorpus() (*corpus.Corpus, error) {
	if c.Path != "" {
		return corpus.Load(c.Path)
	}
	lines := c.Lines
	if lines <= 0 {
		lines = DefaultCorpusLines
	}
	lineLen := c.LineLength
	if lineLen <= 0 {
		lineLen = DefaultCorpusLineLen
	}
	return corpus.Synthetic(lines, lineLen, c.Seed)
}

// LogLevel はログレベルを返す
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}
