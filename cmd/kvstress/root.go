package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kvstress/internal/config"
	"kvstress/internal/corpus"
	"kvstress/internal/logger"
	"kvstress/internal/scenario"
	"kvstress/internal/store"
)

// options はコマンドライン共通のフラグ
type options struct {
	configFile  string
	preset      string
	backend     string
	addr        string
	endpoints   []string
	prefix      string
	corpusPath  string
	corpusLines int
	keyCount    int
	hitPercent  int
	readers     int
	writers     int
	duration    time.Duration
	seed        int64
	logLevel    string
}

// setup は設定ファイル・プリセット・フラグを合成した結果
type setup struct {
	scenario   scenario.Config
	store      store.Config
	corpus     config.CorpusConfig
	serverAddr string
}

func newRootCmd(opts *options) *cobra.Command {

	root := &cobra.Command{
		Use:           "kvstress",
		Short:         "Concurrent load and validation harness for key-value stores",
		Long:          "kvstress populates a key-value store from a seed corpus, drives concurrent writers, readers and checkers against it, and validates that every generated key still holds its generated value.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	f.StringVar(&opts.preset, "preset", "", "プリセット名 (quick, standard, read-heavy, write-heavy, soak)")
	f.StringVar(&opts.backend, "backend", store.BackendMemory, "ストア (memory, redis, etcd)")
	f.StringVar(&opts.addr, "addr", "", "redis アドレス (例: localhost:6379)")
	f.StringSliceVar(&opts.endpoints, "endpoints", nil, "etcd エンドポイント")
	f.StringVar(&opts.prefix, "prefix", "", "キーのプレフィックス")
	f.StringVar(&opts.corpusPath, "corpus", "", "seed 行ファイル (.gz/.zst 可)")
	f.IntVar(&opts.corpusLines, "corpus-lines", 0, "合成 seed 行の数")
	f.IntVar(&opts.keyCount, "key-count", 0, "キー数")
	f.IntVar(&opts.hitPercent, "hit-percent", 0, "ホットキーの割合 (0-100)")
	f.IntVar(&opts.readers, "readers", 0, "Reader 数")
	f.IntVar(&opts.writers, "writers", 0, "Writer 数")
	f.DurationVar(&opts.duration, "duration", 0, "eval フェーズ全体の時間 (例: 30s, 5m)")
	f.Int64Var(&opts.seed, "seed", 0, "乱数シード")
	f.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(opts),
		newPopulateCmd(opts),
		newValidateCmd(opts),
		newEvalCmd(opts),
		newServeCmd(opts),
		newPresetsCmd(),
		newVersionCmd(),
	)
	return root
}

// resolve は設定ファイル、プリセット、フラグの順に設定を重ねる。
// フラグは明示的に指定された場合のみ上書きする。
func (o *options) resolve(cmd *cobra.Command) (*setup, error) {
	fc := &config.FileConfig{}
	if o.configFile != "" {
		loaded, err := config.LoadFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		fc = loaded
	}

	flags := cmd.Flags()
	changed := flags.Changed

	if changed("preset") {
		fc.Scenario.Preset = o.preset
	}
	if changed("log-level") {
		fc.Log.Level = o.logLevel
	}
	if changed("backend") {
		fc.Store.Backend = o.backend
	}
	if changed("addr") {
		fc.Store.Addr = o.addr
	}
	if changed("endpoints") {
		fc.Store.Endpoints = o.endpoints
	}
	if changed("prefix") {
		fc.Store.Prefix = o.prefix
	}
	if changed("corpus") {
		fc.Corpus.Path = o.corpusPath
	}
	if changed("corpus-lines") {
		fc.Corpus.Lines = o.corpusLines
	}
	if changed("key-count") {
		fc.Scenario.KeyCount = o.keyCount
	}
	if changed("hit-percent") {
		fc.Scenario.HitPercent = o.hitPercent
	}
	if changed("readers") {
		fc.Scenario.Readers = o.readers
	}
	if changed("writers") {
		fc.Scenario.Writers = o.writers
	}
	if changed("duration") {
		fc.Scenario.Duration = o.duration.String()
	}
	if changed("seed") {
		fc.Scenario.Seed = o.seed
	}

	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("設定検証エラー: %w", err)
	}

	level, err := fc.LogLevel()
	if err != nil {
		return nil, err
	}
	logger.Default.SetLevel(level)

	sc, err := fc.ToScenarioConfig()
	if err != nil {
		return nil, fmt.Errorf("設定変換エラー: %w", err)
	}
	stc, err := fc.ToStoreConfig()
	if err != nil {
		return nil, fmt.Errorf("設定変換エラー: %w", err)
	}

	return &setup{
		scenario:   sc,
		store:      stc,
		corpus:     fc.Corpus,
		serverAddr: fc.Server.Addr,
	}, nil
}

// open はストアと corpus を用意してエンジンを作る
func (s *setup) open() (*scenario.Engine, store.Store, error) {
	c, err := s.loadCorpus()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(s.store)
	if err != nil {
		return nil, nil, fmt.Errorf("ストア接続エラー: %w", err)
	}
	return scenario.New(s.scenario, st, c), st, nil
}

func (s *setup) loadCorpus() (*corpus.Corpus, error) {
	c, err := s.corpus.LoadCorpus()
	if err != nil {
		return nil, fmt.Errorf("corpus 読み込みエラー: %w", err)
	}
	logger.Info("", "corpus: %d lines", c.Len())
	return c, nil
}

// signalContext は SIGINT/SIGTERM でキャンセルされるコンテキストを返す
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
