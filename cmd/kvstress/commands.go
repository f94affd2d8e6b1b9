package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"kvstress/internal/api"
	"kvstress/internal/logger"
	"kvstress/internal/metrics"
	"kvstress/internal/scenario"
)

// withEngine はエンジンを用意して fn を実行し、ストアを閉じる
func withEngine(cmd *cobra.Command, opts *options, fn func(ctx context.Context, s *setup, e *scenario.Engine) error) error {
	s, err := opts.resolve(cmd)
	if err != nil {
		return err
	}
	engine, st, err := s.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("", "failed to close store: %v", err)
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, s, engine)
}

// serveMetrics は addr で /metrics を公開する。addr が空なら何もしない。
func serveMetrics(ctx context.Context, addr string, m *metrics.Collector) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		logger.Info("", "metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("", "metrics server: %v", err)
		}
	}()
}

func newRunCmd(opts *options) *cobra.Command {
	var (
		metricsAddr string
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "全フェーズを実行する (populate → eval → validate)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, s *setup, engine *scenario.Engine) error {
				cfg := s.scenario
				printHeader(cmd, s)

				m := metrics.New()
				engine.SetMetrics(m)
				serveMetrics(ctx, metricsAddr, m)

				result := engine.Run(ctx, cfg.Readers, cfg.Writers, cfg.TotalDuration)
				fmt.Fprintln(cmd.OutOrStdout(), result.Report())

				if result.Err != nil {
					return fmt.Errorf("%s: %w", result.FailedPhase, result.Err)
				}
				if strict && !result.OK() {
					return errors.New("validation found mismatched or missing values")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "実行中に /metrics を公開するアドレス (例: :9100)")
	cmd.Flags().BoolVar(&strict, "strict", false, "検証で不一致や欠損があれば非ゼロで終了する")
	return cmd
}

func newPopulateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "0..key-count-1 を順に書き込む",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, s *setup, engine *scenario.Engine) error {
				_, err := engine.Populate(ctx, s.scenario.KeyCount)
				return err
			})
		},
	}
}

func newValidateCmd(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "populate 済みのキーを読み、値を比較する",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, s *setup, engine *scenario.Engine) error {
				report, err := engine.Validate(ctx, s.scenario.KeyCount)
				if err != nil {
					return err
				}
				if strict && !report.Clean() {
					return fmt.Errorf("validation found %d mismatches and %d missing values", report.Mismatches, report.Missing)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "不一致や欠損があれば非ゼロで終了する")
	return cmd
}

func newEvalCmd(opts *options) *cobra.Command {
	var (
		check    bool
		populate bool
	)

	cmd := &cobra.Command{
		Use:       "eval <write|read|readwrite>",
		Short:     "1つの eval フェーズを --duration の間実行する",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"write", "read", "readwrite"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := args[0]
			switch mode {
			case "write", "read", "readwrite":
			default:
				return fmt.Errorf("unknown eval mode: %s", mode)
			}

			return withEngine(cmd, opts, func(ctx context.Context, s *setup, engine *scenario.Engine) error {
				cfg := s.scenario
				if populate {
					if _, err := engine.Populate(ctx, cfg.KeyCount); err != nil {
						return err
					}
				}

				var err error
				switch mode {
				case "write":
					_, err = engine.EvalWrite(ctx, cfg.Writers, cfg.TotalDuration)
				case "read":
					_, err = engine.EvalRead(ctx, cfg.Readers, cfg.TotalDuration)
				case "readwrite":
					var report *scenario.PhaseReport
					report, err = engine.EvalReadWrite(ctx, cfg.Readers, cfg.Writers, cfg.TotalDuration, check)
					if err == nil && check && (report.Mismatches > 0 || report.Missing > 0) {
						err = fmt.Errorf("check found %d mismatches and %d missing values", report.Mismatches, report.Missing)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "readwrite で Reader の代わりに Checker を使う")
	cmd.Flags().BoolVar(&populate, "populate", false, "実行前に populate する")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTP API サーバーとして起動する",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			c, err := s.loadCorpus()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("listen") && s.serverAddr != "" {
				addr = s.serverAddr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "kvstress - API Server")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintf(out, "Starting server on http://%s\n", addr)
			fmt.Fprintln(out, "Press Ctrl+C to stop")
			fmt.Fprintln(out)

			ctx, cancel := signalContext()
			defer cancel()

			server := api.NewServer(addr, api.Options{
				Base:   s.scenario,
				Store:  s.store,
				Corpus: c,
			})
			return server.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "listen", ":8080", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "利用可能なプリセットを表示する",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "利用可能なプリセット:")
			fmt.Fprintln(out)
			for _, name := range scenario.ListPresets() {
				c, _ := scenario.GetPreset(name)
				fmt.Fprintf(out, "  %-12s %-44s keys=%d readers=%d writers=%d duration=%v\n",
					c.Name, c.Description, c.KeyCount, c.Readers, c.Writers, c.TotalDuration)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "使用例: kvstress run --preset quick")
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "バージョンを表示する",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kvstress version %s\n", version)
		},
	}
}

func printHeader(cmd *cobra.Command, s *setup) {
	cfg := s.scenario
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "kvstress - Concurrent KV Load and Validation")
	fmt.Fprintln(out, "============================================")
	fmt.Fprintf(out, "Scenario: %s\n", cfg.Name)
	fmt.Fprintf(out, "Backend:  %s\n", s.store.Backend)
	fmt.Fprintf(out, "Keys:     %d (hit %d%%)\n", cfg.KeyCount, cfg.HitPercent)
	fmt.Fprintf(out, "Readers:  %d, Writers: %d\n", cfg.Readers, cfg.Writers)
	fmt.Fprintf(out, "Duration: %v\n", cfg.TotalDuration)
	fmt.Fprintln(out, "============================================")
	fmt.Fprintln(out)
}
