package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-pii/pkg/domain"
	"github.com/polisai/polis-pii/pkg/engine"
)

const (
	defaultLogLevel = "info"
	maxBatchLine    = 1 << 20
)

// newRootCmd creates the root command for polis-pii
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var a *app

	rootCmd := &cobra.Command{
		Use:   "polis-pii",
		Short: "PII detection, masking and prompt protection",
		Long: `Detects personally identifiable information in text, masks it with
reversible tokens, restores it on the way back, and rewrites prompts with
generic replacements.

Text is taken from the positional arguments, or from stdin when none are given.

Example:
  polis-pii analyze "Contact John Smith at john@email.com"
  polis-pii mask "Call 555-123-4567" > session.json
  polis-pii unmask --session session.json "Reply to [PHONE_1a2b3c4d]"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = newApp(cmd, opts)
			return err
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (YAML)")
	flags.StringVarP(&opts.LogLevel, "log-level", "l", defaultLogLevel, "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.Pretty, "pretty", false, "Human readable logs")
	flags.Int64Var(&opts.Seed, "seed", 0, "Seed for replacement choices (0 means random)")
	flags.StringVar(&opts.AnnotatorEndpoint, "annotator-endpoint", "", "Base URL of the named-entity recognizer")
	flags.StringVar(&opts.MetricsListen, "metrics-listen", "", "Address to serve Prometheus metrics on")
	flags.StringVarP(&opts.Output, "output", "o", outputJSON, "Output format (json, yaml)")

	appRef := func() *app { return a }
	rootCmd.AddCommand(
		newAnalyzeCmd(appRef),
		newMaskCmd(appRef),
		newUnmaskCmd(appRef),
		newProtectCmd(appRef),
		newRiskCmd(appRef),
		newBatchCmd(appRef),
		newStatsCmd(appRef),
	)

	// PersistentPostRun is skipped when RunE fails, so release the app here.
	for _, sub := range rootCmd.Commands() {
		run := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			defer func() {
				if a != nil {
					a.close()
				}
			}()
			return run(cmd, args)
		}
	}

	return rootCmd
}

func newAnalyzeCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [text]",
		Short: "Detect PII and show the masked text with token details",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			res, err := a.engine.Analyze(cmd.Context(), text)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), a.output, res)
		},
	}
}

// maskOutput mirrors the mask response: the masked text plus the flat
// session record needed to unmask a reply.
type maskOutput struct {
	MaskedText       string          `json:"masked_text" yaml:"masked_text"`
	SessionData      map[string]any  `json:"session_data" yaml:"session_data"`
	DetectedEntities []domain.Entity `json:"detected_entities" yaml:"detected_entities"`
}

func newMaskCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mask [text]",
		Short: "Mask PII and print the session data needed to unmask replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			masked, st, err := a.engine.MaskForSession(cmd.Context(), text)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), a.output, maskOutput{
				MaskedText:       masked,
				SessionData:      st.Record(),
				DetectedEntities: st.DetectedEntities,
			})
		},
	}
}

func newUnmaskCmd(app func() *app) *cobra.Command {
	var sessionPath string

	cmd := &cobra.Command{
		Use:   "unmask --session FILE [text]",
		Short: "Restore tokens in text using session data from the mask command",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			rec, err := readSessionRecord(sessionPath)
			if err != nil {
				return err
			}
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			out := a.engine.UnmaskWithRecord(cmd.Context(), text, rec)
			return writeOutput(cmd.OutOrStdout(), a.output, map[string]string{"unmasked_text": out})
		},
	}
	cmd.Flags().StringVarP(&sessionPath, "session", "s", "", "Session file written by the mask command (JSON or YAML)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newProtectCmd(app func() *app) *cobra.Command {
	var alternatives int

	cmd := &cobra.Command{
		Use:   "protect [text]",
		Short: "Rewrite a prompt with generic replacements for its PII",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			n := a.cfg.Protection.Alternatives
			if cmd.Flags().Changed("alternatives") {
				n = alternatives
			}
			res, err := a.engine.ProtectWithAlternatives(cmd.Context(), text, n)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), a.output, res)
		},
	}
	cmd.Flags().IntVarP(&alternatives, "alternatives", "n", 3, "Number of alternative rewrites (defaults to protection.alternatives)")
	return cmd
}

func newRiskCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "risk [text]",
		Short: "Report the privacy risk of a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			report, err := a.engine.AnalyzeRisk(cmd.Context(), text)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), a.output, report)
		},
	}
}

// Batch modes.
const (
	batchProtect = "protect"
	batchAnalyze = "analyze"
	batchRisk    = "risk"
)

type batchInput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type batchOutput struct {
	ID     string `json:"id,omitempty"`
	Line   int    `json:"line"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newBatchCmd(app func() *app) *cobra.Command {
	var (
		inputPath string
		mode      string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process JSON lines of {\"id\", \"text\"} and emit one JSON result per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()

			switch mode {
			case batchProtect, batchAnalyze, batchRisk:
			default:
				return fmt.Errorf("unsupported batch mode %q, supported: protect, analyze, risk", mode)
			}

			if err := a.serveMetrics(); err != nil {
				return err
			}
			if err := a.watchReplacements(cmd.Context()); err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if inputPath != "" && inputPath != "-" {
				//nolint:gosec // Input path is supplied by the operator
				f, err := os.Open(inputPath)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			failed, err := runBatch(cmd, a, in, mode)
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d batch line(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "JSON lines file (defaults to stdin)")
	cmd.Flags().StringVarP(&mode, "mode", "m", batchProtect, "Operation per line (protect, analyze, risk)")
	return cmd
}

func runBatch(cmd *cobra.Command, a *app, in io.Reader, mode string) (int, error) {
	ctx := cmd.Context()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBatchLine)

	failed, lineNo := 0, 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		out := batchOutput{Line: lineNo}
		var item batchInput
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			out.Error = fmt.Sprintf("invalid JSON: %v", err)
		} else {
			out.ID = item.ID
			result, err := processBatchItem(cmd, a, mode, item.Text)
			if err != nil {
				out.Error = err.Error()
			} else {
				out.Result = result
			}
		}
		if out.Error != "" {
			failed++
			a.logger.Warn("Batch line failed", "line", lineNo, "error", out.Error)
		}

		if err := enc.Encode(out); err != nil {
			return failed, fmt.Errorf("write result: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return failed, err
		}
	}
	if err := scanner.Err(); err != nil {
		return failed, fmt.Errorf("read input: %w", err)
	}

	a.logger.Info("Batch completed", "lines", lineNo, "failed", failed, "mode", mode)
	return failed, nil
}

func processBatchItem(cmd *cobra.Command, a *app, mode, text string) (any, error) {
	ctx := cmd.Context()
	switch mode {
	case batchAnalyze:
		return a.engine.Analyze(ctx, text)
	case batchRisk:
		return a.engine.AnalyzeRisk(ctx, text)
	default:
		return a.engine.Protect(ctx, text)
	}
}

// statsOutput combines engine counters with health.
type statsOutput struct {
	Stats  engine.Stats  `json:"stats" yaml:"stats"`
	Health engine.Health `json:"health" yaml:"health"`
}

func newStatsCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show supported PII kinds, token labels and annotator health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			health := a.engine.Health(cmd.Context())
			return writeOutput(cmd.OutOrStdout(), a.output, statsOutput{
				Stats:  a.engine.Stats(),
				Health: health,
			})
		},
	}
}
