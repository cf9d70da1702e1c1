package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/decisio/internal/application"
	"github.com/JonMunkholm/decisio/internal/backend"
	"github.com/JonMunkholm/decisio/internal/config"
	"github.com/JonMunkholm/decisio/internal/core"
	"github.com/JonMunkholm/decisio/internal/logging"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	backendURL string
	logLevel   string
	pretty     bool
}

// appLoader builds the application for one command invocation.
type appLoader func(ctx context.Context, opts globalOptions, stderr io.Writer) (*application.App, error)

// loadApp reads configuration, applies flag overrides and logs to stderr.
func loadApp(ctx context.Context, opts globalOptions, stderr io.Writer) (*application.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return nil, err
	}
	logging.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)

	return application.New(ctx, cfg)
}

// applyOverrides copies flag values over cfg and validates the result.
func applyOverrides(cfg *config.Config, opts globalOptions) error {
	if opts.backendURL != "" {
		cfg.Backend.BaseURL = opts.backendURL
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// reportError writes err for a terminal user. The technical detail is
// only shown when the error has no specific user message.
func reportError(w io.Writer, err error) {
	userErr := core.NewUserError(err)
	if userErr == nil {
		return
	}
	fmt.Fprintln(w, "Error:", core.FormatUserError(userErr.Technical))
	if !core.IsUserFacing(userErr.Technical) {
		fmt.Fprintln(w, "Detail:", userErr.Technical)
	}
}

func newRootCmd(load appLoader) *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:   "decisio",
		Short: "Send Excel data to the Decisio analysis backend",
		Long: `decisio previews .xlsx workbooks, sends their rows to the analysis
backend and prints the backend's answer as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.backendURL, "backend", "", "Backend base URL (default: BACKEND_BASE_URL)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")

	withApp := func(run func(cmd *cobra.Command, app *application.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := core.ContextWithOrigin(cmd.Context(), core.OriginCLI)
			cmd.SetContext(ctx)

			app, err := load(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			return run(cmd, app, args)
		}
	}

	root.AddCommand(
		newHealthCmd(&opts, withApp),
		newPreviewCmd(&opts, withApp),
		newAnalyzeCmd(&opts, withApp),
		newRunsCmd(&opts, withApp),
	)
	return root
}

type appRunner = func(run func(cmd *cobra.Command, app *application.App, args []string) error) func(*cobra.Command, []string) error

func newHealthCmd(opts *globalOptions, withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Query the backend /health endpoint",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *application.App, _ []string) error {
			report, err := app.Service.Health(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report, opts.pretty)
		}),
	}
}

type sheetFlags struct {
	sheet  string
	strict bool
}

func (f *sheetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Sheet name (default: first sheet)")
	cmd.Flags().BoolVar(&f.strict, "strict-sheet", false, "Fail when --sheet is not in the workbook instead of using the first sheet")
}

func (f *sheetFlags) preview(cmd *cobra.Command, app *application.App, path string) (*core.Preview, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &core.LoadError{Err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer file.Close()

	return app.Service.Preview(cmd.Context(), file, f.sheet, core.LoadOptions{StrictSheet: f.strict})
}

func newPreviewCmd(opts *globalOptions, withApp appRunner) *cobra.Command {
	var (
		sheet sheetFlags
		rows  int
	)

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Show the first rows of a workbook sheet",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *application.App, args []string) error {
			p, err := sheet.preview(cmd, app, args[0])
			if err != nil {
				return err
			}
			if rows > 0 {
				p = &core.Preview{Table: p.Table, Rows: p.Table.Head(rows)}
			}
			if p.FellBack() {
				fmt.Fprintln(cmd.ErrOrStderr(), p.Notice())
			}
			return writeJSON(cmd.OutOrStdout(), p.Response(), opts.pretty)
		}),
	}

	sheet.register(cmd)
	cmd.Flags().IntVar(&rows, "rows", 0, "Rows to show (default: UPLOAD_PREVIEW_ROWS)")
	return cmd
}

// analyzeOutput is what the analyze command prints.
type analyzeOutput struct {
	ConversationID string          `json:"conversationId"`
	Sheet          string          `json:"sheet"`
	FellBack       bool            `json:"fellBack"`
	RowsSent       int             `json:"rowsSent"`
	Columns        int             `json:"columns"`
	DurationMs     int64           `json:"durationMs"`
	Result         backend.Result  `json:"result"`
	Raw            json.RawMessage `json:"raw"`
}

func newAnalyzeCmd(opts *globalOptions, withApp appRunner) *cobra.Command {
	var (
		sheet        sheetFlags
		message      string
		rows         int
		conversation string
		raw          bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Send the first rows of a workbook sheet to the backend",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *application.App, args []string) error {
			defaults := app.Service.Defaults()
			if !cmd.Flags().Changed("message") {
				message = defaults.Prompt
			}
			if !cmd.Flags().Changed("rows") {
				rows = defaults.RowLimit
			}
			if err := app.Service.ValidateRowLimit(rows); err != nil {
				return err
			}
			if conversation != "" {
				if err := app.Service.ContinueConversation(conversation); err != nil {
					return err
				}
			}

			p, err := sheet.preview(cmd, app, args[0])
			if err != nil {
				return err
			}
			if p.FellBack() {
				fmt.Fprintln(cmd.ErrOrStderr(), p.Notice())
			}

			res, err := app.Service.Analyze(cmd.Context(), core.AnalyzeInput{
				Table:    p.Table,
				Message:  message,
				RowLimit: rows,
			})
			if err != nil {
				return err
			}

			if raw {
				return writeRaw(cmd.OutOrStdout(), res.Response.Raw, opts.pretty)
			}
			return writeJSON(cmd.OutOrStdout(), analyzeOutput{
				ConversationID: res.ConversationID,
				Sheet:          res.Sheet,
				FellBack:       p.FellBack(),
				RowsSent:       res.RowsSent,
				Columns:        res.Columns,
				DurationMs:     res.Duration.Milliseconds(),
				Result:         res.Response.Result,
				Raw:            res.Response.Raw,
			}, opts.pretty)
		}),
	}

	sheet.register(cmd)
	cmd.Flags().StringVarP(&message, "message", "m", "", "Instruction sent with the data (default: ANALYZE_DEFAULT_PROMPT)")
	cmd.Flags().IntVar(&rows, "rows", 0, "Rows to send (default: ANALYZE_DEFAULT_ROWS)")
	cmd.Flags().StringVar(&conversation, "conversation", "", "Continue an existing conversation id")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the backend response body only")
	return cmd
}

func newRunsCmd(opts *globalOptions, withApp appRunner) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded analyze runs (requires DATABASE_URL)",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *application.App, _ []string) error {
			if !app.HistoryEnabled() {
				fmt.Fprintln(cmd.ErrOrStderr(), "run history is disabled; set DATABASE_URL to record runs")
			}
			runs, err := app.Service.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []core.Run{}
			}
			return writeJSON(cmd.OutOrStdout(), runs, opts.pretty)
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// writeRaw prints the backend body as received, indented with --pretty.
func writeRaw(w io.Writer, raw json.RawMessage, pretty bool) error {
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			raw = buf.Bytes()
		}
	}
	_, err := fmt.Fprintln(w, string(raw))
	return err
}
