// Package main provides the sheetagent CLI: upload-and-chat analysis of
// xlsx workbooks, an HTTP server mode, and a quick preview command.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"sheetagent/internal/agent"
	"sheetagent/internal/appdirs"
	"sheetagent/internal/envfile"
	"sheetagent/internal/envutil"
	"sheetagent/internal/errinfo"
	"sheetagent/internal/llm"
	"sheetagent/internal/logging"
	"sheetagent/internal/normalize"
	"sheetagent/internal/openai"
	"sheetagent/internal/server"
	"sheetagent/internal/settings"
	"sheetagent/internal/workbook"
	"sheetagent/internal/xlsxio"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sheetagent",
		Short: "Ask questions about Excel workbooks through an LLM analysis agent",
		Long: `sheetagent loads an xlsx workbook into a typed sheet store with
normalized column names and lets a tool-calling LLM agent answer
questions about the data: filtering, aggregation, and pivot tables.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newChatCmd(), newServeCmd(), newPreviewCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is everything the subcommands share after bootstrap.
type env struct {
	logger   *slog.Logger
	closeLog func() error
	cfg      *settings.Settings
}

func bootstrap() (*env, error) {
	envResult := envfile.Load()
	debug := envutil.Bool("SHEETAGENT_DEBUG")
	dataDir, err := appdirs.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	logSetup, logErr := logging.NewFileLogger(dataDir, debug)
	logger := logSetup.Logger
	if logErr != nil {
		// File logging is unavailable; fall back to stderr so debug runs
		// still produce output somewhere.
		logger = logging.Stderr(debug)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("component", "sheetagent")
	if logSetup.Enabled {
		logger.Info("sheetagent.logging_enabled", "path", logSetup.Path)
	}
	if envResult.Loaded {
		logger.Debug("sheetagent.env_loaded", "path", envResult.Path, "keys", envResult.Keys)
	}
	if envResult.Err != nil {
		logger.Warn("sheetagent.env_load_failed", "path", envResult.Path, "error", envResult.Err.Error())
	}
	if logErr != nil {
		logger.Warn("sheetagent.log_setup_failed", "error", logErr.Error())
	}

	store := settings.NewStore(appdirs.SettingsPath(dataDir))
	cfg, err := store.Load()
	if err != nil {
		logger.Warn("sheetagent.settings_load_failed", "error", err.Error())
		cfg = settings.Default()
	}
	cfg.MaxAgentTurns = envutil.Int("SHEETAGENT_MAX_TURNS", cfg.MaxAgentTurns)

	closeLog := logSetup.Close
	if closeLog == nil {
		closeLog = func() error { return nil }
	}
	return &env{logger: logger, closeLog: closeLog, cfg: cfg}, nil
}

func loadWorkbook(path string, e *env) (*workbook.Workbook, error) {
	sheets, err := xlsxio.ReadFile(path, e.logger)
	if err != nil {
		return nil, err
	}
	normalizer := normalize.NewNormalizer()
	if e.cfg.SynonymThreshold > 0 {
		normalizer.Threshold = e.cfg.SynonymThreshold
	}
	return workbook.Load(sheets, normalizer, e.logger), nil
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [workbook.xlsx]",
		Short: "Interactive question-and-answer session over a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.closeLog()

			apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
			if apiKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is not set")
			}
			e.logger.Debug("sheetagent.api_key_loaded", "api_key", logging.RedactValue(apiKey))

			client := openai.NewClient()
			if err := client.ValidateKey(cmd.Context(), apiKey); err != nil {
				if errors.Is(err, llm.ErrUnauthorized) {
					return fmt.Errorf("OPENAI_API_KEY was rejected by the provider")
				}
				// Transient trouble (rate limit, outage) should not block a
				// session that may outlive it.
				e.logger.Warn("sheetagent.key_check_failed", "error", err.Error())
			}

			wb, err := loadWorkbook(args[0], e)
			if err != nil {
				return err
			}

			session := agent.NewSession(wb, agent.Config{
				Client:           client,
				APIKey:           apiKey,
				Model:            e.cfg.ModelID,
				MaxTurns:         e.cfg.MaxAgentTurns,
				ResolveThreshold: e.cfg.ResolveThreshold,
				PreviewRows:      e.cfg.PreviewRows,
				Logger:           e.logger,
			})

			fmt.Printf("Loaded %s (%d sheets). Ask a question, or type exit to quit.\n",
				args[0], len(wb.ListSheets()))
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if question == "exit" || question == "quit" {
					break
				}
				answer, errInfo := session.Ask(cmd.Context(), question)
				if errInfo != nil {
					fmt.Println(formatErrorInfo(errInfo))
					if !errInfo.Retryable {
						return fmt.Errorf("%s", errInfo.ErrorCode)
					}
					continue
				}
				fmt.Println(answer)
			}
			return scanner.Err()
		},
	}
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (upload workbooks, ask questions)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap()
			if err != nil {
				return err
			}
			defer env.closeLog()

			apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
			if apiKey != "" {
				env.logger.Debug("sheetagent.api_key_loaded", "api_key", logging.RedactValue(apiKey))
			}

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.CORS())
			e.Use(middleware.Recover())
			e.Use(middleware.Logger())

			h := server.NewHandler(server.Config{
				Client:   openai.NewClient(),
				APIKey:   apiKey,
				Settings: env.cfg,
				Logger:   env.logger,
			})
			h.RegisterRoutes(e)

			if info := h.ValidateProvider(cmd.Context()); info != nil {
				env.logger.Warn("sheetagent.provider_check_failed",
					"error_code", info.ErrorCode, "detail", info.Detail)
				log.Printf("warning: provider check failed (%s); /ask will fail until resolved", info.ErrorCode)
			}

			env.logger.Info("sheetagent.serve_start", "addr", addr)
			return e.Start(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "preview [workbook.xlsx]",
		Short: "Print a markdown preview of every sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.closeLog()

			wb, err := loadWorkbook(args[0], e)
			if err != nil {
				return err
			}
			if rows <= 0 {
				rows = e.cfg.PreviewRows
			}
			fmt.Println(wb.PreviewMarkdown(rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 0, "Rows to show per sheet (default from settings)")
	return cmd
}

func formatErrorInfo(info *errinfo.ErrorInfo) string {
	var b strings.Builder
	b.WriteString("error: ")
	b.WriteString(info.ErrorCode)
	if info.Detail != "" {
		b.WriteString(": ")
		b.WriteString(info.Detail)
	}
	for _, action := range info.Actions {
		switch action {
		case errinfo.ActionCheckAPIKey:
			b.WriteString(" (check your OPENAI_API_KEY)")
		case errinfo.ActionRetry:
			b.WriteString(" (try again)")
		case errinfo.ActionRephrase:
			b.WriteString(" (try rephrasing the question)")
		}
	}
	return b.String()
}
