package cli

import (
	"context"
	"time"

	"github.com/kyohei-s/oboegaki/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// LLM
	geminiAPIKey string
	geminiModel  string

	// Sheets
	saEmail       string
	saPrivateKey  string
	spreadsheetID string
	sheetName     string

	// Runtime
	interval  time.Duration
	addr      string
	storePath string
	logLevel  string
	logFormat string
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model to use for extraction",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// sheetFlags returns flags for the spreadsheet backend with destination config
func sheetFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sa-email",
			Usage:       "Service account email for Sheets access",
			Sources:     cli.EnvVars("SHEETS_SA_EMAIL"),
			Destination: &cfg.saEmail,
		},
		&cli.StringFlag{
			Name:        "sa-private-key",
			Usage:       "Service account private key (PEM)",
			Sources:     cli.EnvVars("SHEETS_SA_PRIVATE_KEY"),
			Destination: &cfg.saPrivateKey,
		},
		&cli.StringFlag{
			Name:        "spreadsheet-id",
			Usage:       "Target spreadsheet ID",
			Sources:     cli.EnvVars("SPREADSHEET_ID"),
			Destination: &cfg.spreadsheetID,
		},
		&cli.StringFlag{
			Name:        "sheet-name",
			Usage:       "Target sheet (tab) name",
			Sources:     cli.EnvVars("SHEET_NAME"),
			Destination: &cfg.sheetName,
		},
	}
}

// runtimeFlags returns flags for daemon behavior with destination config
func runtimeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "interval",
			Usage:       "Processing cycle interval",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("OBOEGAKI_INTERVAL"),
			Destination: &cfg.interval,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Health endpoint listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("OBOEGAKI_ADDR"),
			Destination: &cfg.addr,
		},
		&cli.StringFlag{
			Name:        "store-path",
			Usage:       "WhatsApp session store path",
			Value:       "oboegaki-session.db",
			Sources:     cli.EnvVars("WHATSAPP_STORE"),
			Destination: &cfg.storePath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("OBOEGAKI_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("OBOEGAKI_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiAPIKey == "" {
		return nil, goerr.New("gemini-api-key is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiAPIKey, adapter.WithModel(cfg.geminiModel))
}

// newSheets creates a new Sheets adapter instance
func (cfg *config) newSheets(ctx context.Context) (adapter.Sheets, error) {
	if cfg.saEmail == "" {
		return nil, goerr.New("sa-email is required")
	}
	if cfg.saPrivateKey == "" {
		return nil, goerr.New("sa-private-key is required")
	}
	if cfg.spreadsheetID == "" {
		return nil, goerr.New("spreadsheet-id is required")
	}
	if cfg.sheetName == "" {
		return nil, goerr.New("sheet-name is required")
	}

	client, err := adapter.NewSheets(ctx, cfg.saEmail, cfg.saPrivateKey, cfg.spreadsheetID, cfg.sheetName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sheets client")
	}
	return client, nil
}
