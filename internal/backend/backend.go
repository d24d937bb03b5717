// Package backend builds the sheet store runs are exported to.
package backend

import (
	"context"
	"fmt"

	"budgetpipe/internal/config"
	"budgetpipe/internal/log"
	"budgetpipe/internal/sheets"
	gsheet "budgetpipe/internal/sheets/google"
	"budgetpipe/internal/sheets/memory"
)

// Type names an export backend.
type Type string

const (
	Memory Type = config.BackendMemory
	Sheets Type = config.BackendSheets
)

func (t Type) IsValid() bool {
	switch t {
	case Memory, Sheets:
		return true
	}
	return false
}

// Config holds what is needed to build a backend.
type Config struct {
	Type Type

	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Type:                     Type(app.ExportBackend),
		GoogleSpreadsheetID:      app.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: app.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: app.GoogleServiceAccountFile,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == Sheets && c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("google spreadsheet ID is required for sheets backend")
	}
	return nil
}

// New builds the configured store.
func New(ctx context.Context, cfg Config, logger *log.Logger) (sheets.TableStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.WithComponent(log.ComponentSheets)

	switch cfg.Type {
	case Sheets:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsJSON: []byte(cfg.GoogleServiceAccountJSON),
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize google sheets client: %w", err)
		}
		logger.Info("Initialized Google Sheets backend", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return cli, nil
	default:
		logger.Info("Initialized memory backend")
		return memory.New(), nil
	}
}
