package ledger

import (
	"context"
	"fmt"

	"github.com/kilianp07/civicdispatch/core/logger"
	"github.com/kilianp07/civicdispatch/core/model"
)

// Config defines the ledger backend and its rotation settings.
type Config struct {
	// Backend selects the ledger type: "memory", "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the jsonl or sqlite ledger.
	Path string `json:"path"`
	// MaxSizeMB enables rotation of the jsonl ledger when greater than zero.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Path == "" {
		switch c.Backend {
		case "jsonl":
			c.Path = "submissions.jsonl"
		case "sqlite":
			c.Path = "submissions.db"
		}
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown ledger backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must be >= 0")
	}
	return nil
}

// Open creates the configured ledger. Write failures are logged through log.
func Open(cfg Config, log logger.Logger) (Ledger, error) {
	var (
		l   Ledger
		err error
	)
	switch cfg.Backend {
	case "", "memory":
		l = NewMemory()
	case "jsonl":
		var opts []Option
		if log != nil {
			opts = append(opts, WithLogger(log))
		}
		if cfg.MaxSizeMB > 0 {
			l, err = NewRotatingJSONL(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays, opts...)
		} else {
			l, err = NewJSONL(cfg.Path, opts...)
		}
	case "sqlite":
		l, err = NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.Backend, err)
	}
	if log == nil {
		return l, nil
	}
	return &loggingLedger{Ledger: l, log: log}, nil
}

type loggingLedger struct {
	Ledger
	log logger.Logger
}

func (l *loggingLedger) RecordRound(ctx context.Context, issueID string, res model.DispatchResult) error {
	err := l.Ledger.RecordRound(ctx, issueID, res)
	if err != nil {
		l.log.Errorf("ledger: record round for issue %s: %v", issueID, err)
	}
	return err
}
