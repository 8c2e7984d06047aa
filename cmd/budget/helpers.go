package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-budget-must-balance/internal/archive"
	"github.com/Veraticus/the-budget-must-balance/internal/archive/fs"
	"github.com/Veraticus/the-budget-must-balance/internal/archive/s3"
	"github.com/Veraticus/the-budget-must-balance/internal/attachment"
	"github.com/Veraticus/the-budget-must-balance/internal/backup"
	"github.com/Veraticus/the-budget-must-balance/internal/budget"
	"github.com/Veraticus/the-budget-must-balance/internal/config"
	"github.com/Veraticus/the-budget-must-balance/internal/identity"
	"github.com/Veraticus/the-budget-must-balance/internal/storage"
)

// app holds what the commands of one invocation share.
type app struct {
	in     io.Reader
	now    func() time.Time
	handle *storage.Handle
}

func newApp(in io.Reader) *app {
	return &app{
		in:  in,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// databasePath returns the configured database path with ~ and $VARS expanded.
func databasePath() string {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		return config.DefaultDatabasePath()
	}
	return config.ExpandPath(dbPath)
}

// storage returns the process-wide storage, opening it on first use.
func (a *app) storage(ctx context.Context) (*storage.SQLiteStorage, error) {
	if a.handle == nil {
		a.handle = storage.NewHandle(databasePath())
	}
	return a.handle.Get(ctx)
}

func (a *app) close() {
	if a.handle == nil {
		return
	}
	if err := a.handle.Close(); err != nil {
		slog.Debug("failed to close storage", "error", err)
	}
	a.handle = nil
}

func (a *app) owner() (string, error) {
	return identity.Resolve(viper.GetString("owner"), viper.GetString("token"), a.now())
}

func (a *app) manager(ctx context.Context) (*budget.Manager, string, error) {
	owner, err := a.owner()
	if err != nil {
		return nil, "", err
	}
	store, err := a.storage(ctx)
	if err != nil {
		return nil, "", err
	}
	m := budget.New(store)
	m.SetClock(a.now)
	return m, owner, nil
}

func (a *app) backupService(ctx context.Context) (*backup.Service, string, error) {
	owner, err := a.owner()
	if err != nil {
		return nil, "", err
	}
	store, err := a.storage(ctx)
	if err != nil {
		return nil, "", err
	}
	svc := backup.New(store)
	svc.SetClock(a.now)
	return svc, owner, nil
}

// openArchive builds the configured backup archive.
func openArchive(ctx context.Context) (archive.Store, error) {
	cfg, err := config.LoadArchiveConfig()
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case archive.DriverS3:
		return s3.New(ctx, cfg.S3)
	default:
		return fs.New(cfg.Dir)
	}
}

func newCompressor() *attachment.Compressor {
	return attachment.NewCompressor(attachment.Options{
		MaxWidth: viper.GetInt("attachments.max_width"),
		Quality:  viper.GetInt("attachments.quality"),
	})
}

func parseAmount(flag, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return d, nil
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		if minutes := int(duration.Minutes()); minutes != 1 {
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return "1 minute ago"
	case duration < 24*time.Hour:
		if hours := int(duration.Hours()); hours != 1 {
			return fmt.Sprintf("%d hours ago", hours)
		}
		return "1 hour ago"
	case duration < 7*24*time.Hour:
		if days := int(duration.Hours() / 24); days != 1 {
			return fmt.Sprintf("%d days ago", days)
		}
		return "yesterday"
	default:
		return t.Format("2006-01-02 15:04")
	}
}
