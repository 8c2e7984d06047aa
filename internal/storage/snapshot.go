package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SnapshotManager keeps whole-database copies next to the live database file.
// Snapshots are taken automatically before destructive operations such as
// an owner reset or a backup import.
type SnapshotManager struct {
	db           *sql.DB
	now          func() time.Time
	dbPath       string
	snapshotsDir string
}

// SnapshotMetadata is persisted as <id>.meta.json beside each snapshot.
type SnapshotMetadata struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// SnapshotInfo represents information about a snapshot for listing.
type SnapshotInfo struct {
	CreatedAt       time.Time
	ID              string
	Description     string
	FileSize        int64
	Budgets         int
	PaycheckBudgets int
	Categories      int
	SchemaVersion   int
	IsAuto          bool
}

// Snapshot errors.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotCorrupted = errors.New("snapshot integrity check failed")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrInvalidSnapshotID = errors.New("invalid snapshot id: cannot contain path separators")
)

const maxAutoSnapshots = 5

// NewSnapshotManager creates a snapshot manager storing its files in a
// "snapshots" directory beside dbPath.
func NewSnapshotManager(db *sql.DB, dbPath string) (*SnapshotManager, error) {
	if dbPath == ":memory:" {
		return nil, errors.New("snapshots require a file-backed database")
	}

	snapshotsDir := filepath.Join(filepath.Dir(dbPath), "snapshots")
	if err := os.MkdirAll(snapshotsDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &SnapshotManager{
		db:           db,
		dbPath:       dbPath,
		snapshotsDir: snapshotsDir,
		now:          time.Now,
	}, nil
}

// Dir returns the directory holding the snapshot files.
func (sm *SnapshotManager) Dir() string {
	return sm.snapshotsDir
}

// Create takes a snapshot named tag. An empty tag gets a timestamped name.
func (sm *SnapshotManager) Create(ctx context.Context, tag, description string) (*SnapshotInfo, error) {
	return sm.create(ctx, tag, description, false)
}

func (sm *SnapshotManager) create(ctx context.Context, tag, description string, isAuto bool) (*SnapshotInfo, error) {
	if tag == "" {
		tag = "snapshot-" + sm.now().Format("2006-01-02-150405")
	}
	if err := validateSnapshotID(tag); err != nil {
		return nil, err
	}

	snapshotPath := filepath.Join(sm.snapshotsDir, tag+".db")
	if _, err := os.Stat(snapshotPath); err == nil {
		return nil, ErrSnapshotExists
	}

	var schemaVersion int
	if err := sm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&schemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	rowCounts := sm.collectRowCounts(ctx)

	if err := sm.backupDatabase(ctx, snapshotPath); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	stat, err := os.Stat(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	metadata := SnapshotMetadata{
		ID:            tag,
		CreatedAt:     sm.now(),
		Description:   description,
		FileSize:      stat.Size(),
		RowCounts:     rowCounts,
		SchemaVersion: schemaVersion,
		IsAuto:        isAuto,
	}

	if err := sm.saveMetadata(sm.metadataPath(tag), metadata); err != nil {
		if rmErr := os.Remove(snapshotPath); rmErr != nil {
			slog.Error("failed to remove snapshot file after metadata save failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}

	slog.Info("created snapshot", "id", tag, "auto", isAuto, "size", metadata.FileSize)
	info := metadata.info()
	return &info, nil
}

// List returns all snapshots, newest first. Unreadable metadata files are skipped.
func (sm *SnapshotManager) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(sm.snapshotsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	snapshots := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}

		metadata, err := sm.loadMetadata(filepath.Join(sm.snapshotsDir, entry.Name()))
		if err != nil {
			slog.Debug("skipping unreadable snapshot metadata", "file", entry.Name(), "error", err)
			continue
		}
		snapshots = append(snapshots, metadata.info())
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	return snapshots, nil
}

// Restore replaces the live database file with a snapshot. The manager's
// connection is closed first; callers must reopen storage afterwards.
func (sm *SnapshotManager) Restore(_ context.Context, snapshotID string) error {
	if err := validateSnapshotID(snapshotID); err != nil {
		return err
	}

	snapshotPath := filepath.Join(sm.snapshotsDir, snapshotID+".db")
	if _, err := os.Stat(snapshotPath); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}

	if _, err := sm.loadMetadata(sm.metadataPath(snapshotID)); err != nil {
		return fmt.Errorf("failed to load snapshot metadata: %w", err)
	}

	if err := verifySnapshotIntegrity(snapshotPath); err != nil {
		slog.Error("snapshot failed integrity check", "id", snapshotID, "error", err)
		return ErrSnapshotCorrupted
	}

	if err := sm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	// WAL side files belong to the database being replaced.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(sm.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove database side file", "file", sm.dbPath+suffix, "error", err)
		}
	}

	backupPath := sm.dbPath + ".restore-backup"
	if err := copyFile(sm.dbPath, backupPath); err != nil {
		return fmt.Errorf("failed to back up current database: %w", err)
	}

	if err := copyFile(snapshotPath, sm.dbPath); err != nil {
		if restoreErr := copyFile(backupPath, sm.dbPath); restoreErr != nil {
			slog.Error("failed to put back database after snapshot restore failure", "error", restoreErr)
		}
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	if err := os.Remove(backupPath); err != nil {
		slog.Error("failed to remove backup file", "error", err)
	}

	slog.Info("restored snapshot", "id", snapshotID)
	return nil
}

// Delete removes a snapshot and its metadata.
func (sm *SnapshotManager) Delete(_ context.Context, snapshotID string) error {
	if err := validateSnapshotID(snapshotID); err != nil {
		return err
	}

	snapshotPath := filepath.Join(sm.snapshotsDir, snapshotID+".db")
	if _, err := os.Stat(snapshotPath); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}

	if err := os.Remove(snapshotPath); err != nil {
		return fmt.Errorf("failed to remove snapshot file: %w", err)
	}

	metadataPath := sm.metadataPath(snapshotID)
	if err := os.Remove(metadataPath); err != nil {
		slog.Debug("failed to remove metadata file", "error", err, "path", metadataPath)
	}

	return nil
}

// GetSnapshotInfo retrieves information about a specific snapshot.
func (sm *SnapshotManager) GetSnapshotInfo(_ context.Context, snapshotID string) (*SnapshotInfo, error) {
	if err := validateSnapshotID(snapshotID); err != nil {
		return nil, err
	}

	metadata, err := sm.loadMetadata(sm.metadataPath(snapshotID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot metadata: %w", err)
	}

	info := metadata.info()
	return &info, nil
}

// Auto takes an automatic snapshot before the named operation and prunes
// automatic snapshots beyond the most recent five.
func (sm *SnapshotManager) Auto(ctx context.Context, operation string) (*SnapshotInfo, error) {
	base := fmt.Sprintf("auto-%s-%s", operation, sm.now().Format("2006-01-02-150405"))
	tag := base
	var info *SnapshotInfo
	var err error
	// Several operations within one second get numbered suffixes.
	for n := 2; n <= maxAutoSnapshots+1; n++ {
		info, err = sm.create(ctx, tag, "Automatic snapshot before "+operation, true)
		if !errors.Is(err, ErrSnapshotExists) {
			break
		}
		tag = fmt.Sprintf("%s-%d", base, n)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic snapshot: %w", err)
	}

	if err := sm.pruneAutoSnapshots(ctx); err != nil {
		slog.Warn("failed to prune old automatic snapshots", "error", err)
	}

	return info, nil
}

func (sm *SnapshotManager) pruneAutoSnapshots(ctx context.Context) error {
	snapshots, err := sm.List(ctx)
	if err != nil {
		return err
	}

	autoCount := 0
	for _, snap := range snapshots {
		if !snap.IsAuto {
			continue
		}
		autoCount++
		if autoCount > maxAutoSnapshots {
			if err := sm.Delete(ctx, snap.ID); err != nil {
				slog.Debug("failed to delete old automatic snapshot", "error", err, "snapshot", snap.ID)
			}
		}
	}

	return nil
}

func (sm *SnapshotManager) collectRowCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int)

	tableQueries := map[string]string{
		"budgets":          "SELECT COUNT(*) FROM budgets",
		"paycheck_budgets": "SELECT COUNT(*) FROM paycheck_budgets",
		"categories":       "SELECT COUNT(*) FROM categories",
	}

	for table, query := range tableQueries {
		var count int
		if err := sm.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			// Table might not exist in older schemas
			counts[table] = 0
			continue
		}
		counts[table] = count
	}

	return counts
}

func (sm *SnapshotManager) backupDatabase(ctx context.Context, destPath string) error {
	if _, err := sm.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	if strings.ContainsAny(destPath, `'";`) {
		return fmt.Errorf("invalid destination path: contains forbidden characters")
	}

	// #nosec G201 - destPath is validated above
	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		slog.Debug("VACUUM INTO failed, falling back to file copy", "error", err)
		return copyFile(sm.dbPath, destPath)
	}

	return nil
}

func (sm *SnapshotManager) metadataPath(id string) string {
	return filepath.Join(sm.snapshotsDir, id+".meta.json")
}

func (sm *SnapshotManager) saveMetadata(path string, metadata SnapshotMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

func (sm *SnapshotManager) loadMetadata(path string) (*SnapshotMetadata, error) {
	// #nosec G304 - path is built from the snapshots directory and a validated id
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var metadata SnapshotMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}

	return &metadata, nil
}

func (m SnapshotMetadata) info() SnapshotInfo {
	return SnapshotInfo{
		ID:              m.ID,
		CreatedAt:       m.CreatedAt,
		Description:     m.Description,
		FileSize:        m.FileSize,
		Budgets:         m.RowCounts["budgets"],
		PaycheckBudgets: m.RowCounts["paycheck_budgets"],
		Categories:      m.RowCounts["categories"],
		SchemaVersion:   m.SchemaVersion,
		IsAuto:          m.IsAuto,
	}
}

func validateSnapshotID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidSnapshotID
	}
	return nil
}

func verifySnapshotIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func copyFile(src, dst string) error {
	// #nosec G304 - src is the database or a snapshot path
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			slog.Error("failed to close source file", "error", closeErr)
		}
	}()

	tmpDst := dst + ".tmp"
	// #nosec G304 - dst is the database or a snapshot path
	destination, err := os.Create(filepath.Clean(tmpDst))
	if err != nil {
		return err
	}

	if _, err := io.Copy(destination, source); err != nil {
		if closeErr := destination.Close(); closeErr != nil {
			slog.Error("failed to close destination file after copy error", "error", closeErr)
		}
		if rmErr := os.Remove(tmpDst); rmErr != nil {
			slog.Error("failed to remove temporary file after copy error", "error", rmErr)
		}
		return err
	}

	if err := destination.Close(); err != nil {
		if rmErr := os.Remove(tmpDst); rmErr != nil {
			slog.Error("failed to remove temporary file after close error", "error", rmErr)
		}
		return err
	}

	return os.Rename(tmpDst, dst)
}
