// Package reliability backs the databases up to object storage and keeps them
// healthy.
package reliability

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/events"
	"github.com/rs/zerolog"
)

// KeyPrefix is the root of every backup object: <prefix>/<date>/<name>.db
const KeyPrefix = "wealth"

const metadataFile = "backup-metadata.json"

// minBackupsToKeep is the number of backup dates rotation never deletes.
const minBackupsToKeep = 3

// Source is a database that can write a consistent copy of itself.
type Source interface {
	Name() string
	BackupTo(ctx context.Context, dest string) error
}

// BackupMetadata describes one backup date.
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Date      string             `json:"date"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database inside a backup.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes the objects stored for one backup date.
type BackupInfo struct {
	Date      string   `json:"date"`
	Keys      []string `json:"keys"`
	SizeBytes int64    `json:"size_bytes"`
	AgeHours  int64    `json:"age_hours"`
}

// BackupService copies every database to a staging directory and uploads it.
type BackupService struct {
	store     ObjectStore
	databases []Source
	dataDir   string
	emitter   events.Emitter
	log       zerolog.Logger
	now       func() time.Time
}

// NewBackupService creates a backup service. Staging files are written under
// dataDir and removed after each run.
func NewBackupService(store ObjectStore, databases []Source, dataDir string, emitter events.Emitter, log zerolog.Logger) *BackupService {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &BackupService{
		store:     store,
		databases: databases,
		dataDir:   dataDir,
		emitter:   emitter,
		log:       log.With().Str("service", "backup").Logger(),
		now:       time.Now,
	}
}

// Run backs up every database under today's date. A database that fails is
// recorded and the others still upload; the metadata file lists only the
// successful ones.
func (s *BackupService) Run(ctx context.Context) (*BackupMetadata, error) {
	start := s.now()
	date := start.UTC().Format(domain.DateLayout)
	s.log.Info().Str("date", date).Int("databases", len(s.databases)).Msg("Starting backup")

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	meta := &BackupMetadata{Timestamp: start.UTC(), Date: date}
	failed := make(map[string]error)

	for _, db := range s.databases {
		entry, err := s.backupOne(ctx, db, stagingDir, date)
		if err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to back up database")
			failed[db.Name()] = err
			continue
		}
		meta.Databases = append(meta.Databases, *entry)
	}

	if len(meta.Databases) > 0 {
		if err := s.uploadMetadata(ctx, meta); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("date", date).
		Int("uploaded", len(meta.Databases)).
		Int("failed", len(failed)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Backup completed")

	s.emitter.Emit(events.BackupCompleted, "reliability", map[string]interface{}{
		"date":      date,
		"databases": len(meta.Databases),
		"failed":    len(failed),
	})

	if len(failed) > 0 {
		return meta, &domain.PartialBatchFailure{Total: len(s.databases), Failed: failed}
	}
	return meta, nil
}

func (s *BackupService) backupOne(ctx context.Context, db Source, stagingDir, date string) (*DatabaseMetadata, error) {
	local := filepath.Join(stagingDir, db.Name()+".db")
	if err := db.BackupTo(ctx, local); err != nil {
		return nil, err
	}

	checksum, size, err := checksumFile(local)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum %s: %w", db.Name(), err)
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backup: %w", db.Name(), err)
	}
	defer f.Close()

	key := ObjectKey(date, db.Name()+".db")
	if err := s.store.Upload(ctx, key, f); err != nil {
		return nil, err
	}

	return &DatabaseMetadata{Name: db.Name(), Key: key, SizeBytes: size, Checksum: checksum}, nil
}

func (s *BackupService) uploadMetadata(ctx context.Context, meta *BackupMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup metadata: %w", err)
	}
	return s.store.Upload(ctx, ObjectKey(meta.Date, metadataFile), bytes.NewReader(data))
}

// ListBackups groups stored objects by backup date, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, KeyPrefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	byDate := make(map[string]*BackupInfo)
	for _, obj := range objects {
		date, ok := dateOf(obj.Key)
		if !ok {
			s.log.Warn().Str("key", obj.Key).Msg("Ignoring object outside the backup layout")
			continue
		}
		info, ok := byDate[date]
		if !ok {
			info = &BackupInfo{Date: date}
			byDate[date] = info
		}
		info.Keys = append(info.Keys, obj.Key)
		info.SizeBytes += obj.SizeBytes
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(byDate))
	for _, info := range byDate {
		t, _ := time.Parse(domain.DateLayout, info.Date)
		info.AgeHours = int64(now.Sub(t).Hours())
		backups = append(backups, *info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Date > backups[j].Date
	})
	return backups, nil
}

// RotateOldBackups deletes backup dates older than retentionDays. The newest
// minBackupsToKeep dates are always kept; retentionDays <= 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		s.log.Debug().Int("count", len(backups)).Msg("Too few backups to rotate")
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format(domain.DateLayout)
	deleted := 0
	for _, b := range backups[minBackupsToKeep:] {
		if b.Date >= cutoff {
			continue
		}
		for _, key := range b.Keys {
			if err := s.store.Delete(ctx, key); err != nil {
				s.log.Error().Err(err).Str("key", key).Msg("Failed to delete old backup object")
				continue
			}
		}
		s.log.Info().Str("date", b.Date).Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("Backup rotation completed")
	return deleted, nil
}

// ObjectKey returns the storage key of a file inside a backup date.
func ObjectKey(date, file string) string {
	return path.Join(KeyPrefix, date, file)
}

// dateOf extracts the date from a key shaped like <prefix>/<date>/<file>.
func dateOf(key string) (string, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != KeyPrefix {
		return "", false
	}
	if _, err := time.Parse(domain.DateLayout, parts[1]); err != nil {
		return "", false
	}
	return parts[1], true
}

// checksumFile returns the sha256 of a file and its size.
func checksumFile(p string) (string, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), n, nil
}
