// Package filestore persists the monitoring document as a single JSON file.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/acairampoma/hc-medico/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
)

const filePerm = 0o644

// SnapshotFile reads and atomically rewrites the vital-signs document.
type SnapshotFile struct {
	fs    afero.Fs
	path  string
	clock clockwork.Clock
}

var _ domain.SnapshotStore = (*SnapshotFile)(nil)

func NewSnapshotFile(fsys afero.Fs, path string, clock clockwork.Clock) *SnapshotFile {
	return &SnapshotFile{fs: fsys, path: path, clock: clock}
}

// Load never fails: a missing, unreadable or malformed file yields an empty store.
func (s *SnapshotFile) Load(ctx context.Context) domain.Monitoring {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.InfoContext(ctx, "Vitals snapshot not found, starting empty", "path", s.path)
		return domain.NewMonitoring(s.clock.Now())
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to read vitals snapshot, starting empty", "path", s.path, "error", err)
		return domain.NewMonitoring(s.clock.Now())
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.WarnContext(ctx, "Malformed vitals snapshot, starting empty", "path", s.path, "error", err)
		return domain.NewMonitoring(s.clock.Now())
	}

	m := doc.Monitoring
	if m.PatientsVitals == nil {
		m.PatientsVitals = make(map[domain.BedID]*domain.PatientVitalsRecord)
	}
	if m.Metadata.LastUpdated.IsZero() {
		m.Metadata.LastUpdated = domain.NewTimestamp(s.clock.Now())
	}
	if m.Metadata.RefreshInterval <= 0 {
		m.Metadata.RefreshInterval = domain.DefaultRefreshInterval
	}

	slog.InfoContext(ctx, "Vitals snapshot loaded", "path", s.path, "beds", len(m.PatientsVitals))
	return m
}

// Save writes the whole document to a temp file in the target directory and renames
// it over the snapshot, so readers never observe a partial file.
func (s *SnapshotFile) Save(_ context.Context, m domain.Monitoring) error {
	data, err := encode(domain.Document{Monitoring: m})
	if err != nil {
		return fmt.Errorf("failed to encode vitals snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := s.fs.Chmod(tmpName, filePerm); err != nil {
		slog.Debug("Failed to chmod temp snapshot", "path", tmpName, "error", err)
	}

	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// CheckWritable reports whether the snapshot directory accepts new files.
func (s *SnapshotFile) CheckWritable(_ context.Context) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot directory not available: %w", err)
	}
	probe, err := afero.TempFile(s.fs, dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("snapshot directory not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = s.fs.Remove(name)
	return nil
}

func encode(doc domain.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
