// Package statestore implements ports.StateStore as a single JSON
// document written atomically: temp file in the same directory, fsync,
// rename. This is a deliberate departure from the OHLCV cache's SQLite
// backing (internal/adapters/ohlcvcache): the state document is one
// small, whole-document snapshot under a single writer, so a filesystem
// rename gives atomicity with far less machinery than a SQL transaction,
// and it degrades safely to "identical to the prior cycle's file" rather
// than to a partially-committed row set.
package statestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

const emergencyStopFilename = "EMERGENCY_STOP"

// FileStore implements ports.StateStore.
type FileStore struct {
	path string
	log  zerolog.Logger
}

// New returns a FileStore rooted at path, with the heartbeat file at
// "<path>.heartbeat" and the emergency-stop sentinel at
// "<dir>/EMERGENCY_STOP".
func New(path string, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (f *FileStore) heartbeatPath() string {
	return f.path + ".heartbeat"
}

// Load reads the state document. Absence returns zero-value defaults;
// corrupt JSON is logged and also returns defaults, never an error that
// would crash the caller.
func (f *FileStore) Load(ctx context.Context) (ports.StateDocument, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return defaultDocument(), nil
	}
	if err != nil {
		f.log.Warn().Err(err).Str("path", f.path).Msg("state store: read failed, using defaults")
		return defaultDocument(), nil
	}

	var doc ports.StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		f.log.Warn().Err(err).Str("path", f.path).Msg("state store: corrupt JSON, using defaults")
		return defaultDocument(), nil
	}
	return doc, nil
}

func defaultDocument() ports.StateDocument {
	return ports.StateDocument{
		Positions:   make(map[string]domain.Position),
		Cooldowns:   make(map[string]domain.CooldownEntry),
		SymbolStats: make(map[string]domain.SymbolStats),
	}
}

// Save serializes doc to a sibling temp file, fsyncs it, then renames it
// onto the target path — an atomic write contract. A crash at
// any point before the rename leaves the prior file untouched.
func (f *FileStore) Save(ctx context.Context, doc ports.StateDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return domain.NewStateIOError(err, "marshal state document: %v", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return domain.NewStateIOError(err, "create temp file in %s: %v", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return domain.NewStateIOError(err, "write temp file: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.NewStateIOError(err, "fsync temp file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.NewStateIOError(err, "close temp file: %v", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return domain.NewStateIOError(err, "rename temp file onto %s: %v", f.path, err)
	}
	return nil
}

// Heartbeat writes the current timestamp to the sibling heartbeat file.
// It is a separate, smaller write from Save so external monitors can
// poll liveness without parsing the full document.
func (f *FileStore) Heartbeat(ctx context.Context, at time.Time) error {
	data := []byte(at.UTC().Format(time.RFC3339Nano))
	if err := os.WriteFile(f.heartbeatPath(), data, 0o644); err != nil {
		return domain.NewStateIOError(err, "write heartbeat: %v", err)
	}
	return nil
}

// EmergencyStopActive reports whether the zero-byte EMERGENCY_STOP
// sentinel is present next to the state file.
func (f *FileStore) EmergencyStopActive() bool {
	_, err := os.Stat(filepath.Join(filepath.Dir(f.path), emergencyStopFilename))
	return err == nil
}
