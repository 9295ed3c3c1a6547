package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store is a small key-value store for UI preferences, backed by a single
// JSON file. The in-memory map is the source of truth: writes that cannot
// reach disk fail silently and reads that find corrupt or mistyped data
// return the caller-supplied default.
//
// Keys carry an explicit schema-version suffix (e.g. "feature_drift_prefs_v2")
// so an incompatible stored shape is abandoned by bumping the key instead of
// writing migration code.
type Store struct {
	logger *zap.Logger
	path   string // empty = memory only

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// NewStore opens the store at path, loading any existing file. A missing,
// unreadable, or corrupt file simply yields an empty store.
func NewStore(logger *zap.Logger, path string) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		logger: logger,
		path:   path,
		values: make(map[string]json.RawMessage),
	}

	if path == "" {
		return s
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debug("prefs file unreadable, starting empty", zap.String("path", path), zap.Error(err))
		}
		return s
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(blob, &values); err != nil {
		logger.Debug("prefs file corrupt, starting empty", zap.String("path", path), zap.Error(err))
		return s
	}
	s.values = values

	return s
}

// Set stores a value under key and persists the store. Marshal or disk
// failures are swallowed; the in-memory value is kept either way.
func (s *Store) Set(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Debug("prefs value not serializable, dropped", zap.String("key", key), zap.Error(err))
		return
	}

	s.mu.Lock()
	s.values[key] = raw
	blob, marshalErr := json.MarshalIndent(s.values, "", "  ")
	s.mu.Unlock()

	if s.path == "" || marshalErr != nil {
		return
	}
	if err := s.writeFile(blob); err != nil {
		s.logger.Debug("prefs persist failed", zap.String("path", s.path), zap.Error(err))
	}
}

// Delete removes a key and persists the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	blob, marshalErr := json.MarshalIndent(s.values, "", "  ")
	s.mu.Unlock()

	if s.path == "" || marshalErr != nil {
		return
	}
	if err := s.writeFile(blob); err != nil {
		s.logger.Debug("prefs persist failed", zap.String("path", s.path), zap.Error(err))
	}
}

// GetString returns the stored string for key, or def.
func (s *Store) GetString(key, def string) string {
	var v string
	if s.getJSON(key, &v) {
		return v
	}
	return def
}

// GetInt returns the stored int for key, or def.
func (s *Store) GetInt(key string, def int) int {
	var v int
	if s.getJSON(key, &v) {
		return v
	}
	return def
}

// GetFloat64 returns the stored float for key, or def.
func (s *Store) GetFloat64(key string, def float64) float64 {
	var v float64
	if s.getJSON(key, &v) {
		return v
	}
	return def
}

// GetBool returns the stored bool for key, or def.
func (s *Store) GetBool(key string, def bool) bool {
	var v bool
	if s.getJSON(key, &v) {
		return v
	}
	return def
}

// GetJSON unmarshals the stored value for key into dest. It reports whether
// a well-formed value of the expected shape was found.
func (s *Store) GetJSON(key string, dest any) bool {
	return s.getJSON(key, dest)
}

func (s *Store) getJSON(key string, dest any) bool {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()

	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// Mistyped stored value: behave as if absent.
		return false
	}
	return true
}

// writeFile persists atomically via a temp file and rename.
func (s *Store) writeFile(blob []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, s.path)
}
