package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := NewStore(nil, path)

	s.Set("model_metrics_interval_v1", 15)
	s.Set("model_metrics_auto_v1", true)
	s.Set("feature_drift_prefs_v2", map[string]any{"window": 200, "threshold": 3.0})
	s.Set("jobcenter.backfill_v1", "status:running")

	if got := s.GetInt("model_metrics_interval_v1", 0); got != 15 {
		t.Errorf("GetInt = %d, want 15", got)
	}
	if !s.GetBool("model_metrics_auto_v1", false) {
		t.Error("GetBool = false, want true")
	}
	if got := s.GetString("jobcenter.backfill_v1", ""); got != "status:running" {
		t.Errorf("GetString = %q", got)
	}

	var blob struct {
		Window    int     `json:"window"`
		Threshold float64 `json:"threshold"`
	}
	if !s.GetJSON("feature_drift_prefs_v2", &blob) {
		t.Fatal("GetJSON should find the stored blob")
	}
	if blob.Window != 200 || blob.Threshold != 3.0 {
		t.Errorf("blob = %+v", blob)
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	s1 := NewStore(nil, path)
	s1.Set("active_tab_v1", "drift")

	s2 := NewStore(nil, path)
	if got := s2.GetString("active_tab_v1", "runs"); got != "drift" {
		t.Errorf("reopened GetString = %q, want drift", got)
	}
}

func TestMissingKeyReturnsDefault(t *testing.T) {
	s := NewStore(nil, filepath.Join(t.TempDir(), "prefs.json"))

	if got := s.GetInt("nope_v1", 42); got != 42 {
		t.Errorf("GetInt default = %d, want 42", got)
	}
	if got := s.GetString("nope_v1", "fallback"); got != "fallback" {
		t.Errorf("GetString default = %q", got)
	}
	if got := s.GetFloat64("nope_v1", 2.5); got != 2.5 {
		t.Errorf("GetFloat64 default = %v", got)
	}
}

func TestMistypedValueReturnsDefault(t *testing.T) {
	s := NewStore(nil, filepath.Join(t.TempDir(), "prefs.json"))
	s.Set("interval_v1", "fifteen") // stored as string

	if got := s.GetInt("interval_v1", 30); got != 30 {
		t.Errorf("mistyped GetInt = %d, want default 30", got)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(nil, path)
	if got := s.GetString("anything_v1", "def"); got != "def" {
		t.Errorf("corrupt store GetString = %q, want def", got)
	}

	// The store must still accept writes afterwards.
	s.Set("anything_v1", "ok")
	if got := s.GetString("anything_v1", "def"); got != "ok" {
		t.Errorf("GetString after write = %q, want ok", got)
	}
}

func TestUnwritableStorageFailsSilently(t *testing.T) {
	// A path whose parent is a regular file cannot be created.
	dir := t.TempDir()
	file := filepath.Join(dir, "blocker")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(file, "sub", "prefs.json")

	s := NewStore(nil, path)
	s.Set("key_v1", "value") // must not panic or surface an error

	// In-memory state remains the source of truth.
	if got := s.GetString("key_v1", "def"); got != "value" {
		t.Errorf("GetString = %q, want value from memory", got)
	}
}

func TestMemoryOnlyStore(t *testing.T) {
	s := NewStore(nil, "")
	s.Set("k_v1", 7)
	if got := s.GetInt("k_v1", 0); got != 7 {
		t.Errorf("GetInt = %d, want 7", got)
	}
}

func TestDelete(t *testing.T) {
	s := NewStore(nil, filepath.Join(t.TempDir(), "prefs.json"))
	s.Set("k_v1", 7)
	s.Delete("k_v1")
	if got := s.GetInt("k_v1", -1); got != -1 {
		t.Errorf("GetInt after delete = %d, want default", got)
	}
}
