package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.ModelID != defaultModelID {
		t.Fatalf("expected default model %q, got %q", defaultModelID, settings.ModelID)
	}
	if settings.SynonymThreshold != defaultSynonymThreshold {
		t.Fatalf("expected synonym threshold %d, got %d", defaultSynonymThreshold, settings.SynonymThreshold)
	}
	if settings.ResolveThreshold != defaultResolveThreshold {
		t.Fatalf("expected resolve threshold %d, got %d", defaultResolveThreshold, settings.ResolveThreshold)
	}

	settings.ModelID = "gpt-4-turbo"
	settings.PreviewRows = 10
	if err := store.Save(settings); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.ModelID != "gpt-4-turbo" {
		t.Fatalf("expected saved model to persist, got %q", loaded.ModelID)
	}
	if loaded.PreviewRows != 10 {
		t.Fatalf("expected saved preview rows to persist, got %d", loaded.PreviewRows)
	}
}

func TestLoadBackfillsMissingFields(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "settings.json")
	legacy := `{
  "schema_version": 1,
  "model_id": "gpt-4",
  "synonym_threshold": 90
}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write legacy settings: %v", err)
	}

	store := NewStore(path)
	settings, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.SynonymThreshold != 90 {
		t.Fatalf("explicit value should survive, got %d", settings.SynonymThreshold)
	}
	if settings.ResolveThreshold != defaultResolveThreshold {
		t.Fatalf("missing resolve threshold should backfill to %d, got %d", defaultResolveThreshold, settings.ResolveThreshold)
	}
	if settings.MaxAgentTurns != defaultMaxAgentTurns {
		t.Fatalf("missing max turns should backfill to %d, got %d", defaultMaxAgentTurns, settings.MaxAgentTurns)
	}
}

func TestLoadClampsOutOfRangeThresholds(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "settings.json")
	bad := `{"schema_version": 1, "synonym_threshold": 500, "resolve_threshold": -3}`
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	settings, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.SynonymThreshold != defaultSynonymThreshold {
		t.Fatalf("out-of-range synonym threshold should reset, got %d", settings.SynonymThreshold)
	}
	if settings.ResolveThreshold != defaultResolveThreshold {
		t.Fatalf("out-of-range resolve threshold should reset, got %d", settings.ResolveThreshold)
	}
}

func TestUpdatePersists(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "settings.json"))
	updated, err := store.Update(func(s *Settings) {
		s.MaxAgentTurns = 20
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.MaxAgentTurns != 20 {
		t.Fatalf("update result = %d, want 20", updated.MaxAgentTurns)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.MaxAgentTurns != 20 {
		t.Fatalf("update did not persist, got %d", loaded.MaxAgentTurns)
	}
}
