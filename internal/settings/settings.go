package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const schemaVersion = 1

const (
	defaultModelID          = "gpt-4"
	defaultSynonymThreshold = 85
	defaultResolveThreshold = 80
	defaultPreviewRows      = 5
	defaultMaxAgentTurns    = 12
)

type Settings struct {
	SchemaVersion    int    `json:"schema_version"`
	ModelID          string `json:"model_id"`
	SynonymThreshold int    `json:"synonym_threshold"`
	ResolveThreshold int    `json:"resolve_threshold"`
	PreviewRows      int    `json:"preview_rows"`
	MaxAgentTurns    int    `json:"max_agent_turns"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	backfillSettings(&settings)
	return &settings, nil
}

func (s *Store) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backfillSettings(settings)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) Update(fn func(*Settings)) (*Settings, error) {
	settings, err := s.Load()
	if err != nil {
		return nil, err
	}
	fn(settings)
	return settings, s.Save(settings)
}

// Default returns the built-in settings, used when no settings file can
// be read.
func Default() *Settings {
	return defaultSettings()
}

func defaultSettings() *Settings {
	return &Settings{
		SchemaVersion:    schemaVersion,
		ModelID:          defaultModelID,
		SynonymThreshold: defaultSynonymThreshold,
		ResolveThreshold: defaultResolveThreshold,
		PreviewRows:      defaultPreviewRows,
		MaxAgentTurns:    defaultMaxAgentTurns,
	}
}

// backfillSettings fills zero or out-of-range fields so settings files
// written by older builds keep loading.
func backfillSettings(settings *Settings) {
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = schemaVersion
	}
	if settings.ModelID == "" {
		settings.ModelID = defaultModelID
	}
	if settings.SynonymThreshold <= 0 || settings.SynonymThreshold > 100 {
		settings.SynonymThreshold = defaultSynonymThreshold
	}
	if settings.ResolveThreshold <= 0 || settings.ResolveThreshold > 100 {
		settings.ResolveThreshold = defaultResolveThreshold
	}
	if settings.PreviewRows <= 0 {
		settings.PreviewRows = defaultPreviewRows
	}
	if settings.MaxAgentTurns <= 0 {
		settings.MaxAgentTurns = defaultMaxAgentTurns
	}
}
