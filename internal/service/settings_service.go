package service

import (
	"fmt"
	"strconv"

	"reqflow/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Settings: window size and last opened workflow
// ─────────────────────────────────────────────────────────────
//
// Rows live in the app_settings table of the SQL store. With a Mongo
// workflow store the settings still go to the local SQLite file.

// WindowSize holds the saved window dimensions.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SettingsService persists UI state between sessions.
type SettingsService struct {
	store *storage.SettingsStore
}

// NewSettingsService creates a SettingsService. A nil store serves defaults.
func NewSettingsService(store *storage.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

const (
	settingWindowWidth  = "window_width"
	settingWindowHeight = "window_height"
	settingLastWorkflow = "last_workflow"
	defaultWindowWidth  = 1280
	defaultWindowHeight = 800
	minWindowWidth      = 800
	minWindowHeight     = 600
)

// LoadWindowSize returns the saved window dimensions, or sensible defaults.
func (s *SettingsService) LoadWindowSize() WindowSize {
	w := s.intSetting(settingWindowWidth, defaultWindowWidth)
	h := s.intSetting(settingWindowHeight, defaultWindowHeight)
	if w < minWindowWidth {
		w = defaultWindowWidth
	}
	if h < minWindowHeight {
		h = defaultWindowHeight
	}
	return WindowSize{Width: w, Height: h}
}

// SaveWindowSize persists the current window dimensions.
func (s *SettingsService) SaveWindowSize(width, height int) error {
	if s.store == nil {
		return fmt.Errorf("settings: no store")
	}
	if err := s.store.Set(settingWindowWidth, strconv.Itoa(width)); err != nil {
		return err
	}
	return s.store.Set(settingWindowHeight, strconv.Itoa(height))
}

// LastWorkflow returns the id of the workflow open when the app closed.
func (s *SettingsService) LastWorkflow() string {
	if s.store == nil {
		return ""
	}
	v, _, err := s.store.Get(settingLastWorkflow)
	if err != nil {
		return ""
	}
	return v
}

// SetLastWorkflow remembers the selected workflow.
func (s *SettingsService) SetLastWorkflow(id string) error {
	if s.store == nil {
		return fmt.Errorf("settings: no store")
	}
	return s.store.Set(settingLastWorkflow, id)
}

func (s *SettingsService) intSetting(key string, def int) int {
	if s.store == nil {
		return def
	}
	v, ok, err := s.store.Get(key)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
