package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"reqflow/internal/domain"
	"reqflow/internal/geom"
)

// Store selects the workflow backend. SQLite needs no settings beyond the
// data dir; the others take either a URI or host/port/credentials.
type Store struct {
	Driver   domain.DatabaseDriver `json:"driver"`
	URI      string                `json:"uri,omitempty"`
	Host     string                `json:"host,omitempty"`
	Port     int                   `json:"port,omitempty"`
	User     string                `json:"user,omitempty"`
	Password string                `json:"password,omitempty"`
	Database string                `json:"database,omitempty"`
	SSLMode  string                `json:"sslMode,omitempty"`
}

// Canvas holds the routing, placement and zoom constants.
type Canvas struct {
	NodeWidth    float64 `json:"nodeWidth"`
	NodeHeight   float64 `json:"nodeHeight"`
	Gap          float64 `json:"gap"`
	Padding      float64 `json:"padding"`
	GridSize     float64 `json:"gridSize"`
	MaxRadius    int     `json:"maxRadius"`
	MinZoom      float64 `json:"minZoom"`
	MaxZoom      float64 `json:"maxZoom"`
	AnchorRadius float64 `json:"anchorRadius"`
}

// NodeSize returns the node dimensions.
func (c Canvas) NodeSize() geom.Size { return geom.Size{W: c.NodeWidth, H: c.NodeHeight} }

type Config struct {
	DataDir string `json:"dataDir"`
	Store   Store  `json:"store"`
	Canvas  Canvas `json:"canvas"`
}

// DBPath is the SQLite file inside the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "reqflow.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".local", "share", "reqflow"),
		Store:   Store{Driver: domain.DatabaseDriverSQLite},
		Canvas: Canvas{
			NodeWidth:    240,
			NodeHeight:   120,
			Gap:          56,
			Padding:      16,
			GridSize:     20,
			MaxRadius:    12,
			MinZoom:      0.5,
			MaxZoom:      2.0,
			AnchorRadius: 10,
		},
	}
}

// Load starts from Default, overlays config.json from the data dir when it
// exists, then applies REQFLOW_* environment variables.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := Default()
	if dir := getenv("REQFLOW_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	path := filepath.Join(cfg.DataDir, "config.json")
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("REQFLOW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("REQFLOW_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = domain.DatabaseDriver(v)
	}
	if v := getenv("REQFLOW_STORE_URI"); v != "" {
		cfg.Store.URI = v
	}
	if v := getenv("REQFLOW_STORE_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"REQFLOW_GRID_SIZE", &cfg.Canvas.GridSize},
		{"REQFLOW_GAP", &cfg.Canvas.Gap},
		{"REQFLOW_PADDING", &cfg.Canvas.Padding},
		{"REQFLOW_MIN_ZOOM", &cfg.Canvas.MinZoom},
		{"REQFLOW_MAX_ZOOM", &cfg.Canvas.MaxZoom},
	}
	for _, f := range floats {
		v := getenv(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = n
	}
	if v := getenv("REQFLOW_MAX_RADIUS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REQFLOW_MAX_RADIUS: %w", err)
		}
		cfg.Canvas.MaxRadius = n
	}
	return nil
}

// Validate rejects settings the canvas cannot work with.
func (c *Config) Validate() error {
	cv := c.Canvas
	switch {
	case cv.NodeWidth <= 0 || cv.NodeHeight <= 0:
		return fmt.Errorf("config: node size must be positive, got %vx%v", cv.NodeWidth, cv.NodeHeight)
	case cv.GridSize <= 0:
		return fmt.Errorf("config: grid size must be positive, got %v", cv.GridSize)
	case cv.Gap < 0 || cv.Padding < 0:
		return fmt.Errorf("config: gap and padding must not be negative")
	case cv.MaxRadius < 1:
		return fmt.Errorf("config: max ring radius must be at least 1, got %d", cv.MaxRadius)
	case cv.MinZoom <= 0 || cv.MaxZoom < cv.MinZoom:
		return fmt.Errorf("config: invalid zoom range [%v, %v]", cv.MinZoom, cv.MaxZoom)
	}
	switch c.Store.Driver {
	case domain.DatabaseDriverSQLite, domain.DatabaseDriverPostgres,
		domain.DatabaseDriverMySQL, domain.DatabaseDriverMongoDB:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}
