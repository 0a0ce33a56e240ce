package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvAPIKey is the environment variable consulted when source.api_key is empty.
const EnvAPIKey = "N2YO_API_KEY"

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Request   RequestConfig   `yaml:"request"`
	Map       MapConfig       `yaml:"map"`
	Animation AnimationConfig `yaml:"animation"`
	Observer  ObserverConfig  `yaml:"observer"`
	Source    SourceConfig    `yaml:"source"`
	Export    ExportConfig    `yaml:"export"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address string `yaml:"address" validate:"required,hostname_port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific log.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// DBConfig holds the response cache database settings.
type DBConfig struct {
	Path     string   `yaml:"path" validate:"required"`
	CacheTTL Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries   int           `yaml:"retries" validate:"gte=1,lte=10"`
	Timeout   Duration      `yaml:"timeout" validate:"gt=0"`
	SafetyGap Duration      `yaml:"safety_gap" validate:"gte=0"`
	Backoff   BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay" validate:"gt=0"`
	MaxDelay  Duration `yaml:"max_delay" validate:"gtefield=BaseDelay"`
}

// MapConfig controls the projected world map.
type MapConfig struct {
	Width      int     `yaml:"width" validate:"gt=0"`
	Height     int     `yaml:"height" validate:"gt=0"`
	Projection string  `yaml:"projection" validate:"oneof=kavrayskiy7 equirectangular"`
	Scale      float64 `yaml:"scale" validate:"gt=0"`
	Resample   float64 `yaml:"resample" validate:"gte=0,lte=10"`
	LandObject string  `yaml:"land_object"`
}

// AnimationConfig controls the track animation.
type AnimationConfig struct {
	Tick         Duration `yaml:"tick" validate:"gt=0"`
	Acceleration float64  `yaml:"acceleration" validate:"gt=0"`
	CursorStep   int      `yaml:"cursor_step" validate:"gte=1"`
	MarkerRadius float64  `yaml:"marker_radius" validate:"gt=0"`
	LabelOffset  float64  `yaml:"label_offset"`
	ClockFormat  string   `yaml:"clock_format"`
}

// ObserverConfig is the ground position and window passed to the position source.
type ObserverConfig struct {
	Lat       float64  `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon       float64  `yaml:"lon" validate:"gte=-180,lte=180"`
	Elevation Distance `yaml:"elevation"`
	Duration  Duration `yaml:"duration" validate:"gt=0"`
}

// SourceConfig selects where positions and land data come from.
type SourceConfig struct {
	Provider string   `yaml:"provider" validate:"oneof=n2yo sgp4"`
	BaseURL  string   `yaml:"base_url" validate:"omitempty,url"`
	APIKey   string   `yaml:"api_key"`
	TLEFile  string   `yaml:"tle_file"`
	LandURL  string   `yaml:"land_url" validate:"omitempty,url"`
	LandPath string   `yaml:"land_path"`
	Objects  []string `yaml:"objects"`
}

// ExportConfig controls GIF recording of finished runs.
type ExportConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Dir       string   `yaml:"dir"`
	MaxFrames int      `yaml:"max_frames" validate:"gte=0"`
	Delay     Duration `yaml:"delay" validate:"gte=0"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:8090",
		},
		Log: LogConfig{
			Server:   LogSettings{Path: "logs/server.log", Level: "INFO"},
			Requests: LogSettings{Path: "logs/requests.log", Level: "INFO"},
			Events:   LogSettings{Path: "logs/events.log", Level: "INFO"},
		},
		DB: DBConfig{
			Path:     "data/groundtrack.db",
			CacheTTL: Duration(Week),
		},
		Request: RequestConfig{
			Retries:   3,
			Timeout:   Duration(30 * time.Second),
			SafetyGap: Duration(200 * time.Millisecond),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Map: MapConfig{
			Width:      960,
			Height:     600,
			Projection: "kavrayskiy7",
			Scale:      170,
			Resample:   1,
			LandObject: "countries",
		},
		Animation: AnimationConfig{
			Tick:         Duration(time.Second),
			Acceleration: 60,
			CursorStep:   60,
			MarkerRadius: 4,
			LabelOffset:  14,
			ClockFormat:  "2006-01-02 15:04:05 MST",
		},
		Observer: ObserverConfig{
			Lat:       37.4,
			Lon:       -122.1,
			Elevation: 0,
			Duration:  Duration(5 * time.Minute),
		},
		Source: SourceConfig{
			Provider: "n2yo",
			BaseURL:  "https://api.n2yo.com/rest/v1/satellite",
			LandURL:  "https://unpkg.com/world-atlas@1.1.4/world/110m.json",
			Objects:  []string{"25544"},
		},
		Export: ExportConfig{
			Enabled:   false,
			Dir:       "data/export",
			MaxFrames: 600,
			Delay:     Duration(100 * time.Millisecond),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Values from the file are merged over the defaults but never written back, so user
// formatting and comments survive. Secrets may come from the environment or a .env
// file next to the config; they are not persisted either.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	loadDotEnv(dir)
	if cfg.Source.APIKey == "" {
		cfg.Source.APIKey = os.Getenv(EnvAPIKey)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv reads .env from the working directory and the config directory.
// Variables already set in the environment win.
func loadDotEnv(dir string) {
	for _, p := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Log.Server.Path, &c.Log.Requests.Path, &c.Log.Events.Path,
		&c.DB.Path, &c.Source.TLEFile, &c.Source.LandPath, &c.Export.Dir,
	} {
		*p = expandPath(*p)
	}
}

var windowsVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath expands $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = windowsVar.ReplaceAllStringFunc(p, func(m string) string {
		return os.Getenv(strings.Trim(m, "%"))
	})
	return os.ExpandEnv(p)
}

var validate = validator.New()

// Validate checks field constraints and the provider-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Source.Provider {
	case "n2yo":
		if c.Source.BaseURL == "" {
			return errors.New("invalid config: source.base_url is required for provider n2yo")
		}
	case "sgp4":
		if c.Source.TLEFile == "" {
			return errors.New("invalid config: source.tle_file is required for provider sgp4")
		}
	}
	if c.Source.LandURL == "" && c.Source.LandPath == "" {
		return errors.New("invalid config: one of source.land_url or source.land_path is required")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# groundtrack configuration
# -------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)
# The N2YO API key may be left empty and supplied via ` + EnvAPIKey + ` or a .env file.

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: n2yo, sgp4 (offline, needs tle_file)\n${1}provider:"))

	reProjection := regexp.MustCompile(`(?m)^(\s+)projection:`)
	data = reProjection.ReplaceAll(data, []byte("${1}# Options: kavrayskiy7, equirectangular\n${1}projection:"))

	reDuration := regexp.MustCompile(`(?m)^(\s+)duration:`)
	data = reDuration.ReplaceAll(data, []byte("${1}# Length of the fetched track; one position per second\n${1}duration:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
