package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	MaxUploadMB    int64    `toml:"max_upload_mb"`
}

type BackendConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type GraphConfig struct {
	// Source selects where neighbourhood and full-graph queries go: "backend" or "bolt".
	Source         string  `toml:"source"`
	MaxRelations   int     `toml:"max_relations"`
	FocusScale     float64 `toml:"focus_scale"`
	FocusMillis    int     `toml:"focus_millis"`
	FocusEasing    string  `toml:"focus_easing"`
	Reconcile3D    bool    `toml:"reconcile_3d"`
	OntologyPrefix string  `toml:"ontology_prefix"`
}

type BoltConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type ColorsConfig struct {
	Default     uint32  `toml:"default"`
	Wall        uint32  `toml:"wall"`
	WallOpacity float64 `toml:"wall_opacity"`
	Conflict    uint32  `toml:"conflict"`
	Picked      uint32  `toml:"picked_emissive"`
}

type ViewerConfig struct {
	// UpAxis is the model's vertical axis; "z" rotates the ingested root onto Y-up.
	UpAxis        string       `toml:"up_axis"`
	FieldOfView   float64      `toml:"fov"`
	FramingMargin float64      `toml:"framing_margin"`
	WallTypes     []string     `toml:"wall_types"`
	// AssetDir is the only directory model_path may be read from locally.
	// Empty sends every model_path through the backend.
	AssetDir      string       `toml:"asset_dir"`
	Colors        ColorsConfig `toml:"colors"`
}

type LLMConfig struct {
	Provider         string `toml:"provider"`
	Model            string `toml:"model"`
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	SuggestionPrompt string `toml:"suggestion_prompt"`
}

type LogConfig struct {
	Mode  string `toml:"mode"`
	Level string `toml:"level"`
}

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Backend BackendConfig `toml:"backend"`
	Graph   GraphConfig   `toml:"graph"`
	Bolt    BoltConfig    `toml:"bolt"`
	Viewer  ViewerConfig  `toml:"viewer"`
	LLM     LLMConfig     `toml:"llm"`
	Log     LogConfig     `toml:"log"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
			MaxUploadMB:    200,
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:5000",
			TimeoutSeconds: 300,
		},
		Graph: GraphConfig{
			Source:         "backend",
			MaxRelations:   500,
			FocusScale:     1.5,
			FocusMillis:    1000,
			FocusEasing:    "easeInOutQuad",
			Reconcile3D:    true,
			OntologyPrefix: "http://exemplo.org/bim#",
		},
		Bolt: BoltConfig{
			URI: "bolt://localhost:7687",
		},
		Viewer: ViewerConfig{
			UpAxis:        "y",
			FieldOfView:   75,
			FramingMargin: 1.5,
			WallTypes:     []string{"IfcWall", "IfcWallStandardCase"},
			Colors: ColorsConfig{
				Default:     0xcccccc,
				Wall:        0x8090a0,
				WallOpacity: 0.7,
				Conflict:    0xff0000,
				Picked:      0xffff00,
			},
		},
		LLM: LLMConfig{
			SuggestionPrompt: "Você é um especialista em BIM. Forneça uma sugestão de correção clara e concisa para o seguinte conflito: %s",
		},
		Log: LogConfig{
			Mode:  "dev",
			Level: "info",
		},
	}
}

// Load reads a TOML file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides values with environment variables when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("GRAPH_SOURCE"); v != "" {
		c.Graph.Source = v
	}
	if v := os.Getenv("BOLT_URI"); v != "" {
		c.Bolt.URI = v
	}
	if v := os.Getenv("BOLT_USER"); v != "" {
		c.Bolt.User = v
	}
	if v := os.Getenv("BOLT_PASSWORD"); v != "" {
		c.Bolt.Password = v
	}
	if v := os.Getenv("VIEWER_UP_AXIS"); v != "" {
		c.Viewer.UpAxis = v
	}
	if v := os.Getenv("ASSET_DIR"); v != "" {
		c.Viewer.AssetDir = v
	}
	if v := os.Getenv("ONTOLOGY_PREFIX"); v != "" {
		c.Graph.OntologyPrefix = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		c.Log.Mode = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BACKEND_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Backend.TimeoutSeconds = n
		}
	}
}

// Validate rejects settings the engine cannot honour.
func (c *Config) Validate() error {
	switch c.Viewer.UpAxis {
	case "y", "z":
	default:
		return fmt.Errorf("invalid viewer.up_axis '%s': must be \"y\" or \"z\"", c.Viewer.UpAxis)
	}
	switch c.Graph.Source {
	case "backend", "bolt":
	default:
		return fmt.Errorf("invalid graph.source '%s': must be \"backend\" or \"bolt\"", c.Graph.Source)
	}
	if c.Viewer.FieldOfView <= 0 || c.Viewer.FieldOfView >= 180 {
		return fmt.Errorf("invalid viewer.fov %v", c.Viewer.FieldOfView)
	}
	if c.Viewer.FramingMargin <= 0 {
		return fmt.Errorf("invalid viewer.framing_margin %v", c.Viewer.FramingMargin)
	}
	if c.Graph.MaxRelations <= 0 {
		return fmt.Errorf("invalid graph.max_relations %d", c.Graph.MaxRelations)
	}
	if c.Graph.OntologyPrefix == "" {
		return fmt.Errorf("graph.ontology_prefix must not be empty")
	}
	return nil
}
