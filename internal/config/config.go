package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"upkeep/internal/template"
)

// Config models upkeep.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		TokenTTLMinutes int `yaml:"token_ttl_minutes"`
	} `yaml:"auth"`
	Templates struct {
		// Catalog is the default checklist catalog. It is seed data: the
		// bootstrap loads it into the asset-type store once, skipping names
		// that already exist, and it is never consulted at request time.
		Catalog map[string]CatalogEntry `yaml:"catalog"`
	} `yaml:"templates"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type CatalogEntry struct {
	Description string `yaml:"description"`
	Template    string `yaml:"template"`
}

type WebhookConfig struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
	Secret string   `yaml:"secret"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Auth.TokenTTLMinutes < 0 {
		return fmt.Errorf("config.auth.token_ttl_minutes must not be negative")
	}
	for name, entry := range c.Templates.Catalog {
		if name == "" {
			return fmt.Errorf("config.templates.catalog contains an empty name")
		}
		if entry.Template == "" {
			return fmt.Errorf("catalog template %s is empty", name)
		}
		if len(template.Parse(entry.Template)) == 0 {
			return fmt.Errorf("catalog template %s has no checklist sections", name)
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "upkeep.yml")
}

// TokenTTLMinutes returns the configured token lifetime, defaulting to 30.
func (c *Config) TokenTTLMinutes() int {
	if c.Auth.TokenTTLMinutes == 0 {
		return 30
	}
	return c.Auth.TokenTTLMinutes
}

// Default returns the built-in config with the stock template catalog.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultYAML)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultYAML = `server:
  addr: 127.0.0.1:8080
  base_path: /v0

auth:
  token_ttl_minutes: 30

templates:
  catalog:
    Community Hall:
      description: "Shared hall with kitchen and stage"
      template: |
        ## Safety
        - Check fire extinguishers are charged and accessible
        - Test emergency lighting
        - Inspect exit signage

        ## Kitchen
        - Clean extraction filters
        - Check fridge and freezer temperatures
        - Inspect gas shutoff valve

        ## General
        - Inspect flooring for trip hazards
        - Check window and door locks
    Boiler Room:
      description: "Plant room with heating equipment"
      template: |
        ## Heating Plant
        - Check boiler pressure
        - Bleed radiator circuits
        - Inspect flue for corrosion

        ## Compliance
        - Verify gas safety certificate is current
        - Record water temperature readings
    Playground:
      description: "Outdoor play area"
      template: |
        ## Equipment
        - Inspect swings, bolts and chains
        - Check impact surfacing depth

        ## Grounds
        - Clear litter and broken glass
        - Inspect fencing and gates
`
