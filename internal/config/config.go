package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// FileName is the config file looked up in the working directory.
const FileName = "eosync.yaml"

type Config struct {
	Output   Output   `yaml:"output"`
	Registry Registry `yaml:"registry"`
	Sync     Sync     `yaml:"sync"`
	HTTP     HTTP     `yaml:"http"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Output struct {
	DataDir       string `yaml:"data_dir"`
	CSVFile       string `yaml:"csv_file"`
	WatermarkFile string `yaml:"watermark_file"`
	TextDir       string `yaml:"text_dir"`
	HistoryDB     string `yaml:"history_db"`
}

// Registry holds the document registry endpoints and the fixed query filters.
type Registry struct {
	DocumentsURL             string `yaml:"documents_url"`
	FullTextURL              string `yaml:"full_text_url"`
	PerPage                  int    `yaml:"per_page"`
	Order                    string `yaml:"order"`
	Type                     string `yaml:"type"`
	PresidentialDocumentType string `yaml:"presidential_document_type"`
	President                string `yaml:"president"`
}

type Sync struct {
	DefaultStartDate string `yaml:"default_start_date"`
	Profile          string `yaml:"profile"`
	Dedup            bool   `yaml:"dedup"`
	History          bool   `yaml:"history"`
}

type HTTP struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ./eosync.yaml. An empty result means the embedded
// defaults apply.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}
	return "", nil
}

// Load reads and parses a config YAML file. An empty path yields the
// embedded defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		data = b
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Output: Output{
			CSVFile:       "executive_orders.csv",
			WatermarkFile: "last_eo_date.txt",
			TextDir:       "executive_order_txt",
			HistoryDB:     "eosync.db",
		},
		Registry: Registry{
			DocumentsURL:             "https://www.federalregister.gov/api/v1/documents.json",
			FullTextURL:              "https://www.federalregister.gov/documents/full_text/xml/{year}/{month}/{day}/{document_number}.xml",
			PerPage:                  1000,
			Order:                    "newest",
			Type:                     "PRESDOCU",
			PresidentialDocumentType: "executive_order",
			President:                "donald-trump",
		},
		Sync: Sync{
			DefaultStartDate: "2025-01-20",
			Profile:          "minimal",
			Dedup:            true,
			History:          true,
		},
		HTTP:    HTTP{UserAgent: "EOSync/1.0 (executive order tracker)"},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EOSYNC_DATA_DIR"); v != "" {
		c.Output.DataDir = v
	}
	if v := os.Getenv("EOSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks values the sync cannot run without.
func (c *Config) Validate() error {
	if _, err := time.Parse("2006-01-02", c.Sync.DefaultStartDate); err != nil {
		return fmt.Errorf("invalid sync.default_start_date %q: %w", c.Sync.DefaultStartDate, err)
	}
	switch c.Sync.Profile {
	case "minimal", "extended":
	default:
		return fmt.Errorf("unknown sync.profile %q (want minimal or extended)", c.Sync.Profile)
	}
	if c.Registry.DocumentsURL == "" || c.Registry.FullTextURL == "" {
		return fmt.Errorf("registry urls must be set")
	}
	return nil
}

// Path resolves a configured file name against the data directory.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) || c.Output.DataDir == "" {
		return name
	}
	return filepath.Join(c.Output.DataDir, name)
}

func (c *Config) CSVPath() string       { return c.Path(c.Output.CSVFile) }
func (c *Config) WatermarkPath() string { return c.Path(c.Output.WatermarkFile) }
func (c *Config) TextDir() string       { return c.Path(c.Output.TextDir) }
func (c *Config) HistoryPath() string   { return c.Path(c.Output.HistoryDB) }
