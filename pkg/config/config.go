package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultFile is the optional config file looked up in the working directory
	DefaultFile = "menu-cli.toml"

	// EnvPrefix marks environment overrides, e.g. BW2MENU_XML=/data/Frontend2_Level.xml
	EnvPrefix = "BW2MENU_"

	ReportJSONName = "button_organization_report.json"
	ReportHTMLName = "button_organization_report.html"
)

// Only input/output paths may come from the environment
var envKeys = map[string]bool{
	"path":    true,
	"xml":     true,
	"scripts": true,
	"out":     true,
	"report":  true,
}

// Config holds all configuration for the application
type Config struct {
	Path      string `koanf:"path" validate:"required"`
	XML       string `koanf:"xml" validate:"required"`
	Scripts   string `koanf:"scripts"`
	Out       string `koanf:"out"`
	Report    string `koanf:"report"`
	Watch     bool   `koanf:"watch"`
	Port      int    `koanf:"port" validate:"min=1,max=65535"`
	Sort      string `koanf:"sort" validate:"oneof=name functions connections"`
	Verbosity string `koanf:"verbosity" validate:"omitempty,oneof=trace debug info warn error"`
	LogJSON   bool   `koanf:"log-json"`
	Workers   int    `koanf:"workers" validate:"min=1,max=64"`

	Extract ExtractConfig `koanf:"extract"`
	Scan    ScanConfig    `koanf:"scan"`
	Match   MatchConfig   `koanf:"match"`
}

// ExtractConfig controls which XML nodes count as widgets
type ExtractConfig struct {
	Element  string   `koanf:"element" validate:"required"`
	Types    []string `koanf:"types" validate:"min=1,dive,required"`
	NameKeys []string `koanf:"name_keys" validate:"min=1,dive,required"`
}

// ScanConfig controls which Lua identifiers count as navigation verbs
type ScanConfig struct {
	GotoPrefixes []string `koanf:"goto_prefixes" validate:"dive,required"`
	Verbs        []string `koanf:"verbs" validate:"dive,required"`
	RegisterFunc string   `koanf:"register_func"`
}

// MatchConfig is the button-name to handler-name convention.
// Templates may use {name} (full button name) and {short} (name without
// the page prefix).
type MatchConfig struct {
	Handlers []string `koanf:"handlers" validate:"min=1,dive,required"`
	FoldCase bool     `koanf:"fold_case"`
}

var validate = validator.New()

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"path":      ".",
		"xml":       "Frontend2_Level.xml",
		"scripts":   "",
		"out":       "",
		"report":    "",
		"watch":     false,
		"port":      8080,
		"sort":      "name",
		"verbosity": "",
		"log-json":  false,
		"workers":   4,
		"extract": map[string]interface{}{
			"element":   "Object",
			"types":     []string{"cGUIButtonWidget"},
			"name_keys": []string{"mName", "name", "Name"},
		},
		"scan": map[string]interface{}{
			"goto_prefixes": []string{"goto"},
			"verbs":         []string{"PushPageStack", "PopPageStack", "SetPageStack", "ResetPageStack"},
			"register_func": "RegisterReflectionId",
		},
		"match": map[string]interface{}{
			"handlers":  []string{"{name}", "goto{short}", "{short}"},
			"fold_case": true,
		},
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(f, DefaultFile)
}

// LoadFile is Load with an explicit config file path. A missing file is not an error.
func LoadFile(f *pflag.FlagSet, configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if !envKeys[key] {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and reports the first violation
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("config %s: field is required", field)
		case "min":
			return fmt.Errorf("config %s: must be at least %s", field, e.Param())
		case "max":
			return fmt.Errorf("config %s: must not exceed %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("config %s: must be one of [%s], got %q", field, e.Param(), fmt.Sprint(e.Value()))
		default:
			return fmt.Errorf("config %s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}

// XMLPath is the XML file, relative paths resolved against Path
func (c *Config) XMLPath() string {
	return c.resolve(c.XML)
}

// ScriptsPath is the Lua directory; it defaults to Path
func (c *Config) ScriptsPath() string {
	if c.Scripts == "" {
		return c.Path
	}
	return c.resolve(c.Scripts)
}

// OutPath is the report directory; it defaults to Path
func (c *Config) OutPath() string {
	if c.Out == "" {
		return c.Path
	}
	return c.Out
}

// ReportPath is the JSON report written by analyze and read by the query commands
func (c *Config) ReportPath() string {
	if c.Report != "" {
		return c.Report
	}
	return filepath.Join(c.OutPath(), ReportJSONName)
}

// HTMLPath is the HTML report written next to the JSON report
func (c *Config) HTMLPath() string {
	return filepath.Join(filepath.Dir(c.ReportPath()), ReportHTMLName)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Path, p)
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
