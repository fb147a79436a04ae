package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(args ...string) *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("path", ".", "")
	f.String("xml", "Frontend2_Level.xml", "")
	f.String("sort", "name", "")
	f.Int("port", 8080, "")
	_ = f.Parse(args)
	return f
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFile(newFlags(), "")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Path)
	assert.Equal(t, "Frontend2_Level.xml", cfg.XMLPath())
	assert.Equal(t, ".", cfg.ScriptsPath())
	assert.Equal(t, ReportJSONName, cfg.ReportPath())
	assert.Equal(t, ReportHTMLName, cfg.HTMLPath())
	assert.Equal(t, []string{"cGUIButtonWidget"}, cfg.Extract.Types)
	assert.Equal(t, "Object", cfg.Extract.Element)
	assert.Contains(t, cfg.Scan.Verbs, "PushPageStack")
	assert.Equal(t, []string{"goto"}, cfg.Scan.GotoPrefixes)
	assert.True(t, cfg.Match.FoldCase)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	cfg, err := LoadFile(newFlags("--path", "/game/menu", "--sort", "functions"), "")
	require.NoError(t, err)

	assert.Equal(t, "/game/menu", cfg.Path)
	assert.Equal(t, "functions", cfg.Sort)
	assert.Equal(t, filepath.Join("/game/menu", "Frontend2_Level.xml"), cfg.XMLPath())
	assert.Equal(t, filepath.Join("/game/menu", ReportJSONName), cfg.ReportPath())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu-cli.toml")
	content := `
xml = "gui/Frontend.xml"
workers = 2

[extract]
types = ["cGUIButtonWidget", "cGUICustomWidget"]

[match]
handlers = ["{name}"]
fold_case = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(newFlags(), path)
	require.NoError(t, err)

	assert.Equal(t, "gui/Frontend.xml", cfg.XML)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, []string{"cGUIButtonWidget", "cGUICustomWidget"}, cfg.Extract.Types)
	assert.Equal(t, []string{"{name}"}, cfg.Match.Handlers)
	assert.False(t, cfg.Match.FoldCase)
	// Untouched nested keys keep their defaults
	assert.Equal(t, "Object", cfg.Extract.Element)
}

func TestLoad_EnvOnlyOverridesPaths(t *testing.T) {
	t.Setenv("BW2MENU_XML", "/data/Frontend2_Level.xml")
	t.Setenv("BW2MENU_SORT", "connections")

	cfg, err := LoadFile(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "/data/Frontend2_Level.xml", cfg.XMLPath())
	assert.Equal(t, "name", cfg.Sort, "sort is not a path and must ignore the environment")
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("BW2MENU_XML", "/env/level.xml")

	cfg, err := LoadFile(newFlags("--xml", "/flag/level.xml"), "")
	require.NoError(t, err)
	assert.Equal(t, "/flag/level.xml", cfg.XMLPath())
}

func TestLoad_InvalidSort(t *testing.T) {
	_, err := LoadFile(newFlags("--sort", "size"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sort")
}

func TestLoad_InvalidPort(t *testing.T) {
	_, err := LoadFile(newFlags("--port", "0"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Port")
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu-cli.toml")
	require.NoError(t, os.WriteFile(path, []byte("xml = [unclosed"), 0o644))

	_, err := LoadFile(newFlags(), path)
	require.Error(t, err)
}
