package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/config"
)

const levelXML = `<?xml version="1.0" encoding="utf-8"?>
<Instances>
	<Object type="cGUIButtonWidget" id="20002125">
		<Attribute name="mName" type="cFxString8"><Item>Main_MP</Item></Attribute>
	</Object>
	<Object type="cGUIButtonWidget" id="20002126">
		<Attribute name="mName" type="cFxString8"><Item>MPLoading_Back</Item></Attribute>
	</Object>
</Instances>
`

var scripts = map[string]string{
	"Main.lua":      "function gotoMP()\n\tPushPageStack(\"MPLoading\")\nend\n",
	"MPLoading.lua": "function gotoBack()\n\tPopPageStack()\nend\n",
}

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Frontend2_Level.xml"), []byte(levelXML), 0o644))
	for name, src := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(args ...string) result {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func analyzed(t *testing.T) string {
	t.Helper()
	dir := fixture(t)
	res := runCLI("analyze", "--path", dir)
	require.Equal(t, exitOK, res.code, res.stderr)
	return dir
}

func TestAnalyze(t *testing.T) {
	dir := fixture(t)
	res := runCLI("analyze", "--path", dir)

	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Pages:                2")
	assert.Contains(t, res.stdout, "Main")
	assert.Contains(t, res.stdout, "-> MPLoading")
	assert.FileExists(t, filepath.Join(dir, config.ReportJSONName))
	assert.FileExists(t, filepath.Join(dir, config.ReportHTMLName))
}

func TestAnalyze_TwiceIdentical(t *testing.T) {
	dir := analyzed(t)
	first, err := os.ReadFile(filepath.Join(dir, config.ReportJSONName))
	require.NoError(t, err)

	require.Equal(t, exitOK, runCLI("analyze", "--path", dir).code)
	second, err := os.ReadFile(filepath.Join(dir, config.ReportJSONName))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestAnalyze_OutDir(t *testing.T) {
	dir := fixture(t)
	out := filepath.Join(t.TempDir(), "reports")

	res := runCLI("analyze", "--path", dir, "--out", out)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(out, config.ReportJSONName))
	assert.NoFileExists(t, filepath.Join(dir, config.ReportJSONName))

	res = runCLI("list", "--out", out)
	assert.Equal(t, exitOK, res.code, res.stderr)
}

func TestAnalyze_InputError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Frontend2_Level.xml"), []byte("<Instances><Object"), 0o644))

	res := runCLI("analyze", "--path", dir)
	assert.Equal(t, exitInputError, res.code)
	assert.Contains(t, res.stderr, "Frontend2_Level.xml")
	assert.NoFileExists(t, filepath.Join(dir, config.ReportJSONName))
}

func TestSearch(t *testing.T) {
	dir := analyzed(t)

	res := runCLI("search", "goto", "--path", dir)
	assert.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "gotoMP")

	res = runCLI("search", "nonexistent_xyz", "--path", dir)
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "No matches")
}

func TestPage(t *testing.T) {
	dir := analyzed(t)
	reportPath := filepath.Join(dir, config.ReportJSONName)
	before, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	res := runCLI("page", "Main", "--path", dir)
	assert.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Main_MP")

	res = runCLI("page", "Credits", "--path", dir)
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, `Page "Credits" not found`)

	after, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPage_MainNotInReport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Frontend2_Level.xml"), []byte(levelXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MPLoading.lua"), []byte(scripts["MPLoading.lua"]), 0o644))
	require.Equal(t, exitOK, runCLI("analyze", "--path", dir).code)

	res := runCLI("page", "Main", "--path", dir)
	assert.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, `Page "Main" not found`)
	assert.NotContains(t, res.stderr, "Error:")
}

func TestList(t *testing.T) {
	dir := analyzed(t)

	res := runCLI("list", "--sort", "functions", "--path", dir)
	assert.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "2 page(s) sorted by functions")

	res = runCLI("list", "--sort", "bogus", "--path", dir)
	assert.Equal(t, exitInputError, res.code)
}

func TestMissingReport(t *testing.T) {
	dir := t.TempDir()
	for _, args := range [][]string{
		{"search", "goto", "--path", dir},
		{"page", "Main", "--path", dir},
		{"list", "--path", dir},
		{"serve", "--path", dir},
	} {
		res := runCLI(args...)
		assert.Equal(t, exitMissingReport, res.code, "args %v", args)
		assert.Contains(t, res.stderr, "run analyze first")
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"NoCommand", nil, exitInputError},
		{"UnknownCommand", []string{"frobnicate"}, exitInputError},
		{"UnknownFlag", []string{"list", "--nope"}, exitInputError},
		{"MissingPattern", []string{"search"}, exitInputError},
		{"ExtraArgument", []string{"page", "Main", "Options"}, exitInputError},
		{"Help", []string{"help"}, exitOK},
		{"CommandHelp", []string{"analyze", "--help"}, exitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runCLI(tt.args...).code)
		})
	}
}

func TestVerboseLogsToStderr(t *testing.T) {
	dir := fixture(t)
	res := runCLI("analyze", "-v", "--path", dir)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "[DEBUG]")
	assert.NotContains(t, res.stdout, "[DEBUG]")
}
