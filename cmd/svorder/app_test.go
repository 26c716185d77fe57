package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunPrintsOrder(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "top.sv", "module top;\n  leaf u_leaf();\nendmodule\n")
	writeFile(t, dir, "leaf.sv", "module leaf;\nendmodule\n")

	code, stdout, stderr := runCLI(t, "top.sv", "leaf.sv")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "leaf.sv top.sv\n", stdout)
}

func TestRunFormats(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "top.sv", "module top;\n  leaf u_leaf();\nendmodule\n")
	writeFile(t, dir, "leaf.sv", "module leaf;\nendmodule\n")
	writeFile(t, dir, "p.sv", "module p;\n  q u();\nendmodule\n")
	writeFile(t, dir, "q.sv", "module q;\n  p u();\nendmodule\n")

	code, stdout, _ := runCLI(t, "--format", "lines", "top.sv", "leaf.sv")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "leaf.sv\ntop.sv\n", stdout)

	code, stdout, _ = runCLI(t, "--format=json", "top.sv", "leaf.sv", "p.sv", "q.sv")
	require.Equal(t, exitOK, code)
	var doc struct {
		Order   []string `json:"order"`
		Omitted []string `json:"omitted"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, []string{"leaf.sv", "top.sv"}, doc.Order)
	assert.Equal(t, []string{"p.sv", "q.sv"}, doc.Omitted)
}

func TestRunParseErrorExitsOne(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "good.sv", "module good;\nendmodule\n")
	writeFile(t, dir, "bad.sv", "module bad;\n  endpackage\nendmodule\n")

	code, stdout, stderr := runCLI(t, "good.sv", "bad.sv")
	assert.Equal(t, exitError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "bad.sv")
}

func TestRunUsageErrors(t *testing.T) {
	code, stdout, stderr := runCLI(t)
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "at least one source file")

	code, _, stderr = runCLI(t, "--no-such-flag", "a.sv")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "no-such-flag")
}

func TestRunInvalidFlagValue(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "leaf.sv", "module leaf;\nendmodule\n")

	code, _, stderr := runCLI(t, "--format", "xml", "leaf.sv")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "output.format")

	code, _, stderr = runCLI(t, "-D", "1X", "leaf.sv")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "defines entry")
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, VERSION)
}

func TestRunIncludeAndDefineFlags(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "inc/names.svh", "`define CHILD leaf\n")
	writeFile(t, dir, "top.sv", "`include \"names.svh\"\nmodule top;\n`ifdef WITH_CHILD\n  `CHILD u();\n`endif\nendmodule\n")
	writeFile(t, dir, "leaf.sv", "module leaf;\nendmodule\n")

	code, stdout, stderr := runCLI(t, "-I", "inc", "-D", "WITH_CHILD", "top.sv", "leaf.sv")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "leaf.sv top.sv\n", stdout)

	code, _, stderr = runCLI(t, "top.sv", "leaf.sv")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "names.svh")
}

func TestRunConfigFileAndArtifacts(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "rtl/top.sv", "module top;\n  import cfg_pkg::*;\n  leaf u();\nendmodule\n")
	writeFile(t, dir, "rtl/leaf.sv", "module leaf;\nendmodule\n")
	writeFile(t, dir, "rtl/pkg.sv", "package cfg_pkg;\nendpackage\n")
	writeFile(t, dir, "rtl/leaf_tb.sv", "module leaf_tb;\n  leaf dut();\nendmodule\n")
	writeFile(t, dir, "conf/svorder.toml", `
[sources]
exclude_files = ["*_tb.sv"]

[output]
format = "lines"
graph_format = "mermaid"
graph_path = "../out/deps.mmd"
database = "../out/runs.db"

[observability]
metrics_file = "../out/svorder.prom"
`)

	code, stdout, stderr := runCLI(t, "-c", "conf/svorder.toml", "rtl")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, filepath.Join("rtl", "pkg.sv")+"\n"+filepath.Join("rtl", "leaf.sv")+"\n"+filepath.Join("rtl", "top.sv")+"\n", stdout)

	for _, name := range []string{"deps.mmd", "runs.db", "svorder.prom"} {
		_, err := os.Stat(filepath.Join(dir, "out", name))
		assert.NoError(t, err, name)
	}
	mmd, err := os.ReadFile(filepath.Join(dir, "out", "deps.mmd"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(mmd), "%%{init"))
}

func TestRunMissingExplicitConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "leaf.sv", "module leaf;\nendmodule\n")

	code, _, stderr := runCLI(t, "--config", "missing.toml", "leaf.sv")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "missing.toml")
}

func TestRunVerboseDiagnostics(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "a.sv", "package P;\nendpackage\nmodule wrap;\n  M u();\nendmodule\n")
	writeFile(t, dir, "b.sv", "module M;\n  import P::*;\nendmodule\n")

	code, stdout, stderr := runCLI(t, "-v", "a.sv", "b.sv")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "a.sv b.sv\n", stdout)
	assert.Contains(t, stderr, "suppressed module edge")
	assert.Contains(t, stderr, "run_id=")
	assert.Contains(t, stderr, "parsing")
}
