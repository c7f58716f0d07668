package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/pclkit/config"
)

const job = "\x1b%-12345X@PJL ENTER LANGUAGE=PCL\r\n\x1bE\x1b&l0S\x1b*p10x20YHi\r\n\x1b*b2W\x01\x02\x1bE"

func writeJob(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write job: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Logging.Level = "error"
	return cfg
}

func TestRun_Text(t *testing.T) {
	path := writeJob(t, "job.pcl", job)
	var out, errOut bytes.Buffer
	if err := run(context.Background(), testConfig(t), []string{path}, &out, &errOut); err != nil {
		t.Fatalf("run: %v (%s)", err, errOut.String())
	}
	want := "<esc>%-12345X@PJL ENTER LANGUAGE=PCL\r\n@0\n" +
		"<esc>E@34\n" +
		"<esc>&l0S@36\n" +
		"<esc>*p10x@41\n" +
		"<esc>*p20Y@47\n" +
		"Hi@50\n" +
		"<cr>@52\n" +
		"<lf>@53\n" +
		"<esc>*b2W@54\n" +
		"<esc>E@61\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", out.String(), want)
	}
}

func TestRun_FilterAndStats(t *testing.T) {
	path := writeJob(t, "job.pcl", job)
	cfg := testConfig(t)
	cfg.Dump.Filter = `cmd.kind == "twobyte"`
	cfg.Dump.Stats = true

	var out, errOut bytes.Buffer
	if err := run(context.Background(), cfg, []string{path}, &out, &errOut); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(out.String(), "\n")
	if lines[0] != "<esc>E@34" || lines[1] != "<esc>E@61" {
		t.Fatalf("filter not applied: %q", out.String())
	}
	if f := strings.Fields(lines[2]); len(f) != 2 || f[0] != "commands" || f[1] != "2" {
		t.Fatalf("unexpected statistics %q", out.String())
	}
}

func TestRun_GrammarErrorReported(t *testing.T) {
	bad := writeJob(t, "bad.pcl", "AB\x1b&l#S")
	good := writeJob(t, "good.pcl", "\x1bE")
	var out, errOut bytes.Buffer
	err := run(context.Background(), testConfig(t), []string{bad, good}, &out, &errOut)
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !strings.HasPrefix(errOut.String(), bad+": offset 5: ") {
		t.Fatalf("unexpected error report %q", errOut.String())
	}
	if out.String() != "AB@0\n<esc>E@0\n" {
		t.Fatalf("decoding must continue with the next input, got %q", out.String())
	}
}

func TestRun_MissingFile(t *testing.T) {
	var out, errOut bytes.Buffer
	missing := filepath.Join(t.TempDir(), "missing.pcl")
	if err := run(context.Background(), testConfig(t), []string{missing}, &out, &errOut); err == nil {
		t.Fatalf("expected failure")
	}
	if !strings.HasPrefix(errOut.String(), missing+": ") {
		t.Fatalf("unexpected error report %q", errOut.String())
	}
}

func TestRun_BadFilter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dump.Filter = "cmd.kind =="
	if err := run(context.Background(), cfg, []string{writeJob(t, "job.pcl", job)}, &bytes.Buffer{}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestRootCmd_Flags(t *testing.T) {
	path := writeJob(t, "job.pcl", "\x1bE\x1b*b2W\xab\x01")
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--format", "json", "--show-data", "--log-level", "error", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v (%s)", err, errOut.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"kind":"twobyte"`) || !strings.Contains(lines[1], `"data":"ab01"`) {
		t.Fatalf("unexpected json output %q", out.String())
	}
}

func TestRootCmd_RequiresInput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without input")
	}
}

func TestRootCmd_ConfigFile(t *testing.T) {
	cfgPath := writeJob(t, "pcldump.yaml", "dump:\n  format: html\nlogging:\n  level: error\n")
	path := writeJob(t, "job.pcl", "\x1bE")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "<!DOCTYPE html>") {
		t.Fatalf("config file format ignored: %q", out.String())
	}
}
