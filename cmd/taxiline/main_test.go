package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "taxiline dev") {
		t.Errorf("expected output to contain 'taxiline dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "taxiline 1.0.0") {
		t.Errorf("expected output to contain 'taxiline 1.0.0', got: %s", out)
	}
	if !strings.Contains(out, "commit: abc123") {
		t.Errorf("expected output to contain 'commit: abc123', got: %s", out)
	}
	if !strings.Contains(out, "built: 2026-01-01") {
		t.Errorf("expected output to contain 'built: 2026-01-01', got: %s", out)
	}
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Taxiline") {
		t.Errorf("expected help output to contain 'Taxiline', got: %s", out)
	}
	for _, sub := range []string{"version", "db", "mirror", "bot", "relay", "admin"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help output to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestRunSuccess(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"version"})

	if code := run(cmd); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestRunError(t *testing.T) {
	cmd := &cobra.Command{
		Use:           "failing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("intentional error")
		},
	}
	if code := run(cmd); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestNewVersionCmdOutput(t *testing.T) {
	cmd := newVersionCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	cmd.Run(cmd, nil)

	out := buf.String()
	expected := "taxiline dev\ncommit: none\nbuilt: unknown\n"
	if out != expected {
		t.Errorf("expected %q, got %q", expected, out)
	}
}

func TestDBMigrate(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf(`telegram:
  forum_chat_id: -1001
  all_orders_thread: 2
database:
  sqlite_path: %s
`, filepath.Join(dir, "taxiline.db"))
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "migrate", "-c", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db migrate failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Migrated 3 tables") {
		t.Errorf("unexpected migrate output: %s", buf.String())
	}
}

func TestDBMigrateMissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"db", "migrate", "-c", filepath.Join(t.TempDir(), "nope.yaml")})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDBExtendAndReset(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf(`telegram:
  forum_chat_id: -1001
  all_orders_thread: 2
database:
  sqlite_path: %s
`, filepath.Join(dir, "taxiline.db"))
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	run := func(args ...string) (*bytes.Buffer, error) {
		cmd := newRootCmd()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs(args)
		return buf, cmd.Execute()
	}

	if _, err := run("db", "migrate", "-c", cfgPath); err != nil {
		t.Fatalf("db migrate: %v", err)
	}

	buf, err := run("db", "extend", "-c", cfgPath, "-d", "3")
	if err != nil {
		t.Fatalf("db extend: %v", err)
	}
	if !strings.Contains(buf.String(), "Extended 0 subscriptions by 3 days") {
		t.Errorf("unexpected extend output: %s", buf.String())
	}

	if _, err := run("db", "extend", "-c", cfgPath, "-d", "0"); err == nil {
		t.Error("expected error for non-positive days")
	}

	if _, err := run("db", "reset", "-c", cfgPath); err == nil {
		t.Error("expected reset to refuse without --force")
	}
	buf, err = run("db", "reset", "-c", cfgPath, "--force")
	if err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(buf.String(), "Reset 3 tables") {
		t.Errorf("unexpected reset output: %s", buf.String())
	}
}
