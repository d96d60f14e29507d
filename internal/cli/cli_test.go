package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/attrisk/attrition"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestSampleThenRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "staff.xlsx")
	out := filepath.Join(dir, "risk.xlsx")

	stdout, err := execute(t, "sample", "--rows", "200", "--positives", "40", "-o", in)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if !strings.Contains(stdout, "Wrote 200 employees (40 leavers)") {
		t.Errorf("unexpected sample output: %q", stdout)
	}

	cfgPath := filepath.Join(dir, "attrisk.yaml")
	cfg := "excluded_columns: [EmployeeID]\nrandom_forest:\n  n_estimators: 10\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, err = execute(t, "--config", cfgPath, "-i", in, "-o", out, "--log-level", "warn")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
	for _, want := range []string{"DATASET OVERVIEW", "RANDOM FOREST MODEL", out} {
		if !strings.Contains(stdout, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRunOptions_Config(t *testing.T) {
	cfg, err := runOptions{}.config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input != attrition.DefaultConfig().Input {
		t.Errorf("Input = %q, want default", cfg.Input)
	}

	cfg, err = runOptions{input: "a.xlsx", output: "b.xlsx", model: attrition.ModelLogisticRegression}.config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input != "a.xlsx" || cfg.Output != "b.xlsx" || cfg.ScoringModel != attrition.ModelLogisticRegression {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestRun_InvalidScoringModel(t *testing.T) {
	_, err := execute(t, "--scoring-model", "svm")
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRun_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud")
	if err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestRun_MissingInput(t *testing.T) {
	_, err := execute(t, "-i", filepath.Join(t.TempDir(), "missing.xlsx"), "--log-level", "error")
	var nf *errors.FileNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected FileNotFoundError, got %v", err)
	}
}
