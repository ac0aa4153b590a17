package main

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gigurra/subscriptionkit/internal"
)

// runCLI runs the built CLI with the given config and args and returns stdout.
// Stderr (diagnostics, go toolchain chatter) is only shown on failure.
func runCLI(t *testing.T, configPath string, args ...string) string {
	t.Helper()

	fullArgs := append([]string{"run", ".", "--config", configPath}, args...)
	cmd := exec.Command("go", fullArgs...)
	cmd.Env = append(os.Environ(), "BUDGET=", "BUDGET_CURRENCY=", "DEFAULT_CURRENCY=", "SUBSCRIPTIONKIT_DATA_FILE=")

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			t.Fatalf("CLI failed: %v\nStderr: %s", err, exitErr.Stderr)
		}
		t.Fatalf("CLI failed: %v", err)
	}
	return string(output)
}

func TestCLI_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping go run integration test in short mode")
	}

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	config := "budget: 100\nbudget_currency: USD\ndisplay_currency: USD\n" +
		"data_file: " + filepath.Join(dir, "subscriptions.csv") + "\n" + staticRatesYAML
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	out := runCLI(t, configPath, "add",
		"--name", "Netflix", "--category", "Streaming", "--currency", "GBP",
		"--amount", "9.99", "--payment-method", "Card")
	if !strings.Contains(out, "Record added: Netflix") {
		t.Errorf("unexpected add output: %s", out)
	}

	out = runCLI(t, configPath, "list", "--output", "json")
	var result internal.JSONOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("failed to parse JSON output: %v\nOutput: %s", err, out)
	}
	if len(result.Subscriptions) != 1 || result.Summary.Total != "14.99" {
		t.Errorf("unexpected list result: %+v", result)
	}

	out = runCLI(t, configPath, "budget")
	if !strings.Contains(out, "$85.01") {
		t.Errorf("expected remaining $85.01 in budget table:\n%s", out)
	}
}
