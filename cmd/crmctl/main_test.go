package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/crmkit/testutil"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crmctl.yaml")
	content := `name: crmctl
environment: production
logging:
  level: error
crm:
  base_url: ` + baseURL + `
  base_delay: 1ms
  max_retries: 1
  locations:
    - id: guilford
      display_name: Guilford Office
    - id: stamford
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "http://crm.local")
	cfg, err := loadConfig(path, "")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.CRM.BaseURL != "http://crm.local" || cfg.CRM.MaxRetries != 1 {
		t.Errorf("crm = %+v", cfg.CRM)
	}
	if cfg.CRM.Location != "guilford" {
		t.Errorf("location = %q, want first configured", cfg.CRM.Location)
	}
	if len(cfg.CRM.Locations) != 2 || cfg.CRM.Locations[0].DisplayName != "Guilford Office" {
		t.Errorf("locations = %+v", cfg.CRM.Locations)
	}
	if cfg.Telemetry.SampleRate != 1 {
		t.Errorf("sample rate = %v, want 1", cfg.Telemetry.SampleRate)
	}
}

func TestListCommand_JSON(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Seed("jobs", "stamford", 15)
	path := writeConfig(t, backend.URL())

	out, err := run(t, "--config", path, "list", "jobs", "--page", "2", "--size", "10", "--location", "stamford", "-o", "json")
	if err != nil {
		t.Fatalf("list error = %v\n%s", err, out)
	}

	var got struct {
		Resource string           `json:"resource"`
		Location string           `json:"location"`
		Total    int              `json:"total"`
		Items    []map[string]any `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.Resource != "jobs" || got.Location != "stamford" || got.Total != 15 || len(got.Items) != 5 {
		t.Errorf("listing = %+v", got)
	}
	if hit, _ := backend.LastHit("/jobs"); hit.Query != "from=10&size=10" {
		t.Errorf("query = %q", hit.Query)
	}
}

func TestListCommand_LocationFlagSatisfiesConfig(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Seed("jobs", "guilford", 3)
	path := filepath.Join(t.TempDir(), "crmctl.yaml")
	content := "environment: production\nlogging:\n  level: error\ncrm:\n  base_url: " + backend.URL() + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "--config", path, "list", "jobs"); err == nil {
		t.Fatal("expected missing location error without --location")
	}

	out, err := run(t, "--config", path, "list", "jobs", "--location", "guilford", "-o", "json")
	if err != nil {
		t.Fatalf("list error = %v\n%s", err, out)
	}
	if !strings.Contains(out, `"location": "guilford"`) || !strings.Contains(out, "jobs-guilford-003") {
		t.Errorf("output = %s", out)
	}
	if backend.HitsAt("/jobs", "guilford") != 1 {
		t.Errorf("guilford hits = %d, want 1", backend.HitsAt("/jobs", "guilford"))
	}
}

func TestListCommand_Table(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Seed("contacts", "guilford", 2)
	path := writeConfig(t, backend.URL())

	out, err := run(t, "--config", path, "list", "contacts")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	for _, want := range []string{"NAME", "contacts-guilford-001", "contact2@example.com", "contacts @ guilford: page 1, 2 of 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestListCommand_Errors(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Fail("/invoices", -1, http.StatusInternalServerError)
	path := writeConfig(t, backend.URL())

	tests := []struct {
		name string
		args []string
	}{
		{"unknown resource", []string{"list", "billing"}},
		{"backend failure", []string{"list", "invoices"}},
		{"bad output", []string{"list", "jobs", "-o", "xml"}},
		{"bad page", []string{"list", "jobs", "--page", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, append([]string{"--config", path}, tt.args...)...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHealthCommand(t *testing.T) {
	backend := testutil.NewBackend(t)
	path := writeConfig(t, backend.URL())

	out, err := run(t, "--config", path, "health")
	if err != nil {
		t.Fatalf("health error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "status: up") || !strings.Contains(out, "crm-backend: up\n") {
		t.Errorf("output = %q", out)
	}

	backend.Fail("/health", -1, http.StatusServiceUnavailable)
	out, err = run(t, "--config", path, "health")
	if err == nil {
		t.Error("expected error for unhealthy backend")
	}
	if !strings.Contains(out, "error_count=1") {
		t.Errorf("unhealthy output lacks details: %q", out)
	}
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, "--version")
	if err != nil {
		t.Fatalf("--version error = %v", err)
	}
	if !strings.Contains(out, "crmctl version") {
		t.Errorf("output = %q", out)
	}
}
