package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sambabib/depconfusion/pkg/errdefs"
	"github.com/sambabib/depconfusion/pkg/output"
)

type testRegistry struct {
	*httptest.Server
	hits atomic.Int32
}

// newTestRegistry serves the given latest versions; unknown packages get a 404.
func newTestRegistry(t *testing.T, latest map[string]string) *testRegistry {
	t.Helper()
	reg := &testRegistry{}
	reg.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.hits.Add(1)
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"actions": [], "advisories": {}, "metadata": {"vulnerabilities": {"low": 0, "high": 0}}}`)
			return
		}
		v, ok := latest[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"dist-tags": {"latest": %q}}`, v)
	}))
	t.Cleanup(reg.Close)
	return reg
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "package.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(ctx context.Context, args ...string) (string, string, error) {
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"analyze"}, args...))
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestAnalyze_TextReport(t *testing.T) {
	reg := newTestRegistry(t, map[string]string{"left-pad": "1.3.0"})
	path := writeManifest(t, `{"dependencies": {"left-pad": "^1.3.0", "totally-not-real-pkg-xyz": "^1.0.0"}}`)

	stdout, stderr, err := run(context.Background(), "--file", path, "--registry", reg.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Up to date (1)")
	assert.Contains(t, stdout, "totally-not-real-pkg-xyz")
	assert.Contains(t, stdout, "1 updated, 0 outdated, 1 phantom")
	assert.Contains(t, stderr, "Checking 2 dependencies")
}

func TestAnalyze_JSONToStdout(t *testing.T) {
	reg := newTestRegistry(t, map[string]string{"left-pad": "1.3.0"})
	path := writeManifest(t, `{"dependencies": {"left-pad": "^1.3.0"}}`)

	stdout, _, err := run(context.Background(), "--file", path, "--registry", reg.URL, "--format", "json", "--quiet")
	require.NoError(t, err)

	var report map[string][]map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report["updated"], 1)
	assert.Equal(t, "left-pad", report["updated"][0]["name"])
	assert.Empty(t, report["outdated"])
	assert.Empty(t, report["phantom"])
}

func TestAnalyze_WritesFilteredFile(t *testing.T) {
	reg := newTestRegistry(t, map[string]string{"left-pad": "1.3.0", "lodash": "4.17.21"})
	path := writeManifest(t, `{"dependencies": {"left-pad": "^1.3.0", "lodash": "4.17.20"}}`)
	dest := filepath.Join(t.TempDir(), "report.json")

	_, _, err := run(context.Background(), "--file", path, "--registry", reg.URL, "--output", dest, "--filter", "outdated", "--vulns")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var report map[string][]struct {
		Name            string `json:"name"`
		Vulnerabilities struct {
			FoundVulns bool `json:"found_vulns"`
		} `json:"vulnerabilities"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report, 1)
	require.Len(t, report["outdated"], 1)
	assert.Equal(t, "lodash", report["outdated"][0].Name)
	assert.False(t, report["outdated"][0].Vulnerabilities.FoundVulns)
}

type declineConfirmer struct{ asked int }

func (d *declineConfirmer) Confirm(string) (bool, error) {
	d.asked++
	return false, nil
}

func TestAnalyze_OutputConflictDeclined(t *testing.T) {
	orig := newConfirmer
	defer func() { newConfirmer = orig }()
	confirm := &declineConfirmer{}
	newConfirmer = func() output.Confirmer { return confirm }

	reg := newTestRegistry(t, map[string]string{"left-pad": "1.3.0"})
	path := writeManifest(t, `{"dependencies": {"left-pad": "^1.3.0"}}`)
	dest := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(dest, []byte("good prior output"), 0644))

	_, _, err := run(context.Background(), "--file", path, "--registry", reg.URL, "--output", dest)
	assert.ErrorIs(t, err, errdefs.ErrOutputConflict)
	assert.NotEqual(t, 0, errdefs.ExitCode(err))
	assert.Equal(t, 1, confirm.asked)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "good prior output", string(data))

	// --yes overwrites without asking
	_, _, err = run(context.Background(), "--file", path, "--registry", reg.URL, "--output", dest, "--yes")
	require.NoError(t, err)
	assert.Equal(t, 1, confirm.asked)
	data, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"left-pad"`)
}

func TestAnalyze_InvalidInputBeforeNetwork(t *testing.T) {
	reg := newTestRegistry(t, nil)
	path := writeManifest(t, `{"dependencies": {"left-pad": "^1.3.0"}}`)

	tests := map[string][]string{
		"no source":      {"--registry", reg.URL},
		"both sources":   {"--file", path, "--url", "https://example.com/package.json", "--registry", reg.URL},
		"bad filter":     {"--file", path, "--filter", "deprecated", "--registry", reg.URL},
		"quiet verbose":  {"--file", path, "--quiet", "--verbose", "--registry", reg.URL},
		"bad format":     {"--file", path, "--format", "xml", "--registry", reg.URL},
		"not https":      {"--url", "ftp://example.com/package.json", "--registry", reg.URL},
		"not a manifest": {"--url", "https://example.com/README.md", "--registry", reg.URL},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := run(context.Background(), args...)
			assert.ErrorIs(t, err, errdefs.ErrInvalidInput)
		})
	}
	assert.EqualValues(t, 0, reg.hits.Load())
}

func TestAnalyze_MissingAndInvalidManifest(t *testing.T) {
	reg := newTestRegistry(t, nil)

	_, _, err := run(context.Background(), "--file", filepath.Join(t.TempDir(), "package.json"), "--registry", reg.URL)
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound)

	_, _, err = run(context.Background(), "--file", writeManifest(t, "invalid json content"), "--registry", reg.URL)
	assert.ErrorIs(t, err, errdefs.ErrInvalidManifest)
}

func TestAnalyze_InterruptedWritesNothing(t *testing.T) {
	reg := newTestRegistry(t, map[string]string{"left-pad": "1.3.0"})
	path := writeManifest(t, `{"dependencies": {"left-pad": "^1.3.0"}}`)
	dest := filepath.Join(t.TempDir(), "report.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := run(ctx, "--file", path, "--registry", reg.URL, "--output", dest, "--yes")
	assert.ErrorIs(t, err, errdefs.ErrInterrupted)
	assert.Equal(t, 130, errdefs.ExitCode(err))

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAnalyze_ConfigFileNextToManifest(t *testing.T) {
	reg := newTestRegistry(t, map[string]string{"left-pad": "1.3.0"})
	path := writeManifest(t, `{"dependencies": {"left-pad": "^1.3.0", "@acme/private": "1.0.0"}}`)
	cfg := fmt.Sprintf("registry: %s\nignorePackages:\n  - \"@acme/private\"\n", reg.URL)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".depcheck.yaml"), []byte(cfg), 0644))

	stdout, _, err := run(context.Background(), "--file", path, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"left-pad"`)
	assert.NotContains(t, stdout, "@acme/private")
}
