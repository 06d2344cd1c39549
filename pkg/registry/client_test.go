package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sambabib/depconfusion/pkg/errdefs"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultURL, c.BaseURL())
	assert.Equal(t, defaultTimeout, c.timeout)

	c = New(WithBaseURL("http://localhost:4873/"), WithTimeout(time.Second))
	assert.Equal(t, "http://localhost:4873", c.BaseURL())
	assert.Equal(t, time.Second, c.timeout)
}

func TestClient_Latest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "depcheck-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/left-pad":
			fmt.Fprint(w, `{"name": "left-pad", "dist-tags": {"latest": "1.3.0"}}`)
		case "/@acme/ui":
			fmt.Fprint(w, `{"dist-tags": {"latest": "2.0.0", "next": "3.0.0-rc.1"}}`)
		case "/rate-limited":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/garbled":
			fmt.Fprint(w, `{"dist-tags": `)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := New(WithBaseURL(server.URL), WithUserAgent("depcheck-test"))
	ctx := context.Background()

	res, err := c.Latest(ctx, "left-pad")
	require.NoError(t, err)
	assert.Equal(t, LookupResult{Status: StatusFound, Latest: "1.3.0", StatusCode: 200}, res)

	res, err = c.Latest(ctx, "@acme/ui")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", res.Latest)

	res, err = c.Latest(ctx, "totally-not-real-pkg-xyz")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)

	res, err = c.Latest(ctx, "rate-limited")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, res.Status)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)

	_, err = c.Latest(ctx, "garbled")
	assert.ErrorIs(t, err, errdefs.ErrNetwork)
}

func TestClient_Latest_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := New(WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))
	_, err := c.Latest(context.Background(), "slow")
	assert.ErrorIs(t, err, errdefs.ErrNetwork)
}

func TestClient_Latest_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dist-tags": {"latest": "1.0.0"}}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(WithBaseURL(server.URL)).Latest(ctx, "left-pad")
	assert.ErrorIs(t, err, errdefs.ErrInterrupted)
}

func TestClient_Audit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/-/npm/v1/security/audits", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AuditRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, NewSinglePackageAudit("lodash", "4.17.20"), req)

		fmt.Fprint(w, `{
			"actions": [{"action": "install", "module": "lodash", "target": "4.17.21",
				"resolves": [{"id": 1523, "path": "lodash"}]}],
			"advisories": {"1523": {"id": 1523, "title": "Prototype Pollution", "severity": "high",
				"cves": ["CVE-2020-8203"], "vulnerable_versions": "<4.17.19",
				"url": "https://npmjs.com/advisories/1523",
				"cvss": {"score": 7.4, "vectorString": "CVSS:3.1/AV:N/AC:H/PR:N/UI:N/S:U/C:N/I:H/A:H"}}},
			"metadata": {"vulnerabilities": {"info": 0, "low": 0, "moderate": 0, "high": 1, "critical": 0}}
		}`)
	}))
	defer server.Close()

	resp, err := New(WithBaseURL(server.URL)).Audit(context.Background(), NewSinglePackageAudit("lodash", "4.17.20"))
	require.NoError(t, err)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, AdvisoryID("1523"), resp.Actions[0].Resolves[0].ID)
	adv, ok := resp.Advisories["1523"]
	require.True(t, ok)
	assert.Equal(t, 7.4, adv.CVSS.Score)
	assert.Equal(t, []string{"CVE-2020-8203"}, adv.CVEs)
	assert.Equal(t, 1, resp.Metadata.Vulnerabilities["high"])
}

func TestClient_Audit_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(WithBaseURL(server.URL)).Audit(context.Background(), NewSinglePackageAudit("lodash", "4.17.20"))
	assert.ErrorIs(t, err, errdefs.ErrEnrichment)
}

func TestAdvisoryID_Unmarshal(t *testing.T) {
	var got []AdvisoryID
	require.NoError(t, json.Unmarshal([]byte(`[1523, "GHSA-p6mc-m468-83gw"]`), &got))
	assert.Equal(t, []AdvisoryID{"1523", "GHSA-p6mc-m468-83gw"}, got)
}
