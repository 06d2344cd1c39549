package analyzer

import (
	"context"
	"fmt"

	"github.com/sambabib/depconfusion/pkg/errdefs"
	"github.com/sambabib/depconfusion/pkg/manifest"
)

// Bucket is the classification given to a dependency.
type Bucket string

const (
	BucketUpdated  Bucket = "updated"
	BucketOutdated Bucket = "outdated"
	BucketPhantom  Bucket = "phantom"
)

// Buckets lists every bucket in report order.
var Buckets = []Bucket{BucketUpdated, BucketOutdated, BucketPhantom}

// ParseBucket validates a bucket name given on the command line.
func ParseBucket(s string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: unknown bucket %q (want updated, outdated or phantom)", errdefs.ErrInvalidInput, s)
}

// Entry is one classified dependency declaration.
type Entry struct {
	Name            string               `json:"name"`                      // package name
	Section         manifest.Section     `json:"section"`                   // manifest section it was declared in
	Declared        string               `json:"declared"`                  // specifier as written in package.json
	Version         string               `json:"version"`                   // specifier with ^ and @ stripped
	Latest          string               `json:"latest,omitempty"`          // registry "latest" dist-tag
	Vulnerabilities *VulnerabilityRecord `json:"vulnerabilities,omitempty"` // only for enriched outdated entries
}

// Skipped is a declaration that could not be classified.
type Skipped struct {
	Name    string
	Section manifest.Section
	Reason  string
}

// VulnerabilityRecord summarizes the audit result for one outdated dependency.
type VulnerabilityRecord struct {
	FoundVulns     bool           `json:"found_vulns"`
	SeverityCounts map[string]int `json:"severity_counts"`
	Advisories     []Advisory     `json:"advisories"`
}

// Advisory is a security advisory affecting a dependency.
type Advisory struct {
	Title              string   `json:"title"`
	Severity           string   `json:"severity"`
	CVEs               []string `json:"cves"`
	CVSSScore          float64  `json:"cvss_score"`
	CVSSVector         string   `json:"cvss_vector"`
	VulnerableVersions string   `json:"vulnerable_versions"`
	URL                string   `json:"url"`
}

// Report holds the classified dependencies in manifest declaration order,
// dependencies before devDependencies within each bucket.
type Report struct {
	Updated  []Entry   `json:"updated"`
	Outdated []Entry   `json:"outdated"`
	Phantom  []Entry   `json:"phantom"`
	Skipped  []Skipped `json:"-"`
}

// NewReport returns a report with empty, non-nil buckets.
func NewReport() Report {
	return Report{Updated: []Entry{}, Outdated: []Entry{}, Phantom: []Entry{}}
}

// Bucket returns the entries of one bucket.
func (r *Report) Bucket(b Bucket) []Entry {
	switch b {
	case BucketUpdated:
		return r.Updated
	case BucketOutdated:
		return r.Outdated
	case BucketPhantom:
		return r.Phantom
	}
	return nil
}

func (r *Report) add(b Bucket, e Entry) {
	switch b {
	case BucketUpdated:
		r.Updated = append(r.Updated, e)
	case BucketOutdated:
		r.Outdated = append(r.Outdated, e)
	case BucketPhantom:
		r.Phantom = append(r.Phantom, e)
	}
}

// Total returns the number of classified entries across all buckets.
func (r *Report) Total() int {
	return len(r.Updated) + len(r.Outdated) + len(r.Phantom)
}

// Names returns the package names of a bucket in order.
func Names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

// Analyzer classifies the dependencies of a manifest.
type Analyzer interface {
	Classify(ctx context.Context, m *manifest.Manifest) (Report, error)
}
