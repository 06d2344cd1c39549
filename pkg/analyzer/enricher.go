package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sambabib/depconfusion/pkg/errdefs"
	"github.com/sambabib/depconfusion/pkg/registry"
)

// Auditor submits security audit requests.
type Auditor interface {
	Audit(ctx context.Context, req registry.AuditRequest) (*registry.AuditResponse, error)
}

// Enricher looks up known vulnerabilities for a single package version.
type Enricher struct {
	auditor Auditor
}

// NewEnricher creates an Enricher backed by a.
func NewEnricher(a Auditor) *Enricher {
	return &Enricher{auditor: a}
}

// Enrich audits name@version. On failure the returned record reports no
// vulnerabilities and the error wraps errdefs.ErrEnrichment.
func (e *Enricher) Enrich(ctx context.Context, name, version string) (VulnerabilityRecord, error) {
	empty := VulnerabilityRecord{SeverityCounts: map[string]int{}, Advisories: []Advisory{}}

	resp, err := e.auditor.Audit(ctx, registry.NewSinglePackageAudit(name, version))
	if err != nil {
		if !errors.Is(err, errdefs.ErrEnrichment) {
			err = fmt.Errorf("%w: %w", errdefs.ErrEnrichment, err)
		}
		return empty, err
	}
	if resp == nil {
		return empty, fmt.Errorf("%w: empty audit response for %s", errdefs.ErrEnrichment, name)
	}
	return buildRecord(resp), nil
}

func buildRecord(resp *registry.AuditResponse) VulnerabilityRecord {
	record := VulnerabilityRecord{SeverityCounts: map[string]int{}, Advisories: []Advisory{}}
	for severity, count := range resp.Metadata.Vulnerabilities {
		if count != 0 {
			record.SeverityCounts[severity] = count
			record.FoundVulns = true
		}
	}

	seen := make(map[registry.AdvisoryID]bool)
	for _, action := range resp.Actions {
		for _, resolve := range action.Resolves {
			if seen[resolve.ID] {
				continue
			}
			seen[resolve.ID] = true
			adv, ok := resp.Advisories[string(resolve.ID)]
			if !ok {
				continue // referenced but not in the lookup table
			}
			record.Advisories = append(record.Advisories, toAdvisory(adv))
		}
	}
	return record
}

func toAdvisory(a registry.AuditAdvisory) Advisory {
	cves := make([]string, 0, len(a.CVEs))
	seen := make(map[string]bool, len(a.CVEs))
	for _, id := range a.CVEs {
		if !seen[id] {
			seen[id] = true
			cves = append(cves, id)
		}
	}
	sort.Strings(cves)

	return Advisory{
		Title:              a.Title,
		Severity:           a.Severity,
		CVEs:               cves,
		CVSSScore:          a.CVSS.Score,
		CVSSVector:         a.CVSS.VectorString,
		VulnerableVersions: a.VulnerableVersions,
		URL:                a.URL,
	}
}
