package registry

import (
	"bytes"
	"encoding/json"
)

// AuditRequest is the body accepted by the npm security audit endpoint.
// It describes a dependency graph; the checker always sends a single node.
type AuditRequest struct {
	Name         string                     `json:"name"`
	Version      string                     `json:"version"`
	Requires     map[string]string          `json:"requires"`
	Dependencies map[string]AuditDependency `json:"dependencies"`
}

// AuditDependency is one node of the audit dependency graph.
type AuditDependency struct {
	Version string `json:"version"`
}

// NewSinglePackageAudit builds an audit request for one package at one version.
func NewSinglePackageAudit(name, version string) AuditRequest {
	return AuditRequest{
		Name:         name,
		Version:      version,
		Requires:     map[string]string{name: version},
		Dependencies: map[string]AuditDependency{name: {Version: version}},
	}
}

// AuditResponse is the subset of the audit response the checker reads.
type AuditResponse struct {
	Actions    []AuditAction            `json:"actions"`
	Advisories map[string]AuditAdvisory `json:"advisories"`
	Metadata   struct {
		Vulnerabilities map[string]int `json:"vulnerabilities"`
	} `json:"metadata"`
}

// AuditAction is a suggested fix and the advisories it resolves.
type AuditAction struct {
	Action   string         `json:"action"`
	Module   string         `json:"module"`
	Target   string         `json:"target"`
	Resolves []AuditResolve `json:"resolves"`
}

// AdvisoryID is an advisory key. The registry sends numbers; strings are accepted too.
type AdvisoryID string

func (id *AdvisoryID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = AdvisoryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = AdvisoryID(n.String())
	return nil
}

// AuditResolve references an advisory by ID.
type AuditResolve struct {
	ID   AdvisoryID `json:"id"`
	Path string     `json:"path"`
}

// AuditAdvisory is one entry of the advisories lookup table.
type AuditAdvisory struct {
	ID                 AdvisoryID `json:"id"`
	Title              string     `json:"title"`
	ModuleName         string     `json:"module_name"`
	Severity           string     `json:"severity"`
	CVEs               []string   `json:"cves"`
	VulnerableVersions string     `json:"vulnerable_versions"`
	PatchedVersions    string     `json:"patched_versions"`
	URL                string     `json:"url"`
	CVSS               struct {
		Score        float64 `json:"score"`
		VectorString string  `json:"vectorString"`
	} `json:"cvss"`
}
