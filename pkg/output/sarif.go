package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sambabib/depconfusion/pkg/analyzer"
)

// SARIF 2.1.0: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

// SarifReport is the top-level SARIF log.
type SarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SarifRun `json:"runs"`
}

// SarifRun is a single run of the checker.
type SarifRun struct {
	Tool        SarifTool         `json:"tool"`
	Results     []SarifResult     `json:"results"`
	Invocations []SarifInvocation `json:"invocations"`
}

type SarifTool struct {
	Driver SarifDriver `json:"driver"`
}

type SarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []SarifRule `json:"rules"`
}

// SarifRule describes one kind of finding.
type SarifRule struct {
	ID               string            `json:"id"`
	ShortDescription SarifMessage      `json:"shortDescription"`
	FullDescription  SarifMessage      `json:"fullDescription"`
	Help             SarifMessage      `json:"help"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// SarifResult is one finding against the manifest.
type SarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   SarifMessage    `json:"message"`
	Locations []SarifLocation `json:"locations"`
}

type SarifMessage struct {
	Text string `json:"text"`
}

type SarifLocation struct {
	PhysicalLocation SarifPhysicalLocation `json:"physicalLocation"`
}

type SarifPhysicalLocation struct {
	ArtifactLocation SarifArtifactLocation `json:"artifactLocation"`
}

// SarifArtifactLocation points at the manifest URL or path.
type SarifArtifactLocation struct {
	URI string `json:"uri"`
}

type SarifInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	StartTimeUtc        string `json:"startTimeUtc"`
	EndTimeUtc          string `json:"endTimeUtc"`
}

// GenerateSarifReport converts a classification report to SARIF format.
// Phantom and outdated entries become results; up-to-date entries produce none.
// When filter is set only that bucket is considered.
func GenerateSarifReport(report analyzer.Report, filter analyzer.Bucket, manifestURI, toolVersion string) ([]byte, error) {
	// Define rules
	rules := []SarifRule{
		{
			ID:               "phantom-package",
			ShortDescription: SarifMessage{Text: "Dependency is not published in the registry"},
			FullDescription:  SarifMessage{Text: "The package name is declared in the manifest but does not exist in the public registry. Anyone can publish a package under this name."},
			Help:             SarifMessage{Text: "Publish or reserve the name, or install it from a scoped private registry."},
			Properties:       map[string]string{"security-severity": "9.0"},
		},
		{
			ID:               "outdated-dependency",
			ShortDescription: SarifMessage{Text: "Newer version available"},
			FullDescription:  SarifMessage{Text: "The declared version differs from the latest version published in the registry."},
			Help:             SarifMessage{Text: "Consider updating to the latest version."},
		},
		{
			ID:               "vulnerable-dependency",
			ShortDescription: SarifMessage{Text: "Declared version has known vulnerabilities"},
			FullDescription:  SarifMessage{Text: "The registry security audit reports advisories for the declared version."},
			Help:             SarifMessage{Text: "Update to a version outside the vulnerable range."},
		},
	}

	include := func(b analyzer.Bucket) bool { return filter == "" || filter == b }

	results := []SarifResult{}
	if include(analyzer.BucketPhantom) {
		for _, e := range report.Phantom {
			results = append(results, newSarifResult("phantom-package", "error",
				fmt.Sprintf("%s (%s) is not published in the registry", e.Name, e.Section), manifestURI))
		}
	}
	if include(analyzer.BucketOutdated) {
		for _, e := range report.Outdated {
			results = append(results, newSarifResult("outdated-dependency", "note",
				fmt.Sprintf("%s: declared version %s, latest version %s", e.Name, e.Version, e.Latest), manifestURI))

			if e.Vulnerabilities == nil || !e.Vulnerabilities.FoundVulns {
				continue
			}
			for _, a := range e.Vulnerabilities.Advisories {
				text := fmt.Sprintf("%s@%s: %s (%s)", e.Name, e.Version, a.Title, a.Severity)
				if a.URL != "" {
					text += " " + a.URL
				}
				results = append(results, newSarifResult("vulnerable-dependency", sarifLevel(a.Severity), text, manifestURI))
			}
		}
	}

	// Create SARIF report
	now := time.Now().UTC()
	sarifReport := SarifReport{
		Schema:  "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json",
		Version: "2.1.0",
		Runs: []SarifRun{
			{
				Tool: SarifTool{
					Driver: SarifDriver{
						Name:           "Dependency Checker",
						Version:        toolVersion,
						InformationURI: "https://github.com/sambabib/depconfusion",
						Rules:          rules,
					},
				},
				Results: results,
				Invocations: []SarifInvocation{
					{
						ExecutionSuccessful: true,
						StartTimeUtc:        now.Add(-time.Second).Format(time.RFC3339),
						EndTimeUtc:          now.Format(time.RFC3339),
					},
				},
			},
		},
	}

	// Marshal to JSON
	return json.MarshalIndent(sarifReport, "", "  ")
}

func newSarifResult(ruleID, level, text, uri string) SarifResult {
	return SarifResult{
		RuleID:  ruleID,
		Level:   level,
		Message: SarifMessage{Text: text},
		Locations: []SarifLocation{
			{
				PhysicalLocation: SarifPhysicalLocation{
					ArtifactLocation: SarifArtifactLocation{URI: uri},
				},
			},
		},
	}
}

// sarifLevel maps an npm audit severity to a SARIF level.
func sarifLevel(severity string) string {
	switch severity {
	case "critical", "high":
		return "error"
	case "moderate":
		return "warning"
	default:
		return "note"
	}
}
