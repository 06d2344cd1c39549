package output

import (
	"encoding/json"

	"github.com/sambabib/depconfusion/pkg/analyzer"
)

// GenerateJSONReport serializes the whole report, or only one bucket when filter is set.
// A filtered report keeps the bucket name as its single key.
func GenerateJSONReport(report analyzer.Report, filter analyzer.Bucket) ([]byte, error) {
	if filter == "" {
		return json.MarshalIndent(report, "", "  ")
	}
	entries := report.Bucket(filter)
	if entries == nil {
		entries = []analyzer.Entry{}
	}
	return json.MarshalIndent(map[analyzer.Bucket][]analyzer.Entry{filter: entries}, "", "  ")
}
