package analyzer

// Merge concatenates same-named buckets of per-section reports, keeping the
// order in which the parts are given.
func Merge(parts ...Report) Report {
	out := NewReport()
	for _, p := range parts {
		out.Updated = append(out.Updated, p.Updated...)
		out.Outdated = append(out.Outdated, p.Outdated...)
		out.Phantom = append(out.Phantom, p.Phantom...)
		out.Skipped = append(out.Skipped, p.Skipped...)
	}
	return out
}
