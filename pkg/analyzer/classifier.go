package analyzer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sambabib/depconfusion/pkg/errdefs"
	"github.com/sambabib/depconfusion/pkg/logger"
	"github.com/sambabib/depconfusion/pkg/manifest"
	"github.com/sambabib/depconfusion/pkg/registry"
)

// Registry looks up the latest published version of a package.
type Registry interface {
	Latest(ctx context.Context, name string) (registry.LookupResult, error)
}

// Options configures a Classifier.
type Options struct {
	// Concurrency bounds parallel registry lookups. Values below 1 mean sequential.
	Concurrency int
	// Enricher, when set, attaches audit results to outdated entries.
	Enricher *Enricher
	// Ignore reports packages that should not be looked up at all.
	Ignore func(name string) bool
	Log    *logger.Logger
}

// Classifier buckets manifest dependencies into updated, outdated and phantom.
type Classifier struct {
	registry    Registry
	concurrency int
	enricher    *Enricher
	ignore      func(string) bool
	log         *logger.Logger
}

// NewClassifier creates a Classifier backed by reg.
func NewClassifier(reg Registry, opts Options) *Classifier {
	c := &Classifier{
		registry:    reg,
		concurrency: opts.Concurrency,
		enricher:    opts.Enricher,
		ignore:      opts.Ignore,
		log:         opts.Log,
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c
}

// outcome is the result for one declaration. skipped is set when it landed in no bucket.
type outcome struct {
	bucket  Bucket
	entry   Entry
	skipped *Skipped
}

// Classify looks up every declaration of m, dependencies first. Per-entry failures
// are logged and recorded in Report.Skipped. Cancelling ctx stops new lookups and
// returns an ErrInterrupted error with no report.
func (c *Classifier) Classify(ctx context.Context, m *manifest.Manifest) (Report, error) {
	var parts []Report
	for _, deps := range m.Sections() {
		part, err := c.classifySection(ctx, deps)
		if err != nil {
			return Report{}, err
		}
		parts = append(parts, part)
	}
	return Merge(parts...), nil
}

func (c *Classifier) classifySection(ctx context.Context, deps []manifest.Dependency) (Report, error) {
	slots := make([]outcome, len(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, dep := range deps {
		if gctx.Err() != nil {
			break
		}
		i, dep := i, dep
		g.Go(func() error {
			slots[i] = c.classifyOne(gctx, dep)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("%w: %v", errdefs.ErrInterrupted, err)
	}

	report := NewReport()
	for _, o := range slots {
		if o.skipped != nil {
			report.Skipped = append(report.Skipped, *o.skipped)
			continue
		}
		report.add(o.bucket, o.entry)
	}
	return report, nil
}

func (c *Classifier) classifyOne(ctx context.Context, dep manifest.Dependency) outcome {
	skip := func(reason string) outcome {
		return outcome{skipped: &Skipped{Name: dep.Name, Section: dep.Section, Reason: reason}}
	}

	if ctx.Err() != nil {
		return skip("interrupted")
	}
	if c.ignore != nil && c.ignore(dep.Name) {
		c.log.Debugf("NPM: Ignoring package %s (%s)", dep.Name, dep.Section)
		return skip("ignored by configuration")
	}

	entry := Entry{
		Name:     dep.Name,
		Section:  dep.Section,
		Declared: dep.Version,
		Version:  NormalizeVersion(dep.Version),
	}
	c.log.Debugf("NPM: Analyzing package: %s, version: %s", dep.Name, entry.Version)

	res, err := c.registry.Latest(ctx, dep.Name)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warnf("Skipping %s: %v", dep.Name, err)
		}
		return skip(err.Error())
	}

	switch res.Status {
	case registry.StatusNotFound:
		c.log.Debugf("NPM: %s is not published in the registry", dep.Name)
		return outcome{bucket: BucketPhantom, entry: entry}
	case registry.StatusFound:
	default:
		err := fmt.Errorf("%w %d for %s", errdefs.ErrRegistryUnknownStatus, res.StatusCode, dep.Name)
		c.log.Warnf("Skipping %s: %v", dep.Name, err)
		return skip(err.Error())
	}

	entry.Latest = res.Latest
	equal, parsed := versionsEqual(entry.Version, res.Latest)
	if !parsed {
		c.log.Warnf("%s: %q is not a valid semantic version, treating as outdated", dep.Name, entry.Version)
	}
	if equal {
		return outcome{bucket: BucketUpdated, entry: entry}
	}

	if c.enricher != nil {
		record, err := c.enricher.Enrich(ctx, dep.Name, entry.Version)
		if err != nil && ctx.Err() == nil {
			c.log.Warnf("%s: %v", dep.Name, err)
		}
		entry.Vulnerabilities = &record
	}
	return outcome{bucket: BucketOutdated, entry: entry}
}

var _ Analyzer = (*Classifier)(nil)
