// Package dq evaluates data quality of normalized candidates. The evaluator
// assigns ok, warning, or error plus a structured issue list; it never
// aborts pipeline flow. Records failing required-field checks are still
// written to canonical storage with the error status (preserve-and-flag).
package dq

import (
	"regexp"
	"time"

	"github.com/hududed/bayanlab/internal/config"
	"github.com/hududed/bayanlab/internal/model"
)

// Result is the outcome of evaluation.
type Result struct {
	Status model.DQStatus
	Issues []string
}

// phonePattern accepts common US phone formats: optional +1, separators
// space/dot/dash, optional area-code parens.
var phonePattern = regexp.MustCompile(`^\+?1?[\s.-]?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}$`)

// Evaluator applies the DQ rule set.
type Evaluator struct {
	regions       config.Regions
	stalenessDays int
	now           func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the evaluator's clock. Tests use this to pin the
// staleness window.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an evaluator for the given regions and staleness
// window in days.
func NewEvaluator(regions config.Regions, stalenessDays int, opts ...Option) *Evaluator {
	e := &Evaluator{
		regions:       regions,
		stalenessDays: stalenessDays,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate applies every rule to the candidate and returns the aggregate
// status: error if any required field is missing, warning if only
// plausibility rules fired, ok otherwise.
func (e *Evaluator) Evaluate(c *model.Candidate) *Result {
	var errs, warns []string

	errs = append(errs, e.requiredFields(c)...)
	warns = append(warns, e.plausibility(c)...)

	switch {
	case len(errs) > 0:
		return &Result{Status: model.DQError, Issues: append(errs, warns...)}
	case len(warns) > 0:
		return &Result{Status: model.DQWarning, Issues: warns}
	}
	return &Result{Status: model.DQOK}
}

func (e *Evaluator) requiredFields(c *model.Candidate) []string {
	var issues []string

	if c.Region == "" {
		issues = append(issues, "missing region")
	}
	if c.City == "" {
		issues = append(issues, "missing city")
	}

	switch c.Kind {
	case model.KindEvent:
		ev := c.Event
		if ev == nil {
			return append(issues, "missing event fields")
		}
		if ev.Title == "" {
			issues = append(issues, "missing title")
		}
		if ev.StartTime.IsZero() {
			issues = append(issues, "missing start time")
		}
		if ev.EndTime.IsZero() {
			issues = append(issues, "missing end time")
		}
		if !ev.StartTime.IsZero() && !ev.EndTime.IsZero() && !ev.EndTime.After(ev.StartTime) {
			issues = append(issues, "end time not after start time")
		}
	case model.KindBusiness:
		b := c.Business
		if b == nil {
			return append(issues, "missing business fields")
		}
		if b.Name == "" {
			issues = append(issues, "missing name")
		}
		if !b.Category.Valid() {
			issues = append(issues, "missing category")
		}
	}

	return issues
}

func (e *Evaluator) plausibility(c *model.Candidate) []string {
	var issues []string

	if c.HasCoordinates() {
		if r := e.regions.Lookup(c.Region); r != nil && !r.Contains(*c.Latitude, *c.Longitude) {
			issues = append(issues, "coordinates outside region")
		}
	} else {
		issues = append(issues, "missing coordinates")
	}

	if c.Kind == model.KindEvent && c.Event != nil && !c.Event.StartTime.IsZero() {
		cutoff := e.now().AddDate(0, 0, -e.stalenessDays)
		if c.Event.StartTime.Before(cutoff) {
			issues = append(issues, "event is old")
		}
	}

	if c.Kind == model.KindBusiness && c.Business != nil && c.Business.Phone != "" {
		if !phonePattern.MatchString(c.Business.Phone) {
			issues = append(issues, "phone format not recognized")
		}
	}

	return issues
}
