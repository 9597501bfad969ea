// Package validator checks an extracted event against the closed vocabularies
// and a few plausibility rules.
package validator

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pogoda1/parsik/internal/extractor"
	"github.com/pogoda1/parsik/internal/vocab"
)

// Status is the validator's classification of an event.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusDateInPast Status = "error_date_in_past"
)

// Corrections are additive fixes for the caller to apply. A zero value means
// nothing to correct.
type Corrections struct {
	// AgeLimit is set when the event's age limit is missing or unknown.
	AgeLimit extractor.AgeLimit
	// ClearLink is set when the source link cannot be trusted.
	ClearLink bool
}

// Empty reports whether there is nothing to apply.
func (c Corrections) Empty() bool {
	return c.AgeLimit == "" && !c.ClearLink
}

// Verdict is the outcome of Validate.
type Verdict struct {
	Status      Status
	Reason      string
	Corrections Corrections
	// Categories and Themes are the values left after filtering.
	Categories []string
	Themes     []string
}

// OK reports a successful verdict.
func (v Verdict) OK() bool { return v.Status == StatusSuccess }

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Validator is safe for concurrent use once built.
type Validator struct {
	vocab  *vocab.Vocabulary
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithLocation sets the zone used to decide what "today" is and to read
// timestamps without an offset. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(v *Validator) {
		if loc != nil {
			v.loc = loc
		}
	}
}

func New(voc *vocab.Vocabulary, logger *slog.Logger, opts ...Option) *Validator {
	v := &Validator{
		vocab:  voc,
		now:    time.Now,
		loc:    time.Local,
		logger: logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the checks in order. Failing checks stop the run; corrections
// never do. Categories and themes on ev are filtered in place; every other
// fix is returned as a correction. A panic inside a check is reported as
// StatusError with no categories or themes.
func (v *Validator) Validate(ev *extractor.EventRecord, input string) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("validator panic", "panic", r)
			verdict = Verdict{Status: StatusError, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if ev == nil {
		return Verdict{Status: StatusError, Reason: "no event"}
	}

	// 1. vocabularies
	cats, droppedCats := filter(ev.Categories, v.vocab.IsCategory)
	themes, droppedThemes := filter(ev.Themes, v.vocab.IsTheme)
	if len(droppedCats) > 0 {
		v.logger.Info("dropped unknown categories", "dropped", droppedCats)
	}
	if len(droppedThemes) > 0 {
		v.logger.Info("dropped unknown themes", "dropped", droppedThemes)
	}
	ev.Categories, ev.Themes = cats, themes
	verdict = Verdict{Status: StatusSuccess, Categories: cats, Themes: themes}
	if len(cats) == 0 || len(themes) == 0 {
		verdict.Status = StatusError
		verdict.Reason = "no known categories or themes"
		return verdict
	}

	// 2. first date
	if len(ev.Dates) == 0 {
		verdict.Status = StatusError
		verdict.Reason = "no dates"
		return verdict
	}
	from, err := v.parseTime(ev.Dates[0].From)
	if err != nil {
		verdict.Status = StatusError
		verdict.Reason = err.Error()
		return verdict
	}
	if v.beforeToday(from) {
		verdict.Status = StatusDateInPast
		verdict.Reason = "event starts " + from.Format("2006-01-02")
		return verdict
	}

	// 3. age limit
	if !v.vocab.IsAgeLimit(string(ev.AgeLimit)) {
		verdict.Corrections.AgeLimit = extractor.AgeLimit(v.vocab.DefaultAgeLimit())
	}

	// 4. title
	if strings.TrimSpace(ev.Title) == "" {
		verdict.Status = StatusError
		verdict.Reason = "empty title"
		return verdict
	}

	// 5. link
	if ev.Link != "" {
		switch {
		case !strings.Contains(input, ev.Link):
			v.logger.Debug("clearing link not found in input", "link", ev.Link)
			verdict.Corrections.ClearLink = true
		case !strings.HasPrefix(ev.Link, "https://"):
			verdict.Corrections.ClearLink = true
		}
	}
	return verdict
}

func filter(values []string, allowed func(string) bool) (kept, dropped []string) {
	kept = make([]string, 0, len(values))
	for _, s := range values {
		if allowed(s) {
			kept = append(kept, s)
		} else {
			dropped = append(dropped, s)
		}
	}
	return kept, dropped
}

func (v *Validator) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, v.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// beforeToday compares calendar dates only. The event date is taken as
// written: an explicit offset is not converted into the configured zone.
func (v *Validator) beforeToday(t time.Time) bool {
	now := v.now().In(v.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, v.loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, v.loc)
	return day.Before(today)
}
