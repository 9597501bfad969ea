package validator

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pogoda1/parsik/internal/extractor"
	"github.com/pogoda1/parsik/internal/vocab"
)

var fixedNow = time.Date(2031, 6, 15, 12, 0, 0, 0, time.UTC)

func newValidator(opts ...Option) *Validator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC)}, opts...)
	return New(vocab.Default(), logger, opts...)
}

func goodEvent() *extractor.EventRecord {
	return &extractor.EventRecord{
		Title:      "Джазовый вечер",
		Dates:      []extractor.DateRange{{From: "2031-06-20T19:00:00", To: "2031-06-20T22:00:00"}},
		Categories: []string{"concerts"},
		Themes:     []string{"music"},
		AgeLimit:   "18",
		Link:       "https://jazz.example/e/1",
	}
}

const input = "Джазовый вечер 20 июня, билеты https://jazz.example/e/1"

func TestValidate_Success(t *testing.T) {
	v := newValidator()
	verdict := v.Validate(goodEvent(), input)

	assert.Equal(t, StatusSuccess, verdict.Status)
	assert.True(t, verdict.OK())
	assert.True(t, verdict.Corrections.Empty())
}

func TestValidate_FiltersVocabulary(t *testing.T) {
	v := newValidator()
	ev := goodEvent()
	ev.Categories = []string{"concerts", "концерт", ""}
	ev.Themes = []string{"rock", "music"}

	verdict := v.Validate(ev, input)
	require.Equal(t, StatusSuccess, verdict.Status)
	assert.Equal(t, []string{"concerts"}, ev.Categories)
	assert.Equal(t, []string{"music"}, ev.Themes)
	assert.Equal(t, []string{"concerts"}, verdict.Categories)
}

func TestValidate_EmptyAfterFilter(t *testing.T) {
	v := newValidator()

	ev := goodEvent()
	ev.Categories = []string{"концерт"}
	assert.Equal(t, StatusError, v.Validate(ev, input).Status)

	ev = goodEvent()
	ev.Themes = nil
	assert.Equal(t, StatusError, v.Validate(ev, input).Status)
}

func TestValidate_Dates(t *testing.T) {
	cases := []struct {
		from string
		want Status
	}{
		{"2031-06-15T00:00:00", StatusSuccess},
		{"2031-06-15T23:59:00", StatusSuccess},
		{"2031-06-15", StatusSuccess},
		{"2031-06-16 10:00", StatusSuccess},
		{"2031-06-15T01:00:00Z", StatusSuccess},
		{"2031-06-14T23:59:59", StatusDateInPast},
		{"2020-01-01", StatusDateInPast},
		{"20 июня", StatusError},
		{"", StatusError},
	}
	v := newValidator()
	for _, tc := range cases {
		t.Run(tc.from, func(t *testing.T) {
			ev := goodEvent()
			ev.Dates[0].From = tc.from
			assert.Equal(t, tc.want, v.Validate(ev, input).Status)
		})
	}
}

func TestValidate_TodayUsesLocation(t *testing.T) {
	// 2031-06-15 01:00 in Moscow is still the 14th in UTC.
	msk := time.FixedZone("MSK", 3*60*60)
	v := newValidator(
		WithLocation(msk),
		WithClock(func() time.Time { return time.Date(2031, 6, 14, 22, 0, 0, 0, time.UTC) }),
	)
	ev := goodEvent()
	ev.Dates[0].From = "2031-06-14T20:00:00"
	assert.Equal(t, StatusDateInPast, v.Validate(ev, input).Status)
}

func TestValidate_OffsetDateComparedAsWritten(t *testing.T) {
	v := newValidator()

	// 2031-06-14T22:00Z in UTC, but the announcement says the 15th.
	ev := goodEvent()
	ev.Dates[0].From = "2031-06-15T01:00:00+03:00"
	assert.Equal(t, StatusSuccess, v.Validate(ev, input).Status)

	// 2031-06-15T04:00Z in UTC, but the announcement says the 14th.
	ev = goodEvent()
	ev.Dates[0].From = "2031-06-14T23:00:00-05:00"
	assert.Equal(t, StatusDateInPast, v.Validate(ev, input).Status)
}

func TestValidate_NoDates(t *testing.T) {
	ev := goodEvent()
	ev.Dates = nil
	assert.Equal(t, StatusError, newValidator().Validate(ev, input).Status)
}

func TestValidate_AgeLimitDefault(t *testing.T) {
	v := newValidator()
	for _, age := range []extractor.AgeLimit{"", "21", "12+"} {
		ev := goodEvent()
		ev.AgeLimit = age
		verdict := v.Validate(ev, input)
		assert.Equal(t, StatusSuccess, verdict.Status, "age %q", age)
		assert.Equal(t, extractor.AgeLimit("12"), verdict.Corrections.AgeLimit, "age %q", age)
	}
}

func TestValidate_EmptyTitle(t *testing.T) {
	ev := goodEvent()
	ev.Title = "  "
	ev.AgeLimit = ""
	assert.Equal(t, StatusError, newValidator().Validate(ev, input).Status)
}

func TestValidate_Link(t *testing.T) {
	v := newValidator()

	ev := goodEvent()
	ev.Link = "https://invented.example"
	assert.True(t, v.Validate(ev, input).Corrections.ClearLink)

	ev = goodEvent()
	ev.Link = "http://jazz.example"
	assert.True(t, v.Validate(ev, "see http://jazz.example").Corrections.ClearLink)

	ev = goodEvent()
	ev.Link = ""
	assert.False(t, v.Validate(ev, input).Corrections.ClearLink)
}

func TestValidate_PanicBecomesError(t *testing.T) {
	v := newValidator(WithClock(func() time.Time { panic("clock broke") }))
	verdict := v.Validate(goodEvent(), input)

	assert.Equal(t, StatusError, verdict.Status)
	assert.Empty(t, verdict.Categories)
	assert.Empty(t, verdict.Themes)
	assert.Contains(t, verdict.Reason, "clock broke")
}

func TestValidate_NilEvent(t *testing.T) {
	assert.Equal(t, StatusError, newValidator().Validate(nil, input).Status)
}
