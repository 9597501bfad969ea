// Package pipeline runs one input text through the cheap model and, when the
// answer fails validation, once more through the strong model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pogoda1/parsik/internal/extractor"
	"github.com/pogoda1/parsik/internal/llm"
	"github.com/pogoda1/parsik/internal/validator"
)

// Prompter builds the full prompt for an input text.
type Prompter interface {
	Prompt(message string) string
}

// Recorder observes every finished Process call.
type Recorder interface {
	RecordCall(latency time.Duration, escalated bool)
}

// Tier is one model and the options used to call it.
type Tier struct {
	Model   string
	Options llm.Options
}

// Config selects the two tiers.
type Config struct {
	Cheap  Tier
	Strong Tier
	// EscalateOnPastDate retries a past start date on the strong model.
	// Off by default: the date comes from the input, not from the model.
	EscalateOnPastDate bool
}

// Env is everything a Pipeline needs, built once per process in main.
type Env struct {
	Gateway   llm.Gateway
	Prompts   Prompter
	Validator *validator.Validator
	Stats     Recorder // optional
	Logger    *slog.Logger
	Config    Config
}

// Outcome is the result of one Process call.
type Outcome struct {
	Result    extractor.Result
	Model     string // model that produced Result
	Escalated bool
	Calls     int
	Latency   time.Duration
}

// Pipeline is not safe for concurrent use with a Local gateway; the sync
// worker calls it from one goroutine.
type Pipeline struct {
	env Env
	now func() time.Time
}

func New(env Env) *Pipeline {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	return &Pipeline{env: env, now: time.Now}
}

type stage int

const (
	stageAccepted stage = iota
	stageNoEvent
	stageUndecodable
	stageInvalid
	stagePastDate
	stageTransport
)

type attempt struct {
	stage   stage
	result  extractor.Result
	event   *extractor.EventRecord
	verdict validator.Verdict
	err     error
}

// Process never returns a Go error: every failure ends as an error Result.
func (p *Pipeline) Process(ctx context.Context, input string) (out Outcome) {
	start := p.now()
	defer func() {
		out.Latency = p.now().Sub(start)
		if p.env.Stats != nil {
			p.env.Stats.RecordCall(out.Latency, out.Escalated)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			p.env.Logger.Error("pipeline panic", "panic", r)
			out.Result = extractor.ErrorResult(extractor.NewError(extractor.NotParsed, fmt.Sprintf("panic: %v", r)))
		}
	}()

	prompt := p.env.Prompts.Prompt(input)
	cheap, strong := p.env.Config.Cheap, p.env.Config.Strong

	out.Model, out.Calls = cheap.Model, 1
	first := p.try(ctx, prompt, input, cheap)

	switch first.stage {
	case stageAccepted, stageNoEvent:
		out.Result = first.result
		return out
	case stageUndecodable:
		out.Result = extractor.ErrorResult(extractor.NewError(extractor.JSONNotFound, first.err.Error()))
		return out
	case stagePastDate:
		if !p.env.Config.EscalateOnPastDate {
			out.Result = extractor.ErrorResult(extractor.NewError(extractor.DateInPast, first.event))
			return out
		}
	case stageTransport:
		if ctx.Err() != nil {
			out.Result = extractor.ErrorResult(extractor.NewError(extractor.ModelFailed, first.err.Error()))
			return out
		}
	}

	p.env.Logger.Info("escalating to strong model",
		"from", cheap.Model,
		"to", strong.Model,
		"reason", first.reason(),
	)
	out.Model, out.Calls, out.Escalated = strong.Model, 2, true
	second := p.try(ctx, prompt, input, strong)

	if second.stage == stageAccepted {
		out.Result = second.result
		return out
	}
	p.env.Logger.Warn("strong model failed", "model", strong.Model, "reason", second.reason())
	out.Result = extractor.ErrorResult(extractor.NewError(extractor.NotParsed, second.details()))
	return out
}

// try performs one call → extract → validate round on a tier.
func (p *Pipeline) try(ctx context.Context, prompt, input string, tier Tier) attempt {
	raw, err := p.env.Gateway.Invoke(ctx, prompt, tier.Model, tier.Options)
	if err != nil {
		p.env.Logger.Warn("model call failed", "model", tier.Model, "error", err)
		return attempt{stage: stageTransport, err: err}
	}

	res, err := extractor.Extract(raw)
	if err != nil {
		p.env.Logger.Warn("model output not decodable", "model", tier.Model, "error", err)
		return attempt{stage: stageUndecodable, err: err}
	}

	switch res.Kind {
	case extractor.KindAdvert:
		p.env.Logger.Info("input classified as advertisement", "model", tier.Model)
		return attempt{stage: stageAccepted, result: res}
	case extractor.KindError:
		p.env.Logger.Info("no event in model output", "model", tier.Model, "error_text", res.Error.Text)
		return attempt{stage: stageNoEvent, result: res}
	}

	ev := res.Event
	verdict := p.env.Validator.Validate(ev, input)
	a := attempt{result: res, event: ev, verdict: verdict}
	switch verdict.Status {
	case validator.StatusSuccess:
		applyCorrections(ev, verdict.Corrections)
		p.env.Logger.Info("event extracted", "model", tier.Model, "title", ev.Title)
		a.stage = stageAccepted
	case validator.StatusDateInPast:
		a.stage = stagePastDate
	default:
		a.stage = stageInvalid
	}
	return a
}

// applyCorrections backfills the age limit and drops untrusted links. The
// validator only proposes an age limit when the extracted one is unusable.
func applyCorrections(ev *extractor.EventRecord, c validator.Corrections) {
	if c.AgeLimit != "" {
		ev.AgeLimit = c.AgeLimit
	}
	if c.ClearLink {
		ev.Link = ""
	}
}

func (a attempt) reason() string {
	switch a.stage {
	case stageTransport, stageUndecodable:
		return a.err.Error()
	case stageNoEvent:
		return string(a.result.Error.Text)
	case stageInvalid, stagePastDate:
		return a.verdict.Reason
	}
	return ""
}

// details is what a NOT_PARSED error carries for diagnosis.
func (a attempt) details() any {
	switch a.stage {
	case stageInvalid, stagePastDate:
		return a.event
	case stageNoEvent:
		return a.result.Error
	case stageTransport:
		var me *llm.ModelError
		if errors.As(a.err, &me) {
			return map[string]string{"kind": string(me.Kind), "error": me.Error()}
		}
		return map[string]string{"error": a.err.Error()}
	}
	return map[string]string{"error": a.reason()}
}
