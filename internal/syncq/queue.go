// Package syncq pulls pending announcements from the remote backend, keeps
// them in a durable local list, runs each through the pipeline and reports
// the result back. Delivery is at-least-once: an item leaves the local list
// only after its result has been posted.
package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pogoda1/parsik/internal/extractor"
	"github.com/pogoda1/parsik/internal/pipeline"
)

// SubjectProcessed is published once per processed item.
const SubjectProcessed = "parsik.event.processed"

// Remote is the backend the queue syncs with.
type Remote interface {
	FetchPending(ctx context.Context) ([]Item, error)
	PostResult(ctx context.Context, id string, result any) (json.RawMessage, error)
}

// Processor runs the extraction pipeline for one input.
type Processor interface {
	Process(ctx context.Context, input string) pipeline.Outcome
}

// Publisher announces processed items. Optional.
type Publisher interface {
	Publish(subject string, data any) error
}

// ProcessedEvent is the bus payload for SubjectProcessed.
type ProcessedEvent struct {
	ItemID    string `json:"item_id"`
	Kind      string `json:"kind"`
	ErrorText string `json:"error_text,omitempty"`
	Model     string `json:"model"`
	Escalated bool   `json:"escalated"`
	LatencyMS int64  `json:"latency_ms"`
	Reported  bool   `json:"reported"`
	Timestamp string `json:"timestamp"`
}

// Queue owns the local list. Drain and Sync must not run concurrently with
// each other; the mutex enforces that.
type Queue struct {
	remote    Remote
	local     *LocalStore
	processor Processor
	audit     Auditor
	publisher Publisher
	pacer     Pacer
	logger    *slog.Logger
	now       func() time.Time

	running sync.Mutex
}

// Deps are the collaborators of a Queue. Audit, Publisher and Pacer may be
// nil.
type Deps struct {
	Remote    Remote
	Local     *LocalStore
	Processor Processor
	Audit     Auditor
	Publisher Publisher
	Pacer     Pacer
	Logger    *slog.Logger
}

func New(d Deps) *Queue {
	q := &Queue{
		remote:    d.Remote,
		local:     d.Local,
		processor: d.Processor,
		audit:     d.Audit,
		publisher: d.Publisher,
		pacer:     d.Pacer,
		logger:    d.Logger,
		now:       time.Now,
	}
	if q.pacer == nil {
		q.pacer = NoPacer{}
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	return q
}

// FetchRemotePending asks the backend for unprocessed items.
func (q *Queue) FetchRemotePending(ctx context.Context) ([]Item, error) {
	return q.remote.FetchPending(ctx)
}

// Persist replaces the local list with items. The remote fetch is the source
// of truth for what is pending, so calling it twice with the same items is a
// no-op.
func (q *Queue) Persist(items []Item) error {
	return q.local.Replace(items)
}

// Pending returns the local list.
func (q *Queue) Pending() ([]Item, error) {
	return q.local.Items()
}

// Sync fetches, persists and drains. When the fetch fails the existing local
// list is kept and still drained, so work saved before a restart is not lost.
func (q *Queue) Sync(ctx context.Context) (int, error) {
	q.running.Lock()
	defer q.running.Unlock()

	items, err := q.FetchRemotePending(ctx)
	switch {
	case err != nil:
		q.logger.Warn("fetch pending failed, draining local list", "error", err)
	case len(items) == 0:
		q.logger.Info("no pending items from backend")
	default:
		if err := q.Persist(items); err != nil {
			return 0, fmt.Errorf("persist pending: %w", err)
		}
		q.logger.Info("pending items saved", "count", len(items))
	}
	return q.drainLocked(ctx)
}

// Drain processes the local list until it is empty. The list is re-read
// before every item, so items added meanwhile are picked up in the same run.
// It returns the number of items processed.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	q.running.Lock()
	defer q.running.Unlock()
	return q.drainLocked(ctx)
}

func (q *Queue) drainLocked(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		items, err := q.local.Items()
		if err != nil {
			return processed, err
		}
		if len(items) == 0 {
			if processed > 0 {
				q.logger.Info("local queue drained", "processed", processed)
			}
			return processed, nil
		}

		if processed > 0 {
			if err := q.pacer.Wait(ctx); err != nil {
				return processed, err
			}
		}

		item := items[0]
		q.processItem(ctx, item)
		// Cancelled mid-item: the result was produced or reported under a dead
		// context, so keep the item for the next run.
		if err := ctx.Err(); err != nil {
			q.logger.Warn("drain interrupted, item kept for next run", "id", item.ID)
			return processed, err
		}
		if err := q.local.Remove(item.ID); err != nil {
			return processed, fmt.Errorf("remove item %s: %w", item.ID, err)
		}
		processed++
	}
}

// processItem never panics and never fails: whatever happens, the caller
// removes the item afterwards.
func (q *Queue) processItem(ctx context.Context, item Item) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("item processing panicked", "id", item.ID, "panic", r)
		}
	}()

	q.logger.Info("processing item", "id", item.ID, "input_len", len(item.Input))
	out := q.processor.Process(ctx, item.Input)

	resp, postErr := q.remote.PostResult(ctx, item.ID, out.Result)
	if postErr != nil {
		var se *SyncError
		if errors.As(postErr, &se) {
			q.logger.Error("report result failed", "id", item.ID, "op", se.Op, "status", se.Status, "error", se.Err)
		} else {
			q.logger.Error("report result failed", "id", item.ID, "error", postErr)
		}
	}

	q.auditItem(ctx, item, out, resp, postErr)
	q.publish(item, out, postErr == nil)

	switch out.Result.Kind {
	case extractor.KindError:
		q.logger.Info("item processed with error", "id", item.ID, "error_text", out.Result.Error.Text, "model", out.Model)
	default:
		q.logger.Info("item processed", "id", item.ID, "kind", out.Result.Kind.String(), "model", out.Model, "escalated", out.Escalated)
	}
}

func (q *Queue) auditItem(ctx context.Context, item Item, out pipeline.Outcome, resp json.RawMessage, postErr error) {
	if q.audit == nil {
		return
	}
	payload, err := json.Marshal(resultRequest{ID: item.ID, Result: out.Result})
	if err != nil {
		q.logger.Error("marshal audit payload", "id", item.ID, "error", err)
		return
	}
	entry := AuditEntry{
		ID:                 uuid.NewString(),
		ItemID:             item.ID,
		Payload:            payload,
		ResponseFromServer: resp,
		InitialEvent:       item.Input,
		Model:              out.Model,
		Escalated:          out.Escalated,
		Timestamp:          q.now().UTC(),
	}
	if postErr != nil {
		entry.PostError = postErr.Error()
	}
	if err := q.audit.Append(ctx, entry); err != nil {
		q.logger.Error("audit append failed", "id", item.ID, "error", err)
	}
}

func (q *Queue) publish(item Item, out pipeline.Outcome, reported bool) {
	if q.publisher == nil {
		return
	}
	evt := ProcessedEvent{
		ItemID:    item.ID,
		Kind:      out.Result.Kind.String(),
		Model:     out.Model,
		Escalated: out.Escalated,
		LatencyMS: out.Latency.Milliseconds(),
		Reported:  reported,
		Timestamp: q.now().UTC().Format(time.RFC3339),
	}
	if out.Result.Kind == extractor.KindError && out.Result.Error != nil {
		evt.ErrorText = string(out.Result.Error.Text)
	}
	if err := q.publisher.Publish(SubjectProcessed, evt); err != nil {
		q.logger.Warn("failed to publish processed event", "id", item.ID, "error", err)
	}
}

// Run syncs once immediately, then every interval and whenever trigger
// fires, until ctx is cancelled. A non-positive interval disables the
// periodic sync; only trigger starts one.
func (q *Queue) Run(ctx context.Context, interval time.Duration, trigger <-chan struct{}) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	} else {
		q.logger.Warn("periodic sync disabled, waiting for triggers", "interval", interval)
	}

	for {
		if n, err := q.Sync(ctx); err != nil && ctx.Err() == nil {
			q.logger.Error("sync cycle failed", "processed", n, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		case <-trigger:
		}
	}
}
