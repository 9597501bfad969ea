package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEntry records one processed item. Entries are only ever appended.
type AuditEntry struct {
	ID                 string          `json:"id"`
	ItemID             string          `json:"itemId"`
	Payload            json.RawMessage `json:"payload"`
	ResponseFromServer json.RawMessage `json:"responseFromServer,omitempty"`
	PostError          string          `json:"postError,omitempty"`
	InitialEvent       string          `json:"initialEvent"`
	Model              string          `json:"model,omitempty"`
	Escalated          bool            `json:"escalated"`
	Timestamp          time.Time       `json:"timestamp"`
}

// Auditor persists audit entries.
type Auditor interface {
	Append(ctx context.Context, e AuditEntry) error
}

// FileAudit appends entries to a JSON-lines file.
type FileAudit struct {
	path string
	mu   sync.Mutex
}

func NewFileAudit(path string) *FileAudit {
	return &FileAudit{path: path}
}

func (a *FileAudit) Append(_ context.Context, e AuditEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	return f.Close()
}

// Audits fans an entry out to several auditors. Every auditor is tried; the
// errors are joined.
type Audits []Auditor

func (as Audits) Append(ctx context.Context, e AuditEntry) error {
	var errs []error
	for _, a := range as {
		if a == nil {
			continue
		}
		if err := a.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
