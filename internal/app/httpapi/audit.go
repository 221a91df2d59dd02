package httpapi

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// AuditEntry records one state-changing API call.
type AuditEntry struct {
	Time     time.Time `json:"time"`
	UserID   string    `json:"user_id,omitempty"`
	Role     string    `json:"role,omitempty"`
	Action   string    `json:"action"`
	Resource string    `json:"resource,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// AuditLog keeps the most recent entries in a ring buffer and optionally
// appends each entry to a JSONL file.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	next    int
	full    bool
	file    *os.File
	enc     *json.Encoder
}

// NewAuditLog creates an audit log holding up to maxEntries in memory.
// filePath may be empty to disable the file sink.
func NewAuditLog(maxEntries int, filePath string) (*AuditLog, error) {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	a := &AuditLog{entries: make([]AuditEntry, maxEntries)}
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, err
		}
		a.file = f
		a.enc = json.NewEncoder(f)
	}
	return a, nil
}

// Record appends an entry.
func (a *AuditLog) Record(userID, role, action, resource, detail string) {
	entry := AuditEntry{
		Time:     time.Now().UTC(),
		UserID:   userID,
		Role:     role,
		Action:   action,
		Resource: resource,
		Detail:   detail,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[a.next] = entry
	a.next = (a.next + 1) % len(a.entries)
	if a.next == 0 {
		a.full = true
	}
	if a.enc != nil {
		_ = a.enc.Encode(entry)
	}
}

// Recent returns entries newest first, up to limit.
func (a *AuditLog) Recent(limit int) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := a.next
	if a.full {
		size = len(a.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]AuditEntry, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (a.next - 1 - i + len(a.entries)) % len(a.entries)
		out = append(out, a.entries[idx])
	}
	return out
}

// Close releases the file sink.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		a.enc = nil
		return err
	}
	return nil
}
