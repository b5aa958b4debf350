package automation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is the number of entries exposed to callers
const DefaultHistoryLimit = 50

// HistoryEntry records one action attempt. Entries are never modified.
type HistoryEntry struct {
	ID         string     `json:"id"`
	RuleID     string     `json:"rule_id"`
	RuleName   string     `json:"rule_name"`
	CampaignID string     `json:"campaign_id"`
	Action     ActionKind `json:"action"`
	Timestamp  time.Time  `json:"timestamp"`
	Success    bool       `json:"success"`
	Details    string     `json:"details"`
}

// HistoryFilter narrows a history query
type HistoryFilter struct {
	RuleID     string
	CampaignID string
}

func (f HistoryFilter) matches(e HistoryEntry) bool {
	if f.RuleID != "" && e.RuleID != f.RuleID {
		return false
	}
	if f.CampaignID != "" && e.CampaignID != f.CampaignID {
		return false
	}
	return true
}

// HistoryLog is the append-only audit trail of action attempts. With a retention
// cap it is a fixed-capacity ring, so the oldest entries are overwritten in place.
type HistoryLog struct {
	buf       []HistoryEntry
	head      int
	count     int
	retention int
	limit     int
	mu        sync.RWMutex
	now       func() time.Time
}

// NewHistoryLog creates a log. retention caps the entries kept in memory (0 keeps all);
// limit caps the entries returned to callers (0 uses DefaultHistoryLimit).
func NewHistoryLog(retention, limit int) *HistoryLog {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if retention < 0 {
		retention = 0
	}
	return &HistoryLog{
		retention: retention,
		limit:     limit,
		now:       time.Now,
	}
}

// newest returns the i-th most recent entry; callers hold the lock and keep i < count
func (h *HistoryLog) newest(i int) HistoryEntry {
	if h.retention == 0 {
		return h.buf[h.count-1-i]
	}
	return h.buf[(h.head-1-i+len(h.buf))%len(h.buf)]
}

// Append stores a new entry, assigning its id and timestamp. Timestamps never go
// backwards relative to earlier entries.
func (h *HistoryLog) Append(entry HistoryEntry) HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry.ID = uuid.New().String()
	entry.Timestamp = h.now()
	if h.count > 0 {
		if last := h.newest(0).Timestamp; entry.Timestamp.Before(last) {
			entry.Timestamp = last
		}
	}

	if h.retention == 0 {
		h.buf = append(h.buf, entry)
		h.count++
		return entry
	}

	if h.buf == nil {
		h.buf = make([]HistoryEntry, h.retention)
	}
	h.buf[h.head] = entry
	h.head = (h.head + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	return entry
}

// Recent returns the newest entries first, at most the configured limit
func (h *HistoryLog) Recent() []HistoryEntry {
	return h.Query(HistoryFilter{})
}

// Query returns the newest matching entries first, at most the configured limit
func (h *HistoryLog) Query(filter HistoryFilter) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, 0, min(h.limit, h.count))
	for i := 0; i < h.count && len(out) < h.limit; i++ {
		if e := h.newest(i); filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained entries
func (h *HistoryLog) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
