package anomaly

import (
	"sync"
	"time"
)

// DefaultHistorySize is the number of anomalies retained for trend queries
const DefaultHistorySize = 500

// History is a fixed-capacity ring buffer of detected anomalies. When full, the
// oldest entry is overwritten.
type History struct {
	buf     []Anomaly
	head    int
	count   int
	dropped uint64
	mu      sync.RWMutex
}

// NewHistory creates a ring buffer with the given capacity
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]Anomaly, capacity)}
}

// Add appends anomalies, evicting the oldest when full
func (h *History) Add(anomalies ...Anomaly) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, a := range anomalies {
		h.buf[h.head] = a
		h.head = (h.head + 1) % len(h.buf)
		if h.count < len(h.buf) {
			h.count++
		} else {
			h.dropped++
		}
	}
}

// Recent returns up to limit anomalies, newest first. limit <= 0 returns all.
func (h *History) Recent(limit int) []Anomaly {
	return h.Filter(limit, func(Anomaly) bool { return true })
}

// ForCampaign returns up to limit anomalies for one campaign, newest first
func (h *History) ForCampaign(campaignID string, limit int) []Anomaly {
	return h.Filter(limit, func(a Anomaly) bool { return a.CampaignID == campaignID })
}

// Filter returns up to limit matching anomalies, newest first
func (h *History) Filter(limit int, keep func(Anomaly) bool) []Anomaly {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > h.count {
		limit = h.count
	}
	out := make([]Anomaly, 0, limit)
	for i := 0; i < h.count && len(out) < limit; i++ {
		idx := (h.head - 1 - i + len(h.buf)) % len(h.buf)
		if keep(h.buf[idx]) {
			out = append(out, h.buf[idx])
		}
	}
	return out
}

// Len returns the number of retained anomalies
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns how many anomalies have been evicted
func (h *History) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Summary counts retained anomalies by type and severity
func (h *History) Summary() Summary {
	return Summarize(h.Recent(0))
}

// Summarize counts anomalies by type and severity
func Summarize(anomalies []Anomaly) Summary {
	s := Summary{
		Total:      len(anomalies),
		ByType:     make(map[Type]int),
		BySeverity: make(map[Severity]int),
	}
	seen := make(map[string]struct{})
	var oldest, newest time.Time
	for _, a := range anomalies {
		s.ByType[a.Type]++
		s.BySeverity[a.Severity]++
		seen[a.CampaignID] = struct{}{}
		if oldest.IsZero() || a.Timestamp.Before(oldest) {
			oldest = a.Timestamp
		}
		if a.Timestamp.After(newest) {
			newest = a.Timestamp
		}
	}
	s.Campaigns = len(seen)
	if len(anomalies) > 0 {
		s.Oldest = &oldest
		s.Newest = &newest
	}
	return s
}
