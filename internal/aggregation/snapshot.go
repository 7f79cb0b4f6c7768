package aggregation

import "time"

// Snapshot is an immutable copy of a poll's counts at the moment one event was ingested.
type Snapshot struct {
	at     time.Time
	counts map[string]int64
	keys   []string
	total  int64
}

func newSnapshot(at time.Time, counts map[string]int64, keys []string) *Snapshot {
	c := make(map[string]int64, len(counts))
	var total int64
	for k, v := range counts {
		c[k] = v
		total += v
	}
	return &Snapshot{
		at:     at,
		counts: c,
		// capped so appends by the writer never show through
		keys:  keys[:len(keys):len(keys)],
		total: total,
	}
}

func (s *Snapshot) Timestamp() time.Time { return s.at }

func (s *Snapshot) Total() int64 { return s.total }

func (s *Snapshot) Count(key string) int64 { return s.counts[key] }

// Keys returns choice keys in first-seen order.
func (s *Snapshot) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *Snapshot) Counts() map[string]int64 {
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// ChoiceCount is one entry of a poll's running tally.
type ChoiceCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// SnapshotRecord is the exported form of a snapshot.
type SnapshotRecord struct {
	Timestamp time.Time        `json:"timestamp"`
	Total     int64            `json:"total"`
	Counts    map[string]int64 `json:"counts"`
}

func (s *Snapshot) Record() SnapshotRecord {
	return SnapshotRecord{Timestamp: s.at, Total: s.total, Counts: s.Counts()}
}
