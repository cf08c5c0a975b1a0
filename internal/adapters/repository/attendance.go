package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/okian/gatewatch/internal/domain/model"
)

// defaultShardCount spreads person keys to keep lock contention low under
// concurrent multi-camera traffic.
const defaultShardCount = 8

type attendanceShard struct {
	mu      sync.RWMutex
	records map[string]model.AttendanceRecord // key: personID + "/" + day
}

// MemAttendanceStore implements AttendanceStore with sharded in-memory maps.
// Shards are keyed by person so all days of one person land on one shard.
type MemAttendanceStore struct {
	shards     []*attendanceShard
	shardCount int

	mu   sync.RWMutex
	byID map[string]string // record id -> shard key
}

// NewMemAttendanceStore creates an empty attendance store.
func NewMemAttendanceStore(opts ...AttendanceOption) *MemAttendanceStore {
	s := &MemAttendanceStore{
		shardCount: defaultShardCount,
		byID:       make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*attendanceShard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &attendanceShard{records: make(map[string]model.AttendanceRecord)}
	}

	return s
}

func recordKey(personID, day string) string { return personID + "/" + day }

func (s *MemAttendanceStore) shardFor(personID string) *attendanceShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(personID))
	return s.shards[h.Sum32()%uint32(s.shardCount)]
}

// Get returns the record for (personID, day).
func (s *MemAttendanceStore) Get(ctx context.Context, personID, day string) (model.AttendanceRecord, error) {
	sh := s.shardFor(personID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	rec, ok := sh.records[recordKey(personID, day)]
	if !ok {
		return model.AttendanceRecord{}, fmt.Errorf("%s %s: %w", personID, day, ErrRecordNotFound)
	}
	return rec, nil
}

// Put upserts a record keyed by (PersonID, Day).
func (s *MemAttendanceStore) Put(ctx context.Context, rec model.AttendanceRecord) error {
	if rec.PersonID == "" || rec.Day == "" {
		return fmt.Errorf("put record %s: missing person or day", rec.ID)
	}
	rec.UpdatedAt = time.Now().UTC()

	key := recordKey(rec.PersonID, rec.Day)
	sh := s.shardFor(rec.PersonID)
	sh.mu.Lock()
	sh.records[key] = rec
	sh.mu.Unlock()

	s.mu.Lock()
	s.byID[rec.ID] = key
	s.mu.Unlock()
	return nil
}

// ByID returns the record with the given id.
func (s *MemAttendanceStore) ByID(ctx context.Context, recordID string) (model.AttendanceRecord, error) {
	s.mu.RLock()
	key, ok := s.byID[recordID]
	s.mu.RUnlock()
	if !ok {
		return model.AttendanceRecord{}, fmt.Errorf("record %s: %w", recordID, ErrRecordNotFound)
	}

	personID := key
	if i := lastSlash(key); i >= 0 {
		personID = key[:i]
	}

	sh := s.shardFor(personID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	rec, ok := sh.records[key]
	if !ok {
		return model.AttendanceRecord{}, fmt.Errorf("record %s: %w", recordID, ErrRecordNotFound)
	}
	return rec, nil
}

// ByDay returns all records for a day, ordered by person id for determinism.
func (s *MemAttendanceStore) ByDay(ctx context.Context, day string) ([]model.AttendanceRecord, error) {
	var out []model.AttendanceRecord
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.records {
			if rec.Day == day {
				out = append(out, rec)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

// ByPerson returns the person's records with day in [fromDay, toDay].
func (s *MemAttendanceStore) ByPerson(ctx context.Context, personID, fromDay, toDay string) ([]model.AttendanceRecord, error) {
	sh := s.shardFor(personID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	var out []model.AttendanceRecord
	for _, rec := range sh.records {
		if rec.PersonID != personID {
			continue
		}
		if (fromDay != "" && rec.Day < fromDay) || (toDay != "" && rec.Day > toDay) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// MarkSync updates the sync status of the record with the given id.
func (s *MemAttendanceStore) MarkSync(ctx context.Context, recordID string, status model.SyncStatus) error {
	s.mu.RLock()
	key, ok := s.byID[recordID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("record %s: %w", recordID, ErrRecordNotFound)
	}

	// The shard is derivable from the key's person prefix.
	personID := key
	if i := lastSlash(key); i >= 0 {
		personID = key[:i]
	}

	sh := s.shardFor(personID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		return fmt.Errorf("record %s: %w", recordID, ErrRecordNotFound)
	}
	rec.SyncStatus = status
	rec.UpdatedAt = time.Now().UTC()
	sh.records[key] = rec
	return nil
}

// Unsynced returns records still waiting to be pushed externally.
func (s *MemAttendanceStore) Unsynced(ctx context.Context) []model.AttendanceRecord {
	var out []model.AttendanceRecord
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.records {
			if rec.SyncStatus == model.SyncUnsynced {
				out = append(out, rec)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// OpenCount returns the number of records with a check-in but no check-out.
func (s *MemAttendanceStore) OpenCount(ctx context.Context) int {
	var n int
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.records {
			if rec.CheckIn != nil && rec.CheckOut == nil {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}

// Count returns the total number of records.
func (s *MemAttendanceStore) Count(ctx context.Context) int {
	var n int
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
