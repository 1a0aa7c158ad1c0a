package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/gradesync-api/internal/models"
)

// MemoryOfflineQueueRepository keeps queued grades in process memory.
type MemoryOfflineQueueRepository struct {
	mu      sync.Mutex
	entries map[string]models.QueuedGrade
}

// NewMemoryOfflineQueueRepository constructs an empty in-memory queue.
func NewMemoryOfflineQueueRepository() *MemoryOfflineQueueRepository {
	return &MemoryOfflineQueueRepository{entries: make(map[string]models.QueuedGrade)}
}

func queueKey(sessionID, studentID string) string {
	return sessionID + "\x00" + studentID
}

// Put stores the entry, replacing any entry for the same session and student.
func (r *MemoryOfflineQueueRepository) Put(_ context.Context, entry models.QueuedGrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.Record = entry.Record.Clone()
	r.entries[queueKey(entry.SessionID, entry.StudentID)] = entry
	return nil
}

// List returns entries oldest first.
func (r *MemoryOfflineQueueRepository) List(_ context.Context) ([]models.QueuedGrade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]models.QueuedGrade, 0, len(r.entries))
	for _, entry := range r.entries {
		entry.Record = entry.Record.Clone()
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].EnqueuedAt.Equal(list[j].EnqueuedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].EnqueuedAt.Before(list[j].EnqueuedAt)
	})
	return list, nil
}

// Delete removes entries by id. Unknown ids are ignored.
func (r *MemoryOfflineQueueRepository) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.entries {
		if _, ok := remove[entry.ID]; ok {
			delete(r.entries, key)
		}
	}
	return nil
}

// MarkAttempt increments the attempt counter of an entry.
func (r *MemoryOfflineQueueRepository) MarkAttempt(_ context.Context, id, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.entries {
		if entry.ID == id {
			entry.Attempts++
			entry.LastError = lastError
			r.entries[key] = entry
			return nil
		}
	}
	return nil
}

// DiscardFor removes the entries of a session for the given students.
func (r *MemoryOfflineQueueRepository) DiscardFor(_ context.Context, sessionID string, studentIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, studentID := range studentIDs {
		delete(r.entries, queueKey(sessionID, studentID))
	}
	return nil
}

// Count returns the number of queued entries.
func (r *MemoryOfflineQueueRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}
