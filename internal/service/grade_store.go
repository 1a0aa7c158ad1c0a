package service

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

// GradeStore merges grades persisted by the grade API with local, unsaved edits.
// Local edits shadow persisted values until they are saved or cleared.
type GradeStore struct {
	mu        sync.RWMutex
	persisted map[string]models.GradeRecord
	local     map[string]models.GradeRecord
	// savedAt holds the edit time of the newest version promoted per student.
	savedAt map[string]time.Time
}

// NewGradeStore returns an empty store.
func NewGradeStore() *GradeStore {
	return &GradeStore{
		persisted: make(map[string]models.GradeRecord),
		local:     make(map[string]models.GradeRecord),
		savedAt:   make(map[string]time.Time),
	}
}

// SeedPersisted replaces the persisted layer with records fetched from the server.
func (s *GradeStore) SeedPersisted(records []models.GradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted = make(map[string]models.GradeRecord, len(records))
	s.savedAt = make(map[string]time.Time)
	for _, record := range records {
		if record.StudentID == "" {
			continue
		}
		s.persisted[record.StudentID] = record.Clone()
	}
}

// UpsertLocal overwrites the pending edit for a student.
func (s *GradeStore) UpsertLocal(studentID string, record models.GradeRecord) error {
	if strings.TrimSpace(studentID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student id required")
	}
	record.StudentID = studentID
	s.mu.Lock()
	s.local[studentID] = record.Clone()
	s.mu.Unlock()
	return nil
}

// GetMerged returns the local edit if present, else the persisted record.
func (s *GradeStore) GetMerged(studentID string) (models.GradeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mergedLocked(studentID)
}

func (s *GradeStore) mergedLocked(studentID string) (models.GradeRecord, bool) {
	if record, ok := s.local[studentID]; ok {
		return record.Clone(), true
	}
	if record, ok := s.persisted[studentID]; ok {
		return record.Clone(), true
	}
	return models.GradeRecord{}, false
}

// Merged returns every merged record ordered by student id.
func (s *GradeStore) Merged() []models.GradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.persisted)+len(s.local))
	for id := range s.persisted {
		ids[id] = struct{}{}
	}
	for id := range s.local {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	records := make([]models.GradeRecord, 0, len(sorted))
	for _, id := range sorted {
		record, _ := s.mergedLocked(id)
		records = append(records, record)
	}
	return records
}

// Pending returns a snapshot of the local-edit layer.
func (s *GradeStore) Pending() map[string]models.GradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := make(map[string]models.GradeRecord, len(s.local))
	for id, record := range s.local {
		pending[id] = record.Clone()
	}
	return pending
}

// IsPending reports whether a student has an unsaved edit.
func (s *GradeStore) IsPending(studentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.local[studentID]
	return ok
}

// MarkSaved promotes a server-confirmed record into the persisted layer.
// The local edit is dropped only when it is still the version that was sent,
// so an edit made while the save was in flight stays pending. A sent version
// older than one already promoted is ignored and MarkSaved reports false.
func (s *GradeStore) MarkSaved(studentID string, saved, sent models.GradeRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.savedAt[studentID]; ok && sent.UpdatedAt.Before(last) {
		return false
	}
	saved.StudentID = studentID
	s.persisted[studentID] = saved.Clone()
	s.savedAt[studentID] = sent.UpdatedAt
	if current, ok := s.local[studentID]; ok && sameVersion(current, sent) {
		delete(s.local, studentID)
	}
	return true
}

func sameVersion(a, b models.GradeRecord) bool {
	return a.ID == b.ID && a.UpdatedAt.Equal(b.UpdatedAt)
}

// ClearLocal drops every unsaved edit.
func (s *GradeStore) ClearLocal() {
	s.mu.Lock()
	s.local = make(map[string]models.GradeRecord)
	s.mu.Unlock()
}

// HasUnsavedChanges reports whether any local edit is pending.
func (s *GradeStore) HasUnsavedChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.local) > 0
}

// PendingCount returns the number of unsaved edits.
func (s *GradeStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.local)
}
