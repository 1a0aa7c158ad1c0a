package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/gradesync-api/internal/dto"
	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
	"github.com/noah-isme/gradesync-api/pkg/jobs"
)

// FlushJobType identifies offline-queue flush jobs on the worker queue.
const FlushJobType = "offline_flush"

type gradeAPI interface {
	ListGrades(ctx context.Context, assessmentID string) ([]models.GradeRecord, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) (bool, error)
}

// GradingSessionConfig tunes session behaviour.
type GradingSessionConfig struct {
	ClampScores bool
}

type gradingSession struct {
	id         string
	ownerID    string
	assessment models.Assessment
	students   []models.Student
	roster     map[string]models.Student
	store      *GradeStore
	openedAt   time.Time

	// editMu serializes edits; saves run outside it.
	editMu sync.Mutex
	saving bool
}

// GradingSessionService owns the open grading sessions and drives edits,
// bulk operations, saves, and offline replay through them.
type GradingSessionService struct {
	api        gradeAPI
	cache      *GradeCache
	applier    *BulkOperationApplier
	reconciler *SaveReconciler
	queue      *OfflineQueue
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        GradingSessionConfig

	mu          sync.RWMutex
	sessions    map[string]*gradingSession
	dispatcher  jobDispatcher
	heldOffline bool
	now         func() time.Time
}

// NewGradingSessionService constructs the service.
func NewGradingSessionService(
	api gradeAPI,
	cache *GradeCache,
	applier *BulkOperationApplier,
	reconciler *SaveReconciler,
	queue *OfflineQueue,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg GradingSessionConfig,
) *GradingSessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingSessionService{
		api:        api,
		cache:      cache,
		applier:    applier,
		reconciler: reconciler,
		queue:      queue,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		sessions:   make(map[string]*gradingSession),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// UseDispatcher sets the worker queue that runs offline flushes.
func (s *GradingSessionService) UseDispatcher(dispatcher jobDispatcher) {
	s.mu.Lock()
	s.dispatcher = dispatcher
	s.mu.Unlock()
}

// Open starts a session for one assessment and seeds it with the persisted grades.
func (s *GradingSessionService) Open(ctx context.Context, ownerID string, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	roster := make(map[string]models.Student, len(req.Students))
	for _, student := range req.Students {
		if _, dup := roster[student.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s listed twice", student.ID))
		}
		roster[student.ID] = student
	}

	grades, err := s.loadGrades(ctx, req.Assessment.ID)
	if err != nil {
		return nil, err
	}
	seeded := make([]models.GradeRecord, 0, len(grades))
	for _, grade := range grades {
		if grade.AssessmentID != "" && grade.AssessmentID != req.Assessment.ID {
			continue
		}
		grade.AssessmentID = req.Assessment.ID
		grade.Recalculate(req.Assessment.MaxScore)
		seeded = append(seeded, grade)
	}

	store := NewGradeStore()
	store.SeedPersisted(seeded)
	session := &gradingSession{
		id:         uuid.NewString(),
		ownerID:    ownerID,
		assessment: req.Assessment,
		students:   append([]models.Student(nil), req.Students...),
		roster:     roster,
		store:      store,
		openedAt:   s.now(),
	}

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	s.logger.Info("grading session opened",
		zap.String("session_id", session.id),
		zap.String("assessment_id", req.Assessment.ID),
		zap.Int("students", len(req.Students)),
		zap.Int("grades", len(seeded)),
	)
	return s.view(session), nil
}

func (s *GradingSessionService) loadGrades(ctx context.Context, assessmentID string) ([]models.GradeRecord, error) {
	if cached, ok := s.cache.Load(ctx, assessmentID); ok {
		return cached, nil
	}
	grades, err := s.api.ListGrades(ctx, assessmentID)
	if err != nil {
		s.logger.Warn("failed to fetch grades", zap.String("assessment_id", assessmentID), zap.Error(err))
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrGradeAPI.Code, appErrors.ErrGradeAPI.Status, "failed to fetch grades")
	}
	s.cache.Store(ctx, assessmentID, grades)
	return grades, nil
}

// Authorize checks that a user may act on a session. Admins may act on any session.
func (s *GradingSessionService) Authorize(sessionID, userID string, role models.UserRole) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin || role == models.RoleSuperAdmin {
		return nil
	}
	if session.ownerID != "" && session.ownerID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "session belongs to another user")
	}
	return nil
}

// Get returns the merged view of a session.
func (s *GradingSessionService) Get(sessionID string) (*dto.SessionResponse, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(session), nil
}

// List summarises open sessions. An empty ownerID lists every session.
func (s *GradingSessionService) List(ownerID string) []models.GradingSessionSummary {
	s.mu.RLock()
	sessions := make([]*gradingSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if ownerID == "" || session.ownerID == ownerID {
			sessions = append(sessions, session)
		}
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].openedAt.Equal(sessions[j].openedAt) {
			return sessions[i].id < sessions[j].id
		}
		return sessions[i].openedAt.Before(sessions[j].openedAt)
	})
	summaries := make([]models.GradingSessionSummary, 0, len(sessions))
	for _, session := range sessions {
		pending := session.store.PendingCount()
		summaries = append(summaries, models.GradingSessionSummary{
			ID:             session.id,
			Assessment:     session.assessment,
			OwnerID:        session.ownerID,
			StudentCount:   len(session.students),
			PendingCount:   pending,
			UnsavedChanges: pending > 0,
			OpenedAt:       session.openedAt,
		})
	}
	return summaries
}

// Close discards a session and its unsaved edits. Grades already queued offline stay queued.
func (s *GradingSessionService) Close(sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return appErrors.ErrSessionNotFound
	}
	s.logger.Info("grading session closed",
		zap.String("session_id", sessionID),
		zap.Int("discarded_edits", session.store.PendingCount()),
	)
	return nil
}

// UpsertGrade records a single edit. Score changes recompute the derived fields.
func (s *GradingSessionService) UpsertGrade(sessionID string, req dto.UpsertGradeRequest) (*models.GradeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score == nil && req.Feedback == nil && req.RubricScores == nil && req.Excused == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score, feedback, rubric_scores, or excused required")
	}
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}
	if err := session.checkRoster([]string{studentID}); err != nil {
		return nil, err
	}

	session.editMu.Lock()
	defer session.editMu.Unlock()

	now := s.now()
	record, ok := session.store.GetMerged(studentID)
	if !ok {
		record = models.NewLocalGrade(studentID, session.assessment.ID, now)
	}
	if req.RubricScores != nil {
		record.RubricScores, record.Score = ScoreRubric(session.assessment.Rubric, req.RubricScores)
	}
	if req.Score != nil {
		record.Score = *req.Score
	}
	if req.Feedback != nil {
		record.Feedback = *req.Feedback
	}
	if req.Excused != nil {
		record.Excused = *req.Excused
		record.ExcuseReason = ""
		if record.Excused {
			record.ExcuseReason = strings.TrimSpace(req.ExcuseReason)
		}
	}
	if s.cfg.ClampScores {
		record.Score = clamp(record.Score, 0, session.assessment.MaxScore)
	}
	record.Recalculate(session.assessment.MaxScore)
	record.UpdatedAt = now
	if err := session.store.UpsertLocal(studentID, record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ApplyBulk applies one operation to the selected students.
func (s *GradingSessionService) ApplyBulk(sessionID string, req dto.BulkOperationRequest) (*dto.BulkOperationResponse, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	targets := uniqueIDs(req.StudentIDs)
	if len(targets) == 0 {
		return nil, appErrors.ErrNoTargets
	}
	op, err := DecodeOperation(req.Operation)
	if err != nil {
		return nil, err
	}
	if err := session.checkRoster(targets); err != nil {
		return nil, err
	}

	session.editMu.Lock()
	result, err := s.applier.Apply(session.store, session.assessment, targets, op)
	session.editMu.Unlock()
	if err != nil {
		return nil, err
	}

	s.metrics.RecordBulkOperation(result.Operation)
	s.logger.Info("bulk operation applied",
		zap.String("session_id", sessionID),
		zap.String("operation", result.Operation),
		zap.Int("applied", result.Applied()),
		zap.Int("skipped", len(result.Skipped)),
	)
	return &dto.BulkOperationResponse{
		Operation: result.Operation,
		Applied:   result.Applied(),
		Skipped:   result.Skipped,
		Records:   result.Records,
	}, nil
}

// Save persists every pending edit of a session. Saved records are promoted;
// failed ones stay pending and are queued for replay.
func (s *GradingSessionService) Save(ctx context.Context, sessionID string) (*dto.SaveResponse, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.beginSave() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a save is already running for this session")
	}
	defer session.endSave()

	result := s.reconciler.Save(ctx, sessionID, session.store.Pending())
	for studentID, saved := range result.Saved {
		saved.Recalculate(session.assessment.MaxScore)
		session.store.MarkSaved(studentID, saved, result.Sent[studentID])
	}
	if result.SuccessCount > 0 {
		s.cache.Invalidate(ctx, session.assessment.ID)
	}

	outcome := result.Outcome()
	return &dto.SaveResponse{
		Outcome:      outcome,
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
		QueuedCount:  result.QueuedCount,
		Failures:     result.Failures,
		Message:      saveMessage(outcome, result),
	}, nil
}

func saveMessage(outcome models.SaveOutcome, result *SaveResult) string {
	switch outcome {
	case models.SaveOutcomeNothing:
		return "No changes to save"
	case models.SaveOutcomeOffline:
		return fmt.Sprintf("Offline: %d grades saved locally and will sync when the connection returns", result.QueuedCount)
	case models.SaveOutcomeSucceeded:
		return fmt.Sprintf("Saved %d grades", result.SuccessCount)
	case models.SaveOutcomeFailed:
		return fmt.Sprintf("Failed to save %d grades; they were queued for retry", result.ErrorCount)
	default:
		return fmt.Sprintf("Saved %d grades, %d failed and were queued for retry", result.SuccessCount, result.ErrorCount)
	}
}

// Reset drops the unsaved edits of a session together with its queued grades.
func (s *GradingSessionService) Reset(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.editMu.Lock()
	pending := sortedKeys(session.store.Pending())
	session.store.ClearLocal()
	session.editMu.Unlock()

	if err := s.queue.Discard(ctx, sessionID, pending); err != nil {
		return nil, err
	}
	s.logger.Info("grading session reset", zap.String("session_id", sessionID), zap.Int("discarded_edits", len(pending)))
	return s.view(session), nil
}

// Statistics aggregates the merged view of a session.
func (s *GradingSessionService) Statistics(sessionID string) (*dto.StatisticsResponse, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	stats := ComputeStatistics(session.assessment, session.students, session.store.Merged())
	stats.PendingCount = session.store.PendingCount()
	stats.GeneratedAt = s.now()
	return &dto.StatisticsResponse{SessionID: sessionID, Statistics: stats}, nil
}

// SetConnectivity applies an explicit connectivity signal. An explicit offline
// signal holds until an explicit online signal; probes cannot lift it.
// Reconnecting with queued grades dispatches a background flush.
func (s *GradingSessionService) SetConnectivity(ctx context.Context, online bool) (*dto.ConnectivityResponse, error) {
	s.mu.Lock()
	s.heldOffline = !online
	s.mu.Unlock()
	return s.applyConnectivity(ctx, online)
}

// ProbeConnectivity applies a health-probe result unless an explicit offline
// signal is in force.
func (s *GradingSessionService) ProbeConnectivity(ctx context.Context, reachable bool) (*dto.ConnectivityResponse, error) {
	if s.isHeldOffline() {
		return s.Connectivity(ctx)
	}
	return s.applyConnectivity(ctx, reachable)
}

func (s *GradingSessionService) applyConnectivity(ctx context.Context, online bool) (*dto.ConnectivityResponse, error) {
	transition := s.queue.SetOnline(online)
	queued, err := s.queue.Len(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetOfflineQueueDepth(queued)

	resp := &dto.ConnectivityResponse{
		State:       transition.To,
		Changed:     transition.Changed(),
		QueuedCount: queued,
		HeldOffline: s.isHeldOffline(),
	}
	if transition.Reconnected() && queued > 0 {
		resp.FlushStarted = s.dispatchFlush()
	}
	return resp, nil
}

func (s *GradingSessionService) isHeldOffline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heldOffline
}

func (s *GradingSessionService) dispatchFlush() bool {
	s.mu.RLock()
	dispatcher := s.dispatcher
	s.mu.RUnlock()
	if dispatcher == nil {
		return false
	}
	accepted, err := dispatcher.Enqueue(jobs.Job{ID: uuid.NewString(), Type: FlushJobType, Key: FlushJobType})
	if err != nil {
		s.logger.Warn("failed to dispatch offline flush", zap.Error(err))
		return false
	}
	return accepted
}

// Connectivity reports the current state and queue depth.
func (s *GradingSessionService) Connectivity(ctx context.Context) (*dto.ConnectivityResponse, error) {
	queued, err := s.queue.Len(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.ConnectivityResponse{State: s.queue.State(), QueuedCount: queued, HeldOffline: s.isHeldOffline()}, nil
}

// QueuedGrades lists the offline queue.
func (s *GradingSessionService) QueuedGrades(ctx context.Context) ([]models.QueuedGrade, error) {
	return s.queue.Entries(ctx)
}

// FlushOfflineQueue replays queued grades now and routes successes back to open sessions.
func (s *GradingSessionService) FlushOfflineQueue(ctx context.Context) (*dto.FlushResponse, error) {
	result, err := s.reconciler.Flush(ctx)
	if err != nil {
		return nil, err
	}
	s.ApplyFlush(ctx, result)
	return &dto.FlushResponse{
		Attempted:    result.Attempted,
		SuccessCount: len(result.Replayed),
		ErrorCount:   len(result.Failures),
		Remaining:    result.Remaining,
		Skipped:      result.Skipped,
		Failures:     result.Failures,
	}, nil
}

// ApplyFlush promotes replayed grades in the sessions that are still open.
// A replayed grade older than the session's last save is not promoted.
func (s *GradingSessionService) ApplyFlush(ctx context.Context, result *FlushResult) {
	if result == nil {
		return
	}
	assessments := make(map[string]struct{})
	for _, replayed := range result.Replayed {
		assessments[replayed.Entry.AssessmentID] = struct{}{}
		s.mu.RLock()
		session, ok := s.sessions[replayed.Entry.SessionID]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		saved := replayed.Saved
		saved.Recalculate(session.assessment.MaxScore)
		if !session.store.MarkSaved(replayed.Entry.StudentID, saved, replayed.Entry.Record) {
			s.logger.Info("replayed grade superseded by a newer save",
				zap.String("session_id", session.id),
				zap.String("student_id", replayed.Entry.StudentID),
			)
		}
	}
	for assessmentID := range assessments {
		s.cache.Invalidate(ctx, assessmentID)
	}
}

// HandleFlushJob is the worker-queue handler for FlushJobType. Replay failures
// return an error so the job is retried with backoff.
func (s *GradingSessionService) HandleFlushJob(ctx context.Context, job jobs.Job) error {
	if job.Type != FlushJobType {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	resp, err := s.FlushOfflineQueue(ctx)
	if err != nil {
		return err
	}
	if resp.Skipped {
		s.logger.Info("offline flush skipped while offline", zap.String("job_id", job.ID))
		return nil
	}
	if resp.ErrorCount > 0 {
		return fmt.Errorf("%d queued grades failed to replay", resp.ErrorCount)
	}
	return nil
}

func (s *GradingSessionService) session(sessionID string) (*gradingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, appErrors.ErrSessionNotFound
	}
	return session, nil
}

func (s *GradingSessionService) view(session *gradingSession) *dto.SessionResponse {
	merged := session.store.Merged()
	rows := make([]dto.GradeRow, 0, len(merged))
	for _, record := range merged {
		rows = append(rows, dto.GradeRow{GradeRecord: record, Pending: session.store.IsPending(record.StudentID)})
	}
	return &dto.SessionResponse{
		ID:             session.id,
		Assessment:     session.assessment,
		Students:       session.students,
		Grades:         rows,
		UnsavedChanges: session.store.HasUnsavedChanges(),
		Connectivity:   s.queue.State(),
	}
}

func (g *gradingSession) checkRoster(studentIDs []string) error {
	if len(g.roster) == 0 {
		return nil
	}
	var unknown []string
	for _, id := range studentIDs {
		if _, ok := g.roster[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "students not in session: "+strings.Join(unknown, ", "))
	}
	return nil
}

func (g *gradingSession) beginSave() bool {
	g.editMu.Lock()
	defer g.editMu.Unlock()
	if g.saving {
		return false
	}
	g.saving = true
	return true
}

func (g *gradingSession) endSave() {
	g.editMu.Lock()
	g.saving = false
	g.editMu.Unlock()
}
