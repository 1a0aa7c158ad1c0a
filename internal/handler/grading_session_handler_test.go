package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradesync-api/internal/dto"
	"github.com/noah-isme/gradesync-api/internal/middleware"
	"github.com/noah-isme/gradesync-api/internal/models"
	"github.com/noah-isme/gradesync-api/internal/service"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

type gradingServiceMock struct {
	authorizeErr error
	openResp     *dto.SessionResponse
	openErr      error
	listOwner    string
	listResp     []models.GradingSessionSummary
	saveResp     *dto.SaveResponse
	bulkResp     *dto.BulkOperationResponse
	bulkErr      error
	exportFile   *service.ExportFile
	exportFormat string
	connResp     *dto.ConnectivityResponse
	online       *bool
	queued       []models.QueuedGrade
	flushResp    *dto.FlushResponse
	lastOwner    string
	lastBulk     dto.BulkOperationRequest
	closed       string
}

func (m *gradingServiceMock) Open(ctx context.Context, ownerID string, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	m.lastOwner = ownerID
	return m.openResp, m.openErr
}

func (m *gradingServiceMock) Authorize(sessionID, userID string, role models.UserRole) error {
	return m.authorizeErr
}

func (m *gradingServiceMock) Get(sessionID string) (*dto.SessionResponse, error) {
	return &dto.SessionResponse{ID: sessionID}, nil
}

func (m *gradingServiceMock) List(ownerID string) []models.GradingSessionSummary {
	m.listOwner = ownerID
	return m.listResp
}

func (m *gradingServiceMock) Close(sessionID string) error {
	m.closed = sessionID
	return nil
}

func (m *gradingServiceMock) UpsertGrade(sessionID string, req dto.UpsertGradeRequest) (*models.GradeRecord, error) {
	return &models.GradeRecord{StudentID: req.StudentID}, nil
}

func (m *gradingServiceMock) ApplyBulk(sessionID string, req dto.BulkOperationRequest) (*dto.BulkOperationResponse, error) {
	m.lastBulk = req
	return m.bulkResp, m.bulkErr
}

func (m *gradingServiceMock) Save(ctx context.Context, sessionID string) (*dto.SaveResponse, error) {
	return m.saveResp, nil
}

func (m *gradingServiceMock) Reset(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	return &dto.SessionResponse{ID: sessionID}, nil
}

func (m *gradingServiceMock) Statistics(sessionID string) (*dto.StatisticsResponse, error) {
	return &dto.StatisticsResponse{SessionID: sessionID}, nil
}

func (m *gradingServiceMock) Export(sessionID, format string) (*service.ExportFile, error) {
	m.exportFormat = format
	return m.exportFile, nil
}

func (m *gradingServiceMock) Connectivity(ctx context.Context) (*dto.ConnectivityResponse, error) {
	return m.connResp, nil
}

func (m *gradingServiceMock) SetConnectivity(ctx context.Context, online bool) (*dto.ConnectivityResponse, error) {
	m.online = &online
	return m.connResp, nil
}

func (m *gradingServiceMock) QueuedGrades(ctx context.Context) ([]models.QueuedGrade, error) {
	return m.queued, nil
}

func (m *gradingServiceMock) FlushOfflineQueue(ctx context.Context) (*dto.FlushResponse, error) {
	return m.flushResp, nil
}

func newGradingContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

var teacherClaims = &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestGradingHandlerOpen(t *testing.T) {
	mockSvc := &gradingServiceMock{openResp: &dto.SessionResponse{ID: "session-1"}}
	c, w := newGradingContext(http.MethodPost, "/grading/sessions", `{"assessment":{"id":"quiz-1","max_score":100}}`, teacherClaims)

	NewGradingSessionHandler(mockSvc).Open(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.lastOwner)
}

func TestGradingHandlerOpenRequiresClaims(t *testing.T) {
	c, w := newGradingContext(http.MethodPost, "/grading/sessions", `{}`, nil)
	NewGradingSessionHandler(&gradingServiceMock{}).Open(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGradingHandlerOpenInvalidBody(t *testing.T) {
	c, w := newGradingContext(http.MethodPost, "/grading/sessions", `{"assessment":`, teacherClaims)
	NewGradingSessionHandler(&gradingServiceMock{}).Open(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradingHandlerListScopesByRole(t *testing.T) {
	mockSvc := &gradingServiceMock{listResp: []models.GradingSessionSummary{{ID: "session-1"}}}

	c, w := newGradingContext(http.MethodGet, "/grading/sessions", "", teacherClaims)
	NewGradingSessionHandler(mockSvc).List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.listOwner)
	meta := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["count"])

	c, _ = newGradingContext(http.MethodGet, "/grading/sessions", "", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	NewGradingSessionHandler(mockSvc).List(c)
	assert.Empty(t, mockSvc.listOwner)
}

func TestGradingHandlerForbiddenSession(t *testing.T) {
	mockSvc := &gradingServiceMock{authorizeErr: appErrors.Clone(appErrors.ErrForbidden, "session belongs to another user")}
	c, w := newGradingContext(http.MethodGet, "/grading/sessions/session-1", "", teacherClaims)

	NewGradingSessionHandler(mockSvc).Get(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "FORBIDDEN", errBody["code"])
}

func TestGradingHandlerApplyBulk(t *testing.T) {
	mockSvc := &gradingServiceMock{bulkResp: &dto.BulkOperationResponse{Operation: "apply_curve/add_points", Applied: 2}}
	body := `{"student_ids":["s-1","s-2"],"operation":{"kind":"apply_curve","curve_type":"add_points","points":5}}`
	c, w := newGradingContext(http.MethodPost, "/grading/sessions/session-1/bulk", body, teacherClaims)

	NewGradingSessionHandler(mockSvc).ApplyBulk(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"s-1", "s-2"}, mockSvc.lastBulk.StudentIDs)
	require.NotNil(t, mockSvc.lastBulk.Operation.Points)
	assert.Equal(t, 5.0, *mockSvc.lastBulk.Operation.Points)
}

func TestGradingHandlerApplyBulkNoTargets(t *testing.T) {
	mockSvc := &gradingServiceMock{bulkErr: appErrors.ErrNoTargets}
	c, w := newGradingContext(http.MethodPost, "/grading/sessions/session-1/bulk", `{"student_ids":[]}`, teacherClaims)

	NewGradingSessionHandler(mockSvc).ApplyBulk(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "NO_TARGETS", errBody["code"])
}

func TestGradingHandlerSaveStatus(t *testing.T) {
	mockSvc := &gradingServiceMock{saveResp: &dto.SaveResponse{Outcome: models.SaveOutcomePartial, SuccessCount: 4, ErrorCount: 1}}
	c, w := newGradingContext(http.MethodPost, "/grading/sessions/session-1/save", "", teacherClaims)
	NewGradingSessionHandler(mockSvc).Save(c)
	require.Equal(t, http.StatusOK, w.Code)

	mockSvc.saveResp = &dto.SaveResponse{Outcome: models.SaveOutcomeOffline, QueuedCount: 3}
	c, w = newGradingContext(http.MethodPost, "/grading/sessions/session-1/save", "", teacherClaims)
	NewGradingSessionHandler(mockSvc).Save(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestGradingHandlerClose(t *testing.T) {
	mockSvc := &gradingServiceMock{}
	c, w := newGradingContext(http.MethodDelete, "/grading/sessions/session-1", "", teacherClaims)

	NewGradingSessionHandler(mockSvc).Close(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "session-1", mockSvc.closed)
}

func TestGradingHandlerExport(t *testing.T) {
	mockSvc := &gradingServiceMock{exportFile: &service.ExportFile{Filename: "grades-quiz-1.csv", ContentType: "text/csv", Data: []byte("Student ID\n")}}
	c, w := newGradingContext(http.MethodGet, "/grading/sessions/session-1/export", "", teacherClaims)

	NewGradingSessionHandler(mockSvc).Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportFormatCSV, mockSvc.exportFormat)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "grades-quiz-1.csv")
	assert.Equal(t, "Student ID\n", w.Body.String())
}

func TestGradingHandlerSetConnectivity(t *testing.T) {
	mockSvc := &gradingServiceMock{connResp: &dto.ConnectivityResponse{State: models.ConnectivityOnline, Changed: true}}

	c, w := newGradingContext(http.MethodPost, "/grading/connectivity", `{"online":true}`, teacherClaims)
	NewGradingSessionHandler(mockSvc).SetConnectivity(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.online)
	assert.True(t, *mockSvc.online)

	c, w = newGradingContext(http.MethodPost, "/grading/connectivity", `{}`, teacherClaims)
	NewGradingSessionHandler(mockSvc).SetConnectivity(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradingHandlerOfflineQueue(t *testing.T) {
	mockSvc := &gradingServiceMock{
		queued:    []models.QueuedGrade{{ID: "entry-1", StudentID: "s-1"}},
		flushResp: &dto.FlushResponse{Attempted: 1, SuccessCount: 1},
	}

	c, w := newGradingContext(http.MethodGet, "/grading/offline-queue", "", teacherClaims)
	NewGradingSessionHandler(mockSvc).OfflineQueue(c)
	require.Equal(t, http.StatusOK, w.Code)
	meta := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["count"])

	c, w = newGradingContext(http.MethodPost, "/grading/offline-queue/flush", "", teacherClaims)
	NewGradingSessionHandler(mockSvc).Flush(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["success_count"])
}
