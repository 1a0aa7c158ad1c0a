package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradesync-api/internal/dto"
	"github.com/noah-isme/gradesync-api/internal/middleware"
	"github.com/noah-isme/gradesync-api/internal/models"
	"github.com/noah-isme/gradesync-api/internal/service"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
	"github.com/noah-isme/gradesync-api/pkg/response"
)

type gradingService interface {
	Open(ctx context.Context, ownerID string, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	Authorize(sessionID, userID string, role models.UserRole) error
	Get(sessionID string) (*dto.SessionResponse, error)
	List(ownerID string) []models.GradingSessionSummary
	Close(sessionID string) error
	UpsertGrade(sessionID string, req dto.UpsertGradeRequest) (*models.GradeRecord, error)
	ApplyBulk(sessionID string, req dto.BulkOperationRequest) (*dto.BulkOperationResponse, error)
	Save(ctx context.Context, sessionID string) (*dto.SaveResponse, error)
	Reset(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	Statistics(sessionID string) (*dto.StatisticsResponse, error)
	Export(sessionID, format string) (*service.ExportFile, error)
	Connectivity(ctx context.Context) (*dto.ConnectivityResponse, error)
	SetConnectivity(ctx context.Context, online bool) (*dto.ConnectivityResponse, error)
	QueuedGrades(ctx context.Context) ([]models.QueuedGrade, error)
	FlushOfflineQueue(ctx context.Context) (*dto.FlushResponse, error)
}

// GradingSessionHandler exposes grading session endpoints.
type GradingSessionHandler struct {
	sessions gradingService
}

// NewGradingSessionHandler constructs the handler.
func NewGradingSessionHandler(sessions gradingService) *GradingSessionHandler {
	return &GradingSessionHandler{sessions: sessions}
}

// Open godoc
// @Summary Open a grading session
// @Tags Grading
// @Accept json
// @Produce json
// @Param payload body dto.OpenSessionRequest true "Assessment and roster"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /grading/sessions [post]
func (h *GradingSessionHandler) Open(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.sessions.Open(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List godoc
// @Summary List open grading sessions
// @Description Teachers see their own sessions; admins see all.
// @Tags Grading
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grading/sessions [get]
func (h *GradingSessionHandler) List(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	owner := claims.UserID
	if claims.Role == models.RoleAdmin || claims.Role == models.RoleSuperAdmin {
		owner = ""
	}
	sessions := h.sessions.List(owner)
	response.JSON(c, http.StatusOK, sessions, map[string]interface{}{"count": len(sessions)})
}

// Get godoc
// @Summary Get the merged grade view of a session
// @Tags Grading
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grading/sessions/{id} [get]
func (h *GradingSessionHandler) Get(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	session, err := h.sessions.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session)
}

// Close godoc
// @Summary Close a grading session, discarding unsaved edits
// @Tags Grading
// @Param id path string true "Session ID"
// @Success 204
// @Router /grading/sessions/{id} [delete]
func (h *GradingSessionHandler) Close(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	if err := h.sessions.Close(id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpsertGrade godoc
// @Summary Record a grade edit for one student
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.UpsertGradeRequest true "Grade edit"
// @Success 200 {object} response.Envelope
// @Router /grading/sessions/{id}/grades [put]
func (h *GradingSessionHandler) UpsertGrade(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	var req dto.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.sessions.UpsertGrade(id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// ApplyBulk godoc
// @Summary Apply a bulk operation to selected students
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.BulkOperationRequest true "Targets and operation"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grading/sessions/{id}/bulk [post]
func (h *GradingSessionHandler) ApplyBulk(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	var req dto.BulkOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.sessions.ApplyBulk(id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Save godoc
// @Summary Save every pending edit of a session
// @Description Per-student failures are reported in the counts, never as an error status. Offline saves answer 202.
// @Tags Grading
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /grading/sessions/{id}/save [post]
func (h *GradingSessionHandler) Save(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	result, err := h.sessions.Save(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Outcome == models.SaveOutcomeOffline {
		status = http.StatusAccepted
	}
	response.JSON(c, status, result)
}

// Reset godoc
// @Summary Discard the unsaved edits of a session
// @Tags Grading
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /grading/sessions/{id}/reset [post]
func (h *GradingSessionHandler) Reset(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	session, err := h.sessions.Reset(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session)
}

// Statistics godoc
// @Summary Aggregate statistics over the merged view
// @Tags Grading
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /grading/sessions/{id}/statistics [get]
func (h *GradingSessionHandler) Statistics(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	stats, err := h.sessions.Statistics(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// Export godoc
// @Summary Download the grade sheet
// @Tags Grading
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /grading/sessions/{id}/export [get]
func (h *GradingSessionHandler) Export(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}
	file, err := h.sessions.Export(id, c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Connectivity godoc
// @Summary Current connectivity state and offline queue depth
// @Tags Grading
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grading/connectivity [get]
func (h *GradingSessionHandler) Connectivity(c *gin.Context) {
	state, err := h.sessions.Connectivity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// SetConnectivity godoc
// @Summary Signal a connectivity change
// @Description Going back online with queued grades starts a background flush. An explicit offline signal holds until an explicit online signal.
// @Tags Grading
// @Accept json
// @Produce json
// @Param payload body dto.ConnectivityRequest true "Connectivity signal"
// @Success 200 {object} response.Envelope
// @Router /grading/connectivity [post]
func (h *GradingSessionHandler) SetConnectivity(c *gin.Context) {
	var req dto.ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.Online == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "online is required"))
		return
	}
	state, err := h.sessions.SetConnectivity(c.Request.Context(), *req.Online)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// OfflineQueue godoc
// @Summary List grades waiting in the offline queue
// @Tags Grading
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grading/offline-queue [get]
func (h *GradingSessionHandler) OfflineQueue(c *gin.Context) {
	entries, err := h.sessions.QueuedGrades(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Flush godoc
// @Summary Replay the offline queue now
// @Tags Grading
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grading/offline-queue/flush [post]
func (h *GradingSessionHandler) Flush(c *gin.Context) {
	result, err := h.sessions.FlushOfflineQueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func (h *GradingSessionHandler) authorize(c *gin.Context) (string, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	id := c.Param("id")
	if err := h.sessions.Authorize(id, claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return "", false
	}
	return id, true
}
