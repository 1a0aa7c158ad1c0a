package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

const maxErrorBody = 512

type apiObserver interface {
	ObserveGradeAPI(operation string, err error, duration time.Duration)
}

// StatusError is returned when the grade API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("grade api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("grade api returned status %d: %s", e.StatusCode, e.Body)
}

// GradeAPIClientConfig configures the client. RateLimit is in requests per
// second; zero disables limiting.
type GradeAPIClientConfig struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	HealthURL string
	RateLimit float64
	RateBurst int
}

// GradeAPIClient talks to the external grade persistence API.
type GradeAPIClient struct {
	baseURL   string
	healthURL string
	token     string
	client    *http.Client
	limiter   *rate.Limiter
	metrics   apiObserver
	logger    *zap.Logger
}

// NewGradeAPIClient constructs a client. A nil httpClient gets one with cfg.Timeout.
func NewGradeAPIClient(cfg GradeAPIClientConfig, httpClient *http.Client, metrics apiObserver, logger *zap.Logger) *GradeAPIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	health := cfg.HealthURL
	if health == "" && base != "" {
		health = base + "/health"
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &GradeAPIClient{
		baseURL:   base,
		healthURL: health,
		token:     cfg.Token,
		client:    httpClient,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
	}
}

// ListGrades fetches the persisted grades of an assessment.
func (c *GradeAPIClient) ListGrades(ctx context.Context, assessmentID string) ([]models.GradeRecord, error) {
	endpoint := fmt.Sprintf("%s/assessments/%s/grades", c.baseURL, url.PathEscape(assessmentID))
	var grades []models.GradeRecord
	if err := c.do(ctx, "list_grades", http.MethodGet, endpoint, nil, &grades); err != nil {
		return nil, err
	}
	if grades == nil {
		grades = []models.GradeRecord{}
	}
	return grades, nil
}

// SaveGrade persists one grade. Temporary ids are not sent; the server assigns one.
func (c *GradeAPIClient) SaveGrade(ctx context.Context, record models.GradeRecord) (*models.GradeRecord, error) {
	payload := record.Clone()
	if payload.IsTemporary() {
		payload.ID = ""
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode grade")
	}

	var saved models.GradeRecord
	if err := c.do(ctx, "save_grade", http.MethodPost, c.baseURL+"/grades", body, &saved); err != nil {
		return nil, err
	}
	if saved.StudentID == "" {
		saved.StudentID = record.StudentID
	}
	if saved.AssessmentID == "" {
		saved.AssessmentID = record.AssessmentID
	}
	if saved.ID == "" {
		saved.ID = record.ID
	}
	return &saved, nil
}

// Ping probes the health endpoint. Any status below 500 counts as reachable.
func (c *GradeAPIClient) Ping(ctx context.Context) (models.ProbeResult, error) {
	result := models.ProbeResult{URL: c.healthURL, ObservedAt: time.Now().UTC()}
	if c.healthURL == "" {
		err := errors.New("health URL not configured")
		result.Error = err.Error()
		return result, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
	} else {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		result.StatusCode = resp.StatusCode
		result.Reachable = resp.StatusCode < http.StatusInternalServerError
		if !result.Reachable {
			result.Error = fmt.Sprintf("received status %d", resp.StatusCode)
			err = fmt.Errorf("grade api health check failed: %s", result.Error)
		}
	}
	if c.metrics != nil {
		c.metrics.ObserveGradeAPI("health", err, result.Duration)
	}
	return result, err
}

func (c *GradeAPIClient) do(ctx context.Context, operation, method, endpoint string, body []byte, dest interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return appErrors.Wrap(err, appErrors.ErrGradeAPIUnreachable.Code, appErrors.ErrGradeAPIUnreachable.Status, "grade api request not sent")
		}
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build grade api request")
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	err = c.exchange(req, dest)
	if c.metrics != nil {
		c.metrics.ObserveGradeAPI(operation, err, time.Since(start))
	}
	if err != nil {
		c.logger.Debug("grade api request failed", zap.String("operation", operation), zap.String("url", endpoint), zap.Error(err))
	}
	return err
}

func (c *GradeAPIClient) exchange(req *http.Request, dest interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrGradeAPIUnreachable.Code, appErrors.ErrGradeAPIUnreachable.Status, "grade api unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		return appErrors.Wrap(statusErr, appErrors.ErrGradeAPI.Code, appErrors.ErrGradeAPI.Status, "grade api rejected request")
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return appErrors.Wrap(err, appErrors.ErrGradeAPI.Code, appErrors.ErrGradeAPI.Status, "invalid grade api response")
	}
	return nil
}

func (c *GradeAPIClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
