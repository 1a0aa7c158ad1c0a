package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

type apiObserverStub struct {
	operations []string
	failures   int
}

func (a *apiObserverStub) ObserveGradeAPI(operation string, err error, duration time.Duration) {
	a.operations = append(a.operations, operation)
	if err != nil {
		a.failures++
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, observer apiObserver) *GradeAPIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGradeAPIClient(GradeAPIClientConfig{BaseURL: server.URL + "/", Token: "svc-token"}, server.Client(), observer, nil)
}

func TestGradeAPIClientListGrades(t *testing.T) {
	observer := &apiObserverStub{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/assessments/quiz-1/grades", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"grade-1","student_id":"s-1","assessment_id":"quiz-1","score":88}]`))
	}, observer)

	grades, err := client.ListGrades(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 88.0, grades[0].Score)
	assert.Equal(t, []string{"list_grades"}, observer.operations)
}

func TestGradeAPIClientListGradesEmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, nil)

	grades, err := client.ListGrades(context.Background(), "quiz-1")
	require.NoError(t, err)
	assert.NotNil(t, grades)
	assert.Empty(t, grades)
}

func TestGradeAPIClientSaveGradeBlanksTemporaryID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/grades", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body models.GradeRecord
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Empty(t, body.ID)
		body.ID = "grade-42"
		_ = json.NewEncoder(w).Encode(body)
	}, nil)

	record := models.NewLocalGrade("s-1", "quiz-1", time.Now().UTC())
	record.Score = 77
	saved, err := client.SaveGrade(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "grade-42", saved.ID)
	assert.Equal(t, "s-1", saved.StudentID)
	assert.Equal(t, 77.0, saved.Score)
}

func TestGradeAPIClientSaveGradeKeepsIDWhenServerOmitsIt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"score":50}`))
	}, nil)

	saved, err := client.SaveGrade(context.Background(), models.GradeRecord{ID: "grade-7", StudentID: "s-7", AssessmentID: "quiz-1", Score: 50})
	require.NoError(t, err)
	assert.Equal(t, "grade-7", saved.ID)
	assert.Equal(t, "s-7", saved.StudentID)
	assert.Equal(t, "quiz-1", saved.AssessmentID)
}

func TestGradeAPIClientRejectedRequest(t *testing.T) {
	observer := &apiObserverStub{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "score exceeds maximum", http.StatusUnprocessableEntity)
	}, observer)

	_, err := client.SaveGrade(context.Background(), models.GradeRecord{ID: "grade-1", StudentID: "s-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrGradeAPI)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "score exceeds maximum")
	assert.Equal(t, 1, observer.failures)
}

func TestGradeAPIClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	client := NewGradeAPIClient(GradeAPIClientConfig{BaseURL: base, Timeout: time.Second}, nil, nil, nil)
	_, err := client.ListGrades(context.Background(), "quiz-1")
	assert.ErrorIs(t, err, appErrors.ErrGradeAPIUnreachable)
}

func TestGradeAPIClientRateLimitHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, nil)
	limited := NewGradeAPIClient(GradeAPIClientConfig{BaseURL: client.baseURL, RateLimit: 0.001, RateBurst: 1}, client.client, nil, nil)

	_, err := limited.ListGrades(context.Background(), "quiz-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.ListGrades(ctx, "quiz-1")
	assert.ErrorIs(t, err, appErrors.ErrGradeAPIUnreachable)
}

func TestGradeAPIClientPing(t *testing.T) {
	var status int32 = http.StatusOK
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}, nil)

	result, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Reachable)
	assert.Equal(t, http.StatusOK, result.StatusCode)

	atomic.StoreInt32(&status, http.StatusNotFound)
	result, err = client.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Reachable)

	atomic.StoreInt32(&status, http.StatusServiceUnavailable)
	result, err = client.Ping(context.Background())
	require.Error(t, err)
	assert.False(t, result.Reachable)
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
}

func TestGradeAPIClientPingWithoutHealthURL(t *testing.T) {
	result, err := NewGradeAPIClient(GradeAPIClientConfig{}, nil, nil, nil).Ping(context.Background())
	require.Error(t, err)
	assert.False(t, result.Reachable)
}
