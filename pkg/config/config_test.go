package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 1, cfg.Grading.SaveConcurrency)
	assert.True(t, cfg.Grading.StartOnline)
	assert.False(t, cfg.Grading.ClampScores)
	assert.Equal(t, QueueBackendMemory, cfg.OfflineQueue.Backend)
	assert.Equal(t, "http://localhost:3000/api/health", cfg.GradeAPI.HealthURL)
	assert.Equal(t, 10*time.Second, cfg.GradeAPI.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.GradesCache.TTL)
}

func TestFromViperEnvironmentOverrides(t *testing.T) {
	t.Setenv("GRADING_SAVE_CONCURRENCY", "4")
	t.Setenv("GRADING_CLAMP_SCORES", "true")
	t.Setenv("OFFLINE_QUEUE_BACKEND", " POSTGRES ")
	t.Setenv("GRADE_API_BASE_URL", "https://grades.example.com/api/")
	t.Setenv("GRADE_API_TIMEOUT", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, 4, cfg.Grading.SaveConcurrency)
	assert.True(t, cfg.Grading.ClampScores)
	assert.Equal(t, QueueBackendPostgres, cfg.OfflineQueue.Backend)
	assert.Equal(t, "https://grades.example.com/api", cfg.GradeAPI.BaseURL)
	assert.Equal(t, "https://grades.example.com/api/health", cfg.GradeAPI.HealthURL)
	assert.Equal(t, 10*time.Second, cfg.GradeAPI.Timeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestFromViperRejectsNonPositiveConcurrency(t *testing.T) {
	t.Setenv("GRADING_SAVE_CONCURRENCY", "0")
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, 1, cfg.Grading.SaveConcurrency)
}
