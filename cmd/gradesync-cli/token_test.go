package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradesync-api/internal/models"
	"github.com/noah-isme/gradesync-api/internal/service"
)

func TestTokenCommandSignsVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "gradesync")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"token", "--user", "teacher-7", "--role", "admin"})

	require.NoError(t, root.Execute())

	auth := service.NewAuthService(nil, service.AuthConfig{AccessTokenSecret: "cli-secret", Issuer: "gradesync"})
	claims, err := auth.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "teacher-7", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenCommandRequiresUser(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"token"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")
}
