package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/gradesync-api/internal/models"
)

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		name   string
		role   models.UserRole
		status int
	}{
		{name: "teacher", role: models.RoleTeacher, status: http.StatusOK},
		{name: "admin", role: models.RoleAdmin, status: http.StatusOK},
		{name: "student", role: models.RoleStudent, status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validator := &tokenValidatorStub{claims: &models.JWTClaims{UserID: "user-1", Role: tc.role}}
			router := newProtectedRouter(validator, models.RoleTeacher, models.RoleAdmin)

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("Authorization", "Bearer good-token")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}
