package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/nopenaltycalc/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("s3cret", time.Minute)
	tok, err := a.IssueJWT("42", "teacher")
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", c.Sub)
	assert.Equal(t, "teacher", c.Role)
	assert.Equal(t, "nopenaltycalc", c.Issuer)
}

func TestParse_Expired(t *testing.T) {
	a := NewAuthService("s3cret", time.Minute)
	a.ttl = -time.Minute
	tok, err := a.IssueJWT("42", "teacher")
	require.NoError(t, err)

	_, err = a.Parse(tok)
	assert.Error(t, err)
}

func TestJWTMiddleware_SetsContext(t *testing.T) {
	a := NewAuthService("s3cret", time.Minute)
	tok, err := a.IssueJWT("5", "student")
	require.NoError(t, err)

	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = rbac.SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "5", gotSub)
	assert.Equal(t, "student", gotRole)
}

func TestAdminLoginHandler(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	a := NewAuthService("s3cret", time.Minute)
	h := AdminLoginHandler(a, "admin", string(hash))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"username":"admin","password":"hunter2"}`, http.StatusOK},
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{"wrong user", `{"username":"root","password":"hunter2"}`, http.StatusUnauthorized},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK {
				assert.Contains(t, rec.Body.String(), "access_token")
			}
		})
	}
}
