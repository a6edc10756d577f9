package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/mind-engage/nopenaltycalc/internal/auth/middleware"
	"github.com/mind-engage/nopenaltycalc/internal/config"
	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty"
	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty/httpchi"
)

func TestPrintRecords_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, []nopenalty.Record{
		{ItemID: 100, ItemType: nopenalty.ItemTypeCourse, GradeMax: 100, FinalGrade: 72.5, UserModified: 9},
	}, false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ITEM"))
	assert.Contains(t, lines[1], "72.50000")
	assert.Contains(t, lines[1], "course")
}

func TestPrintRecords_EmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, nil, true))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("AUTH_HMAC_SECRET", "cmd-test-secret")
	configPath = ""

	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--sub", "5", "--role", "teacher"})
	require.NoError(t, root.Execute())

	c, err := auth.NewAuthService("cmd-test-secret", time.Hour).Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "5", c.Sub)
	assert.Equal(t, "teacher", c.Role)
}

func TestTokenCommand_RejectsUnknownRole(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"token", "--sub", "5", "--role", "guest"})
	assert.Error(t, root.Execute())
}

func TestRouter(t *testing.T) {
	cfg := config.Defaults()
	h := newRouter(cfg, &httpchi.API{}, auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nopenalty/courses/2/users/5", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{}`)))
	assert.NotEqual(t, http.StatusOK, rec.Code, "local login is off by default")
}
