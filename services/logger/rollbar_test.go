package logsvc

import (
	"bytes"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/user"
)

func newLogger(t *testing.T) (*RollbarLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := NewRollbarLogger(&buf, core.NewTestConfig(t.TempDir()))
	l.Enable(false)
	return l, &buf
}

func TestRollbarLogger_structuredLines(t *testing.T) {
	l, buf := newLogger(t)

	l.Info("model trained", map[string]interface{}{"users": 3})
	l.Warn("redis unavailable", pkgerrors.New("connection refused"))
	l.Error("request failed", user.User{ID: 7, Username: "alice"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"level":"info"`)
	assert.Contains(t, lines[0], `"users":3`)
	assert.Contains(t, lines[0], `"app":"Coursemate"`)
	assert.Contains(t, lines[1], `"level":"warn"`)
	assert.Contains(t, lines[1], `"error":"connection refused"`)
	assert.Contains(t, lines[2], `"user_id":7`)
	assert.Contains(t, lines[2], `"username":"alice"`)
}

func TestRollbarLogger_debugLevel(t *testing.T) {
	l, buf := newLogger(t)
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestStackTracer_pkgErrors(t *testing.T) {
	err := pkgerrors.Wrap(pkgerrors.New("boom"), "loading ratings")

	frames, ok := errors.StackTracer(err)
	require.True(t, ok)
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0].Function, "TestStackTracer_pkgErrors")
}
