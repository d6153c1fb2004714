package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/auth"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	logger := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST"})
	logger.Enable(false)
	return logger
}

func TestRollbarLogger_claimsAreNotPrinted(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	claims := auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}, Role: auth.RoleTeacher, Name: "Ms Wang"}
	logger.Error("boom", errors.New("db down"), claims)

	out := buf.String()
	assert.Contains(t, out, "boom\n")
	assert.Contains(t, out, "db down")
	assert.NotContains(t, out, "Ms Wang")
}

func TestRollbarLogger_Printf(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Printf("%s [%.3fms] %s", "slow", 250.5, "SELECT 1")
	assert.Equal(t, "slow [250.500ms] SELECT 1\n", buf.String())
}
