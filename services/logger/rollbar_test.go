package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/user"
)

func TestRollbarLogger(t *testing.T) {
	obsCore, logs := observer.New(zap.DebugLevel)
	logger := NewRollbarLogger(zap.New(obsCore), &testConf)
	logger.Enable(false)

	usr := user.User{ID: "u1", Username: "ada", Email: "ada@test.test"}
	err := errors.New("boom")

	logger.Info("hello")
	logger.Error("failed", err, usr, map[string]interface{}{"lesson_id": 3})

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "hello", entries[0].Message)
		assert.Equal(t, zap.ErrorLevel, entries[1].Level)

		fields := entries[1].ContextMap()
		assert.Contains(t, fields["error"], "boom")
		assert.Equal(t, "u1", fields["user_id"])
		assert.Equal(t, "ada", fields["username"])
		assert.EqualValues(t, 3, fields["lesson_id"])
	}
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	usr := user.User{ID: "u1"}
	err := errors.New("boom")

	args := logger.prepare("msg", []interface{}{err, usr, user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg", err}, args, "only the error is forwarded, users become the rollbar person")
}

var testConf = core.Config{Env: "TEST", Build: "test"}
