package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Warn(ctx, "pair skipped", zap.String("reason", "not found"))
	tl.Warn(ctx, "pair skipped", zap.String("reason", "scoring"))

	tl.AssertLogged(t, zapcore.WarnLevel, "pair skipped")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "pair skipped")
	tl.AssertField(t, "pair skipped", "reason", "scoring")
	assert.Equal(t, 2, tl.CountLogged(zapcore.WarnLevel, "skipped"))
	assert.Zero(t, tl.CountLogged(zapcore.InfoLevel, "skipped"))

	tl.Reset()
	assert.Zero(t, tl.CountLogged(zapcore.WarnLevel, "skipped"))
}
