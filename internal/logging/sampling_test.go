package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)

	sampled := newSampledCore(core, SamplingConfig{Enabled: false})

	assert.Equal(t, core, sampled)
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	cfg := SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Second),
		Levels:  DefaultLevelSamplingConfig(),
	}
	logger := &Logger{zap: zap.New(newSampledCore(core, cfg))}

	for i := 0; i < 100; i++ {
		logger.Error(context.Background(), "encoder failed")
	}

	assert.Len(t, observed.FilterMessage("encoder failed").All(), 100)
}

func TestNewSampledCore_WarnSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	cfg := SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.WarnLevel: {Initial: 5, Thereafter: 0},
		},
	}
	logger := &Logger{zap: zap.New(newSampledCore(core, cfg))}

	for i := 0; i < 20; i++ {
		logger.Warn(context.Background(), "pair skipped")
	}

	assert.Len(t, observed.FilterMessage("pair skipped").All(), 5)
}

func TestNewSampledCore_UnconfiguredLevelPassesThrough(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	cfg := SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.WarnLevel: {Initial: 1, Thereafter: 0},
		},
	}
	logger := &Logger{zap: zap.New(newSampledCore(core, cfg))}

	for i := 0; i < 10; i++ {
		logger.Info(context.Background(), "query ranked")
	}

	assert.Len(t, observed.FilterMessage("query ranked").All(), 10)
}

func TestLevelFilterCore_With(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	filtered := &levelFilterCore{
		Core:  core,
		allow: func(l zapcore.Level) bool { return l >= zapcore.WarnLevel },
	}

	child := filtered.With([]zapcore.Field{zap.String("component", "ranking")})
	logger := zap.New(child)
	logger.Info("dropped")
	logger.Warn("kept")

	logs := observed.All()
	if assert.Len(t, logs, 1) {
		assert.Equal(t, "kept", logs[0].Message)
		assert.Equal(t, "ranking", logs[0].ContextMap()["component"])
	}
}
