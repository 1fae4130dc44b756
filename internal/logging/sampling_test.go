package logging

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSampledCore_PerLevel(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			TraceLevel:        {Initial: 1},
			zapcore.WarnLevel: {Initial: 2},
		},
	})
	logger := zap.New(sampled)

	for i := 0; i < 10; i++ {
		logger.Log(TraceLevel, "traced")
		logger.Warn("warned")
		logger.Error("failed")
		logger.Info("informed")
	}

	assert.Equal(t, 1, observed.FilterMessage("traced").Len())
	assert.Equal(t, 2, observed.FilterMessage("warned").Len(), "trace volume does not starve warnings")
	assert.Equal(t, 10, observed.FilterMessage("failed").Len(), "errors are never sampled")
	assert.Equal(t, 10, observed.FilterMessage("informed").Len(), "levels without a config pass through")
}

func TestSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(TraceLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{}))
}

func TestLevelFilterCore(t *testing.T) {
	core, _ := observer.New(TraceLevel)
	f := &levelFilterCore{Core: core, min: zapcore.InfoLevel, max: zapcore.WarnLevel}
	assert.False(t, f.Enabled(zapcore.DebugLevel))
	assert.True(t, f.Enabled(zapcore.InfoLevel))
	assert.True(t, f.Enabled(zapcore.WarnLevel))
	assert.False(t, f.Enabled(zapcore.ErrorLevel))
}
