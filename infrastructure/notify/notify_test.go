package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewLogNotifier(zap.New(core))

	n.Warning("Save failed", "quota exceeded")
	n.Error("Load failed", "corrupt data")
	n.Success("Saved", "")

	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	entry := logs.FilterMessage("Save failed").All()[0]
	assert.Equal(t, "quota exceeded", entry.ContextMap()["message"])
	assert.Equal(t, "notify", entry.LoggerName)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Warning("a", "b")
	r.Warning("c", "d")
	r.Info("e", "f")

	assert.Equal(t, 2, r.Count(LevelWarning))
	assert.Len(t, r.All(), 3)
	assert.Equal(t, Notification{Level: LevelInfo, Title: "e", Message: "f"}, r.All()[2])

	r.Reset()
	assert.Empty(t, r.All())
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop{}, OrNop(nil))
	r := NewRecorder()
	assert.Same(t, r, OrNop(r))
}
