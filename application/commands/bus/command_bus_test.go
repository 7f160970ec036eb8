package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	pkgerrors "familytree/pkg/errors"
)

type echoCommand struct {
	Value string
}

func (c echoCommand) Validate() error {
	if c.Value == "" {
		return pkgerrors.NewValidationError("value is required").WithField("value", "is required")
	}
	return nil
}

type otherCommand struct{}

func (otherCommand) Validate() error { return nil }

func echoHandler() CommandHandlerFunc {
	return func(_ context.Context, cmd Command) (interface{}, error) {
		return cmd.(echoCommand).Value, nil
	}
}

func TestCommandBus_SendDispatchesByType(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(echoCommand{}, echoHandler()))

	result, err := b.Send(context.Background(), echoCommand{Value: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)

	_, err = b.Send(context.Background(), otherCommand{})
	assert.True(t, errors.Is(err, ErrHandlerNotFound))
}

func TestCommandBus_RejectsDuplicateRegistration(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(echoCommand{}, echoHandler()))
	assert.Error(t, b.Register(echoCommand{}, echoHandler()))
}

func TestSendFor(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(echoCommand{}, echoHandler()))

	value, err := SendFor[string](context.Background(), b, echoCommand{Value: "typed"})
	require.NoError(t, err)
	assert.Equal(t, "typed", value)

	_, err = SendFor[int](context.Background(), b, echoCommand{Value: "typed"})
	assert.Error(t, err)
}

func TestValidationMiddleware(t *testing.T) {
	called := false
	b := NewCommandBus(ValidationMiddleware())
	require.NoError(t, b.Register(echoCommand{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		called = true
		return nil, nil
	})))

	_, err := b.Send(context.Background(), echoCommand{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.False(t, called)
}

func TestRecoveryMiddleware(t *testing.T) {
	b := NewCommandBus(RecoveryMiddleware())
	require.NoError(t, b.Register(echoCommand{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		panic("boom")
	})))

	result, err := b.Send(context.Background(), echoCommand{Value: "x"})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal))
	assert.Contains(t, err.Error(), "boom")
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	b := NewCommandBus(LoggingMiddleware(zap.New(core).Sugar()), ValidationMiddleware())
	require.NoError(t, b.Register(echoCommand{}, echoHandler()))

	_, err := b.Send(context.Background(), echoCommand{Value: "ok"})
	require.NoError(t, err)
	_, err = b.Send(context.Background(), echoCommand{})
	require.Error(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Command succeeded").Len())
	failed := logs.FilterMessage("Command failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "echoCommand", failed[0].ContextMap()["type"])
}

func TestPipelineOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}

	handler := NewPipeline(mark("outer"), mark("inner")).Execute(echoHandler())
	_, err := handler.Handle(context.Background(), echoCommand{Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestTracingMiddlewarePassesThrough(t *testing.T) {
	b := NewCommandBus(TracingMiddleware())
	require.NoError(t, b.Register(echoCommand{}, echoHandler()))

	result, err := b.Send(context.Background(), echoCommand{Value: "traced"})
	require.NoError(t, err)
	assert.Equal(t, "traced", result)
}
