package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	pkgerrors "familytree/pkg/errors"
)

// Command represents a command that changes the tree
type Command interface {
	Validate() error
}

// CommandHandler handles a specific command type. The result is command
// specific and may be nil.
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (interface{}, error)
}

// CommandHandlerFunc is an adapter to allow functions to be used as handlers
type CommandHandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

// Handle implements CommandHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (interface{}, error) {
	return f(ctx, cmd)
}

// Middleware defines command middleware
type Middleware func(next CommandHandler) CommandHandler

// CommandBus dispatches commands to their handlers through a middleware pipeline
type CommandBus struct {
	handlers map[reflect.Type]CommandHandler
	pipeline *Pipeline
	mu       sync.RWMutex
}

// NewCommandBus creates a new command bus
func NewCommandBus(middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		handlers: make(map[reflect.Type]CommandHandler),
		pipeline: NewPipeline(middlewares...),
	}
}

// Register registers a handler for a command type
func (b *CommandBus) Register(cmdType Command, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(cmdType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for command type %s", t.Name())
	}

	b.handlers[t] = handler
	return nil
}

// Send dispatches a command to its handler
func (b *CommandBus) Send(ctx context.Context, cmd Command) (interface{}, error) {
	if cmd == nil {
		return nil, pkgerrors.NewValidationError("command is required")
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(cmd)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, cmd)
	}

	return b.pipeline.Execute(handler).Handle(ctx, cmd)
}

// SendFor dispatches cmd and converts the handler's result to R
func SendFor[R any](ctx context.Context, b *CommandBus, cmd Command) (R, error) {
	var zero R
	result, err := b.Send(ctx, cmd)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(R)
	if !ok {
		return zero, fmt.Errorf("command %T returned %T, want %T", cmd, result, zero)
	}
	return typed, nil
}

// Logger interface for logging. *zap.SugaredLogger satisfies it.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// LoggingMiddleware logs command execution
func LoggingMiddleware(logger Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			cmdType := commandName(cmd)
			start := time.Now()

			result, err := next.Handle(ctx, cmd)
			if err != nil {
				logger.Errorw("Command failed", "type", cmdType, "error", err, "duration", time.Since(start))
			} else {
				logger.Infow("Command succeeded", "type", cmdType, "duration", time.Since(start))
			}
			return result, err
		})
	}
}

// ValidationMiddleware ensures commands are valid
func ValidationMiddleware() Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			if err := cmd.Validate(); err != nil {
				return nil, pkgerrors.Wrapf(err, "%s", commandName(cmd))
			}
			return next.Handle(ctx, cmd)
		})
	}
}

// RecoveryMiddleware turns a handler panic into an INTERNAL error
func RecoveryMiddleware() Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (result interface{}, err error) {
			defer func() {
				if r := recover(); r != nil {
					result = nil
					err = pkgerrors.NewInternalError(fmt.Sprintf("command %s panicked: %v", commandName(cmd), r))
				}
			}()
			return next.Handle(ctx, cmd)
		})
	}
}

// TracingMiddleware opens one span per command
func TracingMiddleware() Middleware {
	tracer := otel.Tracer("familytree/commands")
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			ctx, span := tracer.Start(ctx, "command."+commandName(cmd))
			defer span.End()

			result, err := next.Handle(ctx, cmd)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				if appErr := pkgerrors.GetAppError(err); appErr != nil {
					span.SetAttributes(attribute.String("error.type", string(appErr.Type)))
				}
			}
			return result, err
		})
	}
}

// Pipeline chains multiple middleware together
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline(middlewares ...Middleware) *Pipeline {
	return &Pipeline{
		middlewares: middlewares,
	}
}

// Execute wraps handler so the first middleware runs outermost
func (p *Pipeline) Execute(handler CommandHandler) CommandHandler {
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		handler = p.middlewares[i](handler)
	}
	return handler
}

func commandName(cmd Command) string {
	t := reflect.TypeOf(cmd)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Errors
var (
	ErrHandlerNotFound = errors.New("command handler not found")
)
