package notify

import (
	"sync"

	"go.uber.org/zap"

	"familytree/application/ports"
)

var (
	_ ports.Notifier = Nop{}
	_ ports.Notifier = (*LogNotifier)(nil)
	_ ports.Notifier = (*Recorder)(nil)
)

// Level is the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelLoading Level = "loading"
)

// Nop drops every notification
type Nop struct{}

func (Nop) Success(string, string) {}
func (Nop) Warning(string, string) {}
func (Nop) Error(string, string)   {}
func (Nop) Info(string, string)    {}
func (Nop) Loading(string, string) {}

// OrNop returns n, or Nop when n is nil
func OrNop(n ports.Notifier) ports.Notifier {
	if n == nil {
		return Nop{}
	}
	return n
}

// LogNotifier writes notifications to a logger. Used by the CLI and headless hosts.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Success(title, message string) {
	n.logger.Info(title, zap.String("level", string(LevelSuccess)), zap.String("message", message))
}

func (n *LogNotifier) Warning(title, message string) {
	n.logger.Warn(title, zap.String("message", message))
}

func (n *LogNotifier) Error(title, message string) {
	n.logger.Error(title, zap.String("message", message))
}

func (n *LogNotifier) Info(title, message string) {
	n.logger.Info(title, zap.String("level", string(LevelInfo)), zap.String("message", message))
}

func (n *LogNotifier) Loading(title, message string) {
	n.logger.Debug(title, zap.String("level", string(LevelLoading)), zap.String("message", message))
}

// Notification is one recorded call
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Success(title, message string) { r.add(LevelSuccess, title, message) }
func (r *Recorder) Warning(title, message string) { r.add(LevelWarning, title, message) }
func (r *Recorder) Error(title, message string)   { r.add(LevelError, title, message) }
func (r *Recorder) Info(title, message string)    { r.add(LevelInfo, title, message) }
func (r *Recorder) Loading(title, message string) { r.add(LevelLoading, title, message) }

func (r *Recorder) add(level Level, title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Level: level, Title: title, Message: message})
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Count returns how many notifications of level were recorded
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

// Reset forgets every notification
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
