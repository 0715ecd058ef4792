// Package status carries user-visible outcome messages to whoever is listening.
package status

import (
	"log/slog"
	"sync"
	"time"
)

// Level is the severity shown with a message
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Message is one status line
type Message struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	Time  time.Time `json:"time"`
}

// Reporter logs every message and forwards it to its sinks
type Reporter struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	sinks  map[uint64]func(Message)
	last   Message
}

// NewReporter creates a reporter logging to logger
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger, sinks: make(map[uint64]func(Message))}
}

// Subscribe adds a sink and returns its disposer
func (r *Reporter) Subscribe(sink func(Message)) (dispose func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.sinks[id] = sink
	return sync.OnceFunc(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.sinks, id)
	})
}

func (r *Reporter) Info(text string)    { r.report(LevelInfo, text, nil) }
func (r *Reporter) Success(text string) { r.report(LevelSuccess, text, nil) }

// Error reports a failure. err is logged but not shown.
func (r *Reporter) Error(text string, err error) { r.report(LevelError, text, err) }

// Last returns the most recent message
func (r *Reporter) Last() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Reporter) report(level Level, text string, err error) {
	msg := Message{Level: level, Text: text, Time: time.Now()}

	switch level {
	case LevelError:
		r.logger.Error(text, "error", err)
	default:
		r.logger.Info(text, "status", string(level))
	}

	r.mu.Lock()
	r.last = msg
	sinks := make([]func(Message), 0, len(r.sinks))
	for _, s := range r.sinks {
		sinks = append(sinks, s)
	}
	r.mu.Unlock()

	for _, s := range sinks {
		s(msg)
	}
}
