// Package opslog is the operational logging sink: every log record is
// mirrored to a rotating JSONL file and to the database's logs table,
// off the hot path of any store operation. It is never consulted by
// reconstruction.
package opslog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/untoldecay/eventgraph/internal/types"
)

// Level is the closed set of severities a record can carry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelNum = map[Level]int{
	LevelDebug: 10,
	LevelInfo:  20,
	LevelWarn:  30,
	LevelError: 40,
}

// DBWriter is the subset of the storage layer opslog needs, kept
// narrow so this package never imports the sqlite package directly.
type DBWriter interface {
	WriteLog(ctx context.Context, rec *types.LogRecord) error
}

// jsonlRecord is the on-disk shape of one JSONL line. CorrelationID
// is a fresh id minted for each record; it is written to the JSONL
// file only, not to the logs table.
type jsonlRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Level         string    `json:"level"`
	Component     string    `json:"component"`
	Message       string    `json:"message"`
	SessionID     string    `json:"sessionId,omitempty"`
	ErrorMessage  string    `json:"error,omitempty"`
	CorrelationID string    `json:"correlationId"`
}

// Logger fans each record out to a JSONL file and the database, using
// a small bounded-concurrency worker pool so a slow disk or lock
// contention on the DB never blocks the caller appending events.
type Logger struct {
	file    *lumberjack.Logger
	db      DBWriter
	minimum int

	jobs chan jsonlRecord
	wg   sync.WaitGroup

	mu sync.Mutex
}

// Config configures a Logger.
type Config struct {
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	MinLevel    Level
	Concurrency int
}

// New starts a Logger with the given configuration. Concurrency
// defaults to 2 worker goroutines draining the jobs channel.
func New(db DBWriter, cfg Config) *Logger {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 30
	}
	if cfg.MinLevel == "" {
		cfg.MinLevel = LevelInfo
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	l := &Logger{
		file: &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
		db:      db,
		minimum: levelNum[cfg.MinLevel],
		jobs:    make(chan jsonlRecord, 256),
	}

	for i := 0; i < cfg.Concurrency; i++ {
		l.wg.Add(1)
		go l.worker()
	}
	return l
}

func (l *Logger) worker() {
	defer l.wg.Done()
	for rec := range l.jobs {
		l.writeJSONL(rec)
		if l.db != nil {
			sessionID := (*string)(nil)
			if rec.SessionID != "" {
				id := rec.SessionID
				sessionID = &id
			}
			errMsg := (*string)(nil)
			if rec.ErrorMessage != "" {
				m := rec.ErrorMessage
				errMsg = &m
			}
			_ = l.db.WriteLog(context.Background(), &types.LogRecord{
				SessionID:    sessionID,
				Timestamp:    rec.Timestamp,
				Level:        rec.Level,
				LevelNum:     levelNum[Level(rec.Level)],
				Component:    rec.Component,
				Message:      rec.Message,
				ErrorMessage: errMsg,
			})
		}
	}
}

func (l *Logger) writeJSONL(rec jsonlRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = l.file.Write(data)
}

// Log enqueues one record for asynchronous persistence. If the jobs
// channel is saturated the record is written to the JSONL file
// synchronously instead, and is not mirrored to the database.
func (l *Logger) Log(level Level, component, message, sessionID string, err error) {
	if levelNum[level] < l.minimum {
		return
	}
	rec := jsonlRecord{
		Timestamp:     time.Now().UTC(),
		Level:         string(level),
		Component:     component,
		Message:       message,
		SessionID:     sessionID,
		CorrelationID: uuid.NewString(),
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	select {
	case l.jobs <- rec:
	default:
		l.writeJSONL(rec)
	}
}

func (l *Logger) Debugf(component, format string, args ...any) {
	l.Log(LevelDebug, component, sprintf(format, args...), "", nil)
}

func (l *Logger) Infof(component, format string, args ...any) {
	l.Log(LevelInfo, component, sprintf(format, args...), "", nil)
}

func (l *Logger) Warnf(component, format string, args ...any) {
	l.Log(LevelWarn, component, sprintf(format, args...), "", nil)
}

func (l *Logger) Errorf(component string, err error, format string, args ...any) {
	l.Log(LevelError, component, sprintf(format, args...), "", err)
}

// Close drains pending records and closes the rotating file handle.
func (l *Logger) Close() error {
	close(l.jobs)
	l.wg.Wait()
	return l.file.Close()
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
