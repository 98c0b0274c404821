// Package audit provides the append-only durable audit log. Records are
// produced fire-and-forget throughout the server and drained to a JSON-lines
// file by a single background task, keeping file I/O off the connection
// handling path.
package audit

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drawchat/relay/internal/config"
)

// timestampLayout matches the format consumed by the offline log viewer.
const timestampLayout = "2006-01-02 15:04:05"

// Record is one audit log line: an arbitrary JSON object plus the server
// timestamp stamped at enqueue time.
type Record map[string]any

// Logger queues audit records and drains them to a JSON-lines file. The file
// is flushed periodically, not per record; durability is best-effort. A
// file-system error during the drain is fatal to the process.
type Logger struct {
	cfg   config.AuditConfig
	zlog  *zap.Logger
	queue chan Record

	file *os.File
	w    *bufio.Writer

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

// New creates the audit logger, archiving any log file left by a previous run
// before opening a fresh one. The archive name embeds the old file's
// last-modified time, not the current time.
//
// Precondition: cfg must be validated.
// Postcondition: cfg.Path is open and empty, or a non-nil error is returned.
func New(cfg config.AuditConfig, zlog *zap.Logger) (*Logger, error) {
	if err := rotate(cfg, zlog); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", cfg.Path, err)
	}

	return &Logger{
		cfg:   cfg,
		zlog:  zlog,
		queue: make(chan Record, cfg.QueueSize),
		file:  file,
		w:     bufio.NewWriter(file),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		now:   time.Now,
	}, nil
}

// rotate compresses a leftover log file into the archive directory.
func rotate(cfg config.AuditConfig, zlog *zap.Logger) error {
	info, err := os.Stat(cfg.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspecting old audit log: %w", err)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return fmt.Errorf("creating archive dir %s: %w", cfg.ArchiveDir, err)
	}

	stamp := info.ModTime().Format("20060102-150405")
	archivePath := filepath.Join(cfg.ArchiveDir, fmt.Sprintf("log-%s.json.gz", stamp))

	src, err := os.Open(cfg.Path)
	if err != nil {
		return fmt.Errorf("opening old audit log: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating archive %s: %w", archivePath, err)
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		return fmt.Errorf("compressing old audit log: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}

	zlog.Info("archived previous audit log", zap.String("archive", archivePath))
	return nil
}

// Enqueue stamps the record with the current server time and queues it for the
// drain loop. It blocks only when the queue is at capacity.
//
// Precondition: fields must be JSON-marshalable.
func (l *Logger) Enqueue(fields Record) {
	rec := make(Record, len(fields)+1)
	for k, v := range fields {
		rec[k] = v
	}
	rec["timestamp"] = l.now().Format(timestampLayout)

	select {
	case l.queue <- rec:
	default:
		l.zlog.Warn("audit queue full, blocking producer", zap.Int("capacity", l.cfg.QueueSize))
		l.queue <- rec
	}
}

// Frame enqueues a validated inbound frame together with the remote address.
//
// Precondition: raw must have passed preflight (well-formed JSON object).
func (l *Logger) Frame(raw []byte, remote string) {
	var fields Record
	if err := json.Unmarshal(raw, &fields); err != nil {
		l.Message(fmt.Sprintf("unloggable frame from %s", remote))
		return
	}
	fields["remote"] = remote
	l.Enqueue(fields)
}

// Event enqueues a lifecycle event (connect, disconnect, abort) for a remote.
func (l *Logger) Event(action, remote string) {
	l.Enqueue(Record{"action": action, "remote": remote})
}

// Abort enqueues a connection abort with its close code and reason.
func (l *Logger) Abort(remote string, code int, reason string) {
	l.Enqueue(Record{
		"action": "abort",
		"remote": remote,
		"reason": fmt.Sprintf("%d: %s", code, reason),
	})
}

// Message enqueues a plain text record.
func (l *Logger) Message(text string) {
	l.Enqueue(Record{"log_message": text})
}

// Start runs the drain loop until Stop is called. It blocks, satisfying the
// server.Service interface.
//
// Postcondition: All queued records are written and flushed before return.
func (l *Logger) Start() error {
	defer close(l.done)

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-l.queue:
			l.write(rec)
		case <-ticker.C:
			l.flush()
		case <-l.quit:
			for {
				select {
				case rec := <-l.queue:
					l.write(rec)
				default:
					l.flush()
					return nil
				}
			}
		}
	}
}

// Stop shuts down the drain loop, draining remaining records, and closes the
// log file.
//
// Postcondition: Safe to call multiple times.
func (l *Logger) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
		<-l.done
		l.file.Close()
	})
}

// write appends one record as a JSON line and echoes it to the console log.
// Audit persistence has no recovery path: an I/O failure ends the process.
func (l *Logger) write(rec Record) {
	line, err := json.Marshal(rec)
	if err != nil {
		l.zlog.Fatal("marshalling audit record", zap.Error(err))
	}
	if _, err := l.w.Write(append(line, '\n')); err != nil {
		l.zlog.Fatal("writing audit record", zap.Error(err))
	}

	if msg, ok := rec["log_message"].(string); ok {
		l.zlog.Info(msg)
	} else {
		l.zlog.Info("audit", zap.Any("record", rec))
	}
}

func (l *Logger) flush() {
	if err := l.w.Flush(); err != nil {
		l.zlog.Fatal("flushing audit log", zap.Error(err))
	}
}
