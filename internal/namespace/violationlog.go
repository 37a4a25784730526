package namespace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// violationQueue is the number of records buffered ahead of the writer.
const violationQueue = 128

// LogConfig configures a ViolationLog.
type LogConfig struct {
	Path      string
	MaxSizeMB int
	MaxFiles  int
}

// ViolationLog appends violations as JSON lines from a background
// goroutine, rotating the file when it reaches MaxSizeMB.
type ViolationLog struct {
	cfg      LogConfig
	maxBytes int64
	logger   *slog.Logger

	mu      sync.Mutex
	closed  bool
	dropped int

	ch   chan Violation
	done chan struct{}

	file        *os.File
	currentSize int64
}

// OpenViolationLog opens or creates the log file and starts the writer.
func OpenViolationLog(cfg LogConfig, logger *slog.Logger) (*ViolationLog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFiles < 0 {
		cfg.MaxFiles = 0
	}
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open violation log %s: %w", cfg.Path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat violation log: %w", err)
	}
	l := &ViolationLog{
		cfg:         cfg,
		maxBytes:    int64(cfg.MaxSizeMB) * 1024 * 1024,
		logger:      logger,
		ch:          make(chan Violation, violationQueue),
		done:        make(chan struct{}),
		file:        f,
		currentSize: stat.Size(),
	}
	go l.run()
	return l, nil
}

// Append queues v. When the queue is full the record is dropped and counted.
func (l *ViolationLog) Append(v Violation) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- v:
	default:
		l.dropped++
	}
}

// Dropped returns the number of records discarded because the queue was full.
func (l *ViolationLog) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close drains the queue and closes the file.
func (l *ViolationLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()

	<-l.done
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *ViolationLog) run() {
	defer close(l.done)
	for v := range l.ch {
		l.write(v)
	}
}

func (l *ViolationLog) write(v Violation) {
	if l.maxBytes > 0 && l.currentSize >= l.maxBytes {
		if err := l.rotate(); err != nil {
			l.logger.Warn("violation log rotation failed", "error", err)
		}
	}
	if l.file == nil {
		return
	}
	line, err := json.Marshal(v)
	if err != nil {
		l.logger.Warn("failed to encode violation", "error", err)
		return
	}
	n, err := l.file.Write(append(line, '\n'))
	if err != nil {
		l.logger.Warn("failed to write violation", "error", err)
		return
	}
	l.currentSize += int64(n)
}

// rotate shifts path.N to path.N+1, dropping the oldest, then reopens path.
func (l *ViolationLog) rotate() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	base := l.cfg.Path
	if l.cfg.MaxFiles == 0 {
		os.Remove(base)
	}
	for i := l.cfg.MaxFiles; i >= 1; i-- {
		old := fmt.Sprintf("%s.%d", base, i)
		if i == l.cfg.MaxFiles {
			os.Remove(old)
			continue
		}
		os.Rename(old, fmt.Sprintf("%s.%d", base, i+1))
	}
	if l.cfg.MaxFiles > 0 {
		if err := os.Rename(base, base+".1"); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to rotate violation log: %w", err)
		}
	}
	f, err := os.OpenFile(base, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open new violation log: %w", err)
	}
	l.file = f
	l.currentSize = 0
	return nil
}

// ReadViolationLog parses a JSON-lines violation file. Malformed lines are
// skipped.
func ReadViolationLog(path string) ([]Violation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Violation
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var v Violation
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, sc.Err()
}
