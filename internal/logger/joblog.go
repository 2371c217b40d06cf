package logger

import (
	"bytes"
	"io"
	"sync"

	"codeberg.org/mutker/clistat/internal/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	jobLogMaxSizeMB  = 10
	jobLogMaxBackups = 3
)

// JobLog buffers log lines in memory and writes them out in batches once
// more than size lines are pending, and on Flush or Close.
type JobLog struct {
	mu    sync.Mutex
	out   io.WriteCloser
	lines [][]byte
	size  int
}

// NewJobLog returns a JobLog backed by a rotating file at path.
func NewJobLog(path string, size int) *JobLog {
	return newJobLog(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    jobLogMaxSizeMB,
		MaxBackups: jobLogMaxBackups,
	}, size)
}

func newJobLog(out io.WriteCloser, size int) *JobLog {
	if size < 0 {
		size = 0
	}
	return &JobLog{out: out, size: size}
}

func (j *JobLog) Write(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	line := make([]byte, len(p))
	copy(line, p)
	j.lines = append(j.lines, line)

	if len(j.lines) > j.size {
		if err := j.flush(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Pending returns the number of buffered lines not yet written.
func (j *JobLog) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.lines)
}

// Flush writes all buffered lines.
func (j *JobLog) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flush()
}

func (j *JobLog) flush() error {
	if len(j.lines) == 0 {
		return nil
	}
	if _, err := j.out.Write(bytes.Join(j.lines, nil)); err != nil {
		return errors.New().Wrap(errors.ErrJobLog, err)
	}
	j.lines = j.lines[:0]
	return nil
}

// Close flushes pending lines and closes the underlying file.
func (j *JobLog) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.flush(); err != nil {
		return err
	}
	return j.out.Close()
}
