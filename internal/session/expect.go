package session

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/sequencer"
)

const readBufferSize = 4096

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x1b[()][A-Za-z0-9]`)

// interaction implements send/expect over a pair of streams. A reader
// goroutine accumulates everything the remote side writes.
type interaction struct {
	prompt *regexp.Regexp
	w      io.Writer

	mu      sync.Mutex
	buf     bytes.Buffer
	readErr error

	notify chan struct{}
	done   chan struct{}
}

func newInteraction(r io.Reader, w io.Writer, prompt *regexp.Regexp) *interaction {
	i := &interaction{
		prompt: prompt,
		w:      w,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go i.read(r)
	return i
}

func (i *interaction) read(r io.Reader) {
	defer close(i.done)

	chunk := make([]byte, readBufferSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			i.mu.Lock()
			i.buf.Write(chunk[:n])
			i.mu.Unlock()

			select {
			case i.notify <- struct{}{}:
			default:
			}
		}
		if err != nil {
			i.mu.Lock()
			i.readErr = err
			i.mu.Unlock()
			return
		}
	}
}

func (i *interaction) Send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}
	if _, err := io.WriteString(i.w, line+"\n"); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}
	return nil
}

// AwaitPrompt returns the cleaned output written since the previous call,
// without the prompt itself.
func (i *interaction) AwaitPrompt(ctx context.Context, timeout time.Duration) (string, error) {
	errFactory := errors.New()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if text, ok := i.takeUntilPrompt(); ok {
			return text, nil
		}

		select {
		case <-i.notify:
		case <-timer.C:
			return i.takeAll(), errFactory.Wrap(sequencer.ErrPromptTimeoutKey, context.DeadlineExceeded)
		case <-ctx.Done():
			return i.takeAll(), ctx.Err()
		case <-i.done:
			if text, ok := i.takeUntilPrompt(); ok {
				return text, nil
			}
			i.mu.Lock()
			readErr := i.readErr
			i.mu.Unlock()
			return i.takeAll(), errFactory.Wrap(ErrClosed, readErr)
		}
	}
}

func (i *interaction) takeUntilPrompt() (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	text := clean(i.buf.String())
	loc := i.prompt.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	i.buf.Reset()
	i.buf.WriteString(text[loc[1]:])
	return text[:loc[0]], true
}

func (i *interaction) takeAll() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	text := clean(i.buf.String())
	i.buf.Reset()
	return text
}

func clean(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\r", "")
}
