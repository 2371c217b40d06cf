package sequencer

import "time"

// EntryKind tags the shape an Entry was written in.
type EntryKind int

const (
	KindSimple EntryKind = iota
	KindRepeated
	KindRepeatedWithTimeout
)

// Entry is one command line of a Set.
type Entry struct {
	Kind    EntryKind
	Command string
	Count   int
	Timeout time.Duration
}

// Simple runs command once with the plan's default timeout.
func Simple(command string) Entry {
	return Entry{Kind: KindSimple, Command: command}
}

// Repeated runs command count times with the plan's default timeout.
func Repeated(command string, count int) Entry {
	return Entry{Kind: KindRepeated, Command: command, Count: count}
}

// RepeatedWithTimeout runs command count times, waiting up to timeout for
// the prompt before each send. A zero timeout sends without waiting, which
// is what pager continuation keys need.
func RepeatedWithTimeout(command string, count int, timeout time.Duration) Entry {
	return Entry{Kind: KindRepeatedWithTimeout, Command: command, Count: count, Timeout: timeout}
}

// Resolve normalizes the entry into a command, a repeat count of at least
// one and a non-negative prompt timeout.
func (e Entry) Resolve(defaultTimeout time.Duration) (string, int, time.Duration) {
	count, timeout := 1, defaultTimeout

	switch e.Kind {
	case KindRepeated:
		count = max(count, e.Count)
	case KindRepeatedWithTimeout:
		count = max(count, e.Count)
		timeout = e.Timeout
	}

	return e.Command, count, max(timeout, 0)
}
