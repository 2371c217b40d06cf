package sequencer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryResolve(t *testing.T) {
	def := 5 * time.Second

	tests := []struct {
		name    string
		entry   Entry
		count   int
		timeout time.Duration
	}{
		{"simple", Simple("show clock"), 1, def},
		{"repeated", Repeated("show clock", 3), 3, def},
		{"repeated at least once", Repeated("show clock", 0), 1, def},
		{"custom timeout", RepeatedWithTimeout(" ", 2, 0), 2, 0},
		{"negative timeout", RepeatedWithTimeout("q", 1, -time.Second), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, count, timeout := tt.entry.Resolve(def)
			assert.Equal(t, tt.entry.Command, cmd)
			assert.Equal(t, tt.count, count)
			assert.Equal(t, tt.timeout, timeout)
		})
	}
}

func TestSetIterations(t *testing.T) {
	assert.Equal(t, 1, Set{}.iterations(5))
	assert.Equal(t, 5, Set{Repeat: true}.iterations(5))
	assert.Equal(t, 2, Set{Repeat: true, Iterations: 2}.iterations(5))
	assert.Equal(t, 5, Set{Repeat: true, Iterations: 9}.iterations(5))
	assert.Equal(t, 9, Set{Repeat: true, Iterations: 9}.iterations(0))
}
