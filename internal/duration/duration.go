// Package duration converts human-written budgets such as "5m" or
// "1h 30m" into seconds.
package duration

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FallbackSeconds is returned for strings that contain no recognizable
// segment. It only caps how long a job may run, so a typo degrades to a
// one hour budget instead of aborting the job.
const FallbackSeconds = 3600

var pattern = regexp.MustCompile(`(?i)^\s*(?:(\d+)\s*d)?\s*(?:(\d+)\s*h)?\s*(?:(\d+)\s*m)?\s*(?:(\d+)\s*s)?\s*$`)

var unitSeconds = [4]int{86400, 3600, 60, 1}

// maxSeconds is the largest total that still fits a time.Duration.
const maxSeconds = int(math.MaxInt64 / int64(time.Second))

// Parse returns the total number of seconds in s. Segments must appear in
// d, h, m, s order and each is optional.
func Parse(s string) int {
	if strings.TrimSpace(s) == "" {
		return FallbackSeconds
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return FallbackSeconds
	}

	total, matched := 0, false
	for i, group := range m[1:] {
		if group == "" {
			continue
		}
		n, err := strconv.Atoi(group)
		if err != nil {
			return FallbackSeconds
		}
		if n > (maxSeconds-total)/unitSeconds[i] {
			return FallbackSeconds
		}
		total += n * unitSeconds[i]
		matched = true
	}

	if !matched {
		return FallbackSeconds
	}
	return total
}

// ParseDuration is Parse expressed as a time.Duration.
func ParseDuration(s string) time.Duration {
	return time.Duration(Parse(s)) * time.Second
}
