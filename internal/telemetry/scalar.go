package telemetry

import (
	"regexp"
	"strconv"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/runctx"
)

type compiledPattern struct {
	Pattern
	re *regexp.Regexp
}

func compilePatterns(patterns []Pattern) ([]compiledPattern, error) {
	errFactory := errors.New()
	compiled := make([]compiledPattern, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, errFactory.WithData(ErrInvalidPattern, struct {
				Name  string
				Error string
			}{
				Name:  p.Name,
				Error: err.Error(),
			})
		}
		if re.NumSubexp() < 1 {
			return nil, errFactory.WithData(ErrInvalidPattern, struct {
				Name  string
				Error string
			}{
				Name:  p.Name,
				Error: "pattern has no capture group",
			})
		}
		compiled = append(compiled, compiledPattern{Pattern: p, re: re})
	}

	return compiled, nil
}

// ExtractMetrics scans every block with every pattern and keeps the first
// match per block. Patterns without any match are left out of the result.
func ExtractMetrics(rc *runctx.Context, blocks []string, patterns []Pattern, timestamps []time.Time) (map[string]*Series, error) {
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}
	return extractMetrics(rc, blocks, compiled, timestamps)
}

func extractMetrics(rc *runctx.Context, blocks []string, patterns []compiledPattern, timestamps []time.Time) (map[string]*Series, error) {
	errFactory := errors.New()
	result := make(map[string]*Series)

	for _, p := range patterns {
		var samples []Sample

		for i, block := range blocks {
			m := p.re.FindStringSubmatch(block)
			if m == nil {
				continue
			}

			value, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, errFactory.WithData(ErrNonNumericSample, struct {
					Metric string
					Block  int
					Match  string
				}{
					Metric: p.Name,
					Block:  i,
					Match:  m[1],
				})
			}
			samples = append(samples, Sample{Value: value})
		}

		if len(samples) == 0 {
			rc.Log.Debug().Str("metric", p.Name).Msg("No samples matched")
			continue
		}

		if len(samples) == len(timestamps) {
			for i := range samples {
				samples[i].Time = timestamps[i]
			}
		} else if len(timestamps) > 0 {
			rc.Log.Debug().
				Str("metric", p.Name).
				Int("samples", len(samples)).
				Int("timestamps", len(timestamps)).
				Msg("Sample and timestamp counts differ, leaving samples untimed")
		}

		series := &Series{
			Name:    p.Name,
			Pattern: p.Expr,
			Samples: samples,
		}
		series.Summary = Summarize(series.Values())
		result[p.Name] = series

		rc.Log.Info().
			Str("metric", p.Name).
			Floats64("values", series.Values()).
			Float64("min", series.Summary.Min).
			Float64("max", series.Summary.Max).
			Float64("ave", series.Summary.Average).
			Int("cnt", series.Summary.Count).
			Msg("Metric extracted")
	}

	return result, nil
}
