package telemetry

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/runctx"
)

const (
	defaultDevicePattern = `^\s*DP\s+(\S+?):?\s*$`
	defaultHeaderPattern = `CPU load \(%\) during last (\d+) seconds`
	defaultDevice        = "dp0"

	coreLabel = "core"
)

var rowCell = regexp.MustCompile(`^(\d+|\*)$`)

// ResourceOptions configures the resource-monitor table parser.
type ResourceOptions struct {
	// DevicePattern captures the device id in group 1.
	DevicePattern string
	// HeaderPattern captures the number of trailing seconds in group 1.
	HeaderPattern string
	// DefaultDevice is used until a block names a device.
	DefaultDevice string
	// SkipFirstRow drops the most recent, usually undersampled, row.
	SkipFirstRow bool
	// Window clamps the row count of a header when positive.
	Window int
}

func DefaultResourceOptions() ResourceOptions {
	return ResourceOptions{
		DevicePattern: defaultDevicePattern,
		HeaderPattern: defaultHeaderPattern,
		DefaultDevice: defaultDevice,
		SkipFirstRow:  true,
	}
}

// ResourceParser rebuilds per-core load series from resource-monitor output.
type ResourceParser struct {
	device        *regexp.Regexp
	header        *regexp.Regexp
	defaultDevice string
	skipFirstRow  bool
	window        int
}

func NewResourceParser(opts ResourceOptions) (*ResourceParser, error) {
	errFactory := errors.New()
	defaults := DefaultResourceOptions()

	if opts.DevicePattern == "" {
		opts.DevicePattern = defaults.DevicePattern
	}
	if opts.HeaderPattern == "" {
		opts.HeaderPattern = defaults.HeaderPattern
	}
	if opts.DefaultDevice == "" {
		opts.DefaultDevice = defaults.DefaultDevice
	}
	if opts.Window < 0 {
		return nil, errFactory.WithData(ErrInvalidConfig, struct{ Window int }{opts.Window})
	}

	device, err := regexp.Compile(opts.DevicePattern)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidPattern, err)
	}
	header, err := regexp.Compile(opts.HeaderPattern)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidPattern, err)
	}
	if device.NumSubexp() < 1 || header.NumSubexp() < 1 {
		return nil, errFactory.WithMessage(ErrInvalidPattern, "device and header patterns need a capture group")
	}

	return &ResourceParser{
		device:        device,
		header:        header,
		defaultDevice: opts.DefaultDevice,
		skipFirstRow:  opts.SkipFirstRow,
		window:        opts.Window,
	}, nil
}

// Parse walks every block and returns one table per device. The k-th table
// segment of a device is anchored at timestamps[k].
func (p *ResourceParser) Parse(rc *runctx.Context, blocks []string, timestamps []time.Time) map[string]*ResourceTable {
	w := &walker{
		parser:     p,
		rc:         rc,
		timestamps: timestamps,
		used:       make(map[string]int),
		seen:       make(map[string]map[int64]bool),
		tables:     make(map[string]*ResourceTable),
	}

	for _, block := range blocks {
		w.reset()
		for _, line := range strings.Split(block, "\n") {
			w.step(strings.TrimRight(line, "\r"))
		}
	}

	for _, table := range w.tables {
		table.aggregate()
	}

	return w.tables
}

// ParseResourceMonitor is a one-shot Parse with its own parser.
func ParseResourceMonitor(rc *runctx.Context, blocks []string, timestamps []time.Time, opts ResourceOptions) (map[string]*ResourceTable, error) {
	p, err := NewResourceParser(opts)
	if err != nil {
		return nil, err
	}
	return p.Parse(rc, blocks, timestamps), nil
}

type state int

const (
	stateScanDevice state = iota
	stateScanHeader
	stateReadColumns
	stateReadRows
)

// walker is the explicit state machine. Everything that changes while a
// block is scanned lives in its fields.
type walker struct {
	parser     *ResourceParser
	rc         *runctx.Context
	timestamps []time.Time
	used       map[string]int
	tables     map[string]*ResourceTable
	// seconds already recorded per device
	seen map[string]map[int64]bool

	state     state
	device    string
	rows      int
	remaining int
	consumed  int
	anchor    time.Time
	columns   []string
	discard   bool
}

func (w *walker) reset() {
	w.state = stateScanDevice
	w.device = w.parser.defaultDevice
	w.endSegment()
}

func (w *walker) endSegment() {
	w.rows, w.remaining, w.consumed = 0, 0, 0
	w.anchor = time.Time{}
	w.columns = nil
	w.discard = false
}

func (w *walker) step(line string) {
	switch w.state {
	case stateScanDevice, stateScanHeader:
		w.scan(line)
	case stateReadColumns:
		w.readColumns(line)
	case stateReadRows:
		w.readRow(line)
	}
}

func (w *walker) scan(line string) {
	if m := w.parser.device.FindStringSubmatch(line); m != nil {
		w.device = m[1]
		w.state = stateScanHeader
		return
	}

	if m := w.parser.header.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		if w.parser.window > 0 {
			n = min(n, w.parser.window)
		}
		w.rows = n
		w.state = stateReadColumns
	}
}

func (w *walker) readColumns(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != coreLabel {
		// a new header or device before any column line restarts the scan
		if w.parser.device.MatchString(line) || w.parser.header.MatchString(line) {
			w.state = stateScanDevice
			w.scan(line)
		}
		return
	}

	w.columns = fields[1:]
	w.remaining = w.rows
	w.consumed = 0

	idx := w.used[w.device]
	w.used[w.device]++
	if idx < len(w.timestamps) {
		w.anchor = w.timestamps[idx]
	} else {
		w.discard = true
		w.rc.Log.Warn().
			Str("device", w.device).
			Int("segment", idx).
			Int("timestamps", len(w.timestamps)).
			Msg("No trigger timestamp for resource-monitor segment, skipping its rows")
	}

	if w.remaining <= 0 {
		w.finishSegment()
		return
	}
	w.state = stateReadRows
}

func (w *walker) readRow(line string) {
	cells, ok := splitRow(line)
	if !ok {
		w.finishSegment()
		w.step(line)
		return
	}

	w.consumed++
	w.remaining--
	at := w.anchor.Add(-time.Duration(w.consumed) * time.Second)

	if !w.discard && !(w.parser.skipFirstRow && w.consumed == 1) {
		w.record(at, cells)
	}

	if w.remaining == 0 {
		w.finishSegment()
	}
}

func (w *walker) finishSegment() {
	w.rc.Log.Debug().
		Str("device", w.device).
		Int("rows", w.consumed).
		Int("expected", w.rows).
		Msg("Resource-monitor segment parsed")
	w.endSegment()
	w.state = stateScanDevice
}

// record adds one row. A second already covered by an earlier segment of
// the same device is skipped so each core keeps one sample per second.
func (w *walker) record(at time.Time, cells []string) {
	seen, ok := w.seen[w.device]
	if !ok {
		seen = make(map[int64]bool)
		w.seen[w.device] = seen
	}
	if seen[at.UnixNano()] {
		w.rc.Log.Debug().
			Str("device", w.device).
			Time("at", at).
			Msg("Resource-monitor row overlaps an earlier segment, skipping")
		return
	}
	seen[at.UnixNano()] = true

	table, ok := w.tables[w.device]
	if !ok {
		table = newResourceTable(w.device)
		w.tables[w.device] = table
	}

	for i, cell := range cells {
		if i >= len(w.columns) {
			break
		}
		if cell == "*" {
			continue
		}
		v, err := strconv.Atoi(cell)
		if err != nil {
			continue
		}
		table.add(w.columns[i], at, float64(v))
	}
}

// splitRow accepts lines made only of integers and "*" placeholders.
func splitRow(line string) ([]string, bool) {
	cells := strings.Fields(line)
	if len(cells) == 0 {
		return nil, false
	}
	for _, cell := range cells {
		if !rowCell.MatchString(cell) {
			return nil, false
		}
	}
	return cells, true
}

func (t *ResourceTable) add(core string, at time.Time, v float64) {
	t.Cores[core] = append(t.Cores[core], CoreSample{Time: at, Value: v})

	key := at.UnixNano()
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{at: at}
		t.buckets[key] = b
	}
	b.values = append(b.values, v)
}

// aggregate appends the cross-core pseudo-core series and sorts every
// series ascending by time.
func (t *ResourceTable) aggregate() {
	keys := make([]int64, 0, len(t.buckets))
	for k := range t.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		b := t.buckets[k]
		s := Summarize(b.values)
		t.Cores[CoreMin] = append(t.Cores[CoreMin], CoreSample{Time: b.at, Value: s.Min})
		t.Cores[CoreMax] = append(t.Cores[CoreMax], CoreSample{Time: b.at, Value: s.Max})
		t.Cores[CoreAve] = append(t.Cores[CoreAve], CoreSample{Time: b.at, Value: s.Average})
	}

	for core, samples := range t.Cores {
		sort.SliceStable(samples, func(i, j int) bool { return samples[i].Time.Before(samples[j].Time) })
		t.Cores[core] = samples
	}
}
