package detector

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"cdr.dev/slog/v3"

	"github.com/kolkov/lazycell/internal/race/caller"
	"github.com/kolkov/lazycell/internal/race/epoch"
	"github.com/kolkov/lazycell/internal/race/stackdepot"
	"github.com/kolkov/lazycell/internal/race/syncshadow"
	"github.com/kolkov/lazycell/internal/race/vectorclock"
	"github.com/kolkov/lazycell/lazy"
)

var _ lazy.Tracer = (*Detector)(nil)

// Detector is a happens-before race checker for traced cells. It is safe
// for concurrent use.
type Detector struct {
	logger slog.Logger
	stacks stackdepot.Depot

	// untracked counts operations whose context carried no caller.
	untracked atomic.Int64

	mu       sync.Mutex // Protects following fields.
	clocks   map[int]*vectorclock.VectorClock
	vars     map[uintptr]*varState
	shadow   *syncshadow.SyncShadow
	reported map[string]struct{}
	reports  []*Report
}

// varState is the shadow of one plain address.
type varState struct {
	write      epoch.Epoch
	writeStack uint64
	// reads holds the reads since the last write, one per caller.
	reads map[int]readRecord
}

type readRecord struct {
	at    epoch.Epoch
	stack uint64
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger logs every newly detected race to logger.
func WithLogger(logger slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// New returns a Detector with no recorded history.
func New(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	d.resetLocked()
	return d
}

// Fork records that caller parent started caller child: everything parent
// did so far happens before anything child does.
func (d *Detector) Fork(parent, child int) {
	if !validCaller(parent) || !validCaller(child) {
		d.untracked.Inc()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	pc := d.clockLocked(parent)
	cc := pc.Clone()
	if old, ok := d.clocks[child]; ok {
		cc.Join(old)
	}
	cc.Increment(child)
	d.clocks[child] = cc
	pc.Increment(parent)
}

// Join records that caller parent waited for caller child to finish.
func (d *Detector) Join(parent, child int) {
	if !validCaller(parent) || !validCaller(child) {
		d.untracked.Inc()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	pc := d.clockLocked(parent)
	cc := d.clockLocked(child)
	pc.Join(cc)
	pc.Increment(parent)
	cc.Increment(child)
}

// Acquire joins the release clock of addr into the calling caller's clock.
func (d *Detector) Acquire(ctx context.Context, addr uintptr) {
	id, ok := d.callerOf(ctx)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	vc := d.clockLocked(id)
	if sv, ok := d.shadow.Lookup(addr); ok {
		vc.Join(sv.GetReleaseClock())
	}
	vc.Increment(id)
}

// Release merges the calling caller's clock into the release clock of addr.
func (d *Detector) Release(ctx context.Context, addr uintptr) {
	id, ok := d.callerOf(ctx)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	vc := d.clockLocked(id)
	d.shadow.GetOrCreate(addr).MergeReleaseClock(vc)
	vc.Increment(id)
}

// Read checks a plain read of addr against the last write.
func (d *Detector) Read(ctx context.Context, addr uintptr) {
	id, ok := d.callerOf(ctx)
	if !ok {
		return
	}
	stack := d.stacks.Capture(1)

	d.mu.Lock()
	defer d.mu.Unlock()

	vc := d.clockLocked(id)
	vs := d.varLocked(addr)
	//nolint:gosec // G115: validCaller bounds id.
	now := epoch.New(uint16(id), vc.Get(id))

	if !vs.write.IsZero() && !vs.write.HappensBefore(vc) {
		d.reportLocked(RaceTypeWriteRead, addr,
			d.access(AccessWrite, addr, vs.write, vs.writeStack),
			d.access(AccessRead, addr, now, stack))
	}
	vs.reads[id] = readRecord{at: now, stack: stack}
}

// Write checks a plain write of addr against the last write and every read
// since it.
func (d *Detector) Write(ctx context.Context, addr uintptr) {
	id, ok := d.callerOf(ctx)
	if !ok {
		return
	}
	stack := d.stacks.Capture(1)

	d.mu.Lock()
	defer d.mu.Unlock()

	vc := d.clockLocked(id)
	vs := d.varLocked(addr)
	//nolint:gosec // G115: validCaller bounds id.
	now := epoch.New(uint16(id), vc.Get(id))
	current := d.access(AccessWrite, addr, now, stack)

	if !vs.write.IsZero() && !vs.write.HappensBefore(vc) {
		d.reportLocked(RaceTypeWriteWrite, addr,
			d.access(AccessWrite, addr, vs.write, vs.writeStack), current)
	}
	for _, r := range vs.reads {
		if !r.at.HappensBefore(vc) {
			d.reportLocked(RaceTypeReadWrite, addr,
				d.access(AccessRead, addr, r.at, r.stack), current)
		}
	}

	vs.write = now
	vs.writeStack = stack
	clear(vs.reads)
}

// Reports returns the races detected so far, in detection order.
func (d *Detector) Reports() []*Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Report(nil), d.reports...)
}

// RacesDetected returns the number of distinct races detected so far.
func (d *Detector) RacesDetected() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reports)
}

// Untracked returns how many operations were ignored because their context
// named no valid caller.
func (d *Detector) Untracked() int64 {
	return d.untracked.Load()
}

// Reset discards all clocks, shadow state and reports.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	d.untracked.Store(0)
}

func (d *Detector) resetLocked() {
	d.clocks = make(map[int]*vectorclock.VectorClock)
	d.vars = make(map[uintptr]*varState)
	if d.shadow == nil {
		d.shadow = syncshadow.NewSyncShadow()
	} else {
		d.shadow.Reset()
	}
	d.reported = make(map[string]struct{})
	d.reports = nil
}

func (d *Detector) callerOf(ctx context.Context) (int, bool) {
	id, ok := caller.From(ctx)
	if !ok || !validCaller(id) {
		d.untracked.Inc()
		return 0, false
	}
	return id, true
}

// clockLocked returns the clock of caller id. A caller seen for the first
// time starts at 1 so that its first access has a non-zero epoch.
func (d *Detector) clockLocked(id int) *vectorclock.VectorClock {
	vc, ok := d.clocks[id]
	if !ok {
		vc = vectorclock.New()
		vc.Set(id, 1)
		d.clocks[id] = vc
	}
	return vc
}

func (d *Detector) varLocked(addr uintptr) *varState {
	vs, ok := d.vars[addr]
	if !ok {
		vs = &varState{reads: make(map[int]readRecord)}
		d.vars[addr] = vs
	}
	return vs
}

func (d *Detector) access(typ AccessType, addr uintptr, at epoch.Epoch, stack uint64) Access {
	return Access{
		Type:   typ,
		Addr:   addr,
		Caller: at.Caller(),
		Epoch:  at,
		Stack:  d.stacks.Get(stack),
	}
}

func (d *Detector) reportLocked(raceType string, addr uintptr, previous, current Access) {
	r := newReport(raceType, addr, previous, current)
	if _, ok := d.reported[r.DeduplicationKey]; ok {
		return
	}
	d.reported[r.DeduplicationKey] = struct{}{}
	d.reports = append(d.reports, r)

	d.logger.Warn(context.Background(), "data race detected",
		slog.F("type", raceType),
		slog.F("addr", addr),
		slog.F("previous_caller", previous.Caller),
		slog.F("current_caller", current.Caller),
	)
}

func validCaller(id int) bool {
	return id >= 0 && id <= epoch.MaxCaller
}
