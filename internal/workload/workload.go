// Package workload generates deterministic streams of region operations and
// applies them to a regions.Set.
package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/samber/lo"

	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

// ErrDiverged is returned when the set disagrees with the generator's model.
var ErrDiverged = errors.New("set diverged from workload model")

// OpKind is the type of a generated operation.
type OpKind uint8

// Operation kinds.
const (
	OpInsert OpKind = iota
	OpRemove
	OpLookup
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	case OpLookup:
		return "lookup"
	case OpUpdate:
		return "update"
	}

	return fmt.Sprintf("op(%d)", uint8(k))
}

// Pattern selects how insert addresses are chosen.
type Pattern uint8

// Insert patterns.
const (
	PatternRandom Pattern = iota
	PatternAscending
	PatternDescending
)

// Op is one generated operation. Lookup uses Addr; Remove and Update use Region.Start.
type Op struct {
	Kind   OpKind
	Region regions.Region
	Addr   uint64
}

// Config shapes a generated stream.
type Config struct {
	Seed        int64
	Pattern     Pattern
	RegionSize  uint64
	Slots       int
	RemoveRatio float64
	LookupRatio float64
	UpdateRatio float64
}

const regionGap = 2

// Generator produces operations that are valid against a set that applied every previous one.
type Generator struct {
	cfg  Config
	rng  *rand.Rand
	live []uint64
	pos  map[uint64]int
	next int
}

// NewGenerator creates a generator. Slots bounds the address space in region sized slots;
// it is rounded up so that inserts always find a free slot.
func NewGenerator(cfg Config) *Generator {
	if cfg.RegionSize == 0 {
		cfg.RegionSize = 4096
	}

	cfg.Slots = max(cfg.Slots, 1)

	gen := &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // reproducible streams, not secrets.
		pos: make(map[uint64]int),
	}

	if cfg.Pattern == PatternDescending {
		gen.next = cfg.Slots - 1
	}

	return gen
}

// Live returns the number of regions the model holds.
func (gen *Generator) Live() int {
	return len(gen.live)
}

// Next returns the next operation.
func (gen *Generator) Next() Op {
	if len(gen.live) > 0 {
		roll := gen.rng.Float64()

		switch {
		case roll < gen.cfg.RemoveRatio:
			return gen.remove()
		case roll < gen.cfg.RemoveRatio+gen.cfg.LookupRatio:
			return gen.lookup()
		case roll < gen.cfg.RemoveRatio+gen.cfg.LookupRatio+gen.cfg.UpdateRatio:
			return gen.update()
		}
	}

	if len(gen.live) >= gen.cfg.Slots {
		return gen.remove()
	}

	return gen.insert()
}

// Ops returns the next n operations.
func (gen *Generator) Ops(n int) []Op {
	return lo.Times(n, func(int) Op { return gen.Next() })
}

func (gen *Generator) insert() Op {
	slot := gen.freeSlot()
	start := uint64(slot) * gen.cfg.RegionSize * regionGap

	gen.pos[start] = len(gen.live)
	gen.live = append(gen.live, start)

	return Op{
		Kind: OpInsert,
		Region: regions.Region{
			Start: start,
			Size:  gen.cfg.RegionSize,
			Kind:  regions.Kind(gen.rng.Intn(3)),
		},
	}
}

func (gen *Generator) freeSlot() int {
	switch gen.cfg.Pattern {
	case PatternAscending, PatternDescending:
		for {
			slot := gen.next

			if gen.cfg.Pattern == PatternAscending {
				gen.next = (gen.next + 1) % gen.cfg.Slots
			} else {
				gen.next = (gen.next - 1 + gen.cfg.Slots) % gen.cfg.Slots
			}

			if _, taken := gen.pos[gen.slotStart(slot)]; !taken {
				return slot
			}
		}
	default:
		for {
			slot := gen.rng.Intn(gen.cfg.Slots)
			if _, taken := gen.pos[gen.slotStart(slot)]; !taken {
				return slot
			}
		}
	}
}

func (gen *Generator) slotStart(slot int) uint64 {
	return uint64(slot) * gen.cfg.RegionSize * regionGap
}

func (gen *Generator) pick() uint64 {
	return gen.live[gen.rng.Intn(len(gen.live))]
}

func (gen *Generator) remove() Op {
	start := gen.pick()
	idx := gen.pos[start]
	last := len(gen.live) - 1

	gen.live[idx] = gen.live[last]
	gen.pos[gen.live[idx]] = idx
	gen.live = gen.live[:last]
	delete(gen.pos, start)

	return Op{Kind: OpRemove, Region: regions.Region{Start: start}}
}

func (gen *Generator) lookup() Op {
	start := gen.pick()

	// Half the lookups land in the gap after a region and must miss.
	offset := uint64(gen.rng.Int63n(int64(gen.cfg.RegionSize * regionGap)))

	return Op{Kind: OpLookup, Addr: start + offset}
}

func (gen *Generator) update() Op {
	return Op{
		Kind: OpUpdate,
		Region: regions.Region{
			Start: gen.pick(),
			Kind:  regions.Kind(gen.rng.Intn(3)),
		},
	}
}

// Result summarises an applied stream.
type Result struct {
	Ops      int
	ByKind   map[OpKind]int
	Hits     int
	Verified int
	Elapsed  time.Duration
}

// OpsPerSecond returns the throughput of the run.
func (r Result) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}

	return float64(r.Ops) / r.Elapsed.Seconds()
}

// Apply performs op against set.
func Apply(ctx context.Context, set *regions.Set, op Op) (hit bool, err error) {
	switch op.Kind {
	case OpInsert:
		return false, set.Insert(ctx, op.Region)
	case OpRemove:
		_, err = set.Remove(ctx, op.Region.Start)

		return false, err
	case OpLookup:
		_, hit = set.Lookup(op.Addr)

		return hit, nil
	case OpUpdate:
		return false, set.Update(ctx, op.Region.Start, func(r *regions.Region) { r.Kind = op.Region.Kind })
	}

	return false, fmt.Errorf("%w: unknown %s", ErrDiverged, op.Kind)
}

// Run applies ops to set, verifying the whole set every verifyEvery operations
// when verifyEvery is positive, and once at the end.
func Run(ctx context.Context, set *regions.Set, ops []Op, verifyEvery int) (Result, error) {
	result := Result{
		ByKind: lo.CountValuesBy(ops, func(op Op) OpKind { return op.Kind }),
	}

	started := time.Now()

	for idx, op := range ops {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		hit, err := Apply(ctx, set, op)
		if err != nil {
			return result, fmt.Errorf("%w: op %d (%s): %w", ErrDiverged, idx, op.Kind, err)
		}

		result.Ops++

		if hit {
			result.Hits++
		}

		if verifyEvery > 0 && result.Ops%verifyEvery == 0 {
			err = set.Verify()
			if err != nil {
				return result, fmt.Errorf("after op %d: %w", idx, err)
			}

			result.Verified++
		}
	}

	result.Elapsed = time.Since(started)

	err := set.Verify()
	if err != nil {
		return result, fmt.Errorf("final verify: %w", err)
	}

	result.Verified++

	return result, nil
}
