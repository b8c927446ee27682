// Package regions tracks non-overlapping address ranges ordered by start address.
//
// A Set owns the region records and links them into an rbtree.Tree. Every mutation
// performs a single descent: the cursor returned by the lookup is reused to check the
// neighbours and to link, replace or unlink the record.
package regions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"

	"github.com/samber/lo"

	"github.com/Sumatoshi-tech/regiontree/pkg/observability"
	"github.com/Sumatoshi-tech/regiontree/pkg/rbtree"
)

// Errors returned by Set operations.
var (
	ErrOverlap     = errors.New("region overlaps an existing region")
	ErrEmptyRegion = errors.New("region is empty")
	ErrOutOfRange  = errors.New("region exceeds the address space")
	ErrNotFound    = errors.New("region not found")
	ErrKeyChanged  = errors.New("region start cannot change")
)

// Operation names reported to metrics.
const (
	OpInsert      = "insert"
	OpInsertAfter = "insert_after"
	OpRemove      = "remove"
	OpUpdate      = "update"
	OpCoalesce    = "coalesce"
	OpEvict       = "evict"
)

// Option configures a Set.
type Option func(*settings)

type settings struct {
	capacity             int
	hibernationThreshold int
	logger               *slog.Logger
	metrics              *observability.TreeMetrics
	treeOptions          []rbtree.Option
}

// WithCapacity preallocates room for n regions.
func WithCapacity(n int) Option {
	return func(s *settings) {
		s.capacity = n
	}
}

// WithHibernationThreshold sets the minimum arena size that Hibernate compresses.
func WithHibernationThreshold(n int) Option {
	return func(s *settings) {
		s.hibernationThreshold = n
	}
}

// WithLogger sets the logger used for mutation traces.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics records every mutation in metrics.
func WithMetrics(metrics *observability.TreeMetrics) Option {
	return func(s *settings) {
		s.metrics = metrics
	}
}

// WithTreeOptions forwards options to the underlying tree.
func WithTreeOptions(opts ...rbtree.Option) Option {
	return func(s *settings) {
		s.treeOptions = append(s.treeOptions, opts...)
	}
}

// Set is an ordered collection of non-overlapping regions. It is not safe for
// concurrent use.
type Set struct {
	alloc   *rbtree.Allocator[Region]
	tree    *rbtree.Tree[uint64, Region]
	logger  *slog.Logger
	metrics *observability.TreeMetrics
	bytes   uint64
}

// New creates an empty Set.
func New(opts ...Option) *Set {
	cfg := settings{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	alloc := rbtree.NewAllocator[Region](cfg.capacity)
	alloc.HibernationThreshold = cfg.hibernationThreshold

	return &Set{
		alloc:   alloc,
		tree:    rbtree.New(alloc, byStart, cfg.treeOptions...),
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
}

var byStart = rbtree.OrderedBy[uint64, Region](func(r *Region) uint64 { return r.Start })

// Len returns the number of regions.
func (set *Set) Len() int {
	return set.tree.Len()
}

// Bytes returns the total size of all regions.
func (set *Set) Bytes() uint64 {
	return set.bytes
}

// Insert adds a region that must not overlap any other.
func (set *Set) Insert(ctx context.Context, region Region) (err error) {
	defer func() { set.metrics.RecordOp(ctx, OpInsert, err) }()

	err = checkBounds(region)
	if err != nil {
		return err
	}

	cursor := set.tree.Find(region.Start)

	err = set.checkNeighbours(cursor, region)
	if err != nil {
		return err
	}

	set.link(ctx, cursor, region)

	return nil
}

// InsertAfter adds a region ordered right after the region starting at anchor.
// Appending past the highest region links in O(1) through the anchor's cursor.
func (set *Set) InsertAfter(ctx context.Context, anchor uint64, region Region) (err error) {
	defer func() { set.metrics.RecordOp(ctx, OpInsertAfter, err) }()

	err = checkBounds(region)
	if err != nil {
		return err
	}

	found := set.tree.Find(anchor)
	if !found.Found() {
		return fmt.Errorf("%w: anchor %#x", ErrNotFound, anchor)
	}

	anchorRegion := *set.tree.Value(found.Ref())
	if region.Start < anchorRegion.End() {
		return fmt.Errorf("%w: %s starts before the end of %s", ErrOverlap, region, anchorRegion)
	}

	cursor := set.tree.NextCursor(found.Ref())
	if cursor.Found() {
		// The free slot sits somewhere below the successor, so look it up.
		next := *set.tree.Value(cursor.Ref())
		if region.End() > next.Start {
			return fmt.Errorf("%w: %s collides with %s", ErrOverlap, region, next)
		}

		cursor = set.tree.Find(region.Start)
	}

	set.link(ctx, cursor, region)

	return nil
}

// Lookup returns the region containing addr.
func (set *Set) Lookup(addr uint64) (Region, bool) {
	ref := set.tree.Floor(addr)
	if ref == rbtree.Nil {
		return Region{}, false
	}

	region := *set.tree.Value(ref)
	if !region.Contains(addr) {
		return Region{}, false
	}

	return region, true
}

// Get returns the region starting exactly at start.
func (set *Set) Get(start uint64) (Region, bool) {
	cursor := set.tree.Find(start)
	if !cursor.Found() {
		return Region{}, false
	}

	return *set.tree.Value(cursor.Ref()), true
}

// Remove deletes the region starting at start and returns it.
func (set *Set) Remove(ctx context.Context, start uint64) (region Region, err error) {
	defer func() { set.metrics.RecordOp(ctx, OpRemove, err) }()

	cursor := set.tree.Find(start)
	if !cursor.Found() {
		return Region{}, fmt.Errorf("%w: %#x", ErrNotFound, start)
	}

	ref := cursor.Ref()
	region = *set.tree.Value(ref)

	set.tree.Remove(cursor)
	set.alloc.Free(ref)
	set.bytes -= region.Size

	set.logger.DebugContext(ctx, "region removed", "region", region)

	return region, nil
}

// Update rewrites the region starting at start. fn receives a copy; the start address
// must stay the same and the region must not grow into its successor. The new record
// takes the place of the old one in the tree and its generation is bumped.
func (set *Set) Update(ctx context.Context, start uint64, fn func(*Region)) (err error) {
	defer func() { set.metrics.RecordOp(ctx, OpUpdate, err) }()

	cursor := set.tree.Find(start)
	if !cursor.Found() {
		return fmt.Errorf("%w: %#x", ErrNotFound, start)
	}

	old := cursor.Ref()
	previous := *set.tree.Value(old)
	updated := previous

	fn(&updated)

	if updated.Start != previous.Start {
		return fmt.Errorf("%w: %#x became %#x", ErrKeyChanged, previous.Start, updated.Start)
	}

	err = checkBounds(updated)
	if err != nil {
		return err
	}

	if next := set.tree.Next(cursor); next.Found() {
		if successor := *set.tree.Value(next.Ref()); updated.End() > successor.Start {
			return fmt.Errorf("%w: %s collides with %s", ErrOverlap, updated, successor)
		}
	}

	updated.Generation = previous.Generation + 1

	ref := set.alloc.Alloc(updated)
	set.tree.Replace(ref, cursor)
	set.alloc.Free(old)
	set.bytes = set.bytes - previous.Size + updated.Size

	set.logger.DebugContext(ctx, "region updated", "from", previous, "to", updated)

	return nil
}

// Coalesce merges runs of adjacent free regions into their first region and
// returns the number of regions merged away.
func (set *Set) Coalesce(ctx context.Context) int {
	merged := 0
	anchor := rbtree.Nil

	for it := set.tree.Begin(); !it.Done(); it.Next() {
		current := it.Value()

		if anchor != rbtree.Nil {
			head := set.tree.Value(anchor)

			if head.Kind == KindFree && current.Kind == KindFree && head.End() == current.Start {
				head.Size += current.Size
				head.Generation++

				ref := it.Ref()
				it.Remove()
				set.alloc.Free(ref)

				merged++

				continue
			}
		}

		anchor = it.Ref()
	}

	set.metrics.RecordOp(ctx, OpCoalesce, nil)
	set.logger.DebugContext(ctx, "regions coalesced", "merged", merged)

	return merged
}

// Evict removes every region matching pred, from the highest address down,
// and returns the number of regions removed.
func (set *Set) Evict(ctx context.Context, pred func(Region) bool) int {
	evicted := 0

	for it := set.tree.RBegin(); !it.Done(); it.Next() {
		region := *it.Value()
		if !pred(region) {
			continue
		}

		ref := it.Ref()
		it.Remove()
		set.alloc.Free(ref)
		set.bytes -= region.Size

		evicted++
	}

	set.metrics.RecordOp(ctx, OpEvict, nil)
	set.logger.DebugContext(ctx, "regions evicted", "evicted", evicted)

	return evicted
}

// Reset removes every region.
func (set *Set) Reset() {
	set.tree.Clear(set.alloc.Free)
	set.bytes = 0
}

// All yields the regions in address order.
func (set *Set) All() iter.Seq[Region] {
	return func(yield func(Region) bool) {
		for _, region := range set.tree.All() {
			if !yield(*region) {
				return
			}
		}
	}
}

// Regions returns a copy of all regions in address order.
func (set *Set) Regions() []Region {
	result := make([]Region, 0, set.Len())
	for region := range set.All() {
		result = append(result, region)
	}

	return result
}

// Stats summarises the set.
type Stats struct {
	Regions     int
	Bytes       uint64
	BytesByKind map[Kind]uint64
	Height      int
	BlackHeight int
	ArenaSlots  int
	ArenaUsed   int
}

// Stats computes a summary of the set in O(n).
func (set *Set) Stats() Stats {
	regions := set.Regions()

	bytesByKind := lo.MapValues(lo.GroupBy(regions, func(r Region) Kind { return r.Kind }),
		func(group []Region, _ Kind) uint64 {
			return lo.SumBy(group, func(r Region) uint64 { return r.Size })
		})

	return Stats{
		Regions:     len(regions),
		Bytes:       set.bytes,
		BytesByKind: bytesByKind,
		Height:      set.tree.Height(),
		BlackHeight: set.tree.BlackHeight(),
		ArenaSlots:  set.alloc.Size(),
		ArenaUsed:   set.alloc.Used(),
	}
}

// TreeStats returns the gauges exported by observability.TreeMetrics.
func (set *Set) TreeStats() observability.TreeStats {
	return observability.TreeStats{
		Regions: int64(set.Len()),
		Bytes:   int64(min(set.bytes, math.MaxInt64)),
		Height:  int64(set.tree.Height()),
	}
}

// Verify checks the tree structure and that no two regions overlap.
func (set *Set) Verify() error {
	err := set.tree.Verify()
	if err != nil {
		return fmt.Errorf("verify regions: %w", err)
	}

	var (
		total    uint64
		previous *Region
	)

	for _, region := range set.tree.All() {
		if previous != nil && previous.End() > region.Start {
			return fmt.Errorf("verify regions: %w: %s and %s", ErrOverlap, previous, region)
		}

		total += region.Size
		previous = region
	}

	if total != set.bytes {
		return fmt.Errorf("verify regions: %w: counted %d bytes, set reports %d", rbtree.ErrCorrupted, total, set.bytes)
	}

	return nil
}

// Hibernate compresses the arena of an idle set. The set must not be used until Boot.
func (set *Set) Hibernate() {
	set.alloc.Hibernate()
}

// Boot restores a hibernated set.
func (set *Set) Boot() {
	set.alloc.Boot()
}

// Hibernated reports whether the set is compressed.
func (set *Set) Hibernated() bool {
	return set.alloc.Hibernated()
}

// PackedSize returns the compressed size of a hibernated set.
func (set *Set) PackedSize() int {
	return set.alloc.PackedSize()
}

func (set *Set) link(ctx context.Context, cursor rbtree.Cursor, region Region) {
	ref := set.alloc.Alloc(region)
	set.tree.Insert(ref, cursor)
	set.bytes += region.Size

	set.logger.DebugContext(ctx, "region inserted", "region", region)
}

// checkNeighbours rejects region when it collides with the node at cursor or its neighbours.
func (set *Set) checkNeighbours(cursor rbtree.Cursor, region Region) error {
	if cursor.Found() {
		return fmt.Errorf("%w: %s collides with %s", ErrOverlap, region, *set.tree.Value(cursor.Ref()))
	}

	if prev := set.tree.Prev(cursor); prev.Found() {
		if neighbour := *set.tree.Value(prev.Ref()); neighbour.Overlaps(region) {
			return fmt.Errorf("%w: %s collides with %s", ErrOverlap, region, neighbour)
		}
	}

	if next := set.tree.Next(cursor); next.Found() {
		if neighbour := *set.tree.Value(next.Ref()); neighbour.Overlaps(region) {
			return fmt.Errorf("%w: %s collides with %s", ErrOverlap, region, neighbour)
		}
	}

	return nil
}

func checkBounds(region Region) error {
	if region.Size == 0 {
		return fmt.Errorf("%w: %#x", ErrEmptyRegion, region.Start)
	}

	if region.End() < region.Start {
		return fmt.Errorf("%w: %#x+%d", ErrOutOfRange, region.Start, region.Size)
	}

	return nil
}
