package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

var errorNames = map[string]error{
	"overlap":      regions.ErrOverlap,
	"empty":        regions.ErrEmptyRegion,
	"out_of_range": regions.ErrOutOfRange,
	"not_found":    regions.ErrNotFound,
	"key_changed":  regions.ErrKeyChanged,
}

// StepResult is the outcome of one replayed step.
type StepResult struct {
	Index  int
	Op     string
	Passed bool
	Detail string
}

// Report collects the outcome of a replay.
type Report struct {
	Name  string
	Steps []StepResult
}

// Failed returns the steps that did not meet their expectations.
func (r Report) Failed() []StepResult {
	return lo.Filter(r.Steps, func(step StepResult, _ int) bool { return !step.Passed })
}

// Passed reports whether every step met its expectations.
func (r Report) Passed() bool {
	return len(r.Failed()) == 0
}

// NewSet builds the set a scenario asks for. The scenario's capacity and
// hibernation threshold take precedence over opts.
func (sc *Scenario) NewSet(opts ...regions.Option) *regions.Set {
	opts = append(opts,
		regions.WithCapacity(sc.Capacity),
		regions.WithHibernationThreshold(sc.HibernationThreshold),
	)

	return regions.New(opts...)
}

// Replay runs every step of sc against set. Failing steps are recorded and the
// replay continues.
func Replay(ctx context.Context, set *regions.Set, sc *Scenario) Report {
	report := Report{Name: sc.Name, Steps: make([]StepResult, 0, len(sc.Steps))}

	for idx := range sc.Steps {
		step := &sc.Steps[idx]
		result := StepResult{Index: idx, Op: step.Op()}

		detail, err := run(ctx, set, step)
		result.Detail, result.Passed = judge(step, detail, err)

		report.Steps = append(report.Steps, result)
	}

	return report
}

// errExpectation marks a step whose operation succeeded but whose outcome differs.
var errExpectation = errors.New("expectation failed")

// errHibernated is returned for steps issued against a compressed set.
var errHibernated = errors.New("set is hibernated")

func judge(step *Step, detail string, err error) (string, bool) {
	if errors.Is(err, errExpectation) || errors.Is(err, errHibernated) {
		return err.Error(), false
	}

	if step.Error == "" {
		if err != nil {
			return err.Error(), false
		}

		return detail, true
	}

	if err == nil {
		return fmt.Sprintf("expected %s error, operation succeeded", step.Error), false
	}

	if !errors.Is(err, errorNames[step.Error]) {
		return fmt.Sprintf("expected %s error, got: %v", step.Error, err), false
	}

	return err.Error(), true
}

func run(ctx context.Context, set *regions.Set, step *Step) (string, error) {
	if set.Hibernated() && !step.Boot {
		return "", errHibernated
	}

	switch {
	case step.Insert != nil:
		region := step.Insert.Region()

		return region.String(), set.Insert(ctx, region)

	case step.InsertAfter != nil:
		region := step.InsertAfter.Region()

		return region.String(), set.InsertAfter(ctx, step.InsertAfter.Anchor, region)

	case step.Remove != nil:
		region, err := set.Remove(ctx, step.Remove.Start)

		return region.String(), err

	case step.Update != nil:
		return updateStep(ctx, set, step.Update)

	case step.Lookup != nil:
		return lookupStep(set, step.Lookup)

	case step.Coalesce != nil:
		merged := set.Coalesce(ctx)

		return countStep("merged", merged, step.Coalesce.Merged)

	case step.Evict != nil:
		kind := step.Evict.Kind
		evicted := set.Evict(ctx, func(r regions.Region) bool { return r.Kind == kind })

		return countStep("evicted", evicted, step.Evict.Evicted)

	case step.Expect != nil:
		return expectStep(set, step.Expect)

	case step.Verify:
		return "tree verified", set.Verify()

	case step.Hibernate:
		set.Hibernate()

		return fmt.Sprintf("packed into %s", humanize.IBytes(uint64(set.PackedSize()))), nil

	case step.Boot:
		set.Boot()

		return fmt.Sprintf("%d regions restored", set.Len()), nil
	}

	return "", fmt.Errorf("%w: step has no operation", ErrInvalidScenario)
}

func updateStep(ctx context.Context, set *regions.Set, spec *UpdateSpec) (string, error) {
	err := set.Update(ctx, spec.Start, func(r *regions.Region) {
		if spec.Size != nil {
			r.Size = uint64(*spec.Size)
		}

		if spec.Kind != nil {
			r.Kind = *spec.Kind
		}
	})
	if err != nil {
		return "", err
	}

	updated, _ := set.Get(spec.Start)

	return updated.String(), nil
}

func lookupStep(set *regions.Set, spec *LookupSpec) (string, error) {
	found, ok := set.Lookup(spec.Addr)

	switch {
	case spec.Start == nil && ok:
		return "", fmt.Errorf("%w: %#x is inside %s, expected a miss", errExpectation, spec.Addr, found)
	case spec.Start == nil:
		return fmt.Sprintf("%#x misses", spec.Addr), nil
	case !ok:
		return "", fmt.Errorf("%w: %#x misses, expected the region at %#x", errExpectation, spec.Addr, *spec.Start)
	case found.Start != *spec.Start:
		return "", fmt.Errorf("%w: %#x is inside %s, expected the region at %#x",
			errExpectation, spec.Addr, found, *spec.Start)
	}

	return fmt.Sprintf("%#x in %s", spec.Addr, found), nil
}

func countStep(what string, got int, want *int) (string, error) {
	if want != nil && got != *want {
		return "", fmt.Errorf("%w: %s %d, expected %d", errExpectation, what, got, *want)
	}

	return fmt.Sprintf("%s %d", what, got), nil
}

func expectStep(set *regions.Set, spec *ExpectSpec) (string, error) {
	if spec.Regions != nil && set.Len() != *spec.Regions {
		return "", fmt.Errorf("%w: %d regions, expected %d", errExpectation, set.Len(), *spec.Regions)
	}

	if spec.Bytes != nil && set.Bytes() != uint64(*spec.Bytes) {
		return "", fmt.Errorf("%w: %s, expected %s",
			errExpectation, humanize.IBytes(set.Bytes()), humanize.IBytes(uint64(*spec.Bytes)))
	}

	return fmt.Sprintf("%d regions, %s", set.Len(), humanize.IBytes(set.Bytes())), nil
}
