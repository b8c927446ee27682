// bench-hibernation grows a region set chunk by chunk and records the heap
// around each Hibernate/Boot cycle.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --regions 2000000 --chunk-size 500000 \
//	  --profile-dir docs/profiles/hibernation
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/regiontree/internal/workload"
	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

type phase struct {
	label  string
	inUse  uint64
	sys    uint64
	packed int
}

// recorder keeps the heap timeline and optionally writes a heap profile per phase.
type recorder struct {
	dir    string
	phases []phase
}

func (rec *recorder) snapshot(label string, set *regions.Set) {
	runtime.GC()
	runtime.GC()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rec.phases = append(rec.phases, phase{label: label, inUse: mem.HeapInuse, sys: mem.HeapSys, packed: set.PackedSize()})
	log.Printf("%-28s inuse=%s sys=%s", label, humanize.IBytes(mem.HeapInuse), humanize.IBytes(mem.HeapSys))

	if rec.dir == "" {
		return
	}

	path := filepath.Join(rec.dir, "heap_"+label+".prof")

	f, err := os.Create(path)
	if err != nil {
		log.Printf("warning: %v", err)

		return
	}
	defer f.Close()

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Printf("warning: write %s: %v", path, err)
	}
}

func (rec *recorder) render() {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("Heap timeline")
	tw.AppendHeader(table.Row{"Phase", "Heap in use", "Heap sys", "Packed links", "Freed"})

	for idx, ph := range rec.phases {
		freed := ""
		if idx > 0 && ph.packed > 0 {
			prev := rec.phases[idx-1]
			freed = fmt.Sprintf("%.1f%%", 100*(float64(prev.inUse)-float64(ph.inUse))/float64(prev.inUse))
		}

		tw.AppendRow(table.Row{ph.label, humanize.IBytes(ph.inUse), humanize.IBytes(ph.sys),
			humanize.IBytes(uint64(ph.packed)), freed})
	}

	tw.Render()
}

func main() {
	total := flag.Int("regions", 1_000_000, "regions to insert")
	chunkSize := flag.Int("chunk-size", 250_000, "regions inserted between hibernations")
	seed := flag.Int64("seed", 1, "workload seed")
	profileDir := flag.String("profile-dir", "", "write heap profiles (and cpu.prof with --cpu-profile) here")
	cpuProfile := flag.Bool("cpu-profile", false, "profile the whole run")

	flag.Parse()

	if *chunkSize <= 0 {
		log.Fatal("--chunk-size must be positive")
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("profile dir: %v", err)
		}
	}

	if *cpuProfile {
		if *profileDir == "" {
			log.Fatal("--cpu-profile needs --profile-dir")
		}

		stop := startCPUProfile(filepath.Join(*profileDir, "cpu.prof"))
		defer stop()
	}

	ctx := context.Background()
	set := regions.New(regions.WithCapacity(*total), regions.WithHibernationThreshold(0))
	gen := workload.NewGenerator(workload.Config{Seed: *seed, Slots: 2 * *total})
	rec := &recorder{dir: *profileDir}

	rec.snapshot("empty", set)

	for chunk := 1; set.Len() < *total; chunk++ {
		for _, op := range gen.Ops(min(*chunkSize, *total-set.Len())) {
			if err := set.Insert(ctx, op.Region); err != nil {
				log.Fatalf("insert %s: %v", op.Region, err)
			}
		}

		rec.snapshot(fmt.Sprintf("chunk%d_awake", chunk), set)

		set.Hibernate()
		rec.snapshot(fmt.Sprintf("chunk%d_hibernated", chunk), set)

		set.Boot()
	}

	if err := set.Verify(); err != nil {
		log.Fatalf("verify after %d regions: %v", set.Len(), err)
	}

	rec.render()
}

func startCPUProfile(path string) func() {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("cpu profile: %v", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		log.Fatalf("cpu profile: %v", err)
	}

	log.Printf("cpu profile -> %s", path)

	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}
}
