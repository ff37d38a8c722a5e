package main

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/joshuapare/btpskit/btps"
	"github.com/joshuapare/btpskit/btps/heap"
	"github.com/joshuapare/btpskit/btps/osal"
)

var (
	heapSize        int
	heapOps         int
	heapSeed        int64
	heapMaxAlloc    int
	heapCooperative bool
	heapMap         bool
)

func init() {
	cmd := newHeapCmd()
	cmd.Flags().IntVar(&heapSize, "size", 0, "Arena size in bytes (default: platform default)")
	cmd.Flags().IntVar(&heapOps, "ops", 1000, "Number of allocate/free operations")
	cmd.Flags().Int64Var(&heapSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&heapMaxAlloc, "max", 512, "Largest small allocation")
	cmd.Flags().BoolVar(&heapCooperative, "cooperative", false, "Use the cooperative platform")
	cmd.Flags().BoolVar(&heapMap, "map", false, "Print the fragment map before draining")
	rootCmd.AddCommand(cmd)
}

func newHeapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heap",
		Short: "Churn the kernel heap and report fragmentation",
		Long: `The heap command runs a random mix of allocations and frees against a
kernel heap, prints the resulting statistics and fragment layout, then frees
everything and checks that the heap returns to a single free fragment.

About one request in ten is large (1-4 KiB) to exercise allocation from the
end of the arena.

Example:
  btpsctl heap --ops 5000 --seed 7
  btpsctl heap --cooperative --map
  btpsctl heap --size 8192 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeap()
		},
	}
	return cmd
}

// HeapResult summarizes a churn run.
type HeapResult struct {
	Platform  string              `json:"platform"`
	Seed      int64               `json:"seed"`
	Ops       int                 `json:"ops"`
	Stats     heap.Stats          `json:"stats"`
	Fragments []heap.FragmentInfo `json:"fragments,omitempty"`
	Drained   bool                `json:"drained"`
}

func runHeap() error {
	plat := osal.RTOS(osal.NewSystemClock())
	if heapCooperative {
		plat = osal.NoOS(osal.NewSystemClock())
	}
	k, err := btps.New(btps.Config{Platform: plat, Heap: heap.Config{Size: heapSize}, Output: io.Discard})
	if err != nil {
		return err
	}
	defer k.Close()

	printVerbose("Churning %d operations with seed %d\n", heapOps, heapSeed)
	rng := rand.New(rand.NewSource(heapSeed))
	var live []heap.Ref
	for range heapOps {
		if len(live) > 0 && rng.Intn(2) == 0 {
			i := rng.Intn(len(live))
			if err := k.Free(live[i]); err != nil {
				return fmt.Errorf("free: %w", err)
			}
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		n := 1 + rng.Intn(heapMaxAlloc)
		if rng.Intn(10) == 0 {
			n = 1024 + rng.Intn(3*1024)
		}
		if r, _, err := k.Alloc(n); err == nil {
			live = append(live, r)
		}
	}

	res := HeapResult{Platform: plat.Name(), Seed: heapSeed, Ops: heapOps, Stats: k.HeapStats()}
	if heapMap {
		res.Fragments = k.HeapFragments()
	}

	for _, r := range live {
		if err := k.Free(r); err != nil {
			return fmt.Errorf("drain: %w", err)
		}
	}
	if err := k.CheckHeap(); err != nil {
		return err
	}
	res.Drained = len(k.HeapFragments()) == 1

	if jsonOut {
		return printJSON(res)
	}

	s := res.Stats
	printInfo("\nHeap Churn (%s, seed %d, %d ops):\n", res.Platform, res.Seed, res.Ops)
	printInfo("  Arena: %d bytes\n", s.ArenaSize)
	printInfo("  Live: %d allocations, %d bytes (peak %d)\n", s.LiveAllocs, s.LiveBytes, s.PeakBytes)
	printInfo("  Free: %d bytes, largest %d\n", s.FreeBytes, s.LargestFree)
	printInfo("  Fragments: %d\n", s.Fragments)
	printInfo("  Allocs: %d (%d failed), frees: %d\n", s.AllocCalls, s.AllocFailed, s.FreeCalls)
	printInfo("  Splits: %d, coalesces: %d\n", s.Splits, s.Coalesces)

	if heapMap {
		printInfo("\nFragment Map:\n")
		for _, f := range res.Fragments {
			printInfo("  %6d  %6d  %s\n", f.Offset, f.Size, f.State)
		}
	}

	if res.Drained {
		printInfo("\n  ✓ Drained to a single free fragment\n")
	} else {
		printInfo("\n  ✗ Heap still fragmented after draining\n")
	}
	return nil
}
