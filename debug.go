package islandcycle

import (
	"fmt"
	"os"
	"time"
)

// debugStats holds per-frame timing and draw metrics for one scene.
// Only populated when Scene.debug is true.
type debugStats struct {
	traverseTime time.Duration
	submitTime   time.Duration
	commandCount int
	batchCount   int
}

// debugLog prints timing and draw stats to stderr.
func (s *Scene) debugLog(stats debugStats) {
	if !s.debug {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr,
		"[islandcycle] %s traverse: %v | submit: %v | commands: %d | batches: %d\n",
		s.name, stats.traverseTime, stats.submitTime, stats.commandCount, stats.batchCount)
}

// debugCheckDisposed panics with a descriptive message when a disposed node is
// used in a tree operation. Only called in debug mode.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("islandcycle debug: %s on disposed node %q", op, n.Name))
	}
}

// countBatches counts contiguous groups of commands sharing the same batchKey,
// which is the number of DrawTriangles calls submitBatches makes.
func countBatches(commands []RenderCommand) int {
	if len(commands) == 0 {
		return 0
	}
	count := 1
	prev := commandBatchKey(&commands[0])
	for i := 1; i < len(commands); i++ {
		cur := commandBatchKey(&commands[i])
		if cur != prev {
			count++
			prev = cur
		}
	}
	return count
}
