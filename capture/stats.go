package capture

import (
	"fmt"
	"strings"
)

// Stats denotes the statistics of a capture run
type Stats struct {
	FramesReceived uint64 // Frames dequeued from the device
	FramesSelected uint64 // Candidate frames (every Kth frame)
	FramesSkipped  uint64 // Candidates requeued directly because the save path was busy
	FramesSaved    uint64 // Frames successfully persisted
	SaveErrors     uint64 // Frames that failed to persist (still returned to the device)

	PendingIndex int      // Buffer index currently pending in the handoff slot (-1 if none)
	PerBuffer    []uint64 // Number of dequeues per buffer index
}

// String returns a compact summary of the statistics
func (s Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pending: %d ", s.PendingIndex)

	var total uint64
	for i, n := range s.PerBuffer {
		fmt.Fprintf(&sb, "buff[%d]: %d ", i, n)
		total += n
	}
	fmt.Fprintf(&sb, "total: %d (selected: %d, skipped: %d, saved: %d, save errors: %d)",
		total, s.FramesSelected, s.FramesSkipped, s.FramesSaved, s.SaveErrors)

	return sb.String()
}
