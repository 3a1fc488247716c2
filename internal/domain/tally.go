package domain

import "time"

// TallySnapshot is a point-in-time read of per-choice vote counts.
// Choices whose query failed are listed in Omitted instead of aborting
// the whole read.
type TallySnapshot struct {
	Counts  map[uint64]uint64
	Omitted []uint64
	TakenAt time.Time
}
