package domain

import "time"

// AllocateStageDeadline computes the deadline for a single stage by
// distributing time backward from the document deadline. Each stage earlier
// than the last is pulled in by the priority's days-per-stage allotment, so
// the final stage's deadline equals the document deadline exactly and a chain
// that uses its full allotment per stage finishes on time.
//
// A nil document deadline yields nil for every stage (no escalation possible).
func AllocateStageDeadline(documentDeadline *time.Time, stageOrder, totalStages int, priority Priority) *time.Time {
	if documentDeadline == nil {
		return nil
	}
	days := (totalStages - stageOrder) * priority.DaysPerStage()
	deadline := documentDeadline.AddDate(0, 0, -days)
	return &deadline
}
