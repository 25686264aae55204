package domain

// ComputeDocumentStatus derives a document's overall status from the full set
// of its stages. Every mutation path calls this instead of re-implementing the
// aggregation:
//   - any rejected stage makes the document rejected (terminal),
//   - all stages completed makes the document completed,
//   - any stage completed or in progress makes the document in_progress,
//   - otherwise the document is pending.
func ComputeDocumentStatus(stages []WorkflowStage) DocumentStatus {
	if len(stages) == 0 {
		return DocumentStatusPending
	}

	allCompleted := true
	anyStarted := false
	for _, stage := range stages {
		switch stage.Status {
		case StageStatusRejected:
			return DocumentStatusRejected
		case StageStatusCompleted:
			anyStarted = true
		case StageStatusInProgress:
			allCompleted = false
			anyStarted = true
		default:
			allCompleted = false
		}
	}

	if allCompleted {
		return DocumentStatusCompleted
	}
	if anyStarted {
		return DocumentStatusInProgress
	}
	return DocumentStatusPending
}

// NextPendingStage returns the first pending stage with order greater than
// afterOrder, or nil if none exists. Stages must be the document's full set.
func NextPendingStage(stages []WorkflowStage, afterOrder int) *WorkflowStage {
	var next *WorkflowStage
	for i := range stages {
		stage := &stages[i]
		if stage.StageOrder <= afterOrder || stage.Status != StageStatusPending {
			continue
		}
		if next == nil || stage.StageOrder < next.StageOrder {
			next = stage
		}
	}
	return next
}
