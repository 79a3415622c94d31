package workflow

import "github.com/nfdrepairs/repair-ops/internal/model"

// Transitions returns the legal next statuses from each state. The graph
// depends on whether the repair needs parts: the deposit/parts states are
// skipped entirely when partsRequired is false. CANCELLED is reachable from
// every non-terminal state.
func Transitions(partsRequired bool) map[model.JobStatus][]model.JobStatus {
	t := map[model.JobStatus][]model.JobStatus{}

	if partsRequired {
		t[model.StatusReceived] = []model.JobStatus{model.StatusAwaitingDeposit}
		t[model.StatusAwaitingDeposit] = []model.JobStatus{model.StatusPartsOrdered}
		t[model.StatusPartsOrdered] = []model.JobStatus{model.StatusPartsArrived}
		t[model.StatusPartsArrived] = []model.JobStatus{model.StatusReadyToBookIn}
	} else {
		t[model.StatusReceived] = []model.JobStatus{model.StatusReadyToBookIn}
	}

	t[model.StatusReadyToBookIn] = []model.JobStatus{model.StatusInRepair}
	t[model.StatusInRepair] = []model.JobStatus{model.StatusDelayed, model.StatusReadyToCollect}
	t[model.StatusDelayed] = []model.JobStatus{model.StatusReadyToCollect}
	t[model.StatusReadyToCollect] = []model.JobStatus{model.StatusCollected}
	t[model.StatusCollected] = []model.JobStatus{model.StatusCompleted}

	for from := range t {
		t[from] = append(t[from], model.StatusCancelled)
	}
	return t
}

// Allowed reports whether from → to is a legal workflow edge.
func Allowed(from, to model.JobStatus, partsRequired bool) bool {
	if from.Terminal() {
		return false
	}
	if to == model.StatusCancelled {
		return true
	}
	for _, s := range Transitions(partsRequired)[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatus computes the single "next workflow step" the staff UI offers.
// Returns ("", false) when the job is terminal or blocked (e.g. awaiting a
// deposit that hasn't been received).
func NextStatus(current model.JobStatus, partsRequired, depositReceived bool) (model.JobStatus, bool) {
	switch current {
	case model.StatusReceived:
		if partsRequired {
			return model.StatusAwaitingDeposit, true
		}
		return model.StatusReadyToBookIn, true
	case model.StatusAwaitingDeposit:
		if !depositReceived {
			return "", false // cleared via the deposit-received action
		}
		return model.StatusPartsOrdered, true
	case model.StatusPartsOrdered:
		return model.StatusPartsArrived, true
	case model.StatusPartsArrived:
		return model.StatusReadyToBookIn, true
	case model.StatusReadyToBookIn:
		return model.StatusInRepair, true
	case model.StatusInRepair, model.StatusDelayed:
		return model.StatusReadyToCollect, true
	case model.StatusReadyToCollect:
		return model.StatusCollected, true
	case model.StatusCollected:
		return model.StatusCompleted, true
	default:
		return "", false
	}
}

// InitialStatus is the status a new job starts in.
func InitialStatus(partsRequired bool) model.JobStatus {
	if partsRequired {
		return model.StatusAwaitingDeposit
	}
	return model.StatusReceived
}
