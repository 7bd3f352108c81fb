package appointment

import "github.com/jwalitptl/hmis-api/internal/model"

var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusScheduled: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusInProgress: {
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
}

// CanTransition reports whether from may move to to. Terminal statuses
// have no outgoing edges.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
