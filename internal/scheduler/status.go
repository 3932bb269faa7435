package scheduler

import (
	"sort"
	"time"

	"finsync/internal/models"
)

// TaskStatus is the observer-facing view of one registered task.
type TaskStatus struct {
	ID            string              `json:"id"`
	Category      models.TaskCategory `json:"category"`
	Priority      string              `json:"priority"`
	NextExecution time.Time           `json:"next_execution"`
	RetryCount    int                 `json:"retry_count"`
	InFlight      bool                `json:"in_flight"`
	LastMessage   string              `json:"last_message,omitempty"`
	LastSuccess   *bool               `json:"last_success,omitempty"`
}

// Status is a read-only projection of the coordinator state. It is a snapshot:
// the scheduler keeps mutating its own state after the copy is taken.
type Status struct {
	Paused           bool                 `json:"paused"`
	BatterySuspended bool                 `json:"battery_suspended"`
	Tasks            []TaskStatus         `json:"tasks"`
	InFlightIDs      []string             `json:"in_flight_ids,omitempty"`
	LastSyncAt       time.Time            `json:"last_sync_at"`
	NextSyncAt       *time.Time           `json:"next_sync_at,omitempty"`
	Resource         models.ResourceState `json:"resource"`
	Settings         models.SyncSettings  `json:"settings"`
}

// ActiveTaskIDs lists registered task ids in stable order.
func (s Status) ActiveTaskIDs() []string {
	ids := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// TaskByID returns the status entry for a task id.
func (s Status) TaskByID(id string) (TaskStatus, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskStatus{}, false
}

func (s *Scheduler) snapshot(es *engineState) Status {
	status := Status{
		Paused:           es.paused,
		BatterySuspended: es.suspended,
		LastSyncAt:       es.lastSync,
		Resource:         es.resource,
		Settings:         es.settings,
	}

	for id, st := range es.tasks {
		_, inFlight := es.running[id]
		ts := TaskStatus{
			ID:            id,
			Category:      st.task.Category,
			Priority:      st.task.Priority.String(),
			NextExecution: st.next,
			RetryCount:    st.retryCount,
			InFlight:      inFlight,
		}
		if st.lastResult != nil {
			ts.LastMessage = st.lastResult.Message
			ok := st.lastResult.Success
			ts.LastSuccess = &ok
		}
		status.Tasks = append(status.Tasks, ts)

		if status.NextSyncAt == nil || st.next.Before(*status.NextSyncAt) {
			next := st.next
			status.NextSyncAt = &next
		}
		if inFlight {
			status.InFlightIDs = append(status.InFlightIDs, id)
		}
	}

	sort.Slice(status.Tasks, func(i, j int) bool { return status.Tasks[i].ID < status.Tasks[j].ID })
	sort.Strings(status.InFlightIDs)
	return status
}
