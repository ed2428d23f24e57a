package model

// Status is the document lifecycle state.
type Status string

// Stable values (store these exact strings in DB).
const (
	StatusUploaded   Status = "Uploaded"   // initial state after intake
	StatusProcessing Status = "Processing" // extraction in progress
	StatusProcessed  Status = "Processed"  // terminal success
	StatusFailed     Status = "Failed"     // terminal, retriable
	StatusRetrying   Status = "Retrying"   // transient state during a retry reset
	StatusCancelled  Status = "Cancelled"  // terminal, explicit user action
)

// transitions encodes the allowed lifecycle graph. A retry goes
// Failed -> Retrying -> Uploaded so that Process picks the document up again.
var transitions = map[Status][]Status{
	StatusUploaded:   {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusProcessed, StatusFailed, StatusCancelled},
	StatusProcessed:  {},
	StatusFailed:     {StatusRetrying},
	StatusRetrying:   {StatusUploaded},
	StatusCancelled:  {},
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle graph allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
