package models

// EventKind distinguishes loader notifications delivered to subscribers.
type EventKind string

const (
	EventLoadStarted   EventKind = "load_started"
	EventLoadCompleted EventKind = "load_completed"
	EventLoadError     EventKind = "load_error"
)

// LoadEvent is one asynchronous loader notification. Exactly one completed or
// error event is delivered per operation ID; superseded operations deliver
// nothing.
type LoadEvent struct {
	Kind         EventKind   `json:"kind"`
	OperationID  string      `json:"operation_id"`
	ResourceType string      `json:"resource_type"`
	Namespace    string      `json:"namespace,omitempty"`
	Result       *LoadResult `json:"result,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}
