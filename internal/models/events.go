package models

// StreamEventType discriminates progress stream events.
type StreamEventType string

const (
	EventStart     StreamEventType = "start"
	EventProgress  StreamEventType = "progress"
	EventGameError StreamEventType = "game_error"
	EventComplete  StreamEventType = "complete"
	EventError     StreamEventType = "error"
)

// StreamEvent is one server-sent event on the streaming analysis endpoint.
// Only the fields relevant to the event type are populated; Completed is
// strictly monotone across progress events of one stream.
type StreamEvent struct {
	Type       StreamEventType `json:"type"`
	Total      int             `json:"total,omitempty"`
	Completed  int             `json:"completed,omitempty"`
	GameID     int64           `json:"game_id,omitempty"`
	GameLabel  string          `json:"game_label,omitempty"`
	OverallCPL float64         `json:"overall_cpl,omitempty"`
	Blunders   int             `json:"blunders,omitempty"`
	Mistakes   int             `json:"mistakes,omitempty"`
	Analyzed   int             `json:"analyzed,omitempty"`
	Message    string          `json:"message,omitempty"`
}
