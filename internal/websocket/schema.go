package websocket

import "github.com/stemsi/mocktest-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionReview Action = "review"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// Request is the single inbound message shape. Fields unused by an action are ignored.
type Request struct {
	Action         Action             `json:"action"`
	QuestionID     string             `json:"question_id,omitempty"`
	SelectedOption *model.OptionKey   `json:"selected_option,omitempty"`
	Status         model.AnswerStatus `json:"status,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// TickEvent reports the remaining whole seconds once per second.
type TickEvent struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// SavedEvent acknowledges an answer or review toggle with the stored record.
type SavedEvent struct {
	Event  Event              `json:"event"`
	Record model.AnswerRecord `json:"record"`
}

// SubmittedEvent carries the final result, whether submitted by the user or by the timer.
type SubmittedEvent struct {
	Event   Event               `json:"event"`
	Trigger model.SubmitTrigger `json:"trigger"`
	Result  model.SubmitResult  `json:"result"`
}

// ErrorEvent reports a failed action. Code matches the REST error codes.
type ErrorEvent struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongEvent struct {
	Event Event `json:"event"`
}
