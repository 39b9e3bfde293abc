package eventbus

import "time"

// Kind identifies the category of a published Event.
type Kind string

const (
	// Process lifecycle events (§4.2).
	ProcessCreated   Kind = "process.created"
	ActionStarted    Kind = "process.action_started"
	ActionFinished   Kind = "process.action_finished"
	GoalAchieved     Kind = "process.goal_achieved"
	ProcessFailed    Kind = "process.failed"
	ProcessWaiting   Kind = "process.waiting_for_input"
	ProcessStuck     Kind = "process.stuck"
	ProcessResumed   Kind = "process.resumed"
	ProcessCancelled Kind = "process.cancelled"
	ReplanRequested  Kind = "process.replan_requested"

	// Interaction events (§4.2).
	LLMRequest        Kind = "interaction.llm_request"
	LLMResponse       Kind = "interaction.llm_response"
	ToolCallRequest   Kind = "interaction.tool_call_request"
	ToolCallResponse  Kind = "interaction.tool_call_response"
)

// Event is a single observation published to the Bus. Fields are optional
// depending on Kind; consumers should switch on Kind before reading payload
// fields.
type Event struct {
	Kind      Kind
	ProcessID string
	At        time.Time

	// Process-event payload.
	ActionName string
	GoalName   string
	Reason     string

	// Interaction-event payload.
	InteractionID string
	ToolName      string
	ToolCallID    string
	Input         string
	Result        string
	Err           string
	Duration      time.Duration
}
