package model

// Turn roles used in the conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one entry of the conversation history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ConversationState is the shared state threaded through one graph traversal.
// It is created per request, owned by the engine for the duration of the
// traversal, and discarded once the response is returned.
//
// Concurrency model:
//   - One state per traversal; distinct traversals never share a state.
//   - Nodes never mutate the state they receive. Every update goes through
//     the With* helpers, which copy, so a failed node leaves the previous
//     state intact and the engine can apply node results atomically.
type ConversationState struct {
	Turns    []Turn
	Scratch  map[string]any
	Terminal bool
	Response string
}

// NewConversationState builds an initial state from prior history turns.
func NewConversationState(history []Turn) ConversationState {
	turns := make([]Turn, len(history))
	copy(turns, history)
	return ConversationState{
		Turns:   turns,
		Scratch: map[string]any{},
	}
}

// WithTurn returns a copy of the state with the turn appended.
// Turn history is append-only within one traversal.
func (s ConversationState) WithTurn(role, text string) ConversationState {
	next := s.clone()
	next.Turns = append(next.Turns, Turn{Role: role, Text: text})
	return next
}

// WithScratch returns a copy of the state with one scratch key set.
// By convention a scratch key is written only by the node that owns it.
func (s ConversationState) WithScratch(key string, value any) ConversationState {
	next := s.clone()
	next.Scratch[key] = value
	return next
}

// WithResponse returns a copy of the state with the final response text set.
func (s ConversationState) WithResponse(text string) ConversationState {
	next := s.clone()
	next.Response = text
	return next
}

// WithTerminal returns a copy of the state with the terminal flag set.
func (s ConversationState) WithTerminal() ConversationState {
	next := s.clone()
	next.Terminal = true
	return next
}

// ScratchString reads a scratch value as a string, with ok reporting
// presence and type match.
func (s ConversationState) ScratchString(key string) (string, bool) {
	v, ok := s.Scratch[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// LastUserText returns the most recent user turn, or empty when none exists.
func (s ConversationState) LastUserText() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleUser {
			return s.Turns[i].Text
		}
	}
	return ""
}

func (s ConversationState) clone() ConversationState {
	turns := make([]Turn, len(s.Turns))
	copy(turns, s.Turns)
	scratch := make(map[string]any, len(s.Scratch)+1)
	for k, v := range s.Scratch {
		scratch[k] = v
	}
	return ConversationState{
		Turns:    turns,
		Scratch:  scratch,
		Terminal: s.Terminal,
		Response: s.Response,
	}
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}
