package types

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation. The role is carried as data.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

func UserTurn(text string) Turn { return Turn{Role: RoleUser, Text: text} }

func AssistantTurn(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }

// ConversationState is the ordered turn history of one session.
// Values are treated as immutable: Append returns a new state.
type ConversationState struct {
	turns []Turn
}

func NewConversationState(turns ...Turn) ConversationState {
	return ConversationState{turns: append([]Turn(nil), turns...)}
}

// Append returns a state holding the current turns followed by the given ones.
// The receiver's backing array is never shared with the result.
func (s ConversationState) Append(turns ...Turn) ConversationState {
	next := make([]Turn, 0, len(s.turns)+len(turns))
	next = append(next, s.turns...)
	next = append(next, turns...)
	return ConversationState{turns: next}
}

// Turns returns a copy of the history.
func (s ConversationState) Turns() []Turn {
	return append([]Turn(nil), s.turns...)
}

func (s ConversationState) Len() int { return len(s.turns) }
