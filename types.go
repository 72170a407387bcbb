package magi

// Query is a single chat turn submitted by a visitor.
type Query struct {
	Text        string `json:"message"`
	IsFirstTurn bool   `json:"isFirstMessage"`
}

// Reply is the pipeline's answer to a Query.
type Reply struct {
	Text     string
	Source   Source
	Attempts int
}

// Source identifies which strategy produced a Reply.
type Source int

const (
	SourcePrimary Source = iota
	SourceSecondary
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceSecondary:
		return "secondary"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Message represents a chat message sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// IntPtr returns a pointer to the given int.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(v float64) *float64 { return &v }
