package chat

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. A message is immutable once
// created; the window stores and hands out copies by value.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Formatter renders a message for display or logging.
type Formatter interface {
	Format(Message) string
}

// FormatterFunc adapts a plain function to the Formatter interface.
type FormatterFunc func(Message) string

func (f FormatterFunc) Format(m Message) string { return f(m) }
