package models

// Role tags a message exchanged with the generation service.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn sent to the generation service.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}
