package model

import "time"

// Message is one inbound group chat message. Instances are immutable after
// creation and live only until a processing cycle consumes them.
type Message struct {
	Timestamp time.Time
	Sender    string
	GroupID   string
	GroupName string
	Text      string
}

// GroupLabel returns the group display name, falling back to the group ID
// when no name could be resolved.
func (m *Message) GroupLabel() string {
	if m.GroupName != "" {
		return m.GroupName
	}
	return m.GroupID
}
