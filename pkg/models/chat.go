package models

import "time"

// ChatMode selects the turn-taking policy of a group chat.
type ChatMode string

const (
	// ChatRoundRobin cycles through participants in their original order.
	ChatRoundRobin ChatMode = "round_robin"
	// ChatConsensus favors the least-heard participant to build agreement.
	ChatConsensus ChatMode = "consensus"
)

// Valid returns true if the mode is a known value.
func (m ChatMode) Valid() bool {
	switch m {
	case ChatRoundRobin, ChatConsensus:
		return true
	default:
		return false
	}
}

// Message is one entry in a group chat's append-only log.
type Message struct {
	// Speaker is the agent identifier that posted the message.
	Speaker string `json:"speaker"`
	// Text is the message body.
	Text string `json:"text"`
	// Timestamp is when the message was appended.
	Timestamp time.Time `json:"timestamp"`
}
