// Package tasks defines the messages exchanged over Kafka.
package tasks

import "time"

// TeachTask is a bulk-teaching job consumed from the teach topic.
type TeachTask struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// EventType names a knowledge event.
type EventType string

const (
	EventQuestionPending EventType = "question.pending"
	EventQuestionLearned EventType = "question.learned"
)

// KnowledgeEvent is published whenever the learn queue or a partition changes.
type KnowledgeEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Partition  string    `json:"partition"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer,omitempty"`
	PendingID  uint      `json:"pending_id,omitempty"`
	Reconciled int64     `json:"reconciled,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
