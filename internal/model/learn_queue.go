package model

import "time"

// QuestionStatus 是待学习问题的状态。
type QuestionStatus string

const (
	StatusPending QuestionStatus = "pending"
	StatusLearned QuestionStatus = "learned"
)

// PendingQuestion 对应 learn_queue 表。
// 同一个问题文本可以有多行，teach 会一次性更新所有 pending 行。
type PendingQuestion struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Question      string         `gorm:"type:text;not null" json:"question"`
	Status        QuestionStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CorrectAnswer *string        `gorm:"type:text" json:"correctAnswer"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (PendingQuestion) TableName() string {
	return "learn_queue"
}

// PendingQuestionDTO 是管理接口返回给前端的结构。
type PendingQuestionDTO struct {
	ID        uint      `json:"id"`
	Question  string    `json:"question"`
	CreatedAt LocalTime `json:"created_at"`
}
