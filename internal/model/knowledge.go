// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// MaxQuestionLength 是问题文本的最大字符数。
// 768 个 utf8mb4 字符正好是 InnoDB 单列索引的 3072 字节上限，question/key_name 列按此宽度建立唯一索引。
const MaxQuestionLength = 768

// GeneralEntry 是通用知识表 (knowledge) 的一行：一个问题对应一个答案。
type GeneralEntry struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Question string `gorm:"type:varchar(768);not null;uniqueIndex" json:"question"`
	Answer   string `gorm:"type:text;not null" json:"answer"`
}

// TableName 指定了通用知识表的表名。主题分区使用 db.Table 覆盖。
func (GeneralEntry) TableName() string {
	return "knowledge"
}

// TopicEntry 是主题知识表（animaux、histoire、geographie ...）的一行。
type TopicEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	KeyName   string    `gorm:"type:varchar(768);not null;uniqueIndex" json:"keyName"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// KnowledgeEntry 是两种分区结构统一后的只读视图，用于列表与导出。
type KnowledgeEntry struct {
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	UpdatedAt *LocalTime `json:"updatedAt,omitempty"`
}
