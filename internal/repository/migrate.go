// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"fmt"
	"mangrat-go/internal/category"
	"mangrat-go/internal/model"

	"gorm.io/gorm"
)

// mysqlTableOptions 使用 NO PAD 的二进制排序规则（MySQL 8），
// 等值比较与唯一约束因此区分大小写，也不会忽略末尾空格。
// utf8mb4_bin 是 PAD SPACE 规则，"q " 与 "q" 会被视为同一个键，不能使用。
const mysqlTableOptions = "ENGINE=InnoDB ROW_FORMAT=DYNAMIC DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_bin"

// tableOptions 返回建表时附加的选项，只有 MySQL 需要。
func tableOptions(dialect string) string {
	if dialect == "mysql" {
		return mysqlTableOptions
	}
	return ""
}

// Migrate 创建（或补齐）所有知识分区表与 learn_queue 表。
func Migrate(db *gorm.DB) error {
	if opts := tableOptions(db.Dialector.Name()); opts != "" {
		db = db.Set("gorm:table_options", opts).Session(&gorm.Session{})
	}

	for _, p := range category.All() {
		if err := db.Table(p.Table).AutoMigrate(rowModel(p.Shape)); err != nil {
			return fmt.Errorf("migrate table %s: %w", p.Table, err)
		}
	}
	if err := db.AutoMigrate(&model.PendingQuestion{}); err != nil {
		return fmt.Errorf("migrate learn_queue: %w", err)
	}
	return nil
}

func rowModel(shape category.Shape) interface{} {
	if shape == category.ShapeTopic {
		return &model.TopicEntry{}
	}
	return &model.GeneralEntry{}
}
