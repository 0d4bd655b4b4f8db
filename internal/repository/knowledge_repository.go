package repository

import (
	"context"
	"errors"
	"mangrat-go/internal/category"
	"mangrat-go/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KnowledgeRepository 定义了知识分区的数据操作方法。
// 所有方法都按照分区的 Shape 选择列名，从不混用两种行结构。
type KnowledgeRepository interface {
	// Find 按问题精确查找答案；未命中时 found 为 false 且 err 为 nil。
	Find(ctx context.Context, p category.Partition, question string) (answer string, found bool, err error)
	// Upsert 写入问答对，问题已存在时覆盖答案。
	Upsert(ctx context.Context, p category.Partition, question, answer string) error
	// List 返回分区内的全部条目。
	List(ctx context.Context, p category.Partition) ([]model.KnowledgeEntry, error)
}

type knowledgeRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewKnowledgeRepository 创建一个新的 KnowledgeRepository 实例。
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db, now: time.Now}
}

func (r *knowledgeRepository) Find(ctx context.Context, p category.Partition, question string) (string, bool, error) {
	tx := r.db.WithContext(ctx).Table(p.Table)

	var (
		answer string
		err    error
	)
	switch p.Shape {
	case category.ShapeTopic:
		var row model.TopicEntry
		err = tx.Where("key_name = ?", question).Take(&row).Error
		answer = row.Content
	default:
		var row model.GeneralEntry
		err = tx.Where("question = ?", question).Take(&row).Error
		answer = row.Answer
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return answer, true, nil
}

func (r *knowledgeRepository) Upsert(ctx context.Context, p category.Partition, question, answer string) error {
	tx := r.db.WithContext(ctx).Table(p.Table)

	switch p.Shape {
	case category.ShapeTopic:
		row := model.TopicEntry{KeyName: question, Content: answer, UpdatedAt: r.now()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
		}).Create(&row).Error
	default:
		row := model.GeneralEntry{Question: question, Answer: answer}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "question"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer"}),
		}).Create(&row).Error
	}
}

func (r *knowledgeRepository) List(ctx context.Context, p category.Partition) ([]model.KnowledgeEntry, error) {
	tx := r.db.WithContext(ctx).Table(p.Table).Order("id ASC")

	if p.Shape == category.ShapeTopic {
		var rows []model.TopicEntry
		if err := tx.Find(&rows).Error; err != nil {
			return nil, err
		}
		entries := make([]model.KnowledgeEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, model.KnowledgeEntry{
				Question:  row.KeyName,
				Answer:    row.Content,
				UpdatedAt: model.NewLocalTime(row.UpdatedAt),
			})
		}
		return entries, nil
	}

	var rows []model.GeneralEntry
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]model.KnowledgeEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, model.KnowledgeEntry{Question: row.Question, Answer: row.Answer})
	}
	return entries, nil
}
