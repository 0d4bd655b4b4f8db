package repository

import (
	"context"
	"mangrat-go/internal/model"

	"gorm.io/gorm"
)

// LearnQueueRepository 定义了待学习问题队列的数据操作方法。
type LearnQueueRepository interface {
	Enqueue(ctx context.Context, question string) (*model.PendingQuestion, error)
	MarkLearned(ctx context.Context, question, answer string) (int64, error)
	ListByStatus(ctx context.Context, status model.QuestionStatus) ([]model.PendingQuestion, error)
	FindByID(ctx context.Context, id uint) (*model.PendingQuestion, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

type learnQueueRepository struct {
	db *gorm.DB
}

// NewLearnQueueRepository 创建一个新的 LearnQueueRepository 实例。
func NewLearnQueueRepository(db *gorm.DB) LearnQueueRepository {
	return &learnQueueRepository{db: db}
}

// Enqueue 插入一条 pending 记录。相同问题不去重。
func (r *learnQueueRepository) Enqueue(ctx context.Context, question string) (*model.PendingQuestion, error) {
	row := &model.PendingQuestion{Question: question, Status: model.StatusPending}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// MarkLearned 把所有文本完全相同的 pending 记录标记为 learned，返回受影响的行数。
func (r *learnQueueRepository) MarkLearned(ctx context.Context, question, answer string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.PendingQuestion{}).
		Where("question = ? AND status = ?", question, model.StatusPending).
		Updates(map[string]interface{}{
			"status":         model.StatusLearned,
			"correct_answer": answer,
		})
	return res.RowsAffected, res.Error
}

// ListByStatus 按创建时间倒序返回指定状态的记录。
func (r *learnQueueRepository) ListByStatus(ctx context.Context, status model.QuestionStatus) ([]model.PendingQuestion, error) {
	var rows []model.PendingQuestion
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// FindByID 根据 ID 查找一条记录。
func (r *learnQueueRepository) FindByID(ctx context.Context, id uint) (*model.PendingQuestion, error) {
	var row model.PendingQuestion
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete 删除一条记录，无论其状态。返回值表示记录是否存在。
func (r *learnQueueRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.PendingQuestion{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
