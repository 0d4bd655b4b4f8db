// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"mangrat-go/internal/category"
	"mangrat-go/internal/model"
	"mangrat-go/internal/repository"
	"mangrat-go/pkg/log"
	"mangrat-go/pkg/tasks"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// FallbackReply 是知识库中找不到答案时返回的固定消息。
const FallbackReply = "Je ne connais pas encore la réponse. Apprenez-moi !"

// TaughtReply 是 teach 成功后的确认消息。
const TaughtReply = "Merci ! J'ai appris quelque chose de nouveau."

var (
	ErrEmptyQuestion   = errors.New("question is required")
	ErrEmptyAnswer     = errors.New("answer is required")
	ErrQuestionTooLong = fmt.Errorf("question exceeds %d characters", model.MaxQuestionLength)
	ErrPendingNotFound = errors.New("pending question not found")
)

// AskResult 是 ask 协议的结果。Found 为 false 时 Reply 为 FallbackReply。
type AskResult struct {
	Reply     string
	Found     bool
	Partition category.Partition
	PendingID uint
}

// TeachResult 是 teach 协议的结果。
type TeachResult struct {
	Reply      string
	Partition  category.Partition
	Reconciled int64
}

// EventPublisher 发布知识事件，由 Kafka 生产者实现。
type EventPublisher interface {
	Publish(ctx context.Context, event tasks.KnowledgeEvent) error
}

// KnowledgeService 定义了问答、教学与待学习队列管理的业务操作。
type KnowledgeService interface {
	Ask(ctx context.Context, question, categoryName string) (*AskResult, error)
	Teach(ctx context.Context, question, answer, categoryName string) (*TeachResult, error)
	ListPending(ctx context.Context) ([]model.PendingQuestion, error)
	DeletePending(ctx context.Context, id uint) error
	ListKnowledge(ctx context.Context, categoryName string) (category.Partition, []model.KnowledgeEntry, error)
	Stats(ctx context.Context) (map[string]map[string]int64, error)
}

type knowledgeService struct {
	knowledgeRepo repository.KnowledgeRepository
	queueRepo     repository.LearnQueueRepository
	statsRepo     repository.StatsRepository
	publisher     EventPublisher
}

// NewKnowledgeService 创建一个新的 KnowledgeService 实例。publisher 可以为 nil。
func NewKnowledgeService(
	knowledgeRepo repository.KnowledgeRepository,
	queueRepo repository.LearnQueueRepository,
	statsRepo repository.StatsRepository,
	publisher EventPublisher,
) KnowledgeService {
	if statsRepo == nil {
		statsRepo = repository.NewStatsRepository(nil)
	}
	return &knowledgeService{
		knowledgeRepo: knowledgeRepo,
		queueRepo:     queueRepo,
		statsRepo:     statsRepo,
		publisher:     publisher,
	}
}

// Ask 在解析出的分区中精确查找问题。
// 命中时只读；未命中时向 learn_queue 插入一条 pending 记录并返回固定的兜底消息。
// 查找与插入是两条独立提交的语句，不包在事务里。
func (s *knowledgeService) Ask(ctx context.Context, question, categoryName string) (*AskResult, error) {
	if err := validateQuestion(question); err != nil {
		return nil, err
	}
	partition := category.Resolve(categoryName)
	s.incr(ctx, partition, repository.StatAsked)

	answer, found, err := s.knowledgeRepo.Find(ctx, partition, question)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", partition.Table, err)
	}
	if found {
		s.incr(ctx, partition, repository.StatHit)
		return &AskResult{Reply: answer, Found: true, Partition: partition}, nil
	}

	pending, err := s.queueRepo.Enqueue(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue pending question: %w", err)
	}
	s.incr(ctx, partition, repository.StatMiss)
	log.Infow("question queued for learning", "partition", partition.Name, "pendingId", pending.ID)

	s.publish(ctx, tasks.KnowledgeEvent{
		Type:      tasks.EventQuestionPending,
		Partition: partition.Name,
		Question:  question,
		PendingID: pending.ID,
	})
	return &AskResult{Reply: FallbackReply, Partition: partition, PendingID: pending.ID}, nil
}

// Teach 把问答对写入解析出的分区，然后把所有文本相同的 pending 记录标记为 learned。
func (s *knowledgeService) Teach(ctx context.Context, question, answer, categoryName string) (*TeachResult, error) {
	if err := validateQuestion(question); err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, ErrEmptyAnswer
	}
	partition := category.Resolve(categoryName)

	if err := s.knowledgeRepo.Upsert(ctx, partition, question, answer); err != nil {
		return nil, fmt.Errorf("failed to upsert into %s: %w", partition.Table, err)
	}

	reconciled, err := s.queueRepo.MarkLearned(ctx, question, answer)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile learn queue: %w", err)
	}
	s.incr(ctx, partition, repository.StatTaught)
	log.Infow("question taught", "partition", partition.Name, "reconciled", reconciled)

	s.publish(ctx, tasks.KnowledgeEvent{
		Type:       tasks.EventQuestionLearned,
		Partition:  partition.Name,
		Question:   question,
		Answer:     answer,
		Reconciled: reconciled,
	})
	return &TeachResult{Reply: TaughtReply, Partition: partition, Reconciled: reconciled}, nil
}

// ListPending 按创建时间倒序返回所有 pending 状态的问题。
func (s *knowledgeService) ListPending(ctx context.Context) ([]model.PendingQuestion, error) {
	rows, err := s.queueRepo.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending questions: %w", err)
	}
	return rows, nil
}

// DeletePending 删除一条队列记录，无论其状态。记录不存在时返回 ErrPendingNotFound。
func (s *knowledgeService) DeletePending(ctx context.Context, id uint) error {
	deleted, err := s.queueRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending question %d: %w", id, err)
	}
	if !deleted {
		return ErrPendingNotFound
	}
	return nil
}

// ListKnowledge 返回类别解析出的分区及其全部条目。
func (s *knowledgeService) ListKnowledge(ctx context.Context, categoryName string) (category.Partition, []model.KnowledgeEntry, error) {
	partition := category.Resolve(categoryName)
	entries, err := s.knowledgeRepo.List(ctx, partition)
	if err != nil {
		return partition, nil, fmt.Errorf("failed to list %s: %w", partition.Table, err)
	}
	return partition, entries, nil
}

// Stats 返回每个分区的计数。
func (s *knowledgeService) Stats(ctx context.Context) (map[string]map[string]int64, error) {
	all := make(map[string]map[string]int64)
	for _, p := range category.All() {
		counts, err := s.statsRepo.Get(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		all[p.Name] = counts
	}
	return all, nil
}

// IsValidationError 报告 err 是否是调用方输入错误，这类错误不应重试。
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyQuestion) || errors.Is(err, ErrEmptyAnswer) || errors.Is(err, ErrQuestionTooLong)
}

// validateQuestion 只检查空值与长度，不做任何裁剪。
// 超过 MaxQuestionLength 的问题既不能入队也不能 teach，两个协议保持一致。
func validateQuestion(question string) error {
	if question == "" {
		return ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > model.MaxQuestionLength {
		return ErrQuestionTooLong
	}
	return nil
}

// incr 统计失败只记日志，不影响主流程。
func (s *knowledgeService) incr(ctx context.Context, p category.Partition, field string) {
	if err := s.statsRepo.Incr(ctx, p.Name, field); err != nil {
		log.Warnf("stats incr failed: %v", err)
	}
}

// publish 事件发布失败只记日志，不影响主流程。
func (s *knowledgeService) publish(ctx context.Context, event tasks.KnowledgeEvent) {
	if s.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warnw("failed to publish knowledge event", "type", event.Type, "error", err)
	}
}
