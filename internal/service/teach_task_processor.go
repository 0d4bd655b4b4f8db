package service

import (
	"context"
	"mangrat-go/pkg/log"
	"mangrat-go/pkg/tasks"
)

// TeachTaskProcessor 把 Kafka 中的 teach 任务交给 KnowledgeService 执行。
type TeachTaskProcessor struct {
	knowledge KnowledgeService
}

// NewTeachTaskProcessor 创建一个新的 TeachTaskProcessor。
func NewTeachTaskProcessor(knowledge KnowledgeService) *TeachTaskProcessor {
	return &TeachTaskProcessor{knowledge: knowledge}
}

// Process 执行 teach 协议。字段缺失的任务无法通过重试修复，记录后丢弃。
func (p *TeachTaskProcessor) Process(ctx context.Context, task tasks.TeachTask) error {
	res, err := p.knowledge.Teach(ctx, task.Question, task.Answer, task.Category)
	if IsValidationError(err) {
		log.Warnf("丢弃无效的 teach 任务: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("teach 任务完成: partition=%s, reconciled=%d", res.Partition.Name, res.Reconciled)
	return nil
}
