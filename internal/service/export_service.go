package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mangrat-go/internal/model"
	"time"
)

// ErrExportDisabled 表示未配置对象存储。
var ErrExportDisabled = errors.New("knowledge export is not configured")

const exportLinkExpiry = time.Hour

// ObjectStore 是导出所需的对象存储能力，由 storage.MinIOStore 实现。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// ExportResult 描述一次导出的结果。
type ExportResult struct {
	Partition   string `json:"partition"`
	ObjectName  string `json:"objectName"`
	Entries     int    `json:"entries"`
	DownloadURL string `json:"downloadUrl"`
}

type exportDocument struct {
	Partition  string                 `json:"partition"`
	Table      string                 `json:"table"`
	Shape      string                 `json:"shape"`
	ExportedAt model.LocalTime        `json:"exportedAt"`
	Entries    []model.KnowledgeEntry `json:"entries"`
}

// ExportService 把一个知识分区导出为 JSON 文件并上传到对象存储。
type ExportService interface {
	Export(ctx context.Context, categoryName string) (*ExportResult, error)
}

type exportService struct {
	knowledge KnowledgeService
	store     ObjectStore
	now       func() time.Time
}

// NewExportService 创建一个新的 ExportService。store 为 nil 时 Export 返回 ErrExportDisabled。
func NewExportService(knowledge KnowledgeService, store ObjectStore) ExportService {
	return &exportService{knowledge: knowledge, store: store, now: time.Now}
}

func (s *exportService) Export(ctx context.Context, categoryName string) (*ExportResult, error) {
	if s.store == nil {
		return nil, ErrExportDisabled
	}
	partition, entries, err := s.knowledge.ListKnowledge(ctx, categoryName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := exportDocument{
		Partition:  partition.Name,
		Table:      partition.Table,
		Shape:      partition.Shape.String(),
		ExportedAt: model.LocalTime(now),
		Entries:    entries,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}

	objectName := fmt.Sprintf("exports/%s/%s.json", partition.Table, now.Format("20060102-150405"))
	if err := s.store.Put(ctx, objectName, data, "application/json"); err != nil {
		return nil, err
	}
	url, err := s.store.PresignedURL(ctx, objectName, exportLinkExpiry)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Partition:   partition.Name,
		ObjectName:  objectName,
		Entries:     len(entries),
		DownloadURL: url,
	}, nil
}
