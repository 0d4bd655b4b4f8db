// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"mangrat-go/internal/category"
	"mangrat-go/internal/model"
	"mangrat-go/internal/service"
	"mangrat-go/pkg/log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理待学习队列与知识分区的管理请求。
type AdminHandler struct {
	knowledgeService service.KnowledgeService
	exportService    service.ExportService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(knowledgeService service.KnowledgeService, exportService service.ExportService) *AdminHandler {
	return &AdminHandler{
		knowledgeService: knowledgeService,
		exportService:    exportService,
	}
}

// ListPendingQuestions 返回所有 pending 状态的问题，最新的在前。
func (h *AdminHandler) ListPendingQuestions(c *gin.Context) {
	rows, err := h.knowledgeService.ListPending(c.Request.Context())
	if err != nil {
		log.Error("ListPendingQuestions: Failed to list pending questions", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取待学习问题失败", "data": nil})
		return
	}

	dtos := make([]model.PendingQuestionDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, model.PendingQuestionDTO{
			ID:        row.ID,
			Question:  row.Question,
			CreatedAt: model.LocalTime(row.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": dtos})
}

// DeletePendingQuestion 删除一条队列记录。
func (h *AdminHandler) DeletePendingQuestion(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的问题 ID", "data": nil})
		return
	}

	if err := h.knowledgeService.DeletePending(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, service.ErrPendingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "问题不存在", "data": nil})
			return
		}
		log.Error("DeletePendingQuestion: Failed to delete pending question", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除问题失败", "data": nil})
		return
	}

	log.Infof("Pending question %d deleted", id)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Question deleted", "data": nil})
}

// ListKnowledge 返回一个分区的全部条目。known 为 false 表示类别未知，已回落到 general。
func (h *AdminHandler) ListKnowledge(c *gin.Context) {
	name := c.Param("category")
	partition, entries, err := h.knowledgeService.ListKnowledge(c.Request.Context(), name)
	if err != nil {
		log.Error("ListKnowledge: Failed to list knowledge", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取知识条目失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"category": partition.Name,
		"known":    category.Known(name),
		"table":    partition.Table,
		"entries":  entries,
	}})
}

// ExportKnowledge 把一个分区导出到对象存储并返回下载链接。
func (h *AdminHandler) ExportKnowledge(c *gin.Context) {
	res, err := h.exportService.Export(c.Request.Context(), c.Param("category"))
	if err != nil {
		if errors.Is(err, service.ErrExportDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "未配置对象存储", "data": nil})
			return
		}
		log.Error("ExportKnowledge: Failed to export knowledge", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "导出失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": res})
}

// GetStats 返回每个分区的问答计数。
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.knowledgeService.Stats(c.Request.Context())
	if err != nil {
		log.Error("GetStats: Failed to load stats", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取统计信息失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": stats})
}
