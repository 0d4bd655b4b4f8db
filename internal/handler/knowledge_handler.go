// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"mangrat-go/internal/service"
	"mangrat-go/pkg/log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const generateTimeout = 15 * time.Second

// AnswerGenerator 在知识库未命中时生成一个替代回答，由 llm.Client 实现。
type AnswerGenerator interface {
	Generate(ctx context.Context, question string) (string, error)
}

// KnowledgeHandler 处理 ask 与 teach 请求。
type KnowledgeHandler struct {
	knowledgeService service.KnowledgeService
	generator        AnswerGenerator
}

// NewKnowledgeHandler 创建一个新的 KnowledgeHandler。generator 可以为 nil。
func NewKnowledgeHandler(knowledgeService service.KnowledgeService, generator AnswerGenerator) *KnowledgeHandler {
	return &KnowledgeHandler{knowledgeService: knowledgeService, generator: generator}
}

// AskRequest 定义了 ask 的请求体。
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	Category string `json:"category"`
}

// TeachRequest 定义了 teach 的请求体。
type TeachRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Category string `json:"category"`
}

// Ask 处理 POST /ask。
func (h *KnowledgeHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Ask: invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	reply, err := h.answer(c.Request.Context(), req.Question, req.Category)
	if err != nil {
		writeProtocolError(c, "Ask", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// Teach 处理 POST /teach。
func (h *KnowledgeHandler) Teach(c *gin.Context) {
	var req TeachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Teach: invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "question and answer are required"})
		return
	}

	res, err := h.knowledgeService.Teach(c.Request.Context(), req.Question, req.Answer, req.Category)
	if err != nil {
		writeProtocolError(c, "Teach", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": res.Reply})
}

// answer 执行 ask 协议；未命中时如果配置了生成器，用生成的文本替换兜底消息。
// 待学习队列照常写入。
func (h *KnowledgeHandler) answer(ctx context.Context, question, categoryName string) (string, error) {
	res, err := h.knowledgeService.Ask(ctx, question, categoryName)
	if err != nil {
		return "", err
	}
	if res.Found || h.generator == nil {
		return res.Reply, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	generated, err := h.generator.Generate(genCtx, question)
	if err != nil {
		log.Warnf("generative fallback failed, using default reply: %v", err)
		return res.Reply, nil
	}
	return generated, nil
}

func writeProtocolError(c *gin.Context, op string, err error) {
	if service.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Errorf("%s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
