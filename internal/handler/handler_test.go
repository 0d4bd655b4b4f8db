package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mangrat-go/internal/handler"
	"mangrat-go/internal/model"
	"mangrat-go/internal/repository"
	"mangrat-go/internal/service"
	"mangrat-go/internal/testutil"
	"mangrat-go/pkg/keepalive"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.reply, g.err
}

type env struct {
	db     *gorm.DB
	router *gin.Engine
	pinger *keepalive.Pinger
}

func newEnv(t *testing.T, generator handler.AnswerGenerator) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	svc := service.NewKnowledgeService(
		repository.NewKnowledgeRepository(db),
		repository.NewLearnQueueRepository(db),
		nil, nil,
	)
	exportSvc := service.NewExportService(svc, nil)
	pinger := keepalive.NewPinger(func(context.Context) error { return nil }, time.Hour)
	t.Cleanup(func() { pinger.Stop() })

	knowledgeHandler := handler.NewKnowledgeHandler(svc, generator)
	adminHandler := handler.NewAdminHandler(svc, exportSvc)
	keepAliveHandler := handler.NewKeepAliveHandler(pinger)

	r := gin.New()
	r.POST("/ask", knowledgeHandler.Ask)
	r.POST("/teach", knowledgeHandler.Teach)
	r.GET("/ws/ask", handler.NewAskSocketHandler(knowledgeHandler).Handle)
	admin := r.Group("/admin")
	admin.GET("/questions", adminHandler.ListPendingQuestions)
	admin.DELETE("/questions/:id", adminHandler.DeletePendingQuestion)
	admin.GET("/knowledge/:category", adminHandler.ListKnowledge)
	admin.POST("/knowledge/:category/export", adminHandler.ExportKnowledge)
	admin.GET("/stats", adminHandler.GetStats)
	r.POST("/keepalive/start", keepAliveHandler.Start)
	r.POST("/keepalive/stop", keepAliveHandler.Stop)
	r.GET("/keepalive/status", keepAliveHandler.Status)

	return &env{db: db, router: r, pinger: pinger}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) queueCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.PendingQuestion{}).Count(&n).Error)
	return n
}

type replyBody struct {
	Reply string `json:"reply"`
	Error string `json:"error"`
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAskAndTeach(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/ask", gin.H{"question": "capital of France", "category": "geography"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.FallbackReply, decode[replyBody](t, w).Reply)
	assert.Equal(t, int64(1), e.queueCount(t))

	w = e.do(t, http.MethodPost, "/teach", gin.H{"question": "capital of France", "answer": "Paris", "category": "geography"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.TaughtReply, decode[replyBody](t, w).Reply)

	w = e.do(t, http.MethodPost, "/ask", gin.H{"question": "capital of France", "category": "geography"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Paris", decode[replyBody](t, w).Reply)
	assert.Equal(t, int64(1), e.queueCount(t))
}

func TestAsk_Validation(t *testing.T) {
	e := newEnv(t, nil)

	for _, body := range []interface{}{gin.H{}, gin.H{"question": ""}, gin.H{"category": "science"}} {
		w := e.do(t, http.MethodPost, "/ask", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, decode[replyBody](t, w).Error)
	}

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, int64(0), e.queueCount(t))
}

func TestTeach_Validation(t *testing.T) {
	e := newEnv(t, nil)

	for _, body := range []interface{}{
		gin.H{"question": "q"},
		gin.H{"answer": "a"},
		gin.H{"question": "", "answer": "a"},
	} {
		w := e.do(t, http.MethodPost, "/teach", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestAsk_InfrastructureError(t *testing.T) {
	e := newEnv(t, nil)
	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := e.do(t, http.MethodPost, "/ask", gin.H{"question": "anything"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode[replyBody](t, w).Error)
}

func TestAsk_GeneratorReplacesFallback(t *testing.T) {
	gen := &stubGenerator{reply: "Probablement Paris."}
	e := newEnv(t, gen)

	w := e.do(t, http.MethodPost, "/ask", gin.H{"question": "capital of France"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Probablement Paris.", decode[replyBody](t, w).Reply)
	assert.Equal(t, int64(1), e.queueCount(t), "miss is still queued")

	// 命中时不调用生成器
	e.do(t, http.MethodPost, "/teach", gin.H{"question": "capital of France", "answer": "Paris"})
	w = e.do(t, http.MethodPost, "/ask", gin.H{"question": "capital of France"})
	assert.Equal(t, "Paris", decode[replyBody](t, w).Reply)
	assert.Equal(t, 1, gen.calls)
}

func TestAsk_GeneratorFailureUsesFallback(t *testing.T) {
	e := newEnv(t, &stubGenerator{err: errors.New("quota exceeded")})

	w := e.do(t, http.MethodPost, "/ask", gin.H{"question": "unknown"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.FallbackReply, decode[replyBody](t, w).Reply)
}

func TestAdmin_ListAndDeletePending(t *testing.T) {
	e := newEnv(t, nil)
	for _, q := range []string{"first", "second"} {
		e.do(t, http.MethodPost, "/ask", gin.H{"question": q})
	}

	w := e.do(t, http.MethodGet, "/admin/questions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[envelope[[]map[string]interface{}]](t, w)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "second", list.Data[0]["question"])
	assert.Contains(t, list.Data[0], "created_at")
	assert.NotContains(t, list.Data[0], "status")

	id := int(list.Data[1]["id"].(float64))

	w = e.do(t, http.MethodDelete, "/admin/questions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, "/admin/questions/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int64(2), e.queueCount(t))

	w = e.do(t, http.MethodDelete, "/admin/questions/"+jsonNumber(id), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Question deleted", decode[envelope[interface{}]](t, w).Message)
	assert.Equal(t, int64(1), e.queueCount(t))
}

func TestAdmin_ListKnowledge(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodPost, "/teach", gin.H{"question": "lion", "answer": "félin", "category": "animaux"})

	w := e.do(t, http.MethodGet, "/admin/knowledge/animals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[envelope[knowledgeListing]](t, w)
	assert.Equal(t, "animals", body.Data.Category)
	assert.True(t, body.Data.Known)
	assert.Equal(t, "animaux", body.Data.Table)
	require.Len(t, body.Data.Entries, 1)
	assert.Equal(t, "félin", body.Data.Entries[0].Answer)

	w = e.do(t, http.MethodGet, "/admin/knowledge/cuisine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fallback := decode[envelope[knowledgeListing]](t, w)
	assert.False(t, fallback.Data.Known)
	assert.Equal(t, "general", fallback.Data.Category)
	assert.Equal(t, "knowledge", fallback.Data.Table)
}

type knowledgeListing struct {
	Category string                 `json:"category"`
	Known    bool                   `json:"known"`
	Table    string                 `json:"table"`
	Entries  []model.KnowledgeEntry `json:"entries"`
}

func TestQuestionTooLong(t *testing.T) {
	e := newEnv(t, nil)
	tooLong := strings.Repeat("q", model.MaxQuestionLength+1)

	w := e.do(t, http.MethodPost, "/ask", gin.H{"question": tooLong})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.ErrQuestionTooLong.Error(), decode[replyBody](t, w).Error)

	w = e.do(t, http.MethodPost, "/teach", gin.H{"question": tooLong, "answer": "a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), e.queueCount(t))

	longest := strings.Repeat("q", model.MaxQuestionLength)
	w = e.do(t, http.MethodPost, "/ask", gin.H{"question": longest})
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/teach", gin.H{"question": longest, "answer": "a"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/ask", gin.H{"question": longest})
	assert.Equal(t, "a", decode[replyBody](t, w).Reply)
}

func TestAdmin_ExportDisabled(t *testing.T) {
	e := newEnv(t, nil)
	w := e.do(t, http.MethodPost, "/admin/knowledge/general/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdmin_Stats(t *testing.T) {
	e := newEnv(t, nil)
	w := e.do(t, http.MethodGet, "/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[envelope[map[string]map[string]int64]](t, w)
	assert.Contains(t, stats.Data, "general")
	assert.Contains(t, stats.Data, "sports")
}

func TestKeepAlive(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/keepalive/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	started := decode[envelope[keepalive.Status]](t, w)
	assert.Equal(t, "Keep-alive started", started.Message)
	assert.True(t, started.Data.Running)

	w = e.do(t, http.MethodPost, "/keepalive/start", nil)
	assert.Equal(t, "Keep-alive already running", decode[envelope[keepalive.Status]](t, w).Message)

	w = e.do(t, http.MethodGet, "/keepalive/status", nil)
	assert.True(t, decode[envelope[keepalive.Status]](t, w).Data.Running)

	w = e.do(t, http.MethodPost, "/keepalive/stop", nil)
	stopped := decode[envelope[keepalive.Status]](t, w)
	assert.Equal(t, "Keep-alive stopped", stopped.Message)
	assert.False(t, stopped.Data.Running)

	w = e.do(t, http.MethodPost, "/keepalive/stop", nil)
	assert.Equal(t, "Keep-alive not running", decode[envelope[keepalive.Status]](t, w).Message)
}

func TestAskSocket(t *testing.T) {
	e := newEnv(t, nil)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/ask", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var reply replyBody
	require.NoError(t, conn.WriteJSON(gin.H{"question": "2+2", "category": "science"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, service.FallbackReply, reply.Reply)

	e.do(t, http.MethodPost, "/teach", gin.H{"question": "2+2", "answer": "4", "category": "science"})

	reply = replyBody{}
	require.NoError(t, conn.WriteJSON(gin.H{"question": "2+2", "category": "sciences"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "4", reply.Reply)

	reply = replyBody{}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "invalid frame", reply.Error)

	reply = replyBody{}
	require.NoError(t, conn.WriteJSON(gin.H{"category": "science"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "question is required", reply.Error)

	reply = replyBody{}
	require.NoError(t, conn.WriteJSON(gin.H{"question": strings.Repeat("q", model.MaxQuestionLength+1)}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, service.ErrQuestionTooLong.Error(), reply.Error)
}

func jsonNumber(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := true
	h := handler.NewHealthHandler(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("db down")
	})
	r := gin.New()
	r.GET("/healthz", h.Check)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	healthy = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
