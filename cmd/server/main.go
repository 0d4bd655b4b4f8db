// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"mangrat-go/internal/config"
	"mangrat-go/internal/handler"
	"mangrat-go/internal/middleware"
	"mangrat-go/internal/repository"
	"mangrat-go/internal/seed"
	"mangrat-go/internal/service"
	"mangrat-go/pkg/database"
	"mangrat-go/pkg/kafka"
	"mangrat-go/pkg/keepalive"
	"mangrat-go/pkg/llm"
	"mangrat-go/pkg/log"
	"mangrat-go/pkg/storage"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis，并确保所有分区表存在
	database.InitMySQL(cfg.Database.MySQL)
	if err := repository.Migrate(database.DB); err != nil {
		log.Fatal("数据库表初始化失败", err)
	}
	database.InitRedis(cfg.Database.Redis)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 4. 可选组件：Kafka、MinIO、Gemini
	var publisher service.EventPublisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
	}

	var objectStore service.ObjectStore
	if cfg.MinIO.Enabled {
		store, err := storage.NewMinIOStore(rootCtx, cfg.MinIO)
		if err != nil {
			log.Errorf("MinIO 初始化失败，导出功能不可用: %v", err)
		} else {
			objectStore = store
		}
	}

	var generator handler.AnswerGenerator
	var llmClient llm.Client
	if cfg.Gemini.APIKey != "" {
		client, err := llm.NewGeminiClient(rootCtx, cfg.Gemini)
		if err != nil {
			log.Errorf("Gemini 初始化失败，未命中时使用默认回复: %v", err)
		} else {
			llmClient = client
			generator = client
			log.Infof("Gemini 生成式兜底已启用, model=%s", cfg.Gemini.Model)
		}
	}

	// 5. 初始化 Repository 与 Service
	knowledgeRepo := repository.NewKnowledgeRepository(database.DB)
	queueRepo := repository.NewLearnQueueRepository(database.DB)
	statsRepo := repository.NewStatsRepository(database.RDB)

	knowledgeService := service.NewKnowledgeService(knowledgeRepo, queueRepo, statsRepo, publisher)
	exportService := service.NewExportService(knowledgeService, objectStore)

	// 6. 后台任务：Kafka teach 消费者、种子导入、数据库保活
	var wg sync.WaitGroup
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, service.NewTeachTaskProcessor(knowledgeService), database.RDB)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(rootCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := seed.NewLoader(knowledgeService, knowledgeRepo).LoadDir(rootCtx, cfg.Seed.Dir); err != nil {
			log.Warnf("种子数据导入失败: %v", err)
		}
	}()

	pingDB := func(ctx context.Context) error { return database.Ping(ctx, database.DB) }
	interval, err := time.ParseDuration(cfg.KeepAlive.Interval)
	if err != nil {
		log.Warnf("无效的 keepalive.interval '%s'，使用默认值: %v", cfg.KeepAlive.Interval, err)
	}
	pinger := keepalive.NewPinger(pingDB, interval)
	if cfg.KeepAlive.AutoStart {
		pinger.Start()
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	knowledgeHandler := handler.NewKnowledgeHandler(knowledgeService, generator)
	adminHandler := handler.NewAdminHandler(knowledgeService, exportService)
	keepAliveHandler := handler.NewKeepAliveHandler(pinger)

	r.POST("/ask", knowledgeHandler.Ask)
	r.POST("/teach", knowledgeHandler.Teach)
	r.GET("/ws/ask", handler.NewAskSocketHandler(knowledgeHandler).Handle)
	r.GET("/healthz", handler.NewHealthHandler(pingDB).Check)

	admin := r.Group("/admin")
	{
		admin.GET("/questions", adminHandler.ListPendingQuestions)
		admin.DELETE("/questions/:id", adminHandler.DeletePendingQuestion)
		admin.GET("/knowledge/:category", adminHandler.ListKnowledge)
		admin.POST("/knowledge/:category/export", adminHandler.ExportKnowledge)
		admin.GET("/stats", adminHandler.GetStats)
	}

	keepAlive := r.Group("/keepalive")
	{
		keepAlive.POST("/start", keepAliveHandler.Start)
		keepAlive.POST("/stop", keepAliveHandler.Stop)
		keepAlive.GET("/status", keepAliveHandler.Status)
	}

	// 其余路径交给静态客户端
	if cfg.Server.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.Server.StaticDir))))
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止后台任务，再关闭它们依赖的客户端
	pinger.Stop()
	cancelRoot()
	wg.Wait()

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	if llmClient != nil {
		if err := llmClient.Close(); err != nil {
			log.Errorf("关闭 Gemini 客户端失败: %v", err)
		}
	}
	if database.RDB != nil {
		_ = database.RDB.Close()
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("服务已优雅关闭")
}
