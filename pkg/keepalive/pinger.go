// Package keepalive 周期性地对数据库发起一次轻量查询，保持连接池活跃。
package keepalive

import (
	"context"
	"mangrat-go/pkg/log"
	"sync"
	"time"
)

// PingFunc 执行一次存活检查。
type PingFunc func(ctx context.Context) error

// Status 是 pinger 当前状态的快照。
type Status struct {
	Running    bool   `json:"running"`
	Interval   string `json:"interval"`
	Pings      int64  `json:"pings"`
	LastPingAt string `json:"lastPingAt,omitempty"`
	LastError  string `json:"lastError,omitempty"`
}

// Pinger 是由进程持有的后台任务，Start/Stop 都是幂等的。
type Pinger struct {
	ping     PingFunc
	interval time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	pings    int64
	lastPing time.Time
	lastErr  error
}

// NewPinger 创建一个尚未启动的 Pinger。
func NewPinger(ping PingFunc, interval time.Duration) *Pinger {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Pinger{ping: ping, interval: interval}
}

// Start 启动后台循环。已在运行时返回 false。
func (p *Pinger) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	log.Infof("keep-alive 已启动, interval=%s", p.interval)
	return true
}

// Stop 停止后台循环并等待其退出。未运行时返回 false。
func (p *Pinger) Stop() bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	log.Info("keep-alive 已停止")
	return true
}

// Status 返回当前状态。
func (p *Pinger) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		Running:  p.cancel != nil,
		Interval: p.interval.String(),
		Pings:    p.pings,
	}
	if !p.lastPing.IsZero() {
		s.LastPingAt = p.lastPing.Format(time.RFC3339)
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

func (p *Pinger) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pingOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pingOnce(ctx)
		}
	}
}

func (p *Pinger) pingOnce(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := p.ping(pingCtx)
	if err != nil && ctx.Err() != nil {
		// 停止过程中被取消，不计入
		return
	}

	p.mu.Lock()
	p.pings++
	p.lastPing = time.Now()
	p.lastErr = err
	p.mu.Unlock()

	if err != nil {
		log.Warnf("keep-alive ping 失败: %v", err)
	}
}
