package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"flowbuilder/internal/logger"
	"flowbuilder/internal/metrics"
	"flowbuilder/internal/workflow/executor"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AllWorkflows 订阅所有工作流的事件
const AllWorkflows = "*"

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

type envelope struct {
	workflowID string
	payload    []byte
}

// RunEventHub 把运行事件推送给 WebSocket 订阅方
//
// OnRunEvent 只做非阻塞入队，序列化、回放存储与推送都在 Run 的循环里完成；
// 推送缓冲满的连接会丢弃该条事件。
type RunEventHub struct {
	mu                sync.RWMutex
	subs              map[string]map[*subscriber]struct{}
	events            chan envelope
	backlog           EventBacklog
	bufferSize        int
	keepAliveInterval time.Duration
	logger            *zap.Logger
}

// HubOption 配置 hub
type HubOption func(*RunEventHub)

// WithBacklog 指定事件回放存储，nil 表示不回放
func WithBacklog(store EventBacklog) HubOption {
	return func(h *RunEventHub) { h.backlog = store }
}

// WithKeepAliveInterval 设置心跳间隔
func WithKeepAliveInterval(interval time.Duration) HubOption {
	return func(h *RunEventHub) { h.keepAliveInterval = interval }
}

// WithBufferSize 设置每个连接的发送缓冲
func WithBufferSize(n int) HubOption {
	return func(h *RunEventHub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithHubLogger 设置日志器
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *RunEventHub) { h.logger = l }
}

// NewRunEventHub 创建 Hub
func NewRunEventHub(opts ...HubOption) *RunEventHub {
	hub := &RunEventHub{
		subs:              make(map[string]map[*subscriber]struct{}),
		events:            make(chan envelope, 1024),
		backlog:           NewMemoryBacklog(50),
		bufferSize:        64,
		keepAliveInterval: 30 * time.Second,
		logger:            logger.Get(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(hub)
		}
	}
	return hub
}

// OnRunEvent 实现 executor.Observer
func (h *RunEventHub) OnRunEvent(event executor.RunEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("序列化运行事件失败", zap.String("type", event.Type), zap.Error(err))
		return
	}
	select {
	case h.events <- envelope{workflowID: event.WorkflowID, payload: data}:
	default:
		h.logger.Warn("运行事件队列已满，丢弃事件",
			zap.String("workflow_id", event.WorkflowID),
			zap.String("run_id", event.RunID),
			zap.String("type", event.Type))
	}
}

// Run 分发事件直到 ctx 结束
func (h *RunEventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case env := <-h.events:
			if h.backlog != nil {
				if err := h.backlog.Append(ctx, env.workflowID, env.payload); err != nil {
					h.logger.Debug("保存运行事件失败", zap.Error(err))
				}
			}
			h.broadcast(env)
		}
	}
}

func (h *RunEventHub) broadcast(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range []string{env.workflowID, AllWorkflows} {
		for sub := range h.subs[key] {
			select {
			case sub.send <- env.payload:
			default:
				h.logger.Debug("订阅方处理过慢，丢弃事件", zap.String("workflow_id", env.workflowID))
			}
		}
	}
}

// Serve 接管一个已升级的连接，阻塞到连接关闭
func (h *RunEventHub) Serve(ctx context.Context, workflowID string, conn *websocket.Conn) {
	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, h.bufferSize),
		done: make(chan struct{}),
	}
	h.replay(ctx, workflowID, sub)
	h.register(workflowID, sub)
	defer func() {
		h.unregister(workflowID, sub)
		_ = conn.Close()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(sub)
	}()

	// 客户端不发送业务消息，读循环只用于感知断开
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(sub.done)
	<-writerDone
}

// ConnectedCount 返回订阅指定工作流的连接数
func (h *RunEventHub) ConnectedCount(workflowID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[workflowID])
}

func (h *RunEventHub) register(workflowID string, sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[workflowID]; !ok {
		h.subs[workflowID] = make(map[*subscriber]struct{})
	}
	h.subs[workflowID][sub] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

func (h *RunEventHub) unregister(workflowID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subs[workflowID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; ok {
		delete(subs, sub)
		metrics.WSConnections.Dec()
	}
	if len(subs) == 0 {
		delete(h.subs, workflowID)
	}
}

func (h *RunEventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.subs {
		for sub := range subs {
			_ = sub.conn.Close()
		}
	}
}

func (h *RunEventHub) replay(ctx context.Context, workflowID string, sub *subscriber) {
	if h.backlog == nil || workflowID == AllWorkflows {
		return
	}
	messages, err := h.backlog.Recent(ctx, workflowID)
	if err != nil {
		h.logger.Warn("运行事件回放失败", zap.String("workflow_id", workflowID), zap.Error(err))
		return
	}
	for _, msg := range messages {
		select {
		case sub.send <- msg:
		default:
			return
		}
	}
}

func (h *RunEventHub) writeLoop(sub *subscriber) {
	var tick <-chan time.Time
	if h.keepAliveInterval > 0 {
		ticker := time.NewTicker(h.keepAliveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = sub.conn.Close()
				return
			}
		case <-tick:
			if err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				_ = sub.conn.Close()
				return
			}
		}
	}
}
