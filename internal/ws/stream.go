package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/exchange/ordercalc/internal/order"
	"github.com/exchange/ordercalc/pkg/logger"
	"github.com/gorilla/websocket"
)

// Feed provides state updates of a session.
type Feed interface {
	Subscribe(sessionID string) (<-chan order.State, func(), error)
}

// StreamConfig websocket 配置
type StreamConfig struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

// Streamer 将会话状态推送给 websocket 客户端
type Streamer struct {
	feed     Feed
	cfg      StreamConfig
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// NewStreamer 创建推送服务
func NewStreamer(feed Feed, cfg *StreamConfig, log *logger.Logger) *Streamer {
	c := StreamConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if cfg != nil {
		if cfg.AllowedOrigins != nil {
			c.AllowedOrigins = cfg.AllowedOrigins
		}
		if cfg.PingInterval > 0 {
			c.PingInterval = cfg.PingInterval
		}
		if cfg.WriteTimeout > 0 {
			c.WriteTimeout = cfg.WriteTimeout
		}
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Streamer{
		feed:   feed,
		cfg:    c,
		logger: log,
		conns:  make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return allowOrigin(r, s.cfg.AllowedOrigins)
		},
	}
	return s
}

// Serve 订阅会话并升级连接，调用方已确认会话存在
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, sessionID string) error {
	updates, cancel, err := s.feed.Subscribe(sessionID)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return nil
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	done := make(chan struct{})
	go s.readPump(conn, done)
	go func() {
		defer func() {
			cancel()
			s.remove(conn)
		}()
		s.writePump(conn, sessionID, updates, done)
	}()
	return nil
}

// readPump 丢弃客户端消息，连接断开时关闭 done
func (s *Streamer) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Debug("websocket read failed")
			}
			return
		}
	}
}

func (s *Streamer) writePump(conn *websocket.Conn, sessionID string, updates <-chan order.State, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case state, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// 会话已删除
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			raw, err := json.Marshal(newStateMessage(sessionID, state))
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Streamer) remove(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// ConnCount 当前连接数
func (s *Streamer) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// CloseAll 关闭全部连接
func (s *Streamer) CloseAll() {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func allowOrigin(r *http.Request, allowed []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients usually don't send Origin.
		return true
	}
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
