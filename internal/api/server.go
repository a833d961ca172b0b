// Package api 下单会话 HTTP 接口
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/exchange/ordercalc/internal/order"
	"github.com/exchange/ordercalc/internal/session"
	apperrors "github.com/exchange/ordercalc/pkg/errors"
	"github.com/exchange/ordercalc/pkg/logger"
	"github.com/exchange/ordercalc/pkg/tracing"
	"github.com/gin-gonic/gin"
)

// Sessions 会话操作
type Sessions interface {
	Create(ctx context.Context, account, pair string) (string, order.State, error)
	Get(ctx context.Context, id string) (order.State, error)
	Dispatch(ctx context.Context, id string, a order.Action) (order.State, error)
	Reset(ctx context.Context, id string) (order.State, error)
	Delete(id string) error
}

// Stream websocket 推送
type Stream interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string) error
}

// Config 服务依赖，Stream 和 Metrics 可为空
type Config struct {
	Sessions Sessions
	Stream   Stream
	Metrics  http.Handler
	Logger   *logger.Logger
}

// Server HTTP 服务
type Server struct {
	sessions Sessions
	stream   Stream
	logger   *logger.Logger
	engine   *gin.Engine
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Account string `json:"account"`
	Pair    string `json:"pair" binding:"required"`
}

// SessionResponse 会话状态响应
type SessionResponse struct {
	SessionID string     `json:"sessionId"`
	State     order.View `json:"state"`
}

// NewServer 创建 HTTP 服务并注册路由
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		sessions: cfg.Sessions,
		stream:   cfg.Stream,
		logger:   log,
		engine:   gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestID(), tracing.GinMiddleware(), s.requestLogger())

	s.engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if cfg.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := s.engine.Group("/v1/sessions")
	v1.POST("", s.createSession)
	v1.GET("/:id", s.getSession)
	v1.POST("/:id/actions", s.dispatchAction)
	v1.POST("/:id/reset", s.resetSession)
	v1.DELETE("/:id", s.deleteSession)
	if s.stream != nil {
		v1.GET("/:id/stream", s.streamSession)
	}
	return s
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperrors.Newf(apperrors.CodeInvalidParam, "invalid request: %v", err))
		return
	}
	id, state, err := s.sessions.Create(c.Request.Context(), req.Account, req.Pair)
	if err != nil {
		s.writeError(c, mapError(err))
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{SessionID: id, State: order.NewView(state)})
}

func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	state, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionID: id, State: order.NewView(state)})
}

func (s *Server) dispatchAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperrors.Newf(apperrors.CodeInvalidParam, "invalid request: %v", err))
		return
	}
	a, appErr := DecodeAction(req)
	if appErr != nil {
		s.writeError(c, appErr)
		return
	}

	id := c.Param("id")
	state, err := s.sessions.Dispatch(c.Request.Context(), id, a)
	if err != nil {
		s.writeError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionID: id, State: order.NewView(state)})
}

func (s *Server) resetSession(c *gin.Context) {
	id := c.Param("id")
	state, err := s.sessions.Reset(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionID: id, State: order.NewView(state)})
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		s.writeError(c, mapError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) streamSession(c *gin.Context) {
	if err := s.stream.Serve(c.Writer, c.Request, c.Param("id")); err != nil {
		s.writeError(c, mapError(err))
	}
}

func (s *Server) writeError(c *gin.Context, err *apperrors.Error) {
	if reqID := c.GetString(requestIDKey); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	c.AbortWithStatusJSON(err.HTTPStatus(), err)
}

// mapError 会话错误映射为接口错误码
func mapError(err error) *apperrors.Error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return apperrors.ErrSessionNotFound
	case errors.Is(err, session.ErrInvalidPair):
		return apperrors.New(apperrors.CodeInvalidPair, err.Error())
	case errors.Is(err, session.ErrSnapshotUnavailable):
		return apperrors.ErrSnapshotUnavailable
	default:
		return apperrors.ErrInternal
	}
}
