// Package logger zerolog 日志封装
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

func init() {
	zerolog.TimestampFieldName = "timestamp"
}

// Logger 结构化日志，派生方法均返回新实例
type Logger struct {
	zl zerolog.Logger
}

// New 创建日志，w 为空时写 stdout
func New(service string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{zl: zerolog.New(w).With().Timestamp().Str("service", service).Logger()}
}

// Nop 丢弃所有输出，测试和未注入日志的组件使用
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithLevel 按名称设置最低级别（debug/info/warn/error），无法识别时保持不变
func (l *Logger) WithLevel(level string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return l
	}
	return &Logger{zl: l.zl.Level(lvl)}
}

// WithContext 附加请求 ID 与当前 span 的 trace/span id，缺失的字段不输出
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	c := l.zl.With()
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		c = c.Str("requestID", reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		c = c.Str("traceID", sc.TraceID().String()).Str("spanID", sc.SpanID().String())
	}
	return &Logger{zl: c.Logger()}
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// Debugf 等带字段版本，fields 可为空
func (l *Logger) Debugf(msg string, fields map[string]interface{}) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Infof(msg string, fields map[string]interface{}) {
	emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warnf(msg string, fields map[string]interface{}) {
	emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Errorf(msg string, fields map[string]interface{}) {
	emit(l.zl.Error(), msg, fields)
}

func emit(ev *zerolog.Event, msg string, fields map[string]interface{}) {
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

// WithError 添加错误字段
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithField 添加单个字段
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithSession 绑定会话与账户，便于按会话检索一次下单过程
func (l *Logger) WithSession(sessionID, account string) *Logger {
	return &Logger{zl: l.zl.With().Str("session", sessionID).Str("account", account).Logger()}
}

// ContextWithRequestID 写入请求 ID，空值不写入
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext 读取请求 ID
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
