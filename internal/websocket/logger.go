package websocket

import (
	"support-chat/pkg/logger"

	"go.uber.org/zap"
)

// Logger tags every websocket log line with the event, user and client.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(base *logger.Logger) *Logger {
	if base == nil {
		base = logger.GetGlobalLogger()
	}
	return &Logger{logger: base.Logger.With(zap.String("component", "websocket"))}
}

func (l *Logger) Info(event string, c *Client, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, c, fields)...)
}

func (l *Logger) Warn(event string, c *Client, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, c, fields)...)
}

func (l *Logger) Error(event string, c *Client, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, c, append(fields, zap.Error(err)))...)
}

func (l *Logger) fields(event string, c *Client, extra []zap.Field) []zap.Field {
	fields := make([]zap.Field, 0, len(extra)+3)
	fields = append(fields, zap.String("event", event))
	if c != nil {
		fields = append(fields,
			zap.String("user_id", c.UserID()),
			zap.String("client_id", c.ID))
	}
	return append(fields, extra...)
}
