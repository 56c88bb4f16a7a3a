package authpipe

import (
	"io"

	"github.com/MrEthical07/authpipe/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is a session lifecycle record. It never carries credentials.
type AuditEvent = audit.Event

// AuditSink receives audit events from a background goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink logs each event at info level, or warn when it failed.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
