package sessionguard

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
)

// AuditEvent is one security-relevant engine transition.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events into a channel, mostly for tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes newline-delimited JSON.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes events to a structured logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink returns a sink that buffers up to buffer events on a channel.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink logs events through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
