package logger

import "context"

type contextKey string

const (
	loggerKey  contextKey = "meshbus.logger"
	nodeIDKey  contextKey = "meshbus.node_id"
	msgTypeKey contextKey = "meshbus.msg_type"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithNodeID records the identity of the local node.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, nodeIDKey, id)
}

func NodeIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(nodeIDKey).(string); ok {
		return id
	}
	return ""
}

// WithMessageType records the type of the message being dispatched.
func WithMessageType(ctx context.Context, msgType string) context.Context {
	return context.WithValue(ctx, msgTypeKey, msgType)
}

func MessageTypeFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(msgTypeKey).(string); ok {
		return t
	}
	return ""
}

// L returns the context logger enriched with node_id and msg_type when
// those are present.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if id := NodeIDFromContext(ctx); id != "" {
		l = l.With("node_id", id)
	}
	if t := MessageTypeFromContext(ctx); t != "" {
		l = l.With("msg_type", t)
	}

	return l
}
