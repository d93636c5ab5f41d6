// Package logs builds the operator logger for introd and the intro CLI.
package logs

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
)

type requestIDKey struct{}

// WithRequestID tags ctx so records logged with it carry request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// Handler adds the request id carried by the context to each record.
type Handler struct {
	slog.Handler
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if id, ok := RequestID(ctx); ok {
		record.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, record)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name)}
}

// New returns a logger writing text or json to w at level, fanned out to any
// extra handlers.
func New(w io.Writer, level slog.Leveler, format string, extra ...slog.Handler) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	var primary slog.Handler
	switch format {
	case "", "text":
		primary = slog.NewTextHandler(w, opts)
	case "json":
		primary = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("logs: unknown format %q", format)
	}
	handlers := append([]slog.Handler{primary}, extra...)
	return slog.New(&Handler{Handler: slogmulti.Fanout(handlers...)}), nil
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
