package logging

import (
	"context"
	"log/slog"

	"github.com/pdf360/planview/internal/workspace"
)

// ContextProvider returns attributes computed at log time.
type ContextProvider func() []slog.Attr

// WorkspaceProvider reports the open project and plan with every record.
func WorkspaceProvider(wc *workspace.Context) ContextProvider {
	return func() []slog.Attr {
		project, plan := wc.GetProject(), wc.GetPlan()
		if plan.ID == 0 {
			return nil
		}
		return []slog.Attr{
			slog.Group("workspace",
				slog.Uint64("projectId", uint64(project.ID)),
				slog.Uint64("planId", uint64(plan.ID)),
				slog.String("plan", plan.Title),
			),
		}
	}
}

type attrsKey struct{}

// WithAttrs returns a context whose records logged through a ContextHandler carry attrs.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(append(merged, prev...), attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// ContextHandler adds the provider's attributes and those stored with WithAttrs to each record.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	if ctx != nil {
		if attrs, ok := ctx.Value(attrsKey{}).([]slog.Attr); ok {
			r.AddAttrs(attrs...)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}
