package runtime

import (
	"context"

	"github.com/aretw0/inquiry/pkg/domain"
)

func (e *Engine) emitStepEnter(ctx context.Context, ev *domain.StepEvent) {
	if e.hooks.OnStepEnter != nil {
		e.hooks.OnStepEnter(ctx, ev)
	}
}

func (e *Engine) emitStepLeave(ctx context.Context, ev *domain.StepEvent) {
	if e.hooks.OnStepLeave != nil {
		e.hooks.OnStepLeave(ctx, ev)
	}
}

func (e *Engine) emitRoute(ctx context.Context, ev *domain.RouteEvent) {
	if e.hooks.OnRoute != nil {
		e.hooks.OnRoute(ctx, ev)
	}
}

func (e *Engine) emitSuspend(ctx context.Context, ev *domain.StepEvent) {
	if e.hooks.OnSuspend != nil {
		e.hooks.OnSuspend(ctx, ev)
	}
}

func (e *Engine) emitResume(ctx context.Context, ev *domain.StepEvent) {
	if e.hooks.OnResume != nil {
		e.hooks.OnResume(ctx, ev)
	}
}
