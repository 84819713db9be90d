package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/inquiry/pkg/domain"
)

// LogHooks writes one structured line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("step_enter", "session", e.SessionID, "step", e.Step, "step_count", e.StepCount)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.Warn("step_leave", "session", e.SessionID, "step", e.Step, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.Info("step_leave", "session", e.SessionID, "step", e.Step, "duration", e.Duration)
		},
		OnRoute: func(ctx context.Context, e *domain.RouteEvent) {
			logger.Debug("route", "session", e.SessionID, "from", e.From, "next", e.To, "emergency", e.Emergency, "reason", e.Reason)
		},
		OnSuspend: func(ctx context.Context, e *domain.StepEvent) {
			logger.Info("suspend", "session", e.SessionID, "step", e.Step)
		},
		OnResume: func(ctx context.Context, e *domain.StepEvent) {
			logger.Info("resume", "session", e.SessionID, "step", e.Step)
		},
	}
}

// Combine runs every hook set in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var enter, leave, suspend, resume []func(context.Context, *domain.StepEvent)
	var route []func(context.Context, *domain.RouteEvent)
	for _, h := range sets {
		if h.OnStepEnter != nil {
			enter = append(enter, h.OnStepEnter)
		}
		if h.OnStepLeave != nil {
			leave = append(leave, h.OnStepLeave)
		}
		if h.OnRoute != nil {
			route = append(route, h.OnRoute)
		}
		if h.OnSuspend != nil {
			suspend = append(suspend, h.OnSuspend)
		}
		if h.OnResume != nil {
			resume = append(resume, h.OnResume)
		}
	}
	return domain.LifecycleHooks{
		OnStepEnter: fanOut(enter),
		OnStepLeave: fanOut(leave),
		OnRoute:     fanOut(route),
		OnSuspend:   fanOut(suspend),
		OnResume:    fanOut(resume),
	}
}

func fanOut[E any](fns []func(context.Context, E)) func(context.Context, E) {
	if len(fns) == 0 {
		return nil
	}
	return func(ctx context.Context, e E) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}
