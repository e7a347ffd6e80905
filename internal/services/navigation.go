package services

import (
	"context"
	"time"
)

// ScheduleNavigation calls navigate with the outcome's redirect once its
// settle delay has passed. Nothing happens if ctx ends or stop is called first.
func ScheduleNavigation(ctx context.Context, outcome *Outcome, navigate func(target string)) (stop func() bool) {
	target := outcome.Redirect
	timer := time.AfterFunc(outcome.SettleDelay, func() {
		if ctx.Err() != nil {
			return
		}
		navigate(target)
	})
	stopWatch := context.AfterFunc(ctx, func() {
		timer.Stop()
	})

	return func() bool {
		stopWatch()
		return timer.Stop()
	}
}

// SettleSeconds is the settle delay for clients that schedule the redirect themselves.
func (o *Outcome) SettleSeconds() int {
	return int(o.SettleDelay / time.Second)
}
