// Package dispatch fans domain events out to connected recipients.
//
// Dispatch is fire-and-forget relative to the request that produced the
// event: the feedback mutation has already committed by the time the CRUD
// layer calls Notify, so a dropped notification never corrupts state.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/milanbhuyan7/FeedbackMangement/internal/buffer"
	"github.com/milanbhuyan7/FeedbackMangement/internal/event"
	"github.com/milanbhuyan7/FeedbackMangement/internal/metrics"
	"github.com/milanbhuyan7/FeedbackMangement/internal/registry"
)

// Report summarizes one dispatch for observability. It is not surfaced to
// the caller's HTTP response path synchronously.
type Report struct {
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Buffered  int `json:"buffered"`
}

// Router resolves event targets against the registry and hands events to
// each recipient's outbound path. With a fallback store configured
// (pull-mode deployments), events for unreachable targets are buffered
// instead of dropped; never both.
type Router struct {
	registry *registry.Registry
	fallback *buffer.Store
}

func NewRouter(reg *registry.Registry, fallback *buffer.Store) *Router {
	return &Router{registry: reg, fallback: fallback}
}

// Dispatch delivers ev to each target independently. A missing recipient is
// an expected outcome, not an error; a write failure on one target never
// aborts delivery to the others.
func (r *Router) Dispatch(ctx context.Context, ev event.Event) Report {
	var report Report

	for _, target := range ev.Targets {
		handle, ok := r.registry.Lookup(target)
		if !ok {
			r.miss(&report, target, ev)
			continue
		}

		if err := handle.Deliver(ev.Type, ev.Payload); err != nil {
			// The session tears itself down on write failure; for this
			// dispatch the target simply was not reachable.
			slog.WarnContext(ctx, "Event delivery failed", "user_id", target, "event_type", ev.Type, "error", err)
			report.Skipped++
			metrics.EventsSkippedTotal.Inc()
			continue
		}

		report.Delivered++
		metrics.EventsDeliveredTotal.Inc()
	}

	slog.DebugContext(ctx, "Event dispatched",
		"event_type", ev.Type,
		"targets", len(ev.Targets),
		"delivered", report.Delivered,
		"skipped", report.Skipped,
		"buffered", report.Buffered,
	)
	return report
}

func (r *Router) miss(report *Report, target string, ev event.Event) {
	if r.fallback != nil {
		r.fallback.Push(target, ev.Type, ev.Payload)
		report.Buffered++
		metrics.EventsBufferedTotal.Inc()
		return
	}
	report.Skipped++
	metrics.EventsSkippedTotal.Inc()
}

// Notify is the collaborator-facing entry point used by the CRUD layer after
// a feedback record changes.
func (r *Router) Notify(ctx context.Context, targets []string, t event.Type, payload json.RawMessage) Report {
	return r.Dispatch(ctx, event.New(t, targets, payload))
}

// Broadcast sends an event to every currently connected identity.
func (r *Router) Broadcast(ctx context.Context, t event.Type, payload json.RawMessage) Report {
	return r.Dispatch(ctx, event.New(t, r.registry.ListConnected(), payload))
}

// IsConnected lets callers skip building a payload for an unreachable
// recipient.
func (r *Router) IsConnected(identity string) bool {
	return r.registry.IsConnected(identity)
}
