package chat

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Report summarizes one fan-out: how many sends were attempted and which
// user ids could not be reached. Payload is the rendered frame, reusable
// by the caller (backlog cache, tests) without re-marshaling.
type Report struct {
	Attempted int
	Failed    []int
	Payload   []byte
}

// Engine formats committed messages and fans them out to the live set.
// It never mutates the registry: a failed send is recorded in the report
// and the affected connection is left to its own receive loop's
// disconnect detection.
type Engine struct {
	registry *Registry
	loc      *time.Location
	logger   *zap.Logger
	metrics  *Metrics
}

func NewEngine(registry *Registry, loc *time.Location, metrics *Metrics, logger *zap.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		registry: registry,
		loc:      loc,
		logger:   logger,
		metrics:  metrics,
	}
}

// FormatTime renders a stored UTC instant in the configured display
// zone. A zero instant formats as the empty string, never an error.
func (e *Engine) FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(e.loc).Format("15:04:05")
}

// Frame builds the outbound payload for a message.
func (e *Engine) Frame(msg *Message) Frame {
	return Frame{
		Time:     e.FormatTime(msg.CreatedAt),
		Username: msg.SenderName,
		Message:  msg.Content,
		SenderID: msg.SenderID,
	}
}

// Broadcast attempts one send per live connection, minus the excluded
// handle. Each send is independent: a broken recipient is recorded and
// skipped, delivery to the rest continues.
func (e *Engine) Broadcast(msg *Message, exclude Transport) Report {
	payload, err := json.Marshal(e.Frame(msg))
	if err != nil {
		// Frame is plain strings and ints; this cannot happen in practice.
		e.logger.Error("frame marshal failed", zap.Error(err))
		return Report{}
	}

	report := Report{Payload: payload}
	for _, member := range e.registry.Snapshot() {
		if exclude != nil && member.Conn.ID() == exclude.ID() {
			continue
		}
		report.Attempted++
		if err := member.Conn.Send(payload); err != nil {
			report.Failed = append(report.Failed, member.Identity.ID)
			e.logger.Debug("broadcast send failed",
				zap.Int("user_id", member.Identity.ID),
				zap.Error(err),
			)
		}
	}

	e.metrics.incSends(report.Attempted, len(report.Failed))
	return report
}
