package training

import (
	"context"

	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// Event types published by the trainer.
const (
	EventRunStarted     = "training.run.started"
	EventEpochCompleted = "training.epoch.completed"
	EventRunFinished    = "training.run.finished"
)

// EventSource identifies the trainer in event envelopes.
const EventSource = "drugex-trainer"

// RunEvent is the payload of run.started and run.finished.
type RunEvent struct {
	Run run.Run `json:"run"`
}

// EpochEvent is the payload of epoch.completed.  It repeats the run so a
// consumer can create it when the epoch overtakes the start event.
type EpochEvent struct {
	Run     run.Run      `json:"run"`
	Epoch   run.Epoch    `json:"epoch"`
	Samples []run.Sample `json:"samples,omitempty"`
}

// EventPublisher is the part of the kafka producer the monitor needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, env *kafka.EventEnvelope) error
}

// EventRecorder counts publish outcomes per topic.
type EventRecorder interface {
	RecordEvent(topic string, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// EventMonitor
// ─────────────────────────────────────────────────────────────────────────────

// EventMonitor publishes run lifecycle events.  Epochs go to epochTopic,
// start and finish to runTopic.
type EventMonitor struct {
	publisher  EventPublisher
	epochTopic string
	runTopic   string
	recorder   EventRecorder
}

// NewEventMonitor returns a monitor publishing through p.  recorder may be
// nil.
func NewEventMonitor(p EventPublisher, epochTopic, runTopic string, recorder EventRecorder) *EventMonitor {
	return &EventMonitor{publisher: p, epochTopic: epochTopic, runTopic: runTopic, recorder: recorder}
}

func (m *EventMonitor) Name() string { return "events" }

func (m *EventMonitor) OnRunStart(ctx context.Context, r *run.Run) error {
	return m.publish(ctx, m.runTopic, EventRunStarted, r.ID, RunEvent{Run: *r})
}

func (m *EventMonitor) OnEpoch(ctx context.Context, rep *EpochReport) error {
	return m.publish(ctx, m.epochTopic, EventEpochCompleted, rep.Run.ID, EpochEvent{
		Run:     *rep.Run,
		Epoch:   rep.Epoch,
		Samples: rep.Samples,
	})
}

func (m *EventMonitor) OnRunEnd(ctx context.Context, r *run.Run) error {
	return m.publish(ctx, m.runTopic, EventRunFinished, r.ID, RunEvent{Run: *r})
}

func (m *EventMonitor) publish(ctx context.Context, topic, eventType, runID string, payload interface{}) error {
	env, err := kafka.NewEventEnvelope(eventType, EventSource, runID, payload)
	if err != nil {
		return err
	}
	err = m.publisher.PublishEvent(ctx, topic, env)
	if m.recorder != nil {
		m.recorder.RecordEvent(topic, err)
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Projector
// ─────────────────────────────────────────────────────────────────────────────

// Projector writes consumed training events into the run stores.  Every
// write is idempotent except sample inserts, so a redelivered epoch can
// duplicate its samples.
type Projector struct {
	runs    run.RunRepository
	samples run.SampleRepository
	logger  logging.Logger
}

// NewProjector returns a projector.  samples may be nil to skip samples.
func NewProjector(runs run.RunRepository, samples run.SampleRepository, logger logging.Logger) *Projector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Projector{runs: runs, samples: samples, logger: logger.Named("projector")}
}

// Handle is a kafka.MessageHandler.
func (p *Projector) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	ctx = logging.ContextWithFields(ctx,
		logging.String("event_type", env.EventType),
		logging.String("run_id", env.RunID),
	)

	switch env.EventType {
	case EventRunStarted:
		var ev RunEvent
		if err := env.DecodePayload(&ev); err != nil {
			return err
		}
		return p.runs.CreateRun(ctx, &ev.Run)

	case EventEpochCompleted:
		var ev EpochEvent
		if err := env.DecodePayload(&ev); err != nil {
			return err
		}
		return p.epoch(ctx, &ev)

	case EventRunFinished:
		var ev RunEvent
		if err := env.DecodePayload(&ev); err != nil {
			return err
		}
		return p.finish(ctx, &ev.Run)

	default:
		p.logger.WithContext(ctx).Debug("Ignoring event")
		return nil
	}
}

func (p *Projector) epoch(ctx context.Context, ev *EpochEvent) error {
	r := ev.Run
	r.Status = run.StatusRunning
	r.FinishedAt = nil
	if err := p.runs.CreateRun(ctx, &r); err != nil {
		return err
	}
	if err := p.runs.RecordEpoch(ctx, &ev.Epoch); err != nil {
		return err
	}
	if p.samples != nil && len(ev.Samples) > 0 {
		if _, err := p.samples.SaveSamples(ctx, ev.Samples); err != nil {
			return err
		}
	}
	p.logger.WithContext(ctx).Debug("Epoch projected", logging.Int("epoch", ev.Epoch.Epoch))
	return nil
}

func (p *Projector) finish(ctx context.Context, r *run.Run) error {
	if !r.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeValidation, "run finished with status %q", r.Status)
	}
	if err := p.runs.CreateRun(ctx, r); err != nil {
		return err
	}
	if err := p.runs.FinishRun(ctx, r); err != nil {
		return err
	}
	p.logger.WithContext(ctx).Info("Run projected", logging.String("status", string(r.Status)))
	return nil
}

//Personal.AI order the ending
