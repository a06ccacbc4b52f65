// Package jobs defines background tasks processed by cmd/worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypeSettlementReport pre-renders the partner settlement for a saved deal.
const TypeSettlementReport = "report:settlement"

// SettlementReportPayload identifies the deal to render.
type SettlementReportPayload struct {
	DealID uuid.UUID `json:"dealId"`
}

// NewSettlementReportTask builds the asynq task for dealID.
func NewSettlementReportTask(dealID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(SettlementReportPayload{DealID: dealID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSettlementReport, payload), nil
}

// TaskEnqueuer is the subset of *asynq.Client used to schedule tasks.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules report tasks on a named queue.
type Enqueuer struct {
	Client   TaskEnqueuer
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

// EnqueueSettlementReport schedules a render of dealID's settlement report.
func (e Enqueuer) EnqueueSettlementReport(ctx context.Context, dealID uuid.UUID) error {
	if e.Client == nil {
		return nil
	}
	task, err := NewSettlementReportTask(dealID)
	if err != nil {
		return fmt.Errorf("build settlement task: %w", err)
	}
	opts := []asynq.Option{asynq.MaxRetry(e.maxRetry())}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.Timeout > 0 {
		opts = append(opts, asynq.Timeout(e.Timeout))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue settlement task: %w", err)
	}
	return nil
}

func (e Enqueuer) maxRetry() int {
	if e.MaxRetry > 0 {
		return e.MaxRetry
	}
	return 5
}

// Prerenderer renders and caches every report format for a deal.
type Prerenderer interface {
	PrerenderSettlement(ctx context.Context, dealID uuid.UUID) error
}

// SettlementReportHandler processes TypeSettlementReport tasks.
type SettlementReportHandler struct {
	Reports Prerenderer
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h SettlementReportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p SettlementReportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode settlement payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.DealID == uuid.Nil {
		return fmt.Errorf("settlement payload missing deal id: %w", asynq.SkipRetry)
	}
	if err := h.Reports.PrerenderSettlement(ctx, p.DealID); err != nil {
		h.Logger.Warn().Err(err).Str("deal_id", p.DealID.String()).Msg("settlement prerender failed")
		return err
	}
	h.Logger.Debug().Str("deal_id", p.DealID.String()).Msg("settlement report cached")
	return nil
}

// NewServeMux registers every task handler.
func NewServeMux(reports SettlementReportHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeSettlementReport, reports)
	return mux
}
