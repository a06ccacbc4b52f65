package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	task *asynq.Task
	opts []asynq.Option
	err  error
}

func (s *stubClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.task, s.opts = task, opts
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "t1"}, nil
}

type stubPrerenderer struct {
	got uuid.UUID
	err error
}

func (s *stubPrerenderer) PrerenderSettlement(_ context.Context, dealID uuid.UUID) error {
	s.got = dealID
	return s.err
}

func TestEnqueueSettlementReport(t *testing.T) {
	client := &stubClient{}
	e := Enqueuer{Client: client, Queue: "reports", Timeout: time.Minute}
	id := uuid.New()

	require.NoError(t, e.EnqueueSettlementReport(context.Background(), id))
	require.Equal(t, TypeSettlementReport, client.task.Type())

	var p SettlementReportPayload
	require.NoError(t, json.Unmarshal(client.task.Payload(), &p))
	require.Equal(t, id, p.DealID)

	var queue string
	for _, o := range client.opts {
		if o.Type() == asynq.QueueOpt {
			queue = o.Value().(string)
		}
	}
	require.Equal(t, "reports", queue)
	require.Len(t, client.opts, 3)
}

func TestEnqueueWithoutClientIsNoop(t *testing.T) {
	require.NoError(t, Enqueuer{}.EnqueueSettlementReport(context.Background(), uuid.New()))
}

func TestEnqueueWrapsClientError(t *testing.T) {
	boom := errors.New("redis down")
	err := Enqueuer{Client: &stubClient{err: boom}}.EnqueueSettlementReport(context.Background(), uuid.New())
	require.ErrorIs(t, err, boom)
}

func TestProcessTaskRendersDeal(t *testing.T) {
	reports := &stubPrerenderer{}
	h := SettlementReportHandler{Reports: reports, Logger: zerolog.Nop()}
	id := uuid.New()
	task, err := NewSettlementReportTask(id)
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Equal(t, id, reports.got)
}

func TestProcessTaskSkipsRetryOnBadPayload(t *testing.T) {
	h := SettlementReportHandler{Reports: &stubPrerenderer{}, Logger: zerolog.Nop()}

	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeSettlementReport, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeSettlementReport, []byte(`{}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessTaskPropagatesRenderError(t *testing.T) {
	boom := errors.New("db down")
	h := SettlementReportHandler{Reports: &stubPrerenderer{err: boom}, Logger: zerolog.Nop()}
	task, err := NewSettlementReportTask(uuid.New())
	require.NoError(t, err)
	require.ErrorIs(t, h.ProcessTask(context.Background(), task), boom)
}
