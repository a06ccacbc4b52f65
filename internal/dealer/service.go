// Package dealer exposes the deal builder, persisted deals and settlement
// reports over HTTP.
package dealer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lumina-dealer/internal/cache"
	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/ledger"
	"github.com/noah-isme/lumina-dealer/internal/lock"
	"github.com/noah-isme/lumina-dealer/internal/report"
	"github.com/noah-isme/lumina-dealer/internal/store"
)

// Store is the persistence used by the service.
type Store interface {
	InsertDeal(ctx context.Context, sub deal.Submission, actor string) (deal.Record, error)
	UpdateDeal(ctx context.Context, id uuid.UUID, sub deal.Submission, actor string) (deal.Record, error)
	GetDeal(ctx context.Context, id uuid.UUID) (deal.Record, error)
	ListDeals(ctx context.Context, limit, offset int) ([]deal.Record, int, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (deal.Vehicle, error)
	ListVehicles(ctx context.Context, status string, limit, offset int) ([]deal.Vehicle, error)
	GetSalesRep(ctx context.Context, id uuid.UUID) (deal.SalesRep, error)
	ListSalesReps(ctx context.Context) ([]deal.SalesRep, error)
}

// Locker serialises writes to one deal across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ReportQueue schedules settlement report pre-rendering.
type ReportQueue interface {
	EnqueueSettlementReport(ctx context.Context, dealID uuid.UUID) error
}

// LedgerInvalidator drops cached ledger rows for a vehicle.
type LedgerInvalidator interface {
	Invalidate(ctx context.Context, vehicleID uuid.UUID) error
}

// ServiceConfig wires the service dependencies. Locker, Queue and Reports may
// be nil, which disables locking, pre-rendering and report caching.
type ServiceConfig struct {
	Store  Store
	Ledger *ledger.Fetcher
	// LedgerCache is optional and enables forced ledger refreshes.
	LedgerCache LedgerInvalidator
	Locker      Locker
	LockTTL     time.Duration
	Queue       ReportQueue
	Reports     *cache.Cache
	Renderer    *report.Renderer
	DraftTTL    time.Duration
	Logger      zerolog.Logger
}

// Service implements deal operations.
type Service struct {
	store       Store
	ledger      *ledger.Fetcher
	ledgerCache LedgerInvalidator
	locker      Locker
	lockTTL     time.Duration
	queue       ReportQueue
	reports     *cache.Cache
	renderer    *report.Renderer
	drafts      *Drafts
	logger      zerolog.Logger
}

// NewService validates cfg and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("dealer: store is required")
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = report.NewRenderer(report.Currency{})
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &Service{
		store:       cfg.Store,
		ledger:      cfg.Ledger,
		ledgerCache: cfg.LedgerCache,
		locker:      cfg.Locker,
		lockTTL:     lockTTL,
		queue:       cfg.Queue,
		reports:     cfg.Reports,
		renderer:    renderer,
		drafts:      NewDrafts(cfg.DraftTTL),
		logger:      cfg.Logger,
	}, nil
}

// Drafts exposes the in-memory draft registry.
func (s *Service) Drafts() *Drafts { return s.drafts }

var (
	errDealNotFound     = common.NewAppError("DEAL_NOT_FOUND", "deal not found", http.StatusNotFound, nil)
	errVehicleNotFound  = common.NewAppError("VEHICLE_NOT_FOUND", "vehicle not found", http.StatusNotFound, nil)
	errSalesRepNotFound = common.NewAppError("SALES_REP_NOT_FOUND", "sales rep not found", http.StatusNotFound, nil)
	errDraftNotFound    = common.NewAppError("DRAFT_NOT_FOUND", "deal draft not found or expired", http.StatusNotFound, nil)
	errDealBusy         = common.NewAppError("DEAL_BUSY", "deal is being saved by another request", http.StatusConflict, nil)
)

func notFoundAs(err error, appErr *common.AppError) error {
	if errors.Is(err, store.ErrNotFound) {
		return appErr
	}
	return err
}

func internalError(code, message string, err error) error {
	return common.NewAppError(code, message, http.StatusInternalServerError, err)
}

func validationError(err error) error {
	var verr *deal.ValidationError
	if errors.As(err, &verr) {
		return common.NewAppError("VALIDATION_FAILED", "deal is incomplete", http.StatusUnprocessableEntity, err).
			WithDetails(map[string]any{"fields": verr.Fields})
	}
	return err
}

func lockErr(err error) error {
	if errors.Is(err, lock.ErrBusy) {
		return errDealBusy
	}
	return err
}
