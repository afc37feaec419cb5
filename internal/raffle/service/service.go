package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vrfraffle/internal/oracle"
	"vrfraffle/internal/raffle/metrics"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/sentinel"
	"vrfraffle/pkg/requestcontext"
)

const tracerName = "vrfraffle/internal/raffle/service"

// Service runs every raffle operation inside the store's transaction and
// talks to the randomness coordinator on the raffle's behalf.
type Service struct {
	store       store.Store
	coordinator oracle.Coordinator
	self        common.Address
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service. self is the raffle's consumer address as
// registered with the coordinator.
func New(st store.Store, coordinator oracle.Coordinator, self common.Address, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "store is required")
	}
	if coordinator == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "coordinator is required")
	}
	s := &Service{
		store:       st,
		coordinator: coordinator,
		self:        self,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Address is the consumer address the raffle presents to the coordinator.
func (s *Service) Address() common.Address {
	return s.self
}

// DeployParams are the immutable parameters fixed when the raffle is created.
type DeployParams struct {
	EntranceFee *big.Int
	Interval    time.Duration
	Oracle      models.OracleBinding
}

// Deploy creates the raffle if the store holds none and returns the raffle
// in effect. An existing raffle keeps its original parameters.
func (s *Service) Deploy(ctx context.Context, p DeployParams) (*models.Raffle, error) {
	r, err := models.NewRaffle(p.EntranceFee, p.Interval, p.Oracle, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	current, err := s.store.Initialize(ctx, r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize raffle")
	}
	if current.EntranceFee.Cmp(r.EntranceFee) != 0 || current.Interval != r.Interval || current.Oracle != r.Oracle {
		s.logWarn(ctx, "raffle already deployed with different parameters; keeping stored raffle",
			"entrance_fee", current.EntranceFee.String(),
			"interval", current.Interval.String(),
		)
	}
	s.logAudit(ctx, "raffle_deployed",
		"entrance_fee", current.EntranceFee.String(),
		"interval", current.Interval.String(),
		"coordinator", current.Oracle.Coordinator.Hex(),
		"subscription_id", current.Oracle.SubscriptionID,
	)
	s.setRound(current)
	return current, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// wrapLoadErr translates store read failures.
func wrapLoadErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "raffle has not been deployed")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load raffle")
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) logWarn(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.WarnContext(ctx, msg, attributes...)
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, start)
	}
}

func (s *Service) setRound(r *models.Raffle) {
	if s.metrics != nil && r != nil {
		s.metrics.SetRound(len(r.Players), r.Balance)
	}
}
