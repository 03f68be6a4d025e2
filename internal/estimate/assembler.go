package estimate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joelkehle/legalquote/internal/classify"
	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/pricing"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

type ErrorCode string

const (
	CodeValidation    ErrorCode = "validation"
	CodeConfiguration ErrorCode = "configuration"
)

// Error is the single failure surface of Assemble.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Classifier interface {
	Classify(ctx context.Context, req intake.Request, catalog *ratecard.Catalog) classify.Result
}

type Pricer interface {
	Price(domain, service string, urgency intake.Urgency, catalog *ratecard.Catalog, rates *ratecard.RateTable) (pricing.Estimate, error)
}

type Assembler struct {
	classifier Classifier
	pricer     Pricer
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
}

func NewAssembler(classifier Classifier, pricer Pricer, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		classifier: classifier,
		pricer:     pricer,
		logger:     logger,
		tracer:     otel.Tracer("github.com/joelkehle/legalquote/internal/estimate"),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Assemble validates req, classifies it and prices the classification.
func (a *Assembler) Assemble(ctx context.Context, req intake.Request, catalog *ratecard.Catalog, rates *ratecard.RateTable) (Result, error) {
	req, err := req.Normalize()
	if err != nil {
		return Result{}, &Error{Code: CodeValidation, Message: err.Error(), Err: err}
	}

	res := Result{RequestID: a.newID(), CreatedAt: a.now(), Request: req}
	ctx, span := a.tracer.Start(ctx, "estimate.assemble", trace.WithAttributes(
		attribute.String("request.id", res.RequestID),
		attribute.String("request.client_type", string(req.ClientType)),
		attribute.String("request.urgency", string(req.Urgency)),
	))
	defer span.End()

	res.Classification = a.classifier.Classify(ctx, req, catalog)

	est, err := a.pricer.Price(res.Classification.Domain, res.Classification.Service, req.Urgency, catalog, rates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pricing failed")
		a.logger.Error("estimate aborted", zap.String("request_id", res.RequestID), zap.Error(err))
		if errors.Is(err, pricing.ErrMissingBaseRate) {
			return Result{}, &Error{Code: CodeConfiguration, Message: "rate table is incomplete", Err: err}
		}
		return Result{}, &Error{Code: CodeConfiguration, Message: "pricing failed", Err: err}
	}
	res.Estimate = est

	if fee, ok := rates.InitialConsultationFee(); ok {
		res.Alternative = &Offer{Label: consultationLabel, Hours: 1, Price: fee, Currency: rates.Currency()}
	}

	span.SetAttributes(
		attribute.String("estimate.domain", est.Domain),
		attribute.String("estimate.service", est.Service),
		attribute.String("estimate.effort_source", string(est.EffortSource)),
		attribute.String("estimate.low", est.Low.String()),
		attribute.String("estimate.high", est.High.String()),
	)
	a.logger.Info("estimate assembled",
		zap.String("request_id", res.RequestID),
		zap.String("domain", est.Domain),
		zap.String("service", est.Service),
		zap.String("resolution", string(res.Classification.Resolution)),
		zap.String("effort_source", string(est.EffortSource)),
		zap.String("low", est.Low.String()),
		zap.String("high", est.High.String()))
	return res, nil
}
