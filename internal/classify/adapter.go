package classify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

const (
	DefaultTimeout     = 20 * time.Second
	DefaultMaxAttempts = 1
	maxAttemptsCap     = 3
	DefaultDomain      = "Droit général"
)

var errNoCaller = errors.New("no classification oracle configured")

type Config struct {
	Timeout        time.Duration
	MaxAttempts    int
	DefaultDomain  string
	DefaultService string
	Instructions   string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxAttempts > maxAttemptsCap {
		c.MaxAttempts = maxAttemptsCap
	}
	if strings.TrimSpace(c.DefaultDomain) == "" {
		c.DefaultDomain = DefaultDomain
	}
	if strings.TrimSpace(c.DefaultService) == "" {
		c.DefaultService = GeneralService
	}
	if strings.TrimSpace(c.Instructions) == "" {
		c.Instructions = defaultInstructions
	}
	return c
}

// Adapter turns a free-text question into a Result. It keeps no state between
// calls and is safe for concurrent use.
type Adapter struct {
	caller     LLMCaller
	cfg        Config
	logger     *zap.Logger
	tracer     trace.Tracer
	newBackOff func() backoff.BackOff
}

// NewAdapter builds an adapter. A nil caller is allowed: every request then
// resolves to the default classification.
func NewAdapter(caller LLMCaller, cfg Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		caller: caller,
		cfg:    cfg.withDefaults(),
		logger: logger,
		tracer: otel.Tracer("github.com/joelkehle/legalquote/internal/classify"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

func (a *Adapter) Config() Config { return a.cfg }

// Classify calls the oracle once (plus bounded retries on transient transport
// failures) and normalizes the reply. It never returns an error: an
// unreachable oracle yields the configured default with confidence 0.
func (a *Adapter) Classify(ctx context.Context, req intake.Request, catalog *ratecard.Catalog) Result {
	ctx, span := a.tracer.Start(ctx, "classify.oracle")
	defer span.End()

	raw, attempts, err := a.call(ctx, BuildPrompt(req, catalog))
	span.SetAttributes(attribute.Int("classify.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classifier unavailable")
		a.logger.Warn("classifier unavailable, using default classification",
			zap.Error(err),
			zap.Int("attempts", attempts),
			zap.Duration("timeout", a.cfg.Timeout),
			zap.String("default_domain", a.cfg.DefaultDomain))
		res := a.unavailable()
		span.SetAttributes(attribute.String("classify.resolution", string(res.Resolution)))
		return res
	}

	res := ParseReply(raw)
	if res.Domain == "" {
		res.Domain = a.cfg.DefaultDomain
	}
	span.SetAttributes(
		attribute.String("classify.resolution", string(res.Resolution)),
		attribute.String("classify.domain", res.Domain),
		attribute.String("classify.service", res.Service),
	)
	if res.Resolution != ResolutionParsed {
		a.logger.Info("classifier reply degraded",
			zap.String("resolution", string(res.Resolution)),
			zap.String("reply", truncate(raw, 200)))
	}
	return res
}

func (a *Adapter) unavailable() Result {
	return Result{
		Domain:     a.cfg.DefaultDomain,
		Service:    a.cfg.DefaultService,
		Confidence: intPtr(0),
		Resolution: ResolutionUnavailable,
	}
}

func (a *Adapter) call(ctx context.Context, prompt string) (string, int, error) {
	if a.caller == nil {
		return "", 0, errNoCaller
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	attempts := 0
	raw, err := backoff.Retry(ctx, func() (string, error) {
		attempts++
		out, err := a.caller.Generate(ctx, a.cfg.Instructions, prompt)
		if err != nil {
			if class := classifyTransportError(err); !class.transient() {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return out, nil
	},
		backoff.WithBackOff(a.newBackOff()),
		backoff.WithMaxTries(uint(a.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			a.logger.Debug("classifier call failed, retrying", zap.Error(err), zap.Duration("wait", wait))
		}),
	)
	return raw, attempts, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
