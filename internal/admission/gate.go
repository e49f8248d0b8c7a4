// Package admission decides whether new conversion requests may enter the
// system. A token bucket bounds the request rate and a capacity probe guards
// the output filesystem before heavy work starts.
package admission

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"convify/internal/logging"
	"convify/internal/services"
)

// CapacityProbe reports whether storage can accept another output file.
type CapacityProbe interface {
	HasSufficientCapacity() (bool, error)
}

// Policy sizes the admission token bucket.
type Policy struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
}

// Gate combines the request-rate bucket with the storage precondition.
type Gate struct {
	limiter *rate.Limiter
	probe   CapacityProbe
	logger  *slog.Logger
	now     func() time.Time
}

// NewGate builds a Gate whose bucket starts full. RefillTokens are restored
// evenly across each RefillInterval.
func NewGate(policy Policy, probe CapacityProbe, logger *slog.Logger) (*Gate, error) {
	if policy.Capacity <= 0 || policy.RefillTokens <= 0 || policy.RefillInterval <= 0 {
		return nil, errors.New("admission: capacity, refill tokens, and refill interval must be positive")
	}
	every := policy.RefillInterval / time.Duration(policy.RefillTokens)
	return &Gate{
		limiter: rate.NewLimiter(rate.Every(every), policy.Capacity),
		probe:   probe,
		logger:  logging.NewComponentLogger(logger, "admission"),
		now:     time.Now,
	}, nil
}

// TryAdmit consumes one token if available. It never blocks and leaves the
// bucket untouched when it returns false.
func (g *Gate) TryAdmit() bool {
	if g.limiter.AllowN(g.now(), 1) {
		return true
	}
	g.logger.Debug("admission denied", logging.String(logging.FieldEventType, "rate_limited"))
	return false
}

// Available returns the current token count, rounded down.
func (g *Gate) Available() int {
	tokens := g.limiter.TokensAt(g.now())
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

// CheckCapacity fails with ErrInsufficientResource when the probe reports low
// space or cannot be read.
func (g *Gate) CheckCapacity() error {
	if g.probe == nil {
		return nil
	}
	ok, err := g.probe.HasSufficientCapacity()
	if err != nil {
		logging.WarnWithContext(g.logger, "capacity probe failed; treating as insufficient", "capacity_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the output directory exists and is mounted"),
			logging.String(logging.FieldImpact, "conversion job fails before download"),
		)
		return services.Wrap(services.ErrInsufficientResource, "capacity", "statfs", "capacity probe failed", err)
	}
	if !ok {
		return services.Wrap(services.ErrInsufficientResource, "capacity", "", "Insufficient disk space.", nil)
	}
	return nil
}
