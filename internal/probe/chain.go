package probe

import (
	"context"
	"log/slog"

	"github.com/hakim/netdiag/internal/logging"
	"github.com/hakim/netdiag/internal/models"
)

// Chain tries an ordered list of probes and returns the first answer.
//
// Probes run strictly one after another. A later probe is only invoked when
// every earlier one reported absent, and results from different probes are
// never merged.
type Chain struct {
	probes []Probe
	logger *slog.Logger
}

// NewChain creates a chain over probes in the given order
func NewChain(logger *slog.Logger, probes ...Probe) *Chain {
	return &Chain{probes: probes, logger: logging.OrDefault(logger)}
}

// TryAll returns the first successful probe result, or false when every probe
// was absent or ctx ended first.
func (c *Chain) TryAll(ctx context.Context, subject string) (*models.SourceResult, bool) {
	for i, p := range c.probes {
		if ctx.Err() != nil {
			c.logger.Debug("chain aborted", "subject", subject, "error", ctx.Err())
			return nil, false
		}
		if res, ok := p.Fetch(ctx, subject); ok {
			c.logger.Debug("chain resolved", "subject", subject, "probe", p.Name(), "position", i)
			return res, true
		}
	}
	c.logger.Debug("chain exhausted", "subject", subject, "probes", len(c.probes))
	return nil, false
}

// Probes returns the probes in order
func (c *Chain) Probes() []Probe {
	return c.probes
}

// Len returns the number of probes in the chain
func (c *Chain) Len() int {
	return len(c.probes)
}
