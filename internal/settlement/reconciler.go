package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/devclassik/harmoney-backend-sub000/internal/gateway"
	"github.com/devclassik/harmoney-backend-sub000/internal/ledger"
	"github.com/devclassik/harmoney-backend-sub000/internal/logging"
	"github.com/devclassik/harmoney-backend-sub000/internal/metrics"
)

const sweepBatch = 100

// SweepResult summarises one reconciliation pass.
type SweepResult struct {
	Scanned  int
	Pending  int
	Resolved int
}

// Sweep picks up debits left open for longer than olderThan, marks them PENDING and asks
// the rail for their outcome. Definitive answers are applied through the same guarded
// path as Purchase; anything else stays PENDING for the next pass.
func (e *Engine) Sweep(ctx context.Context, olderThan time.Duration) (SweepResult, error) {
	log := logging.FromContext(ctx, e.logger)
	cutoff := time.Now().Add(-olderThan)

	open, err := e.ledger.OpenDebitsBefore(ctx, cutoff, sweepBatch)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	for _, tx := range open {
		result.Scanned++
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if tx.Status == ledger.StatusInitialized {
			marked, err := e.resolve(ctx, tx, ledger.StatusPending, "")
			if err != nil {
				if errors.Is(err, ledger.ErrAlreadyFinalized) || errors.Is(err, ledger.ErrInvalidTransition) {
					continue
				}
				log.Error("mark debit pending failed", "reference", tx.Reference, "error", err)
				continue
			}
			tx = marked
			metrics.SweepResolved(string(ledger.StatusPending))
		}

		target, providerRef, ok := e.queryOutcome(ctx, tx)
		if !ok {
			result.Pending++
			continue
		}

		final, err := e.resolve(ctx, tx, target, providerRef)
		switch {
		case err == nil:
			result.Resolved++
			metrics.SweepResolved(string(final.Status))
			log.Info("debit reconciled", "reference", tx.Reference, "status", final.Status)
		case errors.Is(err, ledger.ErrAlreadyFinalized):
			if providerRef != "" && final.SourceRefID == "" {
				if _, err := e.ledger.AttachSourceRef(ctx, tx.ID, providerRef); err != nil {
					log.Warn("attach provider reference failed", "reference", tx.Reference, "error", err)
				}
			}
		default:
			result.Pending++
			log.Error("reconcile debit failed", "reference", tx.Reference, "error", err)
		}
	}
	return result, nil
}

func (e *Engine) queryOutcome(ctx context.Context, tx ledger.Transaction) (ledger.Status, string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.gateway.QueryTransaction(callCtx, tx.Reference)
	if err != nil {
		metrics.GatewayCall("query", "error", start)
		if errors.Is(err, gateway.ErrTransactionNotFound) {
			return ledger.StatusFailed, "", true
		}
		logging.FromContext(ctx, e.logger).Warn("gateway status query failed", "reference", tx.Reference, "error", err)
		return "", "", false
	}
	metrics.GatewayCall("query", string(res.Status), start)

	switch res.Status {
	case gateway.StatusSuccessful:
		return ledger.StatusSuccessful, res.ProviderRef, true
	case gateway.StatusFailed:
		return ledger.StatusFailed, res.ProviderRef, true
	case gateway.StatusReversed:
		return ledger.StatusReversed, res.ProviderRef, true
	default:
		return "", "", false
	}
}
