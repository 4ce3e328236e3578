package cron

import (
	"context"
	"fmt"

	"github.com/scoutledger/backend/internal/claims"
	"github.com/scoutledger/backend/pkg/logger"
)

type claimReconciler interface {
	ReconcilePending(ctx context.Context) (*claims.ReconcileResult, error)
}

type ClaimReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler claimReconciler
}

// NewClaimReconcileJob confirms pending on-chain claims against the chain.
func NewClaimReconcileJob(params ClaimReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("claim reconciler required")
	}
	return &claimReconcileJob{logg: params.Logger, reconciler: params.Reconciler}, nil
}

type claimReconcileJob struct {
	logg       *logger.Logger
	reconciler claimReconciler
}

func (j *claimReconcileJob) Name() string { return "claim-reconcile" }

func (j *claimReconcileJob) Run(ctx context.Context) error {
	result, err := j.reconciler.ReconcilePending(ctx)
	if result != nil {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"checked":    result.Checked,
			"confirmed":  result.Confirmed,
			"mismatched": result.Mismatched,
			"expired":    result.Expired,
			"pending":    result.Pending,
			"failed":     result.Failed,
		}), "claim reconcile pass complete")
	}
	if err != nil {
		return fmt.Errorf("claim reconcile: %w", err)
	}
	return nil
}
