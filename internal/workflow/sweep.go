package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/billing/internal/activity"
	"github.com/edvin/billing/internal/model"
)

// SweepParams configures ExpirationSweepWorkflow.
type SweepParams struct {
	// WarningDays is how far ahead expiring organizations are warned.
	// Zero disables warnings.
	WarningDays int `json:"warning_days"`
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Expiring      int `json:"expiring"`
	Lapsed        int `json:"lapsed"`
	Blocked       int `json:"blocked"`
	BlockFailures int `json:"block_failures"`
	NoticesSent   int `json:"notices_sent"`
	NoticesFailed int `json:"notices_failed"`
}

// ExpirationSweepWorkflow runs daily. It warns organizations whose access
// ends within the warning window, blocks organizations whose access has
// lapsed and tells them so. Organizations that are already blocked are not
// written again but still receive the expired notice.
func ExpirationSweepWorkflow(ctx workflow.Context, params SweepParams) (SweepResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	now := workflow.Now(ctx).UTC()
	var result SweepResult

	var expiring []activity.SweepOrganization
	err := workflow.ExecuteActivity(ctx, "ListExpiringOrganizations", activity.ListExpiringParams{
		Now:         now,
		WarningDays: params.WarningDays,
	}).Get(ctx, &expiring)
	if err != nil {
		return result, fmt.Errorf("list expiring organizations: %w", err)
	}
	result.Expiring = len(expiring)

	for _, org := range expiring {
		sendNotice(ctx, &result, billingNotice(model.NoticeExpiring, org, now))
	}

	var lapsed []activity.SweepOrganization
	err = workflow.ExecuteActivity(ctx, "ListLapsedOrganizations", now).Get(ctx, &lapsed)
	if err != nil {
		return result, fmt.Errorf("list lapsed organizations: %w", err)
	}
	result.Lapsed = len(lapsed)

	for _, org := range lapsed {
		if !org.Blocked() {
			var blocked bool
			err := workflow.ExecuteActivity(ctx, "BlockOrganization", activity.BlockOrganizationParams{
				OrganizationID: org.ID,
				Now:            now,
			}).Get(ctx, &blocked)
			if err != nil {
				// The next run picks it up again.
				logger.Error("failed to block organization", "organization", org.ID, "error", err)
				result.BlockFailures++
				continue
			}
			if !blocked {
				// Renewed after listing. The organization is active again.
				continue
			}
			result.Blocked++
		}
		sendNotice(ctx, &result, billingNotice(model.NoticeExpired, org, now))
	}

	logger.Info("expiration sweep finished",
		"expiring", result.Expiring,
		"lapsed", result.Lapsed,
		"blocked", result.Blocked,
		"notices_sent", result.NoticesSent,
		"notices_failed", result.NoticesFailed,
	)
	return result, nil
}

// sendNotice delivers a notice. Failures are logged and counted, never
// returned.
func sendNotice(ctx workflow.Context, result *SweepResult, notice model.BillingNotice) {
	if notice.To == "" {
		return
	}
	err := workflow.ExecuteActivity(ctx, "SendBillingNotice", notice).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("failed to send billing notice",
			"organization", notice.OrganizationID, "kind", notice.Kind, "error", err)
		result.NoticesFailed++
		return
	}
	result.NoticesSent++
}
