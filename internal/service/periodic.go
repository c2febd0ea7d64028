package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/payment"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// PeriodicService is the wall clock driver: it expires credit grants,
// refreshes payment statuses from the processor and closes billing periods.
// Every step is idempotent, so overlapping or repeated runs are harmless.
type PeriodicService interface {
	// Start blocks, running all steps on the configured interval until the
	// context is cancelled
	Start(ctx context.Context)

	// RunOnce executes one sweep at the given instant
	RunOnce(ctx context.Context, now time.Time)

	ExpireBalances(ctx context.Context, now time.Time) error
	RefreshInvoices(ctx context.Context) error
	ClosePeriods(ctx context.Context, now time.Time) error
}

type periodicService struct {
	ServiceParams
}

func NewPeriodicService(params ServiceParams) PeriodicService {
	return &periodicService{ServiceParams: params}
}

func (s *periodicService) Start(ctx context.Context) {
	interval := s.Config.Billing.PeriodicInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Logger.Infow("periodic driver started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.Logger.Infow("periodic driver stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx, time.Now().UTC())
		}
	}
}

func (s *periodicService) RunOnce(ctx context.Context, now time.Time) {
	if err := s.ExpireBalances(ctx, now); err != nil {
		s.Logger.Errorw("expire balances sweep failed", "error", err)
	}
	if err := s.RefreshInvoices(ctx); err != nil {
		s.Logger.Errorw("invoice refresh sweep failed", "error", err)
	}
	if err := s.ClosePeriods(ctx, now); err != nil {
		s.Logger.Errorw("close periods sweep failed", "error", err)
	}
}

// ExpireBalances deactivates grants past their expiry, zeroing whatever
// remained undrawn
func (s *periodicService) ExpireBalances(ctx context.Context, now time.Time) error {
	grants, err := s.BalanceRepo.ListExpired(ctx, now)
	if err != nil {
		return err
	}

	for _, grant := range grants {
		grantCtx := types.SetOrganizationID(ctx, grant.OrganizationID)

		remaining := grant.Remaining()
		if remaining.IsPositive() {
			if _, err := grant.DrawDown(remaining, types.DrawdownReasonExpired, ""); err != nil {
				return err
			}
		}
		grant.AdjStatus = types.BalanceStatusInactive
		if err := s.BalanceRepo.Update(grantCtx, grant); err != nil {
			return err
		}
		s.Logger.Infow("expired balance grant",
			"adjustment_id", grant.ID,
			"customer_id", grant.CustomerID,
			"forfeited", remaining,
		)
	}
	return nil
}

// RefreshInvoices polls the processor for every unpaid invoice holding a
// payment object and marks the ones the processor reports settled
func (s *periodicService) RefreshInvoices(ctx context.Context) error {
	if s.PaymentProvider == nil {
		return nil
	}

	invoices, err := s.InvoiceRepo.ListUnpaidWithExternalRef(ctx)
	if err != nil {
		return err
	}

	for _, inv := range invoices {
		invCtx := types.SetOrganizationID(ctx, inv.OrganizationID)

		var status payment.Status
		poll := func() error {
			var pollErr error
			status, pollErr = s.PaymentProvider.GetPaymentStatus(invCtx, inv.ExternalPaymentObjRef)
			return pollErr
		}
		policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		if err := backoff.Retry(poll, backoff.WithContext(policy, invCtx)); err != nil {
			s.Logger.Errorw("payment status poll failed",
				"invoice_id", inv.ID,
				"ref", inv.ExternalPaymentObjRef,
				"error", err,
			)
			continue
		}
		if status != payment.StatusSucceeded {
			continue
		}

		inv.PaymentStatus = types.PaymentStatusPaid
		if err := s.InvoiceRepo.Update(invCtx, inv); err != nil {
			return err
		}
		s.Logger.Infow("invoice settled by processor",
			"invoice_id", inv.ID,
			"amount", inv.Amount,
		)
	}
	return nil
}

// ClosePeriods bills every subscription container whose end date passed the
// grace window, renewing auto renewing records onto their next period and
// deleting containers left with no future coverage
func (s *periodicService) ClosePeriods(ctx context.Context, now time.Time) error {
	grace := s.Config.Billing.ClosePeriodGrace
	cutoff := now.Add(-grace)

	subs, err := s.SubRepo.ListExpiredSubscriptions(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		subCtx := types.SetOrganizationID(ctx, sub.OrganizationID)
		if err := s.closeContainer(subCtx, sub, now); err != nil {
			s.Logger.Errorw("failed to close billing period",
				"subscription_id", sub.ID,
				"customer_id", sub.CustomerID,
				"error", err,
			)
		}
	}
	return nil
}

func (s *periodicService) closeContainer(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	records, err := s.SubRepo.ListRecords(ctx, &subscription.RecordFilter{
		CustomerID: sub.CustomerID,
	})
	if err != nil {
		return err
	}

	var due []*subscription.SubscriptionRecord
	for _, rec := range records {
		if rec.SubscriptionID != sub.ID || rec.FullyBilled {
			continue
		}
		if rec.EndDate.After(now) {
			continue
		}
		due = append(due, rec)
	}

	if len(due) > 0 {
		invoiceSvc := NewInvoiceService(s.ServiceParams)
		if _, err := invoiceSvc.GenerateInvoices(ctx, GenerateInvoiceParams{
			CustomerID:         sub.CustomerID,
			Records:            due,
			ChargeNextPlan:     true,
			GenerateNextRecord: true,
			IssueDate:          sub.EndDate,
		}); err != nil {
			return err
		}
	}

	// renewal extends the container's end date; a container still ending in
	// the past has no future coverage left
	refreshed, err := s.SubRepo.GetSubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	if refreshed.EndDate.Before(now) {
		if err := s.SubRepo.DeleteSubscription(ctx, sub.ID); err != nil {
			return err
		}
		s.Logger.Infow("closed billing container",
			"subscription_id", sub.ID,
			"customer_id", sub.CustomerID,
		)
	}
	return nil
}
