package payouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	dbtypes "github.com/kasuwa-market/kasuwa-backend/pkg/db/types"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/metrics"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service composes and settles seller payouts.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.SellerPayout, error)
	Advance(ctx context.Context, input AdvanceInput) (*models.SellerPayout, error)
	Get(ctx context.Context, payoutID uuid.UUID) (*models.SellerPayout, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.SellerPayout, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.SettlementMetrics
	minimum int64
}

// NewService builds the payout engine.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, settlement *metrics.SettlementMetrics, platform config.PlatformConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		metrics: settlement,
		minimum: platform.MinimumPayoutCents,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.SellerPayout, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.AmountCents < s.minimum {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"amount is below the minimum payout").WithDetails(map[string]any{
			"requested_cents": input.AmountCents,
			"minimum_cents":   s.minimum,
		})
	}
	if err := validateMethod(input); err != nil {
		return nil, err
	}

	var payout *models.SellerPayout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		pending, err := repo.ListPendingForUpdate(ctx, input.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock pending commissions")
		}
		selected, err := Compose(pending, input.AmountCents)
		if err != nil {
			return err
		}

		ids := make(dbtypes.UUIDArray, 0, len(selected))
		for _, commission := range selected {
			ids = append(ids, commission.ID)
		}
		payout = &models.SellerPayout{
			ID:            uuid.New(),
			SellerID:      input.SellerID,
			AmountCents:   input.AmountCents,
			Method:        input.Method,
			BankName:      input.BankName,
			AccountNumber: input.AccountNumber,
			AccountName:   input.AccountName,
			MobileNetwork: input.MobileNetwork,
			MobileNumber:  input.MobileNumber,
			Status:        enums.PayoutStatusPending,
			CommissionIDs: ids,
		}
		if err := repo.CreatePayout(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		// Reserving the commissions keeps a second request from spending
		// the same earnings while this one is in flight.
		if err := repo.MarkCommissions(ctx, []uuid.UUID(ids), enums.CommissionStatusProcessing, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve commissions")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncPayout("rejected")
		return nil, err
	}
	s.metrics.IncPayout("requested")
	return payout, nil
}

// payoutTransitions gates the payout lifecycle.
var payoutTransitions = map[enums.PayoutStatus][]enums.PayoutStatus{
	enums.PayoutStatusPending:    {enums.PayoutStatusProcessing, enums.PayoutStatusFailed},
	enums.PayoutStatusProcessing: {enums.PayoutStatusCompleted, enums.PayoutStatusFailed},
}

func payoutTransitionAllowed(from, to enums.PayoutStatus) bool {
	for _, allowed := range payoutTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *service) Advance(ctx context.Context, input AdvanceInput) (*models.SellerPayout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payout status")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.Target == enums.PayoutStatusFailed && (input.FailureReason == nil || *input.FailureReason == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a failure reason is required")
	}

	var result *models.SellerPayout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payout, err := repo.FindPayoutForUpdate(ctx, input.PayoutID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}
		if !payoutTransitionAllowed(payout.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("cannot move payout from %s to %s", payout.Status, input.Target))
		}

		now := time.Now()
		updates := map[string]any{"status": input.Target}
		switch input.Target {
		case enums.PayoutStatusCompleted:
			updates["processed_by"] = input.AdminID
			updates["processed_at"] = now
			if err := repo.MarkCommissions(ctx, []uuid.UUID(payout.CommissionIDs), enums.CommissionStatusProcessed, &now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark commissions processed")
			}
		case enums.PayoutStatusFailed:
			updates["failure_reason"] = *input.FailureReason
			// The reserved earnings go back on the seller's balance.
			if err := repo.MarkCommissions(ctx, []uuid.UUID(payout.CommissionIDs), enums.CommissionStatusPending, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release commissions")
			}
		}
		if err := repo.UpdatePayout(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout")
		}

		payout.Status = input.Target
		switch input.Target {
		case enums.PayoutStatusCompleted:
			adminID := input.AdminID
			processedAt := now
			payout.ProcessedBy = &adminID
			payout.ProcessedAt = &processedAt
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutProcessed,
				AggregateType: enums.AggregatePayout,
				AggregateID:   payout.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: enums.RoleAdmin.String()},
				Data: payloads.PayoutProcessedEvent{
					PayoutID:      payout.ID,
					SellerID:      payout.SellerID,
					AmountCents:   payout.AmountCents,
					CommissionIDs: []uuid.UUID(payout.CommissionIDs),
					Method:        payout.Method,
					ProcessedAt:   now,
				},
			}); err != nil {
				return err
			}
		case enums.PayoutStatusFailed:
			payout.FailureReason = input.FailureReason
		}
		result = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	if input.Target == enums.PayoutStatusCompleted {
		s.metrics.IncPayout("completed")
	} else if input.Target == enums.PayoutStatusFailed {
		s.metrics.IncPayout("failed")
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, payoutID uuid.UUID) (*models.SellerPayout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	payout, err := s.repo.FindPayout(ctx, payoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.SellerPayout, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	payouts, err := s.repo.ListBySeller(ctx, sellerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return payouts, nil
}

func validateMethod(input RequestInput) error {
	switch input.Method {
	case enums.PayoutMethodBankAccount:
		if empty(input.BankName) || empty(input.AccountNumber) || empty(input.AccountName) {
			return pkgerrors.New(pkgerrors.CodeValidation, "bank payouts require bank name, account number, and account name")
		}
	case enums.PayoutMethodMobileMoney:
		if empty(input.MobileNetwork) || empty(input.MobileNumber) {
			return pkgerrors.New(pkgerrors.CodeValidation, "mobile money payouts require network and number")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payout method")
	}
	return nil
}

func empty(value *string) bool {
	return value == nil || strings.TrimSpace(*value) == ""
}
