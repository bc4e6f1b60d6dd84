package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/internal/dispatch"
	"github.com/kasuwa-market/kasuwa-backend/internal/orders"
	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/metrics"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox/payloads"
	"github.com/kasuwa-market/kasuwa-backend/pkg/paystack"
	"github.com/kasuwa-market/kasuwa-backend/pkg/redis"
)

const webhookConsumer = "paystack_webhook"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyData, error)
	SigningSecret() string
}

type orderTransitioner interface {
	TransitionInTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

type commissionComputer interface {
	ComputeInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Commission, error)
}

type riderDispatcher interface {
	AssignInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*dispatch.Assignment, error)
}

type deduper interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (alreadyProcessed bool, err error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Service reconciles gateway payments against checkout sessions.
type Service interface {
	Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error)
	Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	gateway     gateway
	locks       redis.LockStore
	orders      orderTransitioner
	commissions commissionComputer
	dispatcher  riderDispatcher
	dedupe      deduper
	metrics     *metrics.SettlementMetrics
	lockTTL     time.Duration
	tokenTTL    time.Duration
}

// NewService wires the payment reconciliation service.
func NewService(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	gw gateway,
	locks redis.LockStore,
	ordersSvc orderTransitioner,
	commissionsSvc commissionComputer,
	dispatcher riderDispatcher,
	dedupe deduper,
	settlement *metrics.SettlementMetrics,
	platform config.PlatformConfig,
) (Service, error) {
	if repo == nil || tx == nil || publisher == nil {
		return nil, fmt.Errorf("repository, transaction runner, and outbox publisher required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock store required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if commissionsSvc == nil {
		return nil, fmt.Errorf("commission computer required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("rider dispatcher required")
	}
	if dedupe == nil {
		return nil, fmt.Errorf("webhook deduper required")
	}
	lockTTL := platform.PaymentLockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	tokenTTL := platform.VerificationTokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 6 * time.Hour
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      publisher,
		gateway:     gw,
		locks:       locks,
		orders:      ordersSvc,
		commissions: commissionsSvc,
		dispatcher:  dispatcher,
		dedupe:      dedupe,
		metrics:     settlement,
		lockTTL:     lockTTL,
		tokenTTL:    tokenTTL,
	}, nil
}

func (s *service) Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error) {
	if input.BuyerID == uuid.Nil || input.CheckoutSessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and checkout session required")
	}
	if strings.TrimSpace(input.BuyerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer email required")
	}

	sessionOrders, err := s.repo.FindSessionOrders(ctx, input.CheckoutSessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session orders")
	}
	if len(sessionOrders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}

	var amount int64
	orderIDs := make([]string, 0, len(sessionOrders))
	for _, order := range sessionOrders {
		if order.BuyerID != input.BuyerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another buyer")
		}
		if order.PaymentStatus == enums.PaymentStatusCompleted {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout session is already paid")
		}
		// A reference is minted once per session. While the charge it
		// names is still pending, re-initializing would orphan it and
		// let its webhook arrive with no orders to settle.
		if order.PaymentReference != nil && order.PaymentStatus == enums.PaymentStatusPending {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				"payment already initialized for this session").WithDetails(map[string]any{
				"payment_reference": *order.PaymentReference,
			})
		}
		amount += order.TotalCents
		orderIDs = append(orderIDs, order.ID.String())
	}
	currency := sessionOrders[0].Currency

	start := time.Now()
	init, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		AmountMinor: amount,
		Email:       input.BuyerEmail,
		Currency:    currency.String(),
		Metadata: map[string]any{
			"checkout_session_id": input.CheckoutSessionID.String(),
			"order_ids":           orderIDs,
			"buyer_id":            input.BuyerID.String(),
		},
	})
	s.metrics.ObserveGatewayLatency("initialize", time.Since(start))
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).SetPaymentReference(ctx, input.CheckoutSessionID, init.Reference)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment reference")
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint verification token")
	}
	binding := tokenBinding(input.BuyerID, init.Reference)
	if err := s.locks.Set(ctx, s.locks.VerificationTokenKey(token), binding, s.tokenTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store verification token")
	}

	return &InitializeResult{
		Reference:         init.Reference,
		AuthorizationURL:  init.AuthorizationURL,
		AccessCode:        init.AccessCode,
		VerificationToken: token,
		AmountCents:       amount,
		Currency:          currency.String(),
	}, nil
}

func (s *service) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if strings.TrimSpace(input.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if strings.TrimSpace(input.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification token required")
	}

	// Tokens are single-use: the atomic get-and-delete burns the token even
	// when a later step fails, so a stolen link cannot be replayed.
	binding, err := s.locks.GetDel(ctx, s.locks.VerificationTokenKey(input.Token))
	if err != nil {
		if redis.IsNil(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "verification token invalid or already used")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume verification token")
	}
	boundBuyer, boundReference, ok := parseTokenBinding(binding)
	if !ok || boundReference != input.Reference {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "verification token does not match this payment")
	}
	if input.BuyerID != uuid.Nil && boundBuyer != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "verification token belongs to another buyer")
	}

	return s.withPaymentLock(ctx, input.Reference, func() (*VerifyResult, error) {
		// Settled references answer from the Transaction row without
		// touching the gateway again.
		if existing, err := s.repo.FindTransactionByReference(ctx, input.Reference); err == nil {
			return duplicateResult(existing), nil
		} else if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing transaction")
		}

		start := time.Now()
		verified, err := s.gateway.VerifyTransaction(ctx, input.Reference)
		s.metrics.ObserveGatewayLatency("verify", time.Since(start))
		if err != nil {
			return nil, err
		}
		return s.settle(ctx, input.Reference, verified)
	})
}

func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	// Signature check comes before anything else touches storage.
	if !paystack.ValidateWebhookSignature(payload, s.gateway.SigningSecret(), signature) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}

	var event struct {
		Event string              `json:"event"`
		Data  paystack.VerifyData `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	switch event.Event {
	case "charge.success", "charge.failed":
	default:
		return nil // unhandled event types are acknowledged without action
	}
	if event.Data.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing reference")
	}

	eventID := event.Event + ":" + event.Data.Reference
	alreadyProcessed, err := s.dedupe.CheckAndMarkProcessed(ctx, webhookConsumer, eventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook dedupe")
	}
	if alreadyProcessed {
		return nil
	}

	if _, err := s.reconcile(ctx, event.Data.Reference, &event.Data); err != nil {
		// Unmark so the gateway's retry can reach reconciliation again.
		_ = s.dedupe.Delete(ctx, webhookConsumer, eventID)
		return err
	}
	return nil
}

// reconcile turns one gateway-confirmed payment result into ledger state.
func (s *service) reconcile(ctx context.Context, reference string, verified *paystack.VerifyData) (*VerifyResult, error) {
	return s.withPaymentLock(ctx, reference, func() (*VerifyResult, error) {
		return s.settle(ctx, reference, verified)
	})
}

// withPaymentLock serializes concurrent settlement attempts for a reference
// behind the advisory lock; the unique Transaction row makes the outcome
// exactly-once even if the lock expires.
func (s *service) withPaymentLock(ctx context.Context, reference string, fn func() (*VerifyResult, error)) (*VerifyResult, error) {
	lockKey := s.locks.PaymentLockKey(reference)
	acquired, err := s.locks.SetNX(ctx, lockKey, "1", s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payment lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment verification already in progress")
	}
	defer func() {
		_ = s.locks.Del(context.WithoutCancel(ctx), lockKey)
	}()

	result, err := fn()
	if err != nil {
		s.metrics.IncPayment("error")
		return nil, err
	}
	switch {
	case result.AlreadyProcessed:
		s.metrics.IncPayment("duplicate")
	case result.PaymentStatus == enums.PaymentStatusCompleted:
		s.metrics.IncPayment("completed")
	default:
		s.metrics.IncPayment("failed")
	}
	return result, nil
}

// settle runs under the payment lock and resolves one reference inside a
// single database transaction.
func (s *service) settle(ctx context.Context, reference string, verified *paystack.VerifyData) (*VerifyResult, error) {
	var result *VerifyResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if existing, err := repo.FindTransactionByReference(ctx, reference); err == nil {
			result = duplicateResult(existing)
			return nil
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing transaction")
		}

		sessionOrders, err := repo.FindOrdersByReferenceForUpdate(ctx, reference)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock session orders")
		}
		if len(sessionOrders) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no orders carry this payment reference")
		}

		if !verified.Succeeded() {
			result, err = s.recordFailure(ctx, tx, repo, reference, sessionOrders, verified)
			return err
		}

		var expected int64
		for _, order := range sessionOrders {
			expected += order.TotalCents
		}
		if verified.AmountMinor != expected {
			return pkgerrors.New(pkgerrors.CodeCalculation,
				"gateway amount does not match order totals").WithDetails(map[string]any{
				"reference":            reference,
				"gateway_amount_cents": verified.AmountMinor,
				"expected_cents":       expected,
			})
		}
		if !strings.EqualFold(verified.Currency, sessionOrders[0].Currency.String()) {
			return pkgerrors.New(pkgerrors.CodeCalculation,
				"gateway currency does not match order currency").WithDetails(map[string]any{
				"reference":        reference,
				"gateway_currency": verified.Currency,
				"order_currency":   sessionOrders[0].Currency.String(),
			})
		}

		result, err = s.recordSuccess(ctx, tx, repo, reference, sessionOrders, verified)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) recordSuccess(ctx context.Context, tx *gorm.DB, repo Repository, reference string, sessionOrders []models.Order, verified *paystack.VerifyData) (*VerifyResult, error) {
	orderIDs := make([]uuid.UUID, 0, len(sessionOrders))
	for _, order := range sessionOrders {
		orderIDs = append(orderIDs, order.ID)
	}
	if err := repo.MarkOrdersPayment(ctx, orderIDs, enums.PaymentStatusCompleted.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders paid")
	}

	for _, order := range sessionOrders {
		// Cancelled orders stay cancelled; payment only advances the
		// ones still waiting on it.
		if order.Status != enums.OrderStatusPending {
			continue
		}
		if _, err := s.orders.TransitionInTx(ctx, tx, orders.TransitionInput{
			OrderID: order.ID,
			Target:  enums.OrderStatusProcessing,
			ActorID: orders.SystemActorID,
			Role:    enums.RoleSystem,
		}); err != nil {
			return nil, err
		}
		if _, err := s.commissions.ComputeInTx(ctx, tx, order.ID); err != nil {
			return nil, err
		}
		// Dispatch rides the settlement transaction. A fleet at
		// capacity leaves the order unassigned for the admin path
		// rather than failing the payment.
		if _, err := s.dispatcher.AssignInTx(ctx, tx, order.ID); err != nil {
			if !pkgerrors.HasCode(err, pkgerrors.CodePrecondition) {
				return nil, err
			}
		}
	}

	txn := &models.Transaction{
		ID:                uuid.New(),
		Reference:         reference,
		CheckoutSessionID: sessionOrders[0].CheckoutSessionID,
		BuyerID:           sessionOrders[0].BuyerID,
		Status:            enums.TransactionStatusSuccess,
		AmountCents:       verified.AmountMinor,
		Currency:          sessionOrders[0].Currency,
		GatewayResponse:   gatewayResponseJSON(verified),
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction")
	}

	sessionID := uuid.Nil
	if sessionOrders[0].CheckoutSessionID != nil {
		sessionID = *sessionOrders[0].CheckoutSessionID
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePayment,
		AggregateID:   txn.ID,
		Version:       1,
		Data: payloads.PaymentCompletedEvent{
			CheckoutSessionID: sessionID,
			PaymentReference:  reference,
			OrderIDs:          orderIDs,
			AmountCents:       txn.AmountCents,
			Currency:          txn.Currency.String(),
			TransactionID:     txn.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		Reference:     reference,
		PaymentStatus: enums.PaymentStatusCompleted,
		TransactionID: txn.ID,
		OrderIDs:      orderIDs,
	}, nil
}

func (s *service) recordFailure(ctx context.Context, tx *gorm.DB, repo Repository, reference string, sessionOrders []models.Order, verified *paystack.VerifyData) (*VerifyResult, error) {
	orderIDs := make([]uuid.UUID, 0, len(sessionOrders))
	for _, order := range sessionOrders {
		orderIDs = append(orderIDs, order.ID)
	}
	if err := repo.MarkOrdersPayment(ctx, orderIDs, enums.PaymentStatusFailed.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders failed")
	}

	txn := &models.Transaction{
		ID:                uuid.New(),
		Reference:         reference,
		CheckoutSessionID: sessionOrders[0].CheckoutSessionID,
		BuyerID:           sessionOrders[0].BuyerID,
		Status:            enums.TransactionStatusFailed,
		AmountCents:       verified.AmountMinor,
		Currency:          sessionOrders[0].Currency,
		GatewayResponse:   gatewayResponseJSON(verified),
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed transaction")
	}

	sessionID := uuid.Nil
	if sessionOrders[0].CheckoutSessionID != nil {
		sessionID = *sessionOrders[0].CheckoutSessionID
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   txn.ID,
		Version:       1,
		Data: payloads.PaymentFailedEvent{
			CheckoutSessionID: sessionID,
			PaymentReference:  reference,
			GatewayResponse:   verified.GatewayResp,
		},
	})
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		Reference:     reference,
		PaymentStatus: enums.PaymentStatusFailed,
		TransactionID: txn.ID,
		OrderIDs:      orderIDs,
	}, nil
}

func duplicateResult(txn *models.Transaction) *VerifyResult {
	status := enums.PaymentStatusCompleted
	if txn.Status == enums.TransactionStatusFailed {
		status = enums.PaymentStatusFailed
	}
	return &VerifyResult{
		Reference:        txn.Reference,
		PaymentStatus:    status,
		TransactionID:    txn.ID,
		AlreadyProcessed: true,
	}
}

func gatewayResponseJSON(verified *paystack.VerifyData) json.RawMessage {
	raw, err := json.Marshal(verified)
	if err != nil {
		return nil
	}
	return raw
}

func newVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func tokenBinding(buyerID uuid.UUID, reference string) string {
	return buyerID.String() + "|" + reference
}

func parseTokenBinding(value string) (uuid.UUID, string, bool) {
	parts := strings.SplitN(value, "|", 2)
	if len(parts) != 2 {
		return uuid.Nil, "", false
	}
	buyerID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", false
	}
	return buyerID, parts[1], true
}
