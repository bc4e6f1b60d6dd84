package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/internal/dispatch"
	"github.com/kasuwa-market/kasuwa-backend/internal/orders"
	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox"
	"github.com/kasuwa-market/kasuwa-backend/pkg/paystack"
)

type stubPaymentsRepo struct {
	sessionOrders []models.Order
	transaction   *models.Transaction

	reference       string
	referenceCalls  int
	createdTxns     []*models.Transaction
	paymentStatuses map[string][]uuid.UUID
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPaymentsRepo) FindSessionOrders(_ context.Context, sessionID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.sessionOrders {
		if order.CheckoutSessionID != nil && *order.CheckoutSessionID == sessionID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (s *stubPaymentsRepo) FindOrdersByReferenceForUpdate(_ context.Context, reference string) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.sessionOrders {
		if order.PaymentReference != nil && *order.PaymentReference == reference {
			out = append(out, order)
		}
	}
	return out, nil
}

func (s *stubPaymentsRepo) SetPaymentReference(_ context.Context, _ uuid.UUID, reference string) error {
	s.reference = reference
	s.referenceCalls++
	return nil
}

func (s *stubPaymentsRepo) FindTransactionByReference(_ context.Context, reference string) (*models.Transaction, error) {
	if s.transaction != nil && s.transaction.Reference == reference {
		return s.transaction, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentsRepo) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	s.createdTxns = append(s.createdTxns, txn)
	return nil
}

func (s *stubPaymentsRepo) MarkOrdersPayment(_ context.Context, orderIDs []uuid.UUID, status string) error {
	if s.paymentStatuses == nil {
		s.paymentStatuses = make(map[string][]uuid.UUID)
	}
	s.paymentStatuses[status] = append(s.paymentStatuses[status], orderIDs...)
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubGateway struct {
	initResp    *paystack.InitializeResponse
	initReq     *paystack.InitializeRequest
	verifyData  *paystack.VerifyData
	verifyCalls int
	secret      string
}

func (s *stubGateway) InitializeTransaction(_ context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	s.initReq = &req
	return s.initResp, nil
}

func (s *stubGateway) VerifyTransaction(_ context.Context, _ string) (*paystack.VerifyData, error) {
	s.verifyCalls++
	return s.verifyData, nil
}

func (s *stubGateway) SigningSecret() string { return s.secret }

// stubLocks is an in-memory stand-in for the redis lock store.
type stubLocks struct {
	values   map[string]string
	lockHeld bool
}

func newStubLocks() *stubLocks {
	return &stubLocks{values: make(map[string]string)}
}

func (s *stubLocks) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if s.lockHeld {
		return false, nil
	}
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = toString(value)
	return true, nil
}

func (s *stubLocks) GetDel(_ context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", goredis.Nil
	}
	delete(s.values, key)
	return value, nil
}

func (s *stubLocks) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.values[key] = toString(value)
	return nil
}

func (s *stubLocks) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *stubLocks) PaymentLockKey(reference string) string   { return "lock:" + reference }
func (s *stubLocks) VerificationTokenKey(token string) string { return "token:" + token }
func (s *stubLocks) IdempotencyKey(scope, id string) string   { return "idem:" + scope + ":" + id }

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

type stubTransitioner struct {
	transitioned []orders.TransitionInput
	err          error
}

func (s *stubTransitioner) TransitionInTx(_ context.Context, _ *gorm.DB, input orders.TransitionInput) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.transitioned = append(s.transitioned, input)
	return &models.Order{ID: input.OrderID, Status: input.Target}, nil
}

type stubCommissions struct {
	computed []uuid.UUID
}

func (s *stubCommissions) ComputeInTx(_ context.Context, _ *gorm.DB, orderID uuid.UUID) (*models.Commission, error) {
	s.computed = append(s.computed, orderID)
	return &models.Commission{OrderID: orderID}, nil
}

type stubDedupe struct {
	seen    map[string]bool
	deleted []string
}

// CheckAndMarkProcessed mirrors the SETNX-backed manager: true means the
// event was seen before, false means this call marked it.
func (s *stubDedupe) CheckAndMarkProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	key := consumer + ":" + eventID
	if s.seen[key] {
		return true, nil
	}
	s.seen[key] = true
	return false, nil
}

func (s *stubDedupe) Delete(_ context.Context, consumer, eventID string) error {
	s.deleted = append(s.deleted, consumer+":"+eventID)
	delete(s.seen, consumer+":"+eventID)
	return nil
}

type stubDispatcher struct {
	assigned []uuid.UUID
	err      error
}

func (s *stubDispatcher) AssignInTx(_ context.Context, _ *gorm.DB, orderID uuid.UUID) (*dispatch.Assignment, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.assigned = append(s.assigned, orderID)
	return &dispatch.Assignment{OrderID: orderID, RiderID: uuid.New()}, nil
}

type paymentFixture struct {
	svc         Service
	repo        *stubPaymentsRepo
	pub         *stubOutbox
	gateway     *stubGateway
	locks       *stubLocks
	transitions *stubTransitioner
	commissions *stubCommissions
	dispatcher  *stubDispatcher
	dedupe      *stubDedupe
	sessionID   uuid.UUID
	buyerID     uuid.UUID
}

// clearReferences rewinds the fixture to a session that has never been
// initialized against the gateway.
func (f *paymentFixture) clearReferences() {
	for i := range f.repo.sessionOrders {
		f.repo.sessionOrders[i].PaymentReference = nil
	}
}

func newPaymentFixture(t *testing.T, ordersTotalCents []int64) *paymentFixture {
	t.Helper()
	sessionID := uuid.New()
	buyerID := uuid.New()
	reference := "T-REF-1"

	sessionOrders := make([]models.Order, 0, len(ordersTotalCents))
	for _, total := range ordersTotalCents {
		session := sessionID
		ref := reference
		sessionOrders = append(sessionOrders, models.Order{
			ID:                uuid.New(),
			CheckoutSessionID: &session,
			BuyerID:           buyerID,
			SellerID:          uuid.New(),
			Status:            enums.OrderStatusPending,
			PaymentStatus:     enums.PaymentStatusPending,
			PaymentReference:  &ref,
			Currency:          enums.CurrencyNGN,
			TotalCents:        total,
		})
	}

	f := &paymentFixture{
		repo:        &stubPaymentsRepo{sessionOrders: sessionOrders},
		pub:         &stubOutbox{},
		gateway:     &stubGateway{secret: "whsec"},
		locks:       newStubLocks(),
		transitions: &stubTransitioner{},
		commissions: &stubCommissions{},
		dispatcher:  &stubDispatcher{},
		dedupe:      &stubDedupe{},
		sessionID:   sessionID,
		buyerID:     buyerID,
	}
	svc, err := NewService(f.repo, stubTx{}, f.pub, f.gateway, f.locks,
		f.transitions, f.commissions, f.dispatcher, f.dedupe, nil, config.PlatformConfig{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func successfulVerify(amount int64) *paystack.VerifyData {
	return &paystack.VerifyData{
		Reference:   "T-REF-1",
		Status:      "success",
		AmountMinor: amount,
		Currency:    "NGN",
	}
}

func TestInitializeSumsSessionAndStoresToken(t *testing.T) {
	f := newPaymentFixture(t, []int64{5125, 3375})
	f.clearReferences()
	f.gateway.initResp = &paystack.InitializeResponse{
		Reference:        "T-REF-1",
		AuthorizationURL: "https://gateway.example/redirect",
		AccessCode:       "ac_1",
	}

	result, err := f.svc.Initialize(context.Background(), InitializeInput{
		BuyerID:           f.buyerID,
		BuyerEmail:        "buyer@example.com",
		CheckoutSessionID: f.sessionID,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if result.AmountCents != 8500 {
		t.Fatalf("expected charge of 8500, got %d", result.AmountCents)
	}
	if f.gateway.initReq.AmountMinor != 8500 || f.gateway.initReq.Email != "buyer@example.com" {
		t.Fatalf("gateway request wrong: %+v", f.gateway.initReq)
	}
	if f.repo.reference != "T-REF-1" || f.repo.referenceCalls != 1 {
		t.Fatalf("reference must be persisted on the session orders")
	}
	if result.VerificationToken == "" {
		t.Fatalf("verification token missing")
	}
	stored, err := f.locks.GetDel(context.Background(), f.locks.VerificationTokenKey(result.VerificationToken))
	if err != nil {
		t.Fatalf("token not stored: %v", err)
	}
	if stored != f.buyerID.String()+"|T-REF-1" {
		t.Fatalf("token binding wrong: %q", stored)
	}
}

func TestInitializeRejectsForeignAndPaidSessions(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})
	f.clearReferences()

	_, err := f.svc.Initialize(context.Background(), InitializeInput{
		BuyerID:           uuid.New(),
		BuyerEmail:        "other@example.com",
		CheckoutSessionID: f.sessionID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for foreign buyer, got %v", err)
	}

	f.repo.sessionOrders[0].PaymentStatus = enums.PaymentStatusCompleted
	_, err = f.svc.Initialize(context.Background(), InitializeInput{
		BuyerID:           f.buyerID,
		BuyerEmail:        "buyer@example.com",
		CheckoutSessionID: f.sessionID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for paid session, got %v", err)
	}
}

func TestInitializeRefusesWhilePaymentPending(t *testing.T) {
	// Fixture orders already carry a pending reference from a prior
	// initialization; minting another would strand that reference.
	f := newPaymentFixture(t, []int64{1000})

	_, err := f.svc.Initialize(context.Background(), InitializeInput{
		BuyerID:           f.buyerID,
		BuyerEmail:        "buyer@example.com",
		CheckoutSessionID: f.sessionID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for in-flight payment, got %v", err)
	}
	if f.gateway.initReq != nil {
		t.Fatalf("gateway must not be charged a second time")
	}
	if f.repo.referenceCalls != 0 {
		t.Fatalf("existing reference must not be overwritten")
	}
}

func TestInitializeAllowsRetryAfterFailedPayment(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})
	for i := range f.repo.sessionOrders {
		f.repo.sessionOrders[i].PaymentStatus = enums.PaymentStatusFailed
	}
	f.gateway.initResp = &paystack.InitializeResponse{
		Reference:        "T-REF-2",
		AuthorizationURL: "https://gateway.example/redirect",
		AccessCode:       "ac_2",
	}

	result, err := f.svc.Initialize(context.Background(), InitializeInput{
		BuyerID:           f.buyerID,
		BuyerEmail:        "buyer@example.com",
		CheckoutSessionID: f.sessionID,
	})
	if err != nil {
		t.Fatalf("Initialize after failure: %v", err)
	}
	if result.Reference != "T-REF-2" || f.repo.reference != "T-REF-2" {
		t.Fatalf("failed session must take the fresh reference, got %+v", result)
	}
}

func TestVerifyHappyPathSettlesSession(t *testing.T) {
	f := newPaymentFixture(t, []int64{5125, 3375})
	f.gateway.verifyData = successfulVerify(8500)

	token := "tok-1"
	_ = f.locks.Set(context.Background(), f.locks.VerificationTokenKey(token),
		f.buyerID.String()+"|T-REF-1", time.Hour)

	result, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1",
		Token:     token,
		BuyerID:   f.buyerID,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.PaymentStatus != enums.PaymentStatusCompleted || result.AlreadyProcessed {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := len(f.repo.paymentStatuses["completed"]); got != 2 {
		t.Fatalf("expected 2 orders marked completed, got %d", got)
	}
	if len(f.transitions.transitioned) != 2 {
		t.Fatalf("expected 2 system transitions, got %d", len(f.transitions.transitioned))
	}
	for _, input := range f.transitions.transitioned {
		if input.Role != enums.RoleSystem || input.Target != enums.OrderStatusProcessing {
			t.Fatalf("transition must be system pending->processing, got %+v", input)
		}
	}
	if len(f.commissions.computed) != 2 {
		t.Fatalf("expected commission per order, got %d", len(f.commissions.computed))
	}
	if len(f.dispatcher.assigned) != 2 {
		t.Fatalf("expected a rider per order, got %d assignments", len(f.dispatcher.assigned))
	}
	if len(f.repo.createdTxns) != 1 {
		t.Fatalf("expected exactly one transaction row, got %d", len(f.repo.createdTxns))
	}
	txn := f.repo.createdTxns[0]
	if txn.Status != enums.TransactionStatusSuccess || txn.AmountCents != 8500 {
		t.Fatalf("transaction wrong: %+v", txn)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].EventType != enums.EventPaymentCompleted {
		t.Fatalf("payment completed event missing")
	}
	// lock released after reconciliation
	if _, held := f.locks.values[f.locks.PaymentLockKey("T-REF-1")]; held {
		t.Fatalf("payment lock must be released")
	}
}

func TestVerifyBurnsTokenOnFirstUse(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})
	f.gateway.verifyData = successfulVerify(1000)

	token := "tok-1"
	_ = f.locks.Set(context.Background(), f.locks.VerificationTokenKey(token),
		f.buyerID.String()+"|T-REF-1", time.Hour)

	if _, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1", Token: token, BuyerID: f.buyerID,
	}); err != nil {
		t.Fatalf("first verify: %v", err)
	}

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1", Token: token, BuyerID: f.buyerID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("reused token must be rejected, got %v", err)
	}
}

func TestVerifyRejectsMismatchedToken(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})
	f.gateway.verifyData = successfulVerify(1000)

	token := "tok-1"
	_ = f.locks.Set(context.Background(), f.locks.VerificationTokenKey(token),
		f.buyerID.String()+"|OTHER-REF", time.Hour)

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1", Token: token, BuyerID: f.buyerID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("token bound to another reference must be rejected, got %v", err)
	}
	if len(f.repo.createdTxns) != 0 {
		t.Fatalf("no transaction may be recorded")
	}
}

func TestVerifyConflictsWhileLockHeld(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})
	f.gateway.verifyData = successfulVerify(1000)
	f.locks.lockHeld = true

	token := "tok-1"
	f.locks.values[f.locks.VerificationTokenKey(token)] = f.buyerID.String() + "|T-REF-1"

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1", Token: token, BuyerID: f.buyerID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict while another verification runs, got %v", err)
	}
	if len(f.repo.createdTxns) != 0 || len(f.transitions.transitioned) != 0 {
		t.Fatalf("loser of the lock race must not write")
	}
	if f.gateway.verifyCalls != 0 {
		t.Fatalf("loser of the lock race must not reach the gateway")
	}
}

func TestVerifyShortCircuitsExistingTransaction(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})
	f.gateway.verifyData = successfulVerify(1000)
	f.repo.transaction = &models.Transaction{
		ID:        uuid.New(),
		Reference: "T-REF-1",
		Status:    enums.TransactionStatusSuccess,
	}

	token := "tok-1"
	_ = f.locks.Set(context.Background(), f.locks.VerificationTokenKey(token),
		f.buyerID.String()+"|T-REF-1", time.Hour)

	result, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1", Token: token, BuyerID: f.buyerID,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.AlreadyProcessed || result.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("expected already-processed result, got %+v", result)
	}
	if f.gateway.verifyCalls != 0 {
		t.Fatalf("settled reference must answer without the gateway, called %d time(s)", f.gateway.verifyCalls)
	}
	if len(f.repo.createdTxns) != 0 || len(f.transitions.transitioned) != 0 || len(f.pub.events) != 0 {
		t.Fatalf("duplicate verification must not write")
	}
}

func TestVerifySettlesWhenNoRiderFree(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})
	f.gateway.verifyData = successfulVerify(1000)
	f.dispatcher.err = pkgerrors.New(pkgerrors.CodePrecondition, "no rider has free capacity")

	token := "tok-1"
	_ = f.locks.Set(context.Background(), f.locks.VerificationTokenKey(token),
		f.buyerID.String()+"|T-REF-1", time.Hour)

	result, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1", Token: token, BuyerID: f.buyerID,
	})
	if err != nil {
		t.Fatalf("settlement must survive a fleet at capacity: %v", err)
	}
	if result.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("payment must still complete, got %s", result.PaymentStatus)
	}
	if len(f.transitions.transitioned) != 1 || len(f.commissions.computed) != 1 {
		t.Fatalf("order must still advance and earn its commission")
	}
}

func TestVerifyRejectsAmountMismatch(t *testing.T) {
	f := newPaymentFixture(t, []int64{5125, 3375})
	f.gateway.verifyData = successfulVerify(5000) // underpaid

	token := "tok-1"
	_ = f.locks.Set(context.Background(), f.locks.VerificationTokenKey(token),
		f.buyerID.String()+"|T-REF-1", time.Hour)

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1", Token: token, BuyerID: f.buyerID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeCalculation) {
		t.Fatalf("expected calculation error, got %v", err)
	}
	if len(f.repo.createdTxns) != 0 || len(f.repo.paymentStatuses) != 0 {
		t.Fatalf("amount mismatch must not mutate anything")
	}
}

func TestVerifyRecordsGatewayFailure(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})
	f.gateway.verifyData = &paystack.VerifyData{
		Reference:   "T-REF-1",
		Status:      "failed",
		AmountMinor: 1000,
		Currency:    "NGN",
		GatewayResp: "Declined",
	}

	token := "tok-1"
	_ = f.locks.Set(context.Background(), f.locks.VerificationTokenKey(token),
		f.buyerID.String()+"|T-REF-1", time.Hour)

	result, err := f.svc.Verify(context.Background(), VerifyInput{
		Reference: "T-REF-1", Token: token, BuyerID: f.buyerID,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed status, got %s", result.PaymentStatus)
	}
	if got := len(f.repo.paymentStatuses["failed"]); got != 1 {
		t.Fatalf("order must be marked failed")
	}
	if len(f.transitions.transitioned) != 0 || len(f.commissions.computed) != 0 {
		t.Fatalf("failed payment must not advance orders or compute commissions")
	}
	if len(f.dispatcher.assigned) != 0 {
		t.Fatalf("failed payment must not dispatch a rider")
	}
	if len(f.repo.createdTxns) != 1 || f.repo.createdTxns[0].Status != enums.TransactionStatusFailed {
		t.Fatalf("failed transaction row missing")
	}
	if len(f.pub.events) != 1 || f.pub.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("payment failed event missing")
	}
}

func signWebhook(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})

	payload := []byte(`{"event":"charge.success","data":{"reference":"T-REF-1","status":"success","amount":1000,"currency":"NGN"}}`)
	err := f.svc.HandleWebhook(context.Background(), payload, "deadbeef")
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for bad signature, got %v", err)
	}
	if f.dedupe.seen != nil || len(f.repo.createdTxns) != 0 {
		t.Fatalf("forged webhook must cause no side effects")
	}
}

func TestHandleWebhookSettlesOnceAcrossRetries(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})

	event := map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": "T-REF-1",
			"status":    "success",
			"amount":    1000,
			"currency":  "NGN",
		},
	}
	payload, _ := json.Marshal(event)
	signature := signWebhook(t, payload, "whsec")

	if err := f.svc.HandleWebhook(context.Background(), payload, signature); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if len(f.repo.createdTxns) != 1 {
		t.Fatalf("first delivery must settle")
	}

	// Gateway retries the same delivery.
	if err := f.svc.HandleWebhook(context.Background(), payload, signature); err != nil {
		t.Fatalf("retry delivery: %v", err)
	}
	if len(f.repo.createdTxns) != 1 {
		t.Fatalf("retry must be deduplicated, got %d transactions", len(f.repo.createdTxns))
	}
}

func TestHandleWebhookIgnoresUnknownEvents(t *testing.T) {
	f := newPaymentFixture(t, []int64{1000})

	payload := []byte(`{"event":"subscription.create","data":{"reference":"T-REF-1"}}`)
	signature := signWebhook(t, payload, "whsec")
	if err := f.svc.HandleWebhook(context.Background(), payload, signature); err != nil {
		t.Fatalf("unknown event must be acknowledged: %v", err)
	}
	if f.dedupe.seen != nil {
		t.Fatalf("unknown events must not consume dedupe slots")
	}
}
