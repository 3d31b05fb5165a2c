package services_test

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"companion-service/models"
	"companion-service/providers"
	"companion-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// ---- mock order repository ----

// mockOrderRepo is a stateful in-memory OrderRepository. UpdateStatus honors
// the compare-and-swap contract, and beforeUpdate lets a test simulate a
// concurrent writer sneaking in between read and write.
type mockOrderRepo struct {
	orders             map[uuid.UUID]*models.Order
	createErr          error
	findErr            error
	updateErr          error
	beforeUpdate       func(m *mockOrderRepo)
	beforeMarkRefunded func(m *mockOrderRepo)
}

func newMockOrderRepo(orders ...*models.Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
	for _, o := range orders {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = time.Now()
		}
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) Create(_ context.Context, order *models.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) FindByActor(_ context.Context, actorID, scope string, page, limit int) ([]models.Order, int64, error) {
	var all []models.Order
	for _, o := range m.orders {
		switch scope {
		case repository.ScopePatient:
			if o.PatientID != actorID {
				continue
			}
		case repository.ScopeCompanion:
			if o.CompanionID != actorID {
				continue
			}
		default:
			if !o.IsParty(actorID) {
				continue
			}
		}
		all = append(all, *o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from models.OrderStatus, updates map[string]interface{}) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(m)
	}
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return repository.ErrStaleStatus
	}
	for k, v := range updates {
		switch k {
		case "status":
			o.Status = v.(models.OrderStatus)
		case "deposit_status":
			o.DepositStatus = v.(models.DepositStatus)
		case "updated_at":
			o.UpdatedAt = v.(time.Time)
		case "cancelled_at":
			t := v.(time.Time)
			o.CancelledAt = &t
		case "completed_at":
			t := v.(time.Time)
			o.CompletedAt = &t
		case "payment_id":
			s := v.(string)
			o.PaymentID = &s
		case "payment_ref":
			s := v.(string)
			o.PaymentRef = &s
		}
	}
	return nil
}

func (m *mockOrderRepo) SetPaymentLink(_ context.Context, id uuid.UUID, paymentID, reference string) error {
	o, ok := m.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.PaymentID = &paymentID
	o.PaymentRef = &reference
	return nil
}

func (m *mockOrderRepo) MarkRefunded(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	if m.beforeMarkRefunded != nil {
		m.beforeMarkRefunded(m)
	}
	o, ok := m.orders[id]
	if !ok || o.DepositStatus != models.DepositPaid {
		return repository.ErrStaleStatus
	}
	o.DepositStatus = models.DepositRefunded
	o.RefundedAt = &at
	o.RefundReason = reason
	return nil
}

func (m *mockOrderRepo) FindStalePending(_ context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	var out []models.Order
	for _, o := range m.orders {
		if len(out) >= limit {
			break
		}
		if o.Status == models.StatusPendingPayment && o.CreatedAt.Before(olderThan) {
			out = append(out, *o)
		}
	}
	return out, nil
}

// ---- mock audit recorder ----

type auditEntry struct {
	orderID  uuid.UUID
	stepType string
	desc     string
}

type mockAuditRecorder struct {
	entries   []auditEntry
	appendErr error
}

func (m *mockAuditRecorder) Append(_ context.Context, orderID uuid.UUID, stepType, description, _ string) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, auditEntry{orderID: orderID, stepType: stepType, desc: description})
	return nil
}

// ---- mock event publisher ----

type mockEvents struct {
	events  []models.OrderEvent
	sendErr error
}

func (m *mockEvents) SendOrderEvent(event models.OrderEvent) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.events = append(m.events, event)
	return nil
}

// ---- mock payment repository ----

type mockPaymentRepo struct {
	payments  map[uuid.UUID]*models.Payment
	refunds   map[uuid.UUID]*models.Refund
	createErr error
}

func newMockPaymentRepo(payments ...*models.Payment) *mockPaymentRepo {
	m := &mockPaymentRepo{
		payments: make(map[uuid.UUID]*models.Payment),
		refunds:  make(map[uuid.UUID]*models.Refund),
	}
	for _, p := range payments {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		m.payments[p.ID] = p
	}
	return m
}

func (m *mockPaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) FindByReference(_ context.Context, reference string) (*models.Payment, error) {
	for _, p := range m.payments {
		if p.Reference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPaymentRepo) FindActiveByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var latest *models.Payment
	for _, p := range m.payments {
		if p.OrderID != orderID || p.State != models.PaymentCreated {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockPaymentRepo) CountByOrderID(_ context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	for _, p := range m.payments {
		if p.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

func (m *mockPaymentRepo) Update(_ context.Context, payment *models.Payment) error {
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) CreateRefund(_ context.Context, refund *models.Refund) error {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	cp := *refund
	m.refunds[refund.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) UpdateRefund(_ context.Context, refund *models.Refund) error {
	cp := *refund
	m.refunds[refund.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) paymentByReference(reference string) *models.Payment {
	for _, p := range m.payments {
		if p.Reference == reference {
			return p
		}
	}
	return nil
}

// ---- mock payment provider ----

type mockProvider struct {
	intentErr        error
	intentCalls      int
	lastReference    string
	refundID         string
	refundErr        error
	refundCalls      int
	lastRefundTarget string
}

func (m *mockProvider) CreateIntent(_ context.Context, _ int64, _ string, reference string) (*providers.IntentInfo, error) {
	m.intentCalls++
	m.lastReference = reference
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	return &providers.IntentInfo{
		ProviderPaymentID: "pi_" + reference,
		ClientSecret:      "cs_" + reference,
	}, nil
}

func (m *mockProvider) Refund(_ context.Context, providerPaymentID string, _ int64, _ string) (string, error) {
	m.refundCalls++
	m.lastRefundTarget = providerPaymentID
	if m.refundErr != nil {
		return "", m.refundErr
	}
	if m.refundID != "" {
		return m.refundID, nil
	}
	return "re_test", nil
}

func (m *mockProvider) ParseCallback(_ *http.Request) (*providers.CallbackEvent, error) {
	return nil, errors.New("not used in tests")
}

// ---- mock audit repository ----

type mockAuditRepo struct {
	entries   []models.ServiceLog
	appendErr error
	listErr   error
}

func (m *mockAuditRepo) Append(_ context.Context, entry *models.ServiceLog) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	cp := *entry
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, cp)
	return nil
}

func (m *mockAuditRepo) ListForOrder(_ context.Context, orderID uuid.UUID) ([]models.ServiceLog, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.ServiceLog
	for _, e := range m.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- mock review repository ----

type mockReviewRepo struct {
	reviews   []*models.Review
	createErr error
}

func (m *mockReviewRepo) Create(_ context.Context, review *models.Review) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.reviews {
		if r.OrderID == review.OrderID {
			return errors.New(`duplicate key value violates unique constraint "idx_reviews_order_id"`)
		}
	}
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	cp := *review
	m.reviews = append(m.reviews, &cp)
	return nil
}

func (m *mockReviewRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.Review, error) {
	for _, r := range m.reviews {
		if r.OrderID == orderID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReviewRepo) FindByCompanion(_ context.Context, companionID string, page, limit int) ([]models.Review, int64, error) {
	var all []models.Review
	for _, r := range m.reviews {
		if r.CompanionID == companionID {
			all = append(all, *r)
		}
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *mockReviewRepo) RatingsForCompanion(_ context.Context, companionID string) ([]int, error) {
	var ratings []int
	for _, r := range m.reviews {
		if r.CompanionID == companionID {
			ratings = append(ratings, r.Rating)
		}
	}
	return ratings, nil
}
