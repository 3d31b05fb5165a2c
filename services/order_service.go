package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"companion-service/metrics"
	"companion-service/models"
	"companion-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventPublisher publishes domain events for downstream consumers.
// Publishing is best-effort everywhere it is called.
type EventPublisher interface {
	SendOrderEvent(event models.OrderEvent) error
}

type CreateOrderRequest struct {
	CompanionID string                 `json:"companion_id" binding:"required"`
	Hospital    string                 `json:"hospital" binding:"required"`
	Department  string                 `json:"department" binding:"required"`
	ServiceTime time.Time              `json:"service_time" binding:"required"`
	PatientInfo map[string]interface{} `json:"patient_info"`
}

type UpdateStatusRequest struct {
	Status      models.OrderStatus `json:"status" binding:"required"`
	Step        string             `json:"step,omitempty"`
	Description string             `json:"description,omitempty"`
	EvidenceRef string             `json:"evidence_ref,omitempty"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// OrderService owns the order lifecycle. Every status mutation in the system
// goes through ApplyTransition.
type OrderService interface {
	CreateOrder(ctx context.Context, patientID string, req *CreateOrderRequest) (*models.Order, *ServiceError)
	ListOrders(ctx context.Context, actorID, scope string, page, limit int) (*OrderListResponse, *ServiceError)
	GetOrder(ctx context.Context, orderID uuid.UUID, actorID string) (*models.Order, *ServiceError)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, actorID string, req *UpdateStatusRequest) (*models.Order, *ServiceError)
	ExpireStalePending(ctx context.Context, ttl time.Duration) int
}

type orderServiceImpl struct {
	orderRepo     repository.OrderRepository
	audit         AuditRecorder
	events        EventPublisher
	depositAmount int
	logger        *zap.Logger
}

// NewOrderService creates a new OrderService. The events publisher may be nil.
func NewOrderService(
	orderRepo repository.OrderRepository,
	audit AuditRecorder,
	events EventPublisher,
	depositAmount int,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		orderRepo:     orderRepo,
		audit:         audit,
		events:        events,
		depositAmount: depositAmount,
		logger:        logger,
	}
}

// CreateOrder creates an order in pending_payment with an unpaid deposit.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, patientID string, req *CreateOrderRequest) (*models.Order, *ServiceError) {
	if req.CompanionID == "" || req.Hospital == "" || req.Department == "" || req.ServiceTime.IsZero() {
		return nil, errMissingParameter("companion_id, hospital, department and service_time are required")
	}
	if !req.ServiceTime.After(time.Now()) {
		return nil, &ServiceError{StatusCode: 400, Code: CodeInvalidOrderState, Message: "service_time must be in the future"}
	}

	infoJSON := "{}"
	if req.PatientInfo != nil {
		if b, err := json.Marshal(req.PatientInfo); err == nil {
			infoJSON = string(b)
		}
	}

	order := &models.Order{
		PatientID:       patientID,
		CompanionID:     req.CompanionID,
		Hospital:        req.Hospital,
		Department:      req.Department,
		ServiceTime:     req.ServiceTime,
		Status:          models.StatusPendingPayment,
		DepositStatus:   models.DepositUnpaid,
		DepositAmount:   s.depositAmount,
		PatientInfoJSON: infoJSON,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.Error(err))
		return nil, errInternal("Failed to create order")
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("patient_id", patientID),
		zap.String("companion_id", req.CompanionID),
	)
	return order, nil
}

// ListOrders returns paginated orders where the actor is a party, filtered by
// scope (patient, companion, all).
func (s *orderServiceImpl) ListOrders(ctx context.Context, actorID, scope string, page, limit int) (*OrderListResponse, *ServiceError) {
	switch scope {
	case repository.ScopePatient, repository.ScopeCompanion, repository.ScopeAll:
	default:
		scope = repository.ScopeAll
	}

	orders, total, err := s.orderRepo.FindByActor(ctx, actorID, scope, page, limit)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.String("actor_id", actorID), zap.Error(err))
		return nil, errInternal("Failed to fetch orders")
	}

	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: calculateTotalPages(total, limit),
			HasMore:    total > int64(page*limit),
		},
	}, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID uuid.UUID, actorID string) (*models.Order, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errOrderNotFound()
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to fetch order")
	}
	if serr := canRead(order, actorID); serr != nil {
		return nil, serr
	}
	return order, nil
}

// UpdateStatus routes a client-requested transition through the guard and the
// state machine.
func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID uuid.UUID, actorID string, req *UpdateStatusRequest) (*models.Order, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errOrderNotFound()
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to fetch order")
	}

	return s.applyTransition(ctx, order, req.Status, actorID, req.Step, req.Description, req.EvidenceRef)
}

// applyTransition validates, authorizes and commits one transition with a
// compare-and-swap on the observed status. A lost race is retried once
// against the re-read state before surfacing a conflict.
func (s *orderServiceImpl) applyTransition(ctx context.Context, order *models.Order, to models.OrderStatus, actorID, step, description, evidenceRef string) (*models.Order, *ServiceError) {
	for attempt := 0; ; attempt++ {
		if serr := canTransition(order, to, actorID); serr != nil {
			return nil, serr
		}
		if !transitionAllowed(order.Status, to) {
			return nil, errInvalidTransition("Cannot transition from " + string(order.Status) + " to " + string(to))
		}

		now := time.Now()
		updates := map[string]interface{}{"status": to, "updated_at": now}
		switch to {
		case models.StatusCancelled:
			updates["cancelled_at"] = now
		case models.StatusCompleted:
			updates["completed_at"] = now
		}

		err := s.orderRepo.UpdateStatus(ctx, order.ID, order.Status, updates)
		if err == nil {
			order.Status = to
			order.UpdatedAt = now
			switch to {
			case models.StatusCancelled:
				order.CancelledAt = &now
			case models.StatusCompleted:
				order.CompletedAt = &now
			}
			break
		}
		if !errors.Is(err, repository.ErrStaleStatus) {
			s.logger.Error("Failed to update order status", zap.String("order_id", order.ID.String()), zap.Error(err))
			return nil, errInternal("Failed to update order")
		}

		metrics.TransitionConflictsTotal.Inc()
		if attempt > 0 {
			return nil, errConflict()
		}

		// Benign race with another legitimate transition: re-read and
		// re-evaluate once.
		reread, rerr := s.orderRepo.FindByID(ctx, order.ID)
		if rerr != nil {
			return nil, errConflict()
		}
		order = reread
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.logger.Info("Order transitioned",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(to)),
		zap.String("actor", actorID),
	)

	s.recordMilestone(ctx, order, to, step, description, evidenceRef)
	s.publishTransitionEvent(order, to)
	return order, nil
}

// recordMilestone appends the audit entry mapped to the transition. The
// transition is already committed, so failures are logged and dropped.
func (s *orderServiceImpl) recordMilestone(ctx context.Context, order *models.Order, to models.OrderStatus, step, description, evidenceRef string) {
	milestone := milestoneForTransition(to, step)
	if milestone == "" || s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, order.ID, milestone, description, evidenceRef); err != nil {
		s.logger.Warn("Audit append failed after committed transition",
			zap.String("order_id", order.ID.String()),
			zap.String("step_type", milestone),
			zap.Error(err),
		)
	}
}

func (s *orderServiceImpl) publishTransitionEvent(order *models.Order, to models.OrderStatus) {
	if s.events == nil {
		return
	}

	var eventType string
	switch to {
	case models.StatusConfirmed:
		eventType = models.EventOrderConfirmed
	case models.StatusInService:
		eventType = models.EventOrderInService
	case models.StatusCompleted:
		eventType = models.EventOrderCompleted
	case models.StatusCancelled:
		eventType = models.EventOrderCancelled
	default:
		return
	}

	event := models.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID.String(),
		PatientID:   order.PatientID,
		CompanionID: order.CompanionID,
		Status:      string(to),
		Timestamp:   time.Now().UTC(),
	}
	if err := s.events.SendOrderEvent(event); err != nil {
		s.logger.Warn("Failed to publish order event", zap.String("type", eventType), zap.Error(err))
	}
}

// ExpireStalePending cancels pending_payment orders older than the TTL as the
// system actor. Returns the number of orders cancelled.
func (s *orderServiceImpl) ExpireStalePending(ctx context.Context, ttl time.Duration) int {
	orders, err := s.orderRepo.FindStalePending(ctx, time.Now().Add(-ttl), 100)
	if err != nil {
		s.logger.Error("Failed to query stale pending orders", zap.Error(err))
		return 0
	}

	cancelled := 0
	for i := range orders {
		order := orders[i]
		if _, serr := s.applyTransition(ctx, &order, models.StatusCancelled, models.SystemActor, "", "deposit not paid in time", ""); serr != nil {
			// Lost races here just mean the order moved on; nothing to do.
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		s.logger.Info("Expired stale pending orders", zap.Int("count", cancelled))
	}
	return cancelled
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
