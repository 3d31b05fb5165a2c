package services

import (
	"context"
	"errors"

	"companion-service/models"
	"companion-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditRecorder is the write side of the audit trail, consumed by the order
// and payment services when a transition represents observable progress.
type AuditRecorder interface {
	Append(ctx context.Context, orderID uuid.UUID, stepType, description, evidenceRef string) error
}

// TrackingResponse is the progress view for one order. CurrentStep is the
// highest-ordered milestone present, not the most recent entry.
type TrackingResponse struct {
	Entries     []models.ServiceLog `json:"entries"`
	CurrentStep string              `json:"current_step"`
}

type AuditService interface {
	AuditRecorder
	ListForOrder(ctx context.Context, orderID uuid.UUID, actorID string) (*TrackingResponse, *ServiceError)
}

type auditServiceImpl struct {
	auditRepo repository.AuditRepository
	orderRepo repository.OrderRepository
	logger    *zap.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, orderRepo repository.OrderRepository, logger *zap.Logger) AuditService {
	return &auditServiceImpl{
		auditRepo: auditRepo,
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// Append stores a milestone entry. Unrecognized step types are stored as-is;
// the progress view just ignores them.
func (s *auditServiceImpl) Append(ctx context.Context, orderID uuid.UUID, stepType, description, evidenceRef string) error {
	entry := &models.ServiceLog{
		OrderID:     orderID,
		StepType:    stepType,
		Description: description,
		EvidenceRef: evidenceRef,
	}
	return s.auditRepo.Append(ctx, entry)
}

// ListForOrder returns the order's audit entries in timestamp order plus the
// derived current step. Only the order's parties may read it.
func (s *auditServiceImpl) ListForOrder(ctx context.Context, orderID uuid.UUID, actorID string) (*TrackingResponse, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errOrderNotFound()
		}
		s.logger.Error("Failed to fetch order for tracking", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to fetch order")
	}
	if serr := canRead(order, actorID); serr != nil {
		return nil, serr
	}

	entries, err := s.auditRepo.ListForOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to list audit entries", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to fetch service log")
	}

	return &TrackingResponse{
		Entries:     entries,
		CurrentStep: currentStep(entries),
	}, nil
}

// currentStep derives the furthest milestone reached. A step may repeat; only
// its presence matters.
func currentStep(entries []models.ServiceLog) string {
	best := ""
	bestRank := 0
	for _, e := range entries {
		if rank, ok := models.MilestoneRank[e.StepType]; ok && rank > bestRank {
			best = e.StepType
			bestRank = rank
		}
	}
	return best
}
