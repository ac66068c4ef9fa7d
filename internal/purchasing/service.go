package purchasing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	ListOrderableLines(ctx context.Context, projectID int64, filters ListFilters) ([]Line, error)
	GetLine(ctx context.Context, id int64) (Line, error)
	SetPrice(ctx context.Context, id int64, price decimal.Decimal, currency string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts workflow operations.
type MetricsPort interface {
	Operation(module, action string, err error)
}

// Service aggregates orderable lines for purchasing agents.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// ListOrderableLines returns approved lines of a project that still have quantity to order.
func (s *Service) ListOrderableLines(ctx context.Context, projectID int64, filters ListFilters) ([]Line, error) {
	if projectID <= 0 {
		return nil, ErrInvalidProject
	}
	lines, err := s.repo.ListOrderableLines(ctx, projectID, filters)
	if err != nil {
		return nil, err
	}
	out := lines[:0]
	for _, line := range lines {
		if line.Orderable() {
			out = append(out, line)
		}
	}
	return out, nil
}

// GetLine returns a single line of an approved request.
func (s *Service) GetLine(ctx context.Context, id int64) (Line, error) {
	return s.repo.GetLine(ctx, id)
}

// SetPrice records the negotiated unit price of a line.
func (s *Service) SetPrice(ctx context.Context, actor shared.Actor, lineID int64, price decimal.Decimal, currency string) (Line, error) {
	line, err := s.setPrice(ctx, lineID, price, currency)
	if s.metrics != nil {
		s.metrics.Operation("purchasing", "set_price", err)
	}
	if err != nil {
		return Line{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "LINE_PRICE_SET",
			Entity:   shared.EntityMaterialRequestItem,
			EntityID: fmt.Sprintf("%d", lineID),
			Meta:     map[string]any{"price": price.String(), "currency": *line.Currency},
		})
	}
	return line, nil
}

func (s *Service) setPrice(ctx context.Context, lineID int64, price decimal.Decimal, currency string) (Line, error) {
	if !price.IsPositive() || !shared.FitsNumeric(price) {
		return Line{}, ErrInvalidPrice.With("line_id", lineID).With("price", price)
	}
	code, err := NormalizeCurrency(currency)
	if err != nil {
		return Line{}, err
	}
	if err := s.repo.SetPrice(ctx, lineID, price, code); err != nil {
		return Line{}, err
	}
	return s.repo.GetLine(ctx, lineID)
}
