package app

import (
	"context"
	"strings"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

// CatalogRepository stores the reference data sessions sell from.
type CatalogRepository interface {
	CreateClient(ctx context.Context, c domain.Client) error
	ListClients(ctx context.Context) ([]domain.Client, error)
	// CreateBatch inserts the batch together with its product.
	CreateBatch(ctx context.Context, b domain.Batch) error
	SetMargin(ctx context.Context, m domain.CategoryMargin) error
}

type CatalogService struct {
	repo CatalogRepository
}

func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

type CreateClientInput struct {
	Name            string
	CreditLimit     decimal.Decimal
	CurrentExposure decimal.Decimal
}

func (s *CatalogService) CreateClient(ctx context.Context, in CreateClientInput) (domain.Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Client{}, domain.ErrNameRequired
	}
	if !nonNegativeBounded(in.CreditLimit) || !nonNegativeBounded(in.CurrentExposure) {
		return domain.Client{}, domain.ErrInvalidAmount
	}

	c := domain.Client{
		ID:              newUUID(),
		Name:            name,
		CreditLimit:     in.CreditLimit,
		CurrentExposure: in.CurrentExposure,
	}
	if err := s.repo.CreateClient(ctx, c); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (s *CatalogService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

type CreateBatchInput struct {
	Code        string
	ProductName string
	Category    string
	UnitCost    decimal.Decimal
	OnHand      decimal.Decimal
}

func (s *CatalogService) CreateBatch(ctx context.Context, in CreateBatchInput) (domain.Batch, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.ProductName)
	category := strings.ToUpper(strings.TrimSpace(in.Category))
	if code == "" || name == "" || category == "" {
		return domain.Batch{}, domain.ErrNameRequired
	}
	if !nonNegativeBounded(in.UnitCost) {
		return domain.Batch{}, domain.ErrInvalidPrice
	}
	if !nonNegativeBounded(in.OnHand) {
		return domain.Batch{}, domain.ErrInvalidQuantity
	}

	b := domain.Batch{
		ID:          newUUID(),
		Code:        code,
		ProductID:   newUUID(),
		ProductName: name,
		Category:    category,
		UnitCost:    in.UnitCost,
		OnHand:      in.OnHand,
		Reserved:    decimal.Zero,
		Held:        decimal.Zero,
		Quarantined: decimal.Zero,
	}
	if err := s.repo.CreateBatch(ctx, b); err != nil {
		return domain.Batch{}, err
	}
	return b, nil
}

// SetMargin rejects margins of 100% or more, which no price can satisfy.
func (s *CatalogService) SetMargin(ctx context.Context, clientID, category string, percent decimal.Decimal) (domain.CategoryMargin, error) {
	if clientID == "" {
		return domain.CategoryMargin{}, domain.ErrInvalidID
	}
	category = strings.ToUpper(strings.TrimSpace(category))
	if category == "" {
		return domain.CategoryMargin{}, domain.ErrNameRequired
	}
	if _, err := domain.PriceFromMargin(decimal.FromInt(1), percent); err != nil || !nonNegativeBounded(percent) {
		return domain.CategoryMargin{}, domain.ErrInvalidMargin
	}

	m := domain.CategoryMargin{ClientID: clientID, Category: category, Percent: percent}
	if err := s.repo.SetMargin(ctx, m); err != nil {
		return domain.CategoryMargin{}, err
	}
	return m, nil
}

func nonNegativeBounded(d decimal.Decimal) bool {
	return d.Sign() >= 0 && d.Bounded()
}
