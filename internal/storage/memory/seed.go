package memory

import (
	"context"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

// Demo fixture ids, stable so local clients can hard-code them.
const (
	DemoClientID = "6f1c2d3e-0000-4000-8000-000000000001"
	DemoHostID   = "host-demo"
)

// SeedDemo loads a small catalog for running the API without Postgres.
func (s *Store) SeedDemo() {
	_ = s.CreateClient(context.Background(), domain.Client{
		ID:              DemoClientID,
		Name:            "Green Leaf Dispensary",
		CreditLimit:     decimal.MustParse("5000.00"),
		CurrentExposure: decimal.MustParse("1200.00"),
	})
	s.PutMargin(DemoClientID, "FLOWER", decimal.FromInt(30))
	s.PutMargin(DemoClientID, "EDIBLES", decimal.FromInt(25))

	batches := []domain.Batch{
		{ID: "b0000000-0000-4000-8000-000000000001", Code: "B-001", ProductID: "c0000000-0000-4000-8000-000000000001",
			ProductName: "Blue Dream", Category: "FLOWER", UnitCost: decimal.MustParse("10.00"), OnHand: decimal.FromInt(50)},
		{ID: "b0000000-0000-4000-8000-000000000002", Code: "B-002", ProductID: "c0000000-0000-4000-8000-000000000002",
			ProductName: "OG Kush", Category: "FLOWER", UnitCost: decimal.MustParse("12.50"), OnHand: decimal.FromInt(20),
			Reserved: decimal.FromInt(4)},
		{ID: "b0000000-0000-4000-8000-000000000003", Code: "B-003", ProductID: "c0000000-0000-4000-8000-000000000003",
			ProductName: "Gummies 10pk", Category: "EDIBLES", UnitCost: decimal.MustParse("4.20"), OnHand: decimal.FromInt(200),
			Quarantined: decimal.FromInt(10)},
		{ID: "b0000000-0000-4000-8000-000000000004", Code: "B-004", ProductID: "c0000000-0000-4000-8000-000000000004",
			ProductName: "Vape Cart 1g", Category: "VAPES", UnitCost: decimal.MustParse("18.00"), OnHand: decimal.FromInt(30)},
	}
	for _, b := range batches {
		s.PutBatch(b)
	}
}
