package domain

import (
	"sort"
	"time"

	"github.com/cimillas/live-commerce/internal/decimal"
)

type PickPriority string

const (
	PickPriorityHigh   PickPriority = "HIGH"
	PickPriorityMedium PickPriority = "MEDIUM"
	PickPriorityLow    PickPriority = "LOW"
)

func (p PickPriority) rank() int {
	switch p {
	case PickPriorityHigh:
		return 0
	case PickPriorityLow:
		return 2
	}
	return 1
}

// PriorityFor ranks purchases above interest above samples.
func PriorityFor(status ItemStatus) PickPriority {
	switch status {
	case ItemStatusToPurchase:
		return PickPriorityHigh
	case ItemStatusSampleRequest:
		return PickPriorityLow
	}
	return PickPriorityMedium
}

type PickListItem struct {
	LineItemID  string          `json:"line_item_id"`
	SessionID   string          `json:"session_id"`
	BatchID     string          `json:"batch_id"`
	BatchCode   string          `json:"batch_code"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	ItemStatus  ItemStatus      `json:"item_status"`
	Priority    PickPriority    `json:"priority"`
	AddedAt     time.Time       `json:"added_at"`
}

// PickChange is the kind of cart change the warehouse is told about.
type PickChange string

const (
	PickChangeItemAdded   PickChange = "ITEM_ADDED"
	PickChangeItemUpdated PickChange = "ITEM_UPDATED"
	PickChangeItemRemoved PickChange = "ITEM_REMOVED"
	PickChangeRefresh     PickChange = "FULL_REFRESH"
)

// BuildPickList orders lines by priority, then batch code.
func BuildPickList(items []LineItem) []PickListItem {
	out := make([]PickListItem, 0, len(items))
	for _, item := range items {
		out = append(out, PickListItem{
			LineItemID:  item.ID,
			SessionID:   item.SessionID,
			BatchID:     item.BatchID,
			BatchCode:   item.BatchCode,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			ItemStatus:  item.ItemStatus,
			Priority:    PriorityFor(item.ItemStatus),
			AddedAt:     item.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.rank() != out[j].Priority.rank() {
			return out[i].Priority.rank() < out[j].Priority.rank()
		}
		return out[i].BatchCode < out[j].BatchCode
	})
	return out
}
