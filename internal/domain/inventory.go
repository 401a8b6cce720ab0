package domain

import "time"

// StoreInventory is the stock of one product at one physical store.
type StoreInventory struct {
	InventoryID   int64      `json:"inventoryId,omitempty"`
	ProductID     int64      `json:"productId"`
	ProductName   string     `json:"productName,omitempty"`
	StoreLocation string     `json:"storeLocation"`
	StockQuantity int        `json:"stockQuantity"`
	IsAvailable   *bool      `json:"isAvailable,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}
