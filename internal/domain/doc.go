// Package domain holds the records exchanged with the ShopSphere API and kept in
// the local cart.
package domain

import "github.com/shopspring/decimal"

func init() {
	// The API exchanges money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}
