package domain

import "github.com/shopspring/decimal"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// User is the blob kept next to the auth token for synchronous access.
type User struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Role   Role   `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func (r AuthResponse) User() User {
	return User{UserID: r.UserID, Name: r.Name, Email: r.Email, Role: r.Role}
}

type SalesAnalytics struct {
	TotalRevenue       decimal.Decimal            `json:"totalRevenue"`
	TotalOrders        int64                      `json:"totalOrders"`
	OnlineOrders       int64                      `json:"onlineOrders"`
	InStoreOrders      int64                      `json:"inStoreOrders"`
	AverageOrderValue  decimal.Decimal            `json:"averageOrderValue"`
	RevenueByCategory  map[string]decimal.Decimal `json:"revenueByCategory,omitempty"`
	OrdersByStatus     map[string]int64           `json:"ordersByStatus,omitempty"`
	TopSellingProducts []TopProduct               `json:"topSellingProducts,omitempty"`
}

type TopProduct struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	UnitsSold   int64           `json:"unitsSold"`
	Revenue     decimal.Decimal `json:"revenue"`
}
