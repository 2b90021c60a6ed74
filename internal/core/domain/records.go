package domain

import "time"

// ProductStatus describes where a product is in its lifecycle
type ProductStatus string

const (
	ProductStatusActive ProductStatus = "active"
	ProductStatusSold   ProductStatus = "sold"
	ProductStatusLost   ProductStatus = "lost"
)

// PaymentStatus describes how much of a sale has been paid
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
)

// Product is an inventory item owned by a user
type Product struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	Quantity         int           `json:"quantity"`
	AcquisitionValue float64       `json:"acquisition_value"` // per unit
	AcquiredAt       time.Time     `json:"acquired_at"`
	Status           ProductStatus `json:"status"`
	LossReason       string        `json:"loss_reason,omitempty"`
	LossDate         *time.Time    `json:"loss_date,omitempty"`
}

// IsLost reports whether the product was written off
func (p *Product) IsLost() bool {
	return p.Status == ProductStatusLost
}

// Sale records a product sold to a customer
type Sale struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ProductID     string        `json:"product_id"`
	ProductName   string        `json:"product_name"`
	Quantity      int           `json:"quantity"`
	SaleValue     float64       `json:"sale_value"` // total for the sale
	SoldAt        time.Time     `json:"sold_at"`
	CustomerName  string        `json:"customer_name,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// Debt is money the business owes to a creditor
type Debt struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Description string     `json:"description"`
	Creditor    string     `json:"creditor"`
	Amount      float64    `json:"amount"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Paid        bool       `json:"paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

// UserRecordSet is the snapshot of a user's records used to build the
// assistant's index. Each kind is capped to a recent window by the
// record source.
type UserRecordSet struct {
	UserID   string    `json:"user_id"`
	Currency string    `json:"currency"`
	Products []Product `json:"products"`
	Sales    []Sale    `json:"sales"`
	Debts    []Debt    `json:"debts"`
}

// IsEmpty reports whether the set has no records at all
func (r *UserRecordSet) IsEmpty() bool {
	return len(r.Products) == 0 && len(r.Sales) == 0 && len(r.Debts) == 0
}

// RecordCount returns the number of records across all kinds
func (r *UserRecordSet) RecordCount() int {
	return len(r.Products) + len(r.Sales) + len(r.Debts)
}

// DefaultRecordLimit caps each record kind per fetch
const DefaultRecordLimit = 100
