package domain

import "time"

// Checkout stages. A chat with no stored session is idle.
const (
	StageWaitingForAddress = "waiting_for_address"
	StageSelectingPayment  = "selecting_payment"
	StageConfirmingPayment = "confirming_payment"
	StageAwaitingTopup     = "awaiting_topup"
)

// Order statuses.
const (
	OrderPending    = "pending"
	OrderPaid       = "paid"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
)

// Payment request statuses.
const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

// CheckoutState is the per-chat session carried across checkout stages.
type CheckoutState struct {
	Stage         string  `json:"stage"`
	ProductID     string  `json:"product_id,omitempty"`
	ProductName   string  `json:"product_name,omitempty"`
	Price         float64 `json:"price,omitempty"`
	Address       string  `json:"address,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
}

type User struct {
	ID         string    `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	Balance    float64   `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Active      bool    `json:"active"`
}

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Status          string      `json:"status"`
	TotalAmount     float64     `json:"total_amount"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	TrackingNumber  string      `json:"tracking_number,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	Items           []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

type PaymentRequest struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Amount         float64   `json:"amount"`
	PaymentMethod  string    `json:"payment_method"`
	PaymentDetails string    `json:"payment_details"`
	Status         string    `json:"status"`
	AdminNotes     string    `json:"admin_notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type PaymentSetting struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Account     string `json:"account"`
	AccountName string `json:"account_name,omitempty"`
	Active      bool   `json:"active"`
}

type ShippingUpdate struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
