package domain

import (
	"encoding/json"
	"time"
)

// Vehicle classification used by service price tiers.
const (
	VehicleTypeR2 = "R2"
	VehicleTypeR3 = "R3"
	VehicleTypeR4 = "R4"
)

const (
	VehicleSizeKecil  = "Kecil"
	VehicleSizeSedang = "Sedang"
	VehicleSizeBesar  = "Besar"
	VehicleSizeJumbo  = "Jumbo"
)

const (
	TxTypeBengkel = "bengkel"
	TxTypeKafe    = "kafe"
)

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusTermin = "termin"
	PaymentStatusUnpaid = "unpaid"
)

const (
	QueueStatusWaiting   = "Menunggu"
	QueueStatusInService = "Sedang Dilayani"
	QueueStatusDone      = "Selesai"
)

const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
)

const (
	ItemKindProduct = "product"
	ItemKindService = "service"
)

const (
	ReminderStatusPending = "pending"
	ReminderStatusDue     = "due"
	ReminderStatusSent    = "sent"
	ReminderStatusDone    = "done"
)

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     int64     `json:"price"`
	CostPrice int64     `json:"cost_price"`
	Stock     int       `json:"stock"`
	MinStock  int       `json:"min_stock"`
	Unit      string    `json:"unit"`
	Barcode   string    `json:"barcode,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Price        int64  `json:"price"`
	CostPrice    int64  `json:"cost_price"`
	InitialStock int    `json:"initial_stock"`
	MinStock     int    `json:"min_stock"`
	Unit         string `json:"unit"`
	Barcode      string `json:"barcode,omitempty"`
}

type ProductUpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	Category  *string `json:"category,omitempty"`
	Price     *int64  `json:"price,omitempty"`
	CostPrice *int64  `json:"cost_price,omitempty"`
	MinStock  *int    `json:"min_stock,omitempty"`
	Unit      *string `json:"unit,omitempty"`
	Barcode   *string `json:"barcode,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

type Service struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	BasePrice   int64     `json:"base_price"`
	Description string    `json:"description,omitempty"`
	Barcode     string    `json:"barcode,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ServicePrice overrides a service's base price for one vehicle classification.
type ServicePrice struct {
	ServiceID   string `json:"service_id"`
	VehicleType string `json:"vehicle_type"`
	VehicleSize string `json:"vehicle_size"`
	Price       int64  `json:"price"`
}

type ServiceCreateRequest struct {
	Name        string         `json:"name"`
	BasePrice   int64          `json:"base_price"`
	Description string         `json:"description,omitempty"`
	Barcode     string         `json:"barcode,omitempty"`
	Tiers       []ServicePrice `json:"tiers,omitempty"`
}

type ServiceUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	BasePrice   *int64  `json:"base_price,omitempty"`
	Description *string `json:"description,omitempty"`
	Barcode     *string `json:"barcode,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type Member struct {
	ID           string    `json:"id"`
	MemberCode   string    `json:"member_code"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	VehiclePlate string    `json:"vehicle_plate,omitempty"`
	VehicleType  string    `json:"vehicle_type,omitempty"`
	VehicleSize  string    `json:"vehicle_size,omitempty"`
	VehicleModel string    `json:"vehicle_model,omitempty"`
	Points       int64     `json:"points"`
	VisitCount   int       `json:"visit_count"`
	JoinedAt     time.Time `json:"joined_at"`
}

type MemberCreateRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
	VehicleType  string `json:"vehicle_type,omitempty"`
	VehicleSize  string `json:"vehicle_size,omitempty"`
	VehicleModel string `json:"vehicle_model,omitempty"`
}

type MemberUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	VehiclePlate *string `json:"vehicle_plate,omitempty"`
	VehicleType  *string `json:"vehicle_type,omitempty"`
	VehicleSize  *string `json:"vehicle_size,omitempty"`
	VehicleModel *string `json:"vehicle_model,omitempty"`
	Points       *int64  `json:"points,omitempty"`
}

// StockMovement is an immutable ledger entry. StockBefore/StockAfter snapshot
// the product stock around the movement; the ledger is the source of truth for
// the product's denormalized stock field.
type StockMovement struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Direction   string    `json:"direction"`
	Qty         int       `json:"qty"`
	StockBefore int       `json:"stock_before"`
	StockAfter  int       `json:"stock_after"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type StockInRequest struct {
	ProductID   string `json:"product_id"`
	Qty         int    `json:"qty"`
	Description string `json:"description,omitempty"`
}

type StockAdjustmentRequest struct {
	ProductID   string `json:"product_id"`
	NewTotal    int    `json:"new_total"`
	Description string `json:"description,omitempty"`
}

// StockDrift reports a product whose denormalized stock disagrees with the
// running sum of its movements.
type StockDrift struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Stock       int    `json:"stock"`
	LedgerStock int    `json:"ledger_stock"`
	Delta       int    `json:"delta"`
}

type TransactionItem struct {
	Kind       string `json:"kind"`
	ItemID     string `json:"item_id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Qty        int    `json:"qty"`
	Subtotal   int64  `json:"subtotal"`
	Technician string `json:"technician,omitempty"`
}

type TransactionPayment struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Transaction struct {
	ID            string               `json:"id"`
	InvoiceNumber string               `json:"invoice_number"`
	Type          string               `json:"type"`
	MemberID      string               `json:"member_id,omitempty"`
	QueueID       string               `json:"queue_id,omitempty"`
	Subtotal      int64                `json:"subtotal"`
	Discount      int64                `json:"discount"`
	PointsUsed    int64                `json:"points_used"`
	PointsEarned  int64                `json:"points_earned"`
	FinalAmount   int64                `json:"final_amount"`
	PaymentMethod string               `json:"payment_method"`
	PaymentAmount int64                `json:"payment_amount"`
	ChangeAmount  int64                `json:"change_amount"`
	PaymentStatus string               `json:"payment_status"`
	Cashier       string               `json:"cashier,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	Items         []TransactionItem    `json:"items,omitempty"`
	Payments      []TransactionPayment `json:"payments,omitempty"`
}

type CheckoutItem struct {
	Kind       string `json:"kind"`
	ID         string `json:"id"`
	Qty        int    `json:"qty"`
	Technician string `json:"technician,omitempty"`
}

type CheckoutRequest struct {
	Type          string         `json:"type"`
	MemberID      string         `json:"member_id,omitempty"`
	VehicleType   string         `json:"vehicle_type,omitempty"`
	VehicleSize   string         `json:"vehicle_size,omitempty"`
	QueueID       string         `json:"queue_id,omitempty"`
	Discount      int64          `json:"discount"`
	PointsUsed    int64          `json:"points_used"`
	PaymentMethod string         `json:"payment_method"`
	PaymentAmount int64          `json:"payment_amount"`
	Items         []CheckoutItem `json:"items"`
}

type CheckoutResponse struct {
	Transaction Transaction `json:"transaction"`
}

// QuoteRequest prices a cart without committing anything. The same vehicle
// classification fallback as checkout applies: member vehicle first, explicit
// operator choice otherwise.
type QuoteRequest struct {
	MemberID    string         `json:"member_id,omitempty"`
	VehicleType string         `json:"vehicle_type,omitempty"`
	VehicleSize string         `json:"vehicle_size,omitempty"`
	Discount    int64          `json:"discount"`
	PointsUsed  int64          `json:"points_used"`
	Items       []CheckoutItem `json:"items"`
}

type QuoteResponse struct {
	Items       []TransactionItem `json:"items"`
	Subtotal    int64             `json:"subtotal"`
	Discount    int64             `json:"discount"`
	PointsUsed  int64             `json:"points_used"`
	FinalAmount int64             `json:"final_amount"`
}

type PaymentCreateRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
	Note   string `json:"note,omitempty"`
}

type Queue struct {
	ID            string    `json:"id"`
	TicketNumber  string    `json:"ticket_number"`
	Status        string    `json:"status"`
	MemberID      string    `json:"member_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	VehiclePlate  string    `json:"vehicle_plate,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Joined member display data, populated on list/get.
	MemberName   string `json:"member_name,omitempty"`
	MemberPhone  string `json:"member_phone,omitempty"`
	VehicleType  string `json:"vehicle_type,omitempty"`
	VehicleSize  string `json:"vehicle_size,omitempty"`
	VehicleModel string `json:"vehicle_model,omitempty"`
}

type QueueCreateRequest struct {
	MemberID     string `json:"member_id,omitempty"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// LoyaltyReward is the single active milestone configuration.
type LoyaltyReward struct {
	VisitsRequired int    `json:"visits_required"`
	RewardName     string `json:"reward_name"`
}

type LoyaltyClaim struct {
	ID             string    `json:"id"`
	MemberID       string    `json:"member_id"`
	MilestoneVisit int       `json:"milestone_visit"`
	RewardName     string    `json:"reward_name"`
	CreatedAt      time.Time `json:"created_at"`
}

type LoyaltyStatus struct {
	MemberID       string `json:"member_id"`
	VisitCount     int    `json:"visit_count"`
	Points         int64  `json:"points"`
	VisitsRequired int    `json:"visits_required"`
	RewardName     string `json:"reward_name,omitempty"`
	Milestone      int    `json:"milestone"`
	Eligible       bool   `json:"eligible"`
}

// PointConfig controls accrual: floor(total/EarnPer) * EarnPoint.
type PointConfig struct {
	EarnPer   int64 `json:"earn_per"`
	EarnPoint int64 `json:"earn_point"`
}

type StoreProfile struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	LogoURL string `json:"logo_url,omitempty"`
}

type CommissionConfig struct {
	Percent float64 `json:"percent"`
}

type Setting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ServiceReminder struct {
	ID           string    `json:"id"`
	MemberID     string    `json:"member_id"`
	MemberName   string    `json:"member_name,omitempty"`
	VehiclePlate string    `json:"vehicle_plate,omitempty"`
	ServiceName  string    `json:"service_name"`
	DueDate      time.Time `json:"due_date"`
	Status       string    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReminderCreateRequest struct {
	MemberID     string `json:"member_id"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
	ServiceName  string `json:"service_name"`
	DueDate      string `json:"due_date"`
	Notes        string `json:"notes,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type KasirCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type KasirUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is the internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

func ValidVehicleType(t string) bool {
	switch t {
	case VehicleTypeR2, VehicleTypeR3, VehicleTypeR4:
		return true
	}
	return false
}

func ValidVehicleSize(s string) bool {
	switch s {
	case VehicleSizeKecil, VehicleSizeSedang, VehicleSizeBesar, VehicleSizeJumbo:
		return true
	}
	return false
}
