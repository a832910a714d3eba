package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bengkelpos/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrMilestoneClaimed   = errors.New("milestone already claimed")
	ErrDuplicatePhone     = errors.New("phone already registered")
	ErrInvalidState       = errors.New("invalid state transition")
)

// Repository is the persistence contract shared by the in-memory and postgres
// stores. Implementations must make CreateCheckout, stock writes, queue ticket
// numbering and loyalty claims atomic: partial checkout state is never visible.
type Repository interface {
	ListProducts(ctx context.Context, query string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product, initialStock int) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)

	ListServices(ctx context.Context, query string) ([]domain.Service, error)
	GetService(ctx context.Context, id string) (*domain.Service, error)
	CreateService(ctx context.Context, svc domain.Service, tiers []domain.ServicePrice) (*domain.Service, error)
	UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error)
	ListServiceTiers(ctx context.Context, serviceID string) ([]domain.ServicePrice, error)
	ReplaceServiceTiers(ctx context.Context, serviceID string, tiers []domain.ServicePrice) error

	ListMembers(ctx context.Context, query string) ([]domain.Member, error)
	GetMember(ctx context.Context, id string) (*domain.Member, error)
	FindMemberByPhone(ctx context.Context, phone string) (*domain.Member, error)
	CreateMember(ctx context.Context, member domain.Member) (*domain.Member, error)
	UpdateMember(ctx context.Context, member domain.Member) (*domain.Member, error)

	// RecordStockIn appends an `in` movement and moves the product stock to
	// stock_before+qty. RecordStockAdjustment appends an `adjustment` movement
	// whose stock_after equals newTotal. Both lock the product row.
	RecordStockIn(ctx context.Context, productID string, qty int, description string) (*domain.StockMovement, error)
	RecordStockAdjustment(ctx context.Context, productID string, newTotal int, description string) (*domain.StockMovement, error)
	ListStockMovements(ctx context.Context, productID string, from, to time.Time, limit int) ([]domain.StockMovement, error)
	// ReconcileStock compares each product's denormalized stock against the
	// ledger running sum and returns the products that drifted.
	ReconcileStock(ctx context.Context) ([]domain.StockDrift, error)

	// CreateCheckout commits one sale atomically: header (invoice number
	// generated from a per-day counter), items, one `out` movement + stock
	// decrement per product line, member points/visit update, queue linking.
	CreateCheckout(ctx context.Context, tx domain.Transaction, points domain.PointConfig) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, from, to time.Time, txType string, limit int) ([]domain.Transaction, error)
	// AddTransactionPayment appends a termin payment and recomputes the
	// transaction's payment status. Returns the updated transaction.
	AddTransactionPayment(ctx context.Context, payment domain.TransactionPayment) (*domain.Transaction, error)

	CreateQueue(ctx context.Context, queue domain.Queue) (*domain.Queue, error)
	GetQueue(ctx context.Context, id string) (*domain.Queue, error)
	ListQueues(ctx context.Context, day time.Time) ([]domain.Queue, error)
	UpdateQueueStatus(ctx context.Context, id string, status string) (*domain.Queue, error)
	DeleteQueue(ctx context.Context, id string) error

	GetLoyaltyReward(ctx context.Context) (*domain.LoyaltyReward, error)
	PutLoyaltyReward(ctx context.Context, reward domain.LoyaltyReward) error
	HasLoyaltyClaim(ctx context.Context, memberID string, milestone int) (bool, error)
	// CreateLoyaltyClaim inserts the (member, milestone) row; a duplicate
	// claim fails with ErrMilestoneClaimed (unique constraint).
	CreateLoyaltyClaim(ctx context.Context, claim domain.LoyaltyClaim) (*domain.LoyaltyClaim, error)
	ListLoyaltyClaims(ctx context.Context, memberID string) ([]domain.LoyaltyClaim, error)

	GetSetting(ctx context.Context, key string) (*domain.Setting, error)
	PutSetting(ctx context.Context, key string, value json.RawMessage) (*domain.Setting, error)

	CreateReminder(ctx context.Context, reminder domain.ServiceReminder) (*domain.ServiceReminder, error)
	ListReminders(ctx context.Context, status string, limit int) ([]domain.ServiceReminder, error)
	UpdateReminderStatus(ctx context.Context, id string, status string) (*domain.ServiceReminder, error)
	// MarkRemindersDue flips pending reminders whose due date has passed to
	// `due` and returns how many rows changed.
	MarkRemindersDue(ctx context.Context, asOf time.Time) (int, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
