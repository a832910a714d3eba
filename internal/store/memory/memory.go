package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bengkelpos/backend/internal/domain"
	"bengkelpos/backend/internal/loyalty"
	"bengkelpos/backend/internal/store"
	"bengkelpos/backend/internal/xid"
)

type Store struct {
	mu             sync.RWMutex
	loc            *time.Location
	products       map[string]domain.Product
	services       map[string]domain.Service
	tiersByService map[string][]domain.ServicePrice
	members        map[string]domain.Member
	movements      []domain.StockMovement
	transactions   map[string]*domain.Transaction
	invoiceSeq     map[string]int
	queues         map[string]*domain.Queue
	ticketSeq      map[string]int
	reward         *domain.LoyaltyReward
	claims         []domain.LoyaltyClaim
	settings       map[string]domain.Setting
	reminders      map[string]*domain.ServiceReminder
	users          map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD; unset
// variables fall back to hardcoded dev defaults with a warning. The backend
// uses PostgreSQL when DATABASE_URL is set, so these never reach production.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	kasirPwd := envOr("SEED_KASIR_PASSWORD", "kasir123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_KASIR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"kasir", kasirPwd, "kasir"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		loc:            loc,
		products:       map[string]domain.Product{},
		services:       map[string]domain.Service{},
		tiersByService: map[string][]domain.ServicePrice{},
		members:        map[string]domain.Member{},
		movements:      make([]domain.StockMovement, 0, 128),
		transactions:   map[string]*domain.Transaction{},
		invoiceSeq:     map[string]int{},
		queues:         map[string]*domain.Queue{},
		ticketSeq:      map[string]int{},
		claims:         make([]domain.LoyaltyClaim, 0, 16),
		settings:       map[string]domain.Setting{},
		reminders:      map[string]*domain.ServiceReminder{},
		users:          seedUsers(),
	}
}

// NewSeeded builds a store preloaded with demo workshop and café data.
func NewSeeded(loc *time.Location) *Store {
	s := New(loc)
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prd-oli-mesin", Name: "Oli Mesin 1L", Category: "sparepart", Price: 50000, CostPrice: 38000, MinStock: 5, Unit: "botol", Active: true, CreatedAt: now},
		{ID: "prd-kampas-rem", Name: "Kampas Rem", Category: "sparepart", Price: 45000, CostPrice: 30000, MinStock: 4, Unit: "set", Active: true, CreatedAt: now},
		{ID: "prd-busi", Name: "Busi NGK", Category: "sparepart", Price: 18000, CostPrice: 12000, MinStock: 10, Unit: "pcs", Active: true, CreatedAt: now},
		{ID: "prd-ban-dalam", Name: "Ban Dalam", Category: "sparepart", Price: 35000, CostPrice: 24000, MinStock: 6, Unit: "pcs", Active: true, CreatedAt: now},
		{ID: "prd-kopi-susu", Name: "Kopi Susu", Category: "kafe", Price: 12500, CostPrice: 6000, MinStock: 0, Unit: "gelas", Active: true, CreatedAt: now},
		{ID: "prd-teh-manis", Name: "Teh Manis", Category: "kafe", Price: 6000, CostPrice: 2000, MinStock: 0, Unit: "gelas", Active: true, CreatedAt: now},
		{ID: "prd-roti-bakar", Name: "Roti Bakar", Category: "kafe", Price: 15000, CostPrice: 8000, MinStock: 0, Unit: "porsi", Active: true, CreatedAt: now},
	}
	for _, p := range products {
		initial := 20
		if p.Category == "kafe" {
			initial = 50
		}
		p.Stock = initial
		s.products[p.ID] = p
		s.movements = append(s.movements, domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   p.ID,
			ProductName: p.Name,
			Direction:   domain.MovementIn,
			Qty:         initial,
			StockBefore: 0,
			StockAfter:  initial,
			Description: "Stok awal",
			CreatedAt:   now,
		})
	}

	services := []domain.Service{
		{ID: "svc-cuci", Name: "Cuci Kendaraan", BasePrice: 15000, Active: true, CreatedAt: now},
		{ID: "svc-servis-ringan", Name: "Servis Ringan", BasePrice: 50000, Active: true, CreatedAt: now},
		{ID: "svc-ganti-oli", Name: "Ganti Oli", BasePrice: 20000, Active: true, CreatedAt: now},
		{ID: "svc-tambal-ban", Name: "Tambal Ban", BasePrice: 15000, Active: true, CreatedAt: now},
	}
	for _, svc := range services {
		s.services[svc.ID] = svc
	}
	s.tiersByService["svc-cuci"] = []domain.ServicePrice{
		{ServiceID: "svc-cuci", VehicleType: domain.VehicleTypeR2, VehicleSize: domain.VehicleSizeKecil, Price: 15000},
		{ServiceID: "svc-cuci", VehicleType: domain.VehicleTypeR2, VehicleSize: domain.VehicleSizeBesar, Price: 20000},
		{ServiceID: "svc-cuci", VehicleType: domain.VehicleTypeR4, VehicleSize: domain.VehicleSizeSedang, Price: 35000},
		{ServiceID: "svc-cuci", VehicleType: domain.VehicleTypeR4, VehicleSize: domain.VehicleSizeJumbo, Price: 50000},
	}

	members := []domain.Member{
		{ID: "mbr-andi", MemberCode: "MBR-0001", Name: "Andi Wijaya", Phone: "081234560001", VehiclePlate: "B 1234 ABC", VehicleType: domain.VehicleTypeR2, VehicleSize: domain.VehicleSizeKecil, VehicleModel: "Vario 125", Points: 20, VisitCount: 4, JoinedAt: now.AddDate(0, -2, 0)},
		{ID: "mbr-sari", MemberCode: "MBR-0002", Name: "Sari Lestari", Phone: "081234560002", VehiclePlate: "B 5678 DEF", VehicleType: domain.VehicleTypeR4, VehicleSize: domain.VehicleSizeSedang, VehicleModel: "Avanza", Points: 5, VisitCount: 1, JoinedAt: now.AddDate(0, -1, 0)},
	}
	for _, m := range members {
		s.members[m.ID] = m
	}

	s.reward = &domain.LoyaltyReward{VisitsRequired: 5, RewardName: "Cuci Gratis"}
	s.settings["points"] = domain.Setting{
		Key:       "points",
		Value:     json.RawMessage(`{"earn_per":10000,"earn_point":1}`),
		UpdatedAt: now,
	}
	s.settings["store_profile"] = domain.Setting{
		Key:       "store_profile",
		Value:     json.RawMessage(`{"name":"Bengkel Berkah Motor","address":"Jl. Raya Bogor KM 30","phone":"021-555-0101"}`),
		UpdatedAt: now,
	}
	s.settings["commission"] = domain.Setting{
		Key:       "commission",
		Value:     json.RawMessage(`{"percent":10}`),
		UpdatedAt: now,
	}
	return s
}

func (s *Store) dayKey(t time.Time) string {
	return t.In(s.loc).Format("20060102")
}

func cmpString(a, b string) int {
	return strings.Compare(a, b)
}

func matchesQuery(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	query = strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func (s *Store) ListProducts(_ context.Context, query string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if !matchesQuery(query, p.Name, p.Category, p.Barcode) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product, initialStock int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Price < 0 || initialStock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	product.Active = true
	product.Stock = 0
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	if initialStock > 0 {
		product.Stock = initialStock
		s.movements = append(s.movements, domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   product.ID,
			ProductName: product.Name,
			Direction:   domain.MovementIn,
			Qty:         initialStock,
			StockBefore: 0,
			StockAfter:  initialStock,
			Description: "Stok awal",
			CreatedAt:   time.Now().UTC(),
		})
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Name == "" || product.Price < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	// Stock only changes through the ledger.
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	low := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if !p.Active || p.MinStock <= 0 {
			continue
		}
		if p.Stock <= p.MinStock {
			low = append(low, p)
		}
	}
	slices.SortFunc(low, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return low, nil
}

func (s *Store) ListServices(_ context.Context, query string) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]domain.Service, 0, len(s.services))
	for _, svc := range s.services {
		if !svc.Active {
			continue
		}
		if !matchesQuery(query, svc.Name, svc.Barcode) {
			continue
		}
		services = append(services, svc)
	}
	slices.SortFunc(services, func(a, b domain.Service) int {
		return cmpString(a.Name, b.Name)
	})
	return services, nil
}

func (s *Store) GetService(_ context.Context, id string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, exists := s.services[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySvc := svc
	return &copySvc, nil
}

func validateTiers(serviceID string, tiers []domain.ServicePrice) error {
	seen := map[string]bool{}
	for _, tier := range tiers {
		if !domain.ValidVehicleType(tier.VehicleType) || !domain.ValidVehicleSize(tier.VehicleSize) {
			return store.ErrInvalidInput
		}
		if tier.Price < 0 {
			return store.ErrInvalidInput
		}
		if tier.ServiceID != "" && tier.ServiceID != serviceID {
			return store.ErrInvalidInput
		}
		key := tier.VehicleType + "/" + tier.VehicleSize
		if seen[key] {
			return store.ErrInvalidInput
		}
		seen[key] = true
	}
	return nil
}

func (s *Store) CreateService(_ context.Context, svc domain.Service, tiers []domain.ServicePrice) (*domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.Name == "" || svc.BasePrice < 0 {
		return nil, store.ErrInvalidInput
	}
	if svc.ID == "" {
		svc.ID = xid.New("svc")
	}
	if _, exists := s.services[svc.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	if err := validateTiers(svc.ID, tiers); err != nil {
		return nil, err
	}
	svc.Active = true
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}

	s.services[svc.ID] = svc
	if len(tiers) > 0 {
		stored := make([]domain.ServicePrice, 0, len(tiers))
		for _, tier := range tiers {
			tier.ServiceID = svc.ID
			stored = append(stored, tier)
		}
		s.tiersByService[svc.ID] = stored
	}
	created := svc
	return &created, nil
}

func (s *Store) UpdateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.services[svc.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if svc.Name == "" || svc.BasePrice < 0 {
		return nil, store.ErrInvalidInput
	}
	svc.CreatedAt = existing.CreatedAt
	s.services[svc.ID] = svc
	updated := svc
	return &updated, nil
}

func (s *Store) ListServiceTiers(_ context.Context, serviceID string) ([]domain.ServicePrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.services[serviceID]; !exists {
		return nil, store.ErrNotFound
	}
	tiers := s.tiersByService[serviceID]
	result := make([]domain.ServicePrice, len(tiers))
	copy(result, tiers)
	slices.SortFunc(result, func(a, b domain.ServicePrice) int {
		if a.VehicleType == b.VehicleType {
			return cmpString(a.VehicleSize, b.VehicleSize)
		}
		return cmpString(a.VehicleType, b.VehicleType)
	})
	return result, nil
}

func (s *Store) ReplaceServiceTiers(_ context.Context, serviceID string, tiers []domain.ServicePrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[serviceID]; !exists {
		return store.ErrNotFound
	}
	if err := validateTiers(serviceID, tiers); err != nil {
		return err
	}
	stored := make([]domain.ServicePrice, 0, len(tiers))
	for _, tier := range tiers {
		tier.ServiceID = serviceID
		stored = append(stored, tier)
	}
	s.tiersByService[serviceID] = stored
	return nil
}

func normalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

func (s *Store) ListMembers(_ context.Context, query string) ([]domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]domain.Member, 0, len(s.members))
	for _, m := range s.members {
		if !matchesQuery(query, m.Name, m.Phone, m.VehiclePlate, m.MemberCode) {
			continue
		}
		members = append(members, m)
	}
	slices.SortFunc(members, func(a, b domain.Member) int {
		return cmpString(a.MemberCode, b.MemberCode)
	})
	return members, nil
}

func (s *Store) GetMember(_ context.Context, id string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, exists := s.members[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyMember := member
	return &copyMember, nil
}

func (s *Store) FindMemberByPhone(_ context.Context, phone string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	phone = normalizePhone(phone)
	for _, m := range s.members {
		if m.Phone == phone {
			copyMember := m
			return &copyMember, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateMember(_ context.Context, member domain.Member) (*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member.Phone = normalizePhone(member.Phone)
	if member.Name == "" || member.Phone == "" {
		return nil, store.ErrInvalidInput
	}
	if member.VehicleType != "" && !domain.ValidVehicleType(member.VehicleType) {
		return nil, store.ErrInvalidInput
	}
	if member.VehicleSize != "" && !domain.ValidVehicleSize(member.VehicleSize) {
		return nil, store.ErrInvalidInput
	}
	for _, m := range s.members {
		if m.Phone == member.Phone {
			return nil, store.ErrDuplicatePhone
		}
	}

	if member.ID == "" {
		member.ID = xid.New("mbr")
	}
	if member.MemberCode == "" {
		member.MemberCode = fmt.Sprintf("MBR-%04d", len(s.members)+1)
	}
	member.Points = 0
	member.VisitCount = 0
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	s.members[member.ID] = member
	created := member
	return &created, nil
}

func (s *Store) UpdateMember(_ context.Context, member domain.Member) (*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.members[member.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	member.Phone = normalizePhone(member.Phone)
	if member.Name == "" || member.Phone == "" {
		return nil, store.ErrInvalidInput
	}
	if member.VehicleType != "" && !domain.ValidVehicleType(member.VehicleType) {
		return nil, store.ErrInvalidInput
	}
	if member.VehicleSize != "" && !domain.ValidVehicleSize(member.VehicleSize) {
		return nil, store.ErrInvalidInput
	}
	for _, m := range s.members {
		if m.ID != member.ID && m.Phone == member.Phone {
			return nil, store.ErrDuplicatePhone
		}
	}
	if member.Points < 0 {
		return nil, store.ErrInvalidInput
	}
	member.MemberCode = existing.MemberCode
	member.VisitCount = existing.VisitCount
	member.JoinedAt = existing.JoinedAt
	s.members[member.ID] = member
	updated := member
	return &updated, nil
}

func (s *Store) RecordStockIn(_ context.Context, productID string, qty int, description string) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty < 1 {
		return nil, store.ErrInvalidInput
	}
	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}

	movement := domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   product.ID,
		ProductName: product.Name,
		Direction:   domain.MovementIn,
		Qty:         qty,
		StockBefore: product.Stock,
		StockAfter:  product.Stock + qty,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	product.Stock = movement.StockAfter
	s.products[product.ID] = product
	s.movements = append(s.movements, movement)
	created := movement
	return &created, nil
}

func (s *Store) RecordStockAdjustment(_ context.Context, productID string, newTotal int, description string) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if newTotal < 0 {
		return nil, store.ErrInvalidInput
	}
	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}

	delta := newTotal - product.Stock
	qty := delta
	if qty < 0 {
		qty = -qty
	}
	movement := domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   product.ID,
		ProductName: product.Name,
		Direction:   domain.MovementAdjustment,
		Qty:         qty,
		StockBefore: product.Stock,
		StockAfter:  newTotal,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	product.Stock = newTotal
	s.products[product.ID] = product
	s.movements = append(s.movements, movement)
	created := movement
	return &created, nil
}

func (s *Store) ListStockMovements(_ context.Context, productID string, from, to time.Time, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0, 32)
	for _, mv := range s.movements {
		if productID != "" && mv.ProductID != productID {
			continue
		}
		if !from.IsZero() && mv.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !mv.CreatedAt.Before(to) {
			continue
		}
		result = append(result, mv)
	}
	slices.SortFunc(result, func(a, b domain.StockMovement) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ReconcileStock(_ context.Context) ([]domain.StockDrift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replay the ledger per product in chronological order. Adjustments set
	// an absolute level; in/out apply deltas.
	chronological := make([]domain.StockMovement, len(s.movements))
	copy(chronological, s.movements)
	slices.SortFunc(chronological, func(a, b domain.StockMovement) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})

	ledger := map[string]int{}
	for _, mv := range chronological {
		switch mv.Direction {
		case domain.MovementIn:
			ledger[mv.ProductID] += mv.Qty
		case domain.MovementOut:
			ledger[mv.ProductID] -= mv.Qty
		case domain.MovementAdjustment:
			ledger[mv.ProductID] = mv.StockAfter
		}
	}

	drifts := make([]domain.StockDrift, 0, 4)
	for id, product := range s.products {
		want := ledger[id]
		if product.Stock == want {
			continue
		}
		drifts = append(drifts, domain.StockDrift{
			ProductID:   id,
			ProductName: product.Name,
			Stock:       product.Stock,
			LedgerStock: want,
			Delta:       product.Stock - want,
		})
	}
	slices.SortFunc(drifts, func(a, b domain.StockDrift) int {
		return cmpString(a.ProductName, b.ProductName)
	})
	return drifts, nil
}

func (s *Store) CreateCheckout(_ context.Context, tx domain.Transaction, points domain.PointConfig) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.Type != domain.TxTypeBengkel && tx.Type != domain.TxTypeKafe {
		return nil, store.ErrInvalidInput
	}

	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}

	// Stage 1: validate everything before touching state, so a failed
	// checkout leaves nothing behind.
	subtotal := int64(0)
	type stockWrite struct {
		product domain.Product
		qty     int
	}
	writes := make([]stockWrite, 0, len(tx.Items))
	// Duplicate lines for one product must be checked against the stock they
	// jointly consume, not each against the initial level.
	needed := make(map[string]int, len(tx.Items))
	for i, item := range tx.Items {
		if item.Qty < 1 || item.Price < 0 {
			return nil, store.ErrInvalidInput
		}
		switch item.Kind {
		case domain.ItemKindProduct:
			product, exists := s.products[item.ItemID]
			if !exists || !product.Active {
				return nil, fmt.Errorf("product %s unavailable: %w", item.ItemID, store.ErrInvalidInput)
			}
			needed[item.ItemID] += item.Qty
			if product.Stock < needed[item.ItemID] {
				return nil, store.ErrInsufficientStock
			}
			writes = append(writes, stockWrite{product: product, qty: item.Qty})
		case domain.ItemKindService:
			svc, exists := s.services[item.ItemID]
			if !exists || !svc.Active {
				return nil, fmt.Errorf("service %s unavailable: %w", item.ItemID, store.ErrInvalidInput)
			}
		default:
			return nil, store.ErrInvalidInput
		}
		tx.Items[i].Subtotal = item.Price * int64(item.Qty)
		subtotal += tx.Items[i].Subtotal
	}

	if tx.Discount < 0 || tx.PointsUsed < 0 || tx.Discount+tx.PointsUsed > subtotal {
		return nil, store.ErrInvalidInput
	}

	var member *domain.Member
	if tx.MemberID != "" {
		m, exists := s.members[tx.MemberID]
		if !exists {
			return nil, store.ErrNotFound
		}
		member = &m
		if tx.PointsUsed > m.Points {
			return nil, store.ErrInsufficientPoints
		}
	} else if tx.PointsUsed > 0 {
		return nil, store.ErrInvalidInput
	}

	var queue *domain.Queue
	if tx.QueueID != "" {
		q, exists := s.queues[tx.QueueID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if q.Status == domain.QueueStatusDone {
			return nil, store.ErrInvalidState
		}
		queue = q
	}

	tx.Subtotal = subtotal
	tx.FinalAmount = subtotal - tx.Discount - tx.PointsUsed
	tx.PointsEarned = 0
	if member != nil {
		tx.PointsEarned = loyalty.EarnedPoints(tx.FinalAmount, points)
	}

	if tx.PaymentAmount < 0 {
		return nil, store.ErrInvalidInput
	}
	switch {
	case tx.PaymentAmount >= tx.FinalAmount:
		tx.PaymentStatus = domain.PaymentStatusPaid
		tx.ChangeAmount = tx.PaymentAmount - tx.FinalAmount
	case tx.PaymentAmount > 0:
		tx.PaymentStatus = domain.PaymentStatusTermin
		tx.ChangeAmount = 0
	default:
		tx.PaymentStatus = domain.PaymentStatusUnpaid
		tx.ChangeAmount = 0
	}

	// Stage 2: commit.
	if tx.ID == "" {
		tx.ID = xid.New("trx")
	}
	day := s.dayKey(tx.CreatedAt)
	s.invoiceSeq[day]++
	tx.InvoiceNumber = fmt.Sprintf("INV-%s-%04d", day, s.invoiceSeq[day])

	for _, w := range writes {
		product := s.products[w.product.ID]
		movement := domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   product.ID,
			ProductName: product.Name,
			Direction:   domain.MovementOut,
			Qty:         w.qty,
			StockBefore: product.Stock,
			StockAfter:  product.Stock - w.qty,
			Description: "Penjualan " + tx.InvoiceNumber,
			CreatedAt:   tx.CreatedAt,
		}
		product.Stock = movement.StockAfter
		s.products[product.ID] = product
		s.movements = append(s.movements, movement)
	}

	if member != nil {
		member.Points = loyalty.NewBalance(member.Points, tx.PointsUsed, tx.PointsEarned)
		member.VisitCount++
		s.members[member.ID] = *member
	}

	if queue != nil {
		queue.Status = domain.QueueStatusDone
		queue.TransactionID = tx.ID
	}

	if tx.PaymentStatus != domain.PaymentStatusPaid && tx.PaymentAmount > 0 {
		tx.Payments = append(tx.Payments, domain.TransactionPayment{
			ID:            xid.New("pay"),
			TransactionID: tx.ID,
			Amount:        tx.PaymentAmount,
			Method:        tx.PaymentMethod,
			Note:          "Pembayaran awal",
			CreatedAt:     tx.CreatedAt,
		})
	}

	stored := cloneTransaction(&tx)
	s.transactions[tx.ID] = stored
	return cloneTransaction(stored), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, from, to time.Time, txType string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 32)
	for _, tx := range s.transactions {
		if txType != "" && tx.Type != txType {
			continue
		}
		if !from.IsZero() && tx.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !tx.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) AddTransactionPayment(_ context.Context, payment domain.TransactionPayment) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[payment.TransactionID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if tx.PaymentStatus == domain.PaymentStatusPaid {
		return nil, store.ErrInvalidState
	}
	if payment.Amount < 1 {
		return nil, store.ErrInvalidInput
	}

	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	tx.Payments = append(tx.Payments, payment)

	paid := int64(0)
	for _, p := range tx.Payments {
		paid += p.Amount
	}
	if paid >= tx.FinalAmount {
		tx.PaymentStatus = domain.PaymentStatusPaid
		tx.ChangeAmount = paid - tx.FinalAmount
	} else {
		tx.PaymentStatus = domain.PaymentStatusTermin
	}
	return cloneTransaction(tx), nil
}

func (s *Store) CreateQueue(_ context.Context, queue domain.Queue) (*domain.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if queue.CreatedAt.IsZero() {
		queue.CreatedAt = now
	}
	if queue.MemberID != "" {
		member, exists := s.members[queue.MemberID]
		if !exists {
			return nil, store.ErrNotFound
		}
		queue.MemberName = member.Name
		queue.MemberPhone = member.Phone
		queue.VehicleType = member.VehicleType
		queue.VehicleSize = member.VehicleSize
		queue.VehicleModel = member.VehicleModel
		if queue.VehiclePlate == "" {
			queue.VehiclePlate = member.VehiclePlate
		}
	}

	if queue.ID == "" {
		queue.ID = xid.New("que")
	}
	day := s.dayKey(queue.CreatedAt)
	s.ticketSeq[day]++
	queue.TicketNumber = fmt.Sprintf("Q%03d", s.ticketSeq[day])
	queue.Status = domain.QueueStatusWaiting

	stored := queue
	s.queues[queue.ID] = &stored
	created := stored
	return &created, nil
}

func (s *Store) GetQueue(_ context.Context, id string) (*domain.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queue, exists := s.queues[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyQueue := *queue
	return &copyQueue, nil
}

func (s *Store) ListQueues(_ context.Context, day time.Time) ([]domain.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := s.dayKey(day)
	result := make([]domain.Queue, 0, 16)
	for _, q := range s.queues {
		if s.dayKey(q.CreatedAt) != key {
			continue
		}
		result = append(result, *q)
	}
	slices.SortFunc(result, func(a, b domain.Queue) int {
		return cmpString(a.TicketNumber, b.TicketNumber)
	})
	return result, nil
}

func validQueueTransition(from, to string) bool {
	switch from {
	case domain.QueueStatusWaiting:
		return to == domain.QueueStatusInService || to == domain.QueueStatusDone
	case domain.QueueStatusInService:
		return to == domain.QueueStatusDone
	}
	return false
}

func (s *Store) UpdateQueueStatus(_ context.Context, id string, status string) (*domain.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, exists := s.queues[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !validQueueTransition(queue.Status, status) {
		return nil, store.ErrInvalidState
	}
	queue.Status = status
	copyQueue := *queue
	return &copyQueue, nil
}

func (s *Store) DeleteQueue(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, exists := s.queues[id]
	if !exists {
		return store.ErrNotFound
	}
	if queue.Status != domain.QueueStatusWaiting {
		return store.ErrInvalidState
	}
	delete(s.queues, id)
	return nil
}

func (s *Store) GetLoyaltyReward(_ context.Context) (*domain.LoyaltyReward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.reward == nil {
		return nil, store.ErrNotFound
	}
	reward := *s.reward
	return &reward, nil
}

func (s *Store) PutLoyaltyReward(_ context.Context, reward domain.LoyaltyReward) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reward.VisitsRequired < 1 || reward.RewardName == "" {
		return store.ErrInvalidInput
	}
	s.reward = &reward
	return nil
}

func (s *Store) HasLoyaltyClaim(_ context.Context, memberID string, milestone int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.claims {
		if c.MemberID == memberID && c.MilestoneVisit == milestone {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateLoyaltyClaim(_ context.Context, claim domain.LoyaltyClaim) (*domain.LoyaltyClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if claim.MemberID == "" || claim.MilestoneVisit < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.members[claim.MemberID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, c := range s.claims {
		if c.MemberID == claim.MemberID && c.MilestoneVisit == claim.MilestoneVisit {
			return nil, store.ErrMilestoneClaimed
		}
	}
	if claim.ID == "" {
		claim.ID = xid.New("clm")
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}
	s.claims = append(s.claims, claim)
	created := claim
	return &created, nil
}

func (s *Store) ListLoyaltyClaims(_ context.Context, memberID string) ([]domain.LoyaltyClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LoyaltyClaim, 0, 4)
	for _, c := range s.claims {
		if c.MemberID == memberID {
			result = append(result, c)
		}
	}
	slices.SortFunc(result, func(a, b domain.LoyaltyClaim) int {
		return b.MilestoneVisit - a.MilestoneVisit
	})
	return result, nil
}

func (s *Store) GetSetting(_ context.Context, key string) (*domain.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, exists := s.settings[key]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySetting := setting
	copySetting.Value = append(json.RawMessage(nil), setting.Value...)
	return &copySetting, nil
}

func (s *Store) PutSetting(_ context.Context, key string, value json.RawMessage) (*domain.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" || !json.Valid(value) {
		return nil, store.ErrInvalidInput
	}
	setting := domain.Setting{
		Key:       key,
		Value:     append(json.RawMessage(nil), value...),
		UpdatedAt: time.Now().UTC(),
	}
	s.settings[key] = setting
	copySetting := setting
	return &copySetting, nil
}

func (s *Store) CreateReminder(_ context.Context, reminder domain.ServiceReminder) (*domain.ServiceReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reminder.MemberID == "" || reminder.ServiceName == "" || reminder.DueDate.IsZero() {
		return nil, store.ErrInvalidInput
	}
	member, exists := s.members[reminder.MemberID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if reminder.ID == "" {
		reminder.ID = xid.New("rem")
	}
	reminder.MemberName = member.Name
	if reminder.VehiclePlate == "" {
		reminder.VehiclePlate = member.VehiclePlate
	}
	reminder.Status = domain.ReminderStatusPending
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	stored := reminder
	s.reminders[reminder.ID] = &stored
	created := stored
	return &created, nil
}

func (s *Store) ListReminders(_ context.Context, status string, limit int) ([]domain.ServiceReminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ServiceReminder, 0, 16)
	for _, r := range s.reminders {
		if status != "" && r.Status != status {
			continue
		}
		result = append(result, *r)
	}
	slices.SortFunc(result, func(a, b domain.ServiceReminder) int {
		if a.DueDate.Equal(b.DueDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.DueDate.Before(b.DueDate) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func validReminderStatus(status string) bool {
	switch status {
	case domain.ReminderStatusPending, domain.ReminderStatusDue, domain.ReminderStatusSent, domain.ReminderStatusDone:
		return true
	}
	return false
}

func (s *Store) UpdateReminderStatus(_ context.Context, id string, status string) (*domain.ServiceReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, exists := s.reminders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !validReminderStatus(status) {
		return nil, store.ErrInvalidInput
	}
	reminder.Status = status
	copyReminder := *reminder
	return &copyReminder, nil
}

func (s *Store) MarkRemindersDue(_ context.Context, asOf time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.reminders {
		if r.Status != domain.ReminderStatusPending {
			continue
		}
		if r.DueDate.After(asOf) {
			continue
		}
		r.Status = domain.ReminderStatusDue
		n++
	}
	return n, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.users[user.Username]; exists {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	if password == "" {
		return store.ErrInvalidInput
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func cloneTransaction(tx *domain.Transaction) *domain.Transaction {
	if tx == nil {
		return nil
	}
	clone := *tx
	clone.Items = make([]domain.TransactionItem, len(tx.Items))
	copy(clone.Items, tx.Items)
	clone.Payments = make([]domain.TransactionPayment, len(tx.Payments))
	copy(clone.Payments, tx.Payments)
	return &clone
}
