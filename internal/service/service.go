package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"bengkelpos/backend/internal/cache"
	"bengkelpos/backend/internal/cart"
	"bengkelpos/backend/internal/domain"
	"bengkelpos/backend/internal/loyalty"
	"bengkelpos/backend/internal/metrics"
	"bengkelpos/backend/internal/pricing"
	"bengkelpos/backend/internal/report"
	"bengkelpos/backend/internal/store"
	"bengkelpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	settings    cache.SettingsCache
	settingsTTL time.Duration
	loc         *time.Location
}

func New(repo store.Repository, settings cache.SettingsCache, settingsTTL time.Duration, loc *time.Location) *Service {
	if settings == nil {
		settings = cache.NoopSettingsCache{}
	}
	if settingsTTL <= 0 {
		settingsTTL = time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:        repo,
		settings:    settings,
		settingsTTL: settingsTTL,
		loc:         loc,
	}
}

func (s *Service) requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	log.Printf("[service] audit actor=%s role=%s action=%s %s=%s %s", actor.Username, actor.Role, action, entityType, entityID, detail)
}

// ---- products ----

func (s *Service) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(query))
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.Price < 1 || req.CostPrice < 0 || req.InitialStock < 0 || req.MinStock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	product := domain.Product{
		Name:      req.Name,
		Category:  req.Category,
		Price:     req.Price,
		CostPrice: req.CostPrice,
		MinStock:  req.MinStock,
		Unit:      strings.TrimSpace(req.Unit),
		Barcode:   strings.TrimSpace(req.Barcode),
		Active:    true,
	}

	created, err := s.repo.CreateProduct(ctx, product, req.InitialStock)
	if err != nil {
		return domain.Product{}, err
	}
	if req.InitialStock > 0 {
		metrics.StockMovementsTotal.WithLabelValues(domain.MovementIn).Inc()
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.Price, req.InitialStock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Category = category
	}
	if req.Price != nil {
		if *req.Price < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Price = *req.Price
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.MinStock = *req.MinStock
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.Price))
	return *saved, nil
}

// ---- services and price tiers ----

func (s *Service) ListServices(ctx context.Context, query string) ([]domain.Service, error) {
	return s.repo.ListServices(ctx, strings.TrimSpace(query))
}

func (s *Service) GetService(ctx context.Context, id string) (domain.Service, []domain.ServicePrice, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return domain.Service{}, nil, err
	}
	tiers, err := s.repo.ListServiceTiers(ctx, id)
	if err != nil {
		return domain.Service{}, nil, err
	}
	return *svc, tiers, nil
}

func (s *Service) CreateService(ctx context.Context, req domain.ServiceCreateRequest) (domain.Service, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Service{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.BasePrice < 0 {
		return domain.Service{}, store.ErrInvalidInput
	}

	svc := domain.Service{
		Name:        req.Name,
		BasePrice:   req.BasePrice,
		Description: strings.TrimSpace(req.Description),
		Barcode:     strings.TrimSpace(req.Barcode),
		Active:      true,
	}

	created, err := s.repo.CreateService(ctx, svc, req.Tiers)
	if err != nil {
		return domain.Service{}, err
	}

	s.logAudit(ctx, "service_create", "service", created.ID, fmt.Sprintf("name=%s,base=%d,tiers=%d", created.Name, created.BasePrice, len(req.Tiers)))
	return *created, nil
}

func (s *Service) UpdateService(ctx context.Context, id string, req domain.ServiceUpdateRequest) (domain.Service, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Service{}, err
	}

	existing, err := s.repo.GetService(ctx, id)
	if err != nil {
		return domain.Service{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Service{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.BasePrice != nil {
		if *req.BasePrice < 0 {
			return domain.Service{}, store.ErrInvalidInput
		}
		updated.BasePrice = *req.BasePrice
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateService(ctx, updated)
	if err != nil {
		return domain.Service{}, err
	}

	s.logAudit(ctx, "service_update", "service", saved.ID, fmt.Sprintf("active=%t,base=%d", saved.Active, saved.BasePrice))
	return *saved, nil
}

func (s *Service) ListServiceTiers(ctx context.Context, serviceID string) ([]domain.ServicePrice, error) {
	return s.repo.ListServiceTiers(ctx, serviceID)
}

func (s *Service) ReplaceServiceTiers(ctx context.Context, serviceID string, tiers []domain.ServicePrice) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.ReplaceServiceTiers(ctx, serviceID, tiers); err != nil {
		return err
	}
	s.logAudit(ctx, "service_tiers_replace", "service", serviceID, fmt.Sprintf("tiers=%d", len(tiers)))
	return nil
}

// ResolveServicePrice prices one service for a vehicle classification. A
// tiered service with no matching tier resolves to zero so the gap is visible
// at the counter instead of silently billing the base price.
func (s *Service) ResolveServicePrice(ctx context.Context, serviceID, vehicleType, vehicleSize string) (int64, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return 0, err
	}
	tiers, err := s.repo.ListServiceTiers(ctx, serviceID)
	if err != nil {
		return 0, err
	}
	return pricing.Resolve(*svc, tiers, vehicleType, vehicleSize), nil
}

// ---- members ----

func (s *Service) ListMembers(ctx context.Context, query string) ([]domain.Member, error) {
	return s.repo.ListMembers(ctx, strings.TrimSpace(query))
}

func (s *Service) GetMember(ctx context.Context, id string) (domain.Member, error) {
	member, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return domain.Member{}, err
	}
	return *member, nil
}

func (s *Service) FindMemberByPhone(ctx context.Context, phone string) (domain.Member, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.Member{}, store.ErrInvalidInput
	}
	member, err := s.repo.FindMemberByPhone(ctx, phone)
	if err != nil {
		return domain.Member{}, err
	}
	return *member, nil
}

func (s *Service) CreateMember(ctx context.Context, req domain.MemberCreateRequest) (domain.Member, error) {
	member := domain.Member{
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		VehiclePlate: strings.TrimSpace(req.VehiclePlate),
		VehicleType:  strings.TrimSpace(req.VehicleType),
		VehicleSize:  strings.TrimSpace(req.VehicleSize),
		VehicleModel: strings.TrimSpace(req.VehicleModel),
	}
	created, err := s.repo.CreateMember(ctx, member)
	if err != nil {
		return domain.Member{}, err
	}
	s.logAudit(ctx, "member_create", "member", created.ID, fmt.Sprintf("code=%s,phone=%s", created.MemberCode, created.Phone))
	return *created, nil
}

func (s *Service) UpdateMember(ctx context.Context, id string, req domain.MemberUpdateRequest) (domain.Member, error) {
	existing, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return domain.Member{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.VehiclePlate != nil {
		updated.VehiclePlate = strings.TrimSpace(*req.VehiclePlate)
	}
	if req.VehicleType != nil {
		updated.VehicleType = strings.TrimSpace(*req.VehicleType)
	}
	if req.VehicleSize != nil {
		updated.VehicleSize = strings.TrimSpace(*req.VehicleSize)
	}
	if req.VehicleModel != nil {
		updated.VehicleModel = strings.TrimSpace(*req.VehicleModel)
	}
	if req.Points != nil {
		// Manual point corrections are admin-only.
		if err := s.requireAdmin(ctx); err != nil {
			return domain.Member{}, err
		}
		updated.Points = *req.Points
	}

	saved, err := s.repo.UpdateMember(ctx, updated)
	if err != nil {
		return domain.Member{}, err
	}
	s.logAudit(ctx, "member_update", "member", saved.ID, fmt.Sprintf("points=%d", saved.Points))
	return *saved, nil
}

// ---- stock ----

func (s *Service) StockIn(ctx context.Context, req domain.StockInRequest) (domain.StockMovement, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.StockMovement{}, err
	}
	if req.ProductID == "" || req.Qty < 1 {
		return domain.StockMovement{}, store.ErrInvalidInput
	}
	movement, err := s.repo.RecordStockIn(ctx, req.ProductID, req.Qty, strings.TrimSpace(req.Description))
	if err != nil {
		return domain.StockMovement{}, err
	}
	metrics.StockMovementsTotal.WithLabelValues(domain.MovementIn).Inc()
	s.logAudit(ctx, "stock_in", "product", req.ProductID, fmt.Sprintf("qty=%d,after=%d", movement.Qty, movement.StockAfter))
	return *movement, nil
}

func (s *Service) StockAdjust(ctx context.Context, req domain.StockAdjustmentRequest) (domain.StockMovement, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.StockMovement{}, err
	}
	if req.ProductID == "" || req.NewTotal < 0 {
		return domain.StockMovement{}, store.ErrInvalidInput
	}
	movement, err := s.repo.RecordStockAdjustment(ctx, req.ProductID, req.NewTotal, strings.TrimSpace(req.Description))
	if err != nil {
		return domain.StockMovement{}, err
	}
	metrics.StockMovementsTotal.WithLabelValues(domain.MovementAdjustment).Inc()
	s.logAudit(ctx, "stock_adjust", "product", req.ProductID, fmt.Sprintf("before=%d,after=%d", movement.StockBefore, movement.StockAfter))
	return *movement, nil
}

func (s *Service) ListStockMovements(ctx context.Context, productID string, from, to time.Time, limit int) ([]domain.StockMovement, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListStockMovements(ctx, productID, from, to, limit)
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx)
}

func (s *Service) ReconcileStock(ctx context.Context) ([]domain.StockDrift, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	drifts, err := s.repo.ReconcileStock(ctx)
	if err != nil {
		return nil, err
	}
	if len(drifts) > 0 {
		log.Printf("[service] stock reconciliation found %d drifted product(s)", len(drifts))
	}
	return drifts, nil
}

// ---- settings ----

func (s *Service) GetSetting(ctx context.Context, key string) (domain.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Setting{}, store.ErrInvalidInput
	}
	if cached, ok, err := s.settings.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: settings cache get %s: %v", key, err)
	}

	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		return domain.Setting{}, err
	}
	if err := s.settings.Set(ctx, key, setting, s.settingsTTL); err != nil {
		log.Printf("[service] WARN: settings cache set %s: %v", key, err)
	}
	return *setting, nil
}

func (s *Service) PutSetting(ctx context.Context, key string, value json.RawMessage) (domain.Setting, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Setting{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" || !json.Valid(value) {
		return domain.Setting{}, store.ErrInvalidInput
	}

	setting, err := s.repo.PutSetting(ctx, key, value)
	if err != nil {
		return domain.Setting{}, err
	}
	if err := s.settings.Invalidate(ctx, key); err != nil {
		log.Printf("[service] WARN: settings cache invalidate %s: %v", key, err)
	}
	s.logAudit(ctx, "setting_put", "setting", key, "")
	return *setting, nil
}

// pointConfig reads the points accrual setting, falling back to the default
// of 1 point per 10000 rupiah when unset or malformed.
func (s *Service) pointConfig(ctx context.Context) domain.PointConfig {
	cfg := domain.PointConfig{EarnPer: 10000, EarnPoint: 1}
	setting, err := s.GetSetting(ctx, "points")
	if err != nil {
		return cfg
	}
	var parsed domain.PointConfig
	if err := json.Unmarshal(setting.Value, &parsed); err != nil || parsed.EarnPer < 1 || parsed.EarnPoint < 0 {
		return cfg
	}
	return parsed
}

func (s *Service) commissionPercent(ctx context.Context) float64 {
	setting, err := s.GetSetting(ctx, "commission")
	if err != nil {
		return 0
	}
	var parsed domain.CommissionConfig
	if err := json.Unmarshal(setting.Value, &parsed); err != nil || parsed.Percent < 0 || parsed.Percent > 100 {
		return 0
	}
	return parsed.Percent
}

// StoreProfile reads the printable receipt header. Missing config yields an
// empty profile, not an error.
func (s *Service) StoreProfile(ctx context.Context) domain.StoreProfile {
	setting, err := s.GetSetting(ctx, "store_profile")
	if err != nil {
		return domain.StoreProfile{}
	}
	var profile domain.StoreProfile
	if err := json.Unmarshal(setting.Value, &profile); err != nil {
		return domain.StoreProfile{}
	}
	return profile
}

// ---- checkout ----

// resolveClassification picks the vehicle classification for service pricing:
// the member's registered vehicle when known, otherwise the explicit choice
// from the request.
func resolveClassification(member *domain.Member, reqType, reqSize string) (string, string) {
	if member != nil && member.VehicleType != "" && member.VehicleSize != "" {
		return member.VehicleType, member.VehicleSize
	}
	return reqType, reqSize
}

func (s *Service) buildCart(ctx context.Context, items []domain.CheckoutItem, vehicleType, vehicleSize string) (*cart.Cart, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	c := cart.New()
	for _, item := range items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		switch item.Kind {
		case domain.ItemKindProduct:
			product, err := s.repo.GetProduct(ctx, item.ID)
			if err != nil {
				return nil, err
			}
			if !product.Active {
				return nil, store.ErrInvalidInput
			}
			c.Add(cart.Line{
				Kind:   domain.ItemKindProduct,
				ItemID: product.ID,
				Name:   product.Name,
				Price:  product.Price,
				Qty:    item.Qty,
			})
		case domain.ItemKindService:
			svc, err := s.repo.GetService(ctx, item.ID)
			if err != nil {
				return nil, err
			}
			if !svc.Active {
				return nil, store.ErrInvalidInput
			}
			tiers, err := s.repo.ListServiceTiers(ctx, item.ID)
			if err != nil {
				return nil, err
			}
			c.Add(cart.Line{
				Kind:       domain.ItemKindService,
				ItemID:     svc.ID,
				Name:       svc.Name,
				Price:      pricing.Resolve(*svc, tiers, vehicleType, vehicleSize),
				Qty:        item.Qty,
				Technician: strings.TrimSpace(item.Technician),
			})
		default:
			return nil, store.ErrInvalidInput
		}
	}
	return c, nil
}

// Quote prices a cart without committing anything.
func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	var member *domain.Member
	if req.MemberID != "" {
		m, err := s.repo.GetMember(ctx, req.MemberID)
		if err != nil {
			return domain.QuoteResponse{}, err
		}
		member = m
	}
	vehicleType, vehicleSize := resolveClassification(member, req.VehicleType, req.VehicleSize)

	c, err := s.buildCart(ctx, req.Items, vehicleType, vehicleSize)
	if err != nil {
		return domain.QuoteResponse{}, err
	}

	subtotal := c.Total()
	if req.Discount < 0 || req.PointsUsed < 0 || req.Discount+req.PointsUsed > subtotal {
		return domain.QuoteResponse{}, store.ErrInvalidInput
	}
	if member == nil && req.PointsUsed > 0 {
		return domain.QuoteResponse{}, store.ErrInvalidInput
	}
	if member != nil && req.PointsUsed > member.Points {
		return domain.QuoteResponse{}, store.ErrInsufficientPoints
	}

	return domain.QuoteResponse{
		Items:       c.Items(),
		Subtotal:    subtotal,
		Discount:    req.Discount,
		PointsUsed:  req.PointsUsed,
		FinalAmount: subtotal - req.Discount - req.PointsUsed,
	}, nil
}

// Checkout commits one sale. Pricing happens here; the store enforces stock,
// point balance and atomicity at commit time.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Transaction, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("authentication required")
	}
	if req.Type != domain.TxTypeBengkel && req.Type != domain.TxTypeKafe {
		return domain.Transaction{}, store.ErrInvalidInput
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return domain.Transaction{}, store.ErrInvalidInput
	}

	var member *domain.Member
	if req.MemberID != "" {
		m, err := s.repo.GetMember(ctx, req.MemberID)
		if err != nil {
			return domain.Transaction{}, err
		}
		member = m
	}
	vehicleType, vehicleSize := resolveClassification(member, req.VehicleType, req.VehicleSize)

	c, err := s.buildCart(ctx, req.Items, vehicleType, vehicleSize)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		ID:            xid.New("trx"),
		Type:          req.Type,
		MemberID:      req.MemberID,
		QueueID:       req.QueueID,
		Discount:      req.Discount,
		PointsUsed:    req.PointsUsed,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		PaymentAmount: req.PaymentAmount,
		Cashier:       actor.Username,
		Items:         c.Items(),
	}

	created, err := s.repo.CreateCheckout(ctx, tx, s.pointConfig(ctx))
	if err != nil {
		return domain.Transaction{}, err
	}

	metrics.CheckoutsTotal.WithLabelValues(created.Type).Inc()
	metrics.CheckoutRevenue.WithLabelValues(created.Type).Add(float64(created.FinalAmount))
	for _, item := range created.Items {
		if item.Kind == domain.ItemKindProduct {
			metrics.StockMovementsTotal.WithLabelValues(domain.MovementOut).Inc()
		}
	}
	s.logAudit(ctx, "checkout", "transaction", created.ID, fmt.Sprintf("invoice=%s,final=%d,status=%s", created.InvoiceNumber, created.FinalAmount, created.PaymentStatus))
	return *created, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, periodName, fromStr, toStr, txType string, limit int) ([]domain.Transaction, error) {
	period, err := report.ResolvePeriod(periodName, fromStr, toStr, time.Now(), s.loc)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	if txType != "" && txType != domain.TxTypeBengkel && txType != domain.TxTypeKafe {
		return nil, store.ErrInvalidInput
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListTransactions(ctx, period.From, period.To, txType, limit)
}

// AddPayment records one termin installment against an unpaid transaction.
func (s *Service) AddPayment(ctx context.Context, transactionID string, req domain.PaymentCreateRequest) (domain.Transaction, error) {
	if transactionID == "" || req.Amount < 1 {
		return domain.Transaction{}, store.ErrInvalidInput
	}
	payment := domain.TransactionPayment{
		ID:            xid.New("pay"),
		TransactionID: transactionID,
		Amount:        req.Amount,
		Method:        strings.TrimSpace(req.Method),
		Note:          strings.TrimSpace(req.Note),
	}
	if payment.Method == "" {
		return domain.Transaction{}, store.ErrInvalidInput
	}
	tx, err := s.repo.AddTransactionPayment(ctx, payment)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.logAudit(ctx, "payment_add", "transaction", transactionID, fmt.Sprintf("amount=%d,status=%s", req.Amount, tx.PaymentStatus))
	return *tx, nil
}

// ---- queue ----

func (s *Service) CreateQueue(ctx context.Context, req domain.QueueCreateRequest) (domain.Queue, error) {
	queue := domain.Queue{
		MemberID:     req.MemberID,
		VehiclePlate: strings.TrimSpace(req.VehiclePlate),
		Notes:        strings.TrimSpace(req.Notes),
	}
	created, err := s.repo.CreateQueue(ctx, queue)
	if err != nil {
		return domain.Queue{}, err
	}
	metrics.QueueTicketsTotal.Inc()
	s.logAudit(ctx, "queue_create", "queue", created.ID, fmt.Sprintf("ticket=%s", created.TicketNumber))
	return *created, nil
}

func (s *Service) GetQueue(ctx context.Context, id string) (domain.Queue, error) {
	queue, err := s.repo.GetQueue(ctx, id)
	if err != nil {
		return domain.Queue{}, err
	}
	return *queue, nil
}

func (s *Service) ListQueues(ctx context.Context, day time.Time) ([]domain.Queue, error) {
	if day.IsZero() {
		day = time.Now().In(s.loc)
	}
	return s.repo.ListQueues(ctx, day)
}

func (s *Service) UpdateQueueStatus(ctx context.Context, id string, status string) (domain.Queue, error) {
	switch status {
	case domain.QueueStatusInService, domain.QueueStatusDone:
	default:
		return domain.Queue{}, store.ErrInvalidInput
	}
	queue, err := s.repo.UpdateQueueStatus(ctx, id, status)
	if err != nil {
		return domain.Queue{}, err
	}
	s.logAudit(ctx, "queue_status", "queue", id, fmt.Sprintf("status=%s", status))
	return *queue, nil
}

func (s *Service) DeleteQueue(ctx context.Context, id string) error {
	if err := s.repo.DeleteQueue(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "queue_delete", "queue", id, "")
	return nil
}

// ---- loyalty ----

func (s *Service) GetLoyaltyReward(ctx context.Context) (domain.LoyaltyReward, error) {
	reward, err := s.repo.GetLoyaltyReward(ctx)
	if err != nil {
		return domain.LoyaltyReward{}, err
	}
	return *reward, nil
}

func (s *Service) PutLoyaltyReward(ctx context.Context, reward domain.LoyaltyReward) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	reward.RewardName = strings.TrimSpace(reward.RewardName)
	if err := s.repo.PutLoyaltyReward(ctx, reward); err != nil {
		return err
	}
	s.logAudit(ctx, "loyalty_reward_put", "reward", reward.RewardName, fmt.Sprintf("visits=%d", reward.VisitsRequired))
	return nil
}

// LoyaltyStatus reports a member's progress toward the configured milestone.
func (s *Service) LoyaltyStatus(ctx context.Context, memberID string) (domain.LoyaltyStatus, error) {
	member, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return domain.LoyaltyStatus{}, err
	}
	status := domain.LoyaltyStatus{
		MemberID:   member.ID,
		VisitCount: member.VisitCount,
		Points:     member.Points,
	}

	reward, err := s.repo.GetLoyaltyReward(ctx)
	if err != nil {
		// No reward configured: status carries counts only.
		return status, nil
	}
	status.VisitsRequired = reward.VisitsRequired
	status.RewardName = reward.RewardName

	milestone, eligible := loyalty.Eligible(member.VisitCount, reward.VisitsRequired, func(m int) bool {
		claimed, err := s.repo.HasLoyaltyClaim(ctx, member.ID, m)
		return err == nil && claimed
	})
	status.Milestone = milestone
	status.Eligible = eligible
	return status, nil
}

// ClaimReward records the member's claim for their current milestone. Each
// milestone can be claimed once; the store enforces the uniqueness.
func (s *Service) ClaimReward(ctx context.Context, memberID string) (domain.LoyaltyClaim, error) {
	member, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return domain.LoyaltyClaim{}, err
	}
	reward, err := s.repo.GetLoyaltyReward(ctx)
	if err != nil {
		return domain.LoyaltyClaim{}, err
	}

	milestone := loyalty.Milestone(member.VisitCount, reward.VisitsRequired)
	if milestone < 1 {
		return domain.LoyaltyClaim{}, store.ErrInvalidInput
	}

	claim := domain.LoyaltyClaim{
		ID:             xid.New("clm"),
		MemberID:       member.ID,
		MilestoneVisit: milestone,
		RewardName:     reward.RewardName,
	}
	created, err := s.repo.CreateLoyaltyClaim(ctx, claim)
	if err != nil {
		return domain.LoyaltyClaim{}, err
	}
	metrics.LoyaltyClaimsTotal.Inc()
	s.logAudit(ctx, "loyalty_claim", "member", member.ID, fmt.Sprintf("milestone=%d,reward=%s", milestone, reward.RewardName))
	return *created, nil
}

func (s *Service) ListLoyaltyClaims(ctx context.Context, memberID string) ([]domain.LoyaltyClaim, error) {
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.repo.ListLoyaltyClaims(ctx, memberID)
}

// ---- reminders ----

func (s *Service) CreateReminder(ctx context.Context, req domain.ReminderCreateRequest) (domain.ServiceReminder, error) {
	due, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.DueDate), s.loc)
	if err != nil {
		return domain.ServiceReminder{}, store.ErrInvalidInput
	}
	reminder := domain.ServiceReminder{
		MemberID:     req.MemberID,
		VehiclePlate: strings.TrimSpace(req.VehiclePlate),
		ServiceName:  strings.TrimSpace(req.ServiceName),
		DueDate:      due,
		Notes:        strings.TrimSpace(req.Notes),
	}
	created, err := s.repo.CreateReminder(ctx, reminder)
	if err != nil {
		return domain.ServiceReminder{}, err
	}
	s.logAudit(ctx, "reminder_create", "reminder", created.ID, fmt.Sprintf("member=%s,due=%s", created.MemberID, created.DueDate.Format("2006-01-02")))
	return *created, nil
}

func (s *Service) ListReminders(ctx context.Context, status string, limit int) ([]domain.ServiceReminder, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListReminders(ctx, status, limit)
}

func (s *Service) UpdateReminderStatus(ctx context.Context, id string, status string) (domain.ServiceReminder, error) {
	reminder, err := s.repo.UpdateReminderStatus(ctx, id, status)
	if err != nil {
		return domain.ServiceReminder{}, err
	}
	s.logAudit(ctx, "reminder_status", "reminder", id, fmt.Sprintf("status=%s", status))
	return *reminder, nil
}

// ---- reports ----

func (s *Service) resolvePeriod(periodName, fromStr, toStr string) (report.Period, error) {
	period, err := report.ResolvePeriod(periodName, fromStr, toStr, time.Now(), s.loc)
	if err != nil {
		return report.Period{}, store.ErrInvalidInput
	}
	return period, nil
}

func (s *Service) SalesReport(ctx context.Context, periodName, fromStr, toStr string) (report.SalesSummary, error) {
	period, err := s.resolvePeriod(periodName, fromStr, toStr)
	if err != nil {
		return report.SalesSummary{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, period.From, period.To, "", 0)
	if err != nil {
		return report.SalesSummary{}, err
	}
	return report.Sales(period, txs, s.loc), nil
}

func (s *Service) TopItemsReport(ctx context.Context, periodName, fromStr, toStr string, limit int) (report.Period, []report.TopItem, error) {
	period, err := s.resolvePeriod(periodName, fromStr, toStr)
	if err != nil {
		return report.Period{}, nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, period.From, period.To, "", 0)
	if err != nil {
		return report.Period{}, nil, err
	}
	if limit < 1 {
		limit = 10
	}
	return period, report.TopItems(txs, limit), nil
}

func (s *Service) StockMovementReport(ctx context.Context, periodName, fromStr, toStr string) (report.MovementSummary, error) {
	period, err := s.resolvePeriod(periodName, fromStr, toStr)
	if err != nil {
		return report.MovementSummary{}, err
	}
	moves, err := s.repo.ListStockMovements(ctx, "", period.From, period.To, 0)
	if err != nil {
		return report.MovementSummary{}, err
	}
	return report.Movements(period, moves), nil
}

func (s *Service) MemberReport(ctx context.Context, periodName, fromStr, toStr string, limit int) (report.MemberSummary, error) {
	period, err := s.resolvePeriod(periodName, fromStr, toStr)
	if err != nil {
		return report.MemberSummary{}, err
	}
	members, err := s.repo.ListMembers(ctx, "")
	if err != nil {
		return report.MemberSummary{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, period.From, period.To, "", 0)
	if err != nil {
		return report.MemberSummary{}, err
	}
	if limit < 1 {
		limit = 10
	}
	return report.Members(period, members, txs, limit), nil
}

func (s *Service) CommissionReport(ctx context.Context, periodName, fromStr, toStr string) (report.CommissionSummary, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return report.CommissionSummary{}, err
	}
	period, err := s.resolvePeriod(periodName, fromStr, toStr)
	if err != nil {
		return report.CommissionSummary{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, period.From, period.To, "", 0)
	if err != nil {
		return report.CommissionSummary{}, err
	}
	return report.Commissions(period, txs, s.commissionPercent(ctx)), nil
}
