package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"bengkelpos/backend/internal/domain"
	"bengkelpos/backend/internal/loyalty"
	"bengkelpos/backend/internal/store"
	"bengkelpos/backend/internal/xid"
)

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(ctx context.Context, databaseURL string, loc *time.Location) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) dayKey(t time.Time) string {
	return t.In(s.loc).Format("20060102")
}

// nextCounter bumps the named per-day counter inside pgTx and returns the new
// value. Invoice and ticket numbers are contiguous because the increment
// happens under the same transaction that uses the number.
func nextCounter(ctx context.Context, pgTx *sql.Tx, dayKey string, kind string) (int, error) {
	var value int
	err := pgTx.QueryRowContext(ctx, `
		INSERT INTO daily_counters (day_key, kind, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (day_key, kind) DO UPDATE SET value = daily_counters.value + 1
		RETURNING value
	`, dayKey, kind).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Store) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price, cost_price, stock, min_stock, unit, COALESCE(barcode, ''), active, created_at
		FROM products
		WHERE active = true
		  AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR category ILIKE '%' || $1 || '%' OR barcode = $1)
		ORDER BY category, name
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.CostPrice, &p.Stock, &p.MinStock, &p.Unit, &p.Barcode, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price, cost_price, stock, min_stock, unit, COALESCE(barcode, ''), active, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.CostPrice, &p.Stock, &p.MinStock, &p.Unit, &p.Barcode, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product, initialStock int) (*domain.Product, error) {
	if product.Name == "" || product.Price < 0 || initialStock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	product.Active = true
	product.Stock = initialStock
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price, cost_price, stock, min_stock, unit, barcode, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
	`, product.ID, product.Name, product.Category, product.Price, product.CostPrice, product.Stock,
		product.MinStock, product.Unit, nullIfEmpty(product.Barcode), product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	if initialStock > 0 {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, direction, qty, stock_before, stock_after, description, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, xid.New("mov"), product.ID, domain.MovementIn, initialStock, 0, initialStock, "Stok awal", product.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Price < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	// Stock is excluded on purpose: it only changes through the ledger.
	var updated domain.Product
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price = $4, cost_price = $5, min_stock = $6, unit = $7, barcode = $8, active = $9, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price, cost_price, stock, min_stock, unit, COALESCE(barcode, ''), active, created_at
	`, product.ID, product.Name, product.Category, product.Price, product.CostPrice, product.MinStock,
		product.Unit, nullIfEmpty(product.Barcode), product.Active).Scan(
		&updated.ID, &updated.Name, &updated.Category, &updated.Price, &updated.CostPrice, &updated.Stock,
		&updated.MinStock, &updated.Unit, &updated.Barcode, &updated.Active, &updated.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price, cost_price, stock, min_stock, unit, COALESCE(barcode, ''), active, created_at
		FROM products
		WHERE active = true AND min_stock > 0 AND stock <= min_stock
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.CostPrice, &p.Stock, &p.MinStock, &p.Unit, &p.Barcode, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) ListServices(ctx context.Context, query string) ([]domain.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, base_price, COALESCE(description, ''), COALESCE(barcode, ''), active, created_at
		FROM services
		WHERE active = true
		  AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR barcode = $1)
		ORDER BY name
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.Service, 0, 32)
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.BasePrice, &svc.Description, &svc.Barcode, &svc.Active, &svc.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *Store) GetService(ctx context.Context, id string) (*domain.Service, error) {
	var svc domain.Service
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, base_price, COALESCE(description, ''), COALESCE(barcode, ''), active, created_at
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Name, &svc.BasePrice, &svc.Description, &svc.Barcode, &svc.Active, &svc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &svc, nil
}

func validateTiers(tiers []domain.ServicePrice) error {
	seen := map[string]bool{}
	for _, tier := range tiers {
		if !domain.ValidVehicleType(tier.VehicleType) || !domain.ValidVehicleSize(tier.VehicleSize) || tier.Price < 0 {
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

func (s *Store) CreateService(ctx context.Context, svc domain.Service, tiers []domain.ServicePrice) (*domain.Service, error) {
	if svc.Name == "" || svc.BasePrice < 0 {
		return nil, store.ErrInvalidInput
	}
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}
	if svc.ID == "" {
		svc.ID = xid.New("svc")
	}
	svc.Active = true
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO services (id, name, base_price, description, barcode, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, svc.ID, svc.Name, svc.BasePrice, nullIfEmpty(svc.Description), nullIfEmpty(svc.Barcode), svc.Active, svc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	for _, tier := range tiers {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO service_prices (service_id, vehicle_type, vehicle_size, price)
			VALUES ($1,$2,$3,$4)
		`, svc.ID, tier.VehicleType, tier.VehicleSize, tier.Price)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := svc
	return &created, nil
}

func (s *Store) UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	if svc.ID == "" || svc.Name == "" || svc.BasePrice < 0 {
		return nil, store.ErrInvalidInput
	}

	var updated domain.Service
	err := s.db.QueryRowContext(ctx, `
		UPDATE services
		SET name = $2, base_price = $3, description = $4, barcode = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING id, name, base_price, COALESCE(description, ''), COALESCE(barcode, ''), active, created_at
	`, svc.ID, svc.Name, svc.BasePrice, nullIfEmpty(svc.Description), nullIfEmpty(svc.Barcode), svc.Active).Scan(
		&updated.ID, &updated.Name, &updated.BasePrice, &updated.Description, &updated.Barcode, &updated.Active, &updated.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListServiceTiers(ctx context.Context, serviceID string) ([]domain.ServicePrice, error) {
	if _, err := s.GetService(ctx, serviceID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT service_id, vehicle_type, vehicle_size, price
		FROM service_prices
		WHERE service_id = $1
		ORDER BY vehicle_type, vehicle_size
	`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := make([]domain.ServicePrice, 0, 12)
	for rows.Next() {
		var tier domain.ServicePrice
		if err := rows.Scan(&tier.ServiceID, &tier.VehicleType, &tier.VehicleSize, &tier.Price); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return tiers, rows.Err()
}

func (s *Store) ReplaceServiceTiers(ctx context.Context, serviceID string, tiers []domain.ServicePrice) error {
	if err := validateTiers(tiers); err != nil {
		return err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	var exists bool
	if err := pgTx.QueryRowContext(ctx, `SELECT true FROM services WHERE id = $1`, serviceID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM service_prices WHERE service_id = $1`, serviceID); err != nil {
		return err
	}
	for _, tier := range tiers {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO service_prices (service_id, vehicle_type, vehicle_size, price)
			VALUES ($1,$2,$3,$4)
		`, serviceID, tier.VehicleType, tier.VehicleSize, tier.Price)
		if err != nil {
			return err
		}
	}

	return pgTx.Commit()
}

const memberColumns = `id, member_code, name, phone, COALESCE(vehicle_plate, ''), COALESCE(vehicle_type, ''), COALESCE(vehicle_size, ''), COALESCE(vehicle_model, ''), points, visit_count, joined_at`

func scanMember(row interface{ Scan(...any) error }) (*domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.ID, &m.MemberCode, &m.Name, &m.Phone, &m.VehiclePlate, &m.VehicleType, &m.VehicleSize, &m.VehicleModel, &m.Points, &m.VisitCount, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context, query string) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%'
		   OR vehicle_plate ILIKE '%' || $1 || '%' OR member_code ILIKE '%' || $1 || '%'
		ORDER BY member_code
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Member, 0, 64)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *Store) GetMember(ctx context.Context, id string) (*domain.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) FindMemberByPhone(ctx context.Context, phone string) (*domain.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE phone = $1`, strings.TrimSpace(phone)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) CreateMember(ctx context.Context, member domain.Member) (*domain.Member, error) {
	member.Phone = strings.TrimSpace(member.Phone)
	if member.Name == "" || member.Phone == "" {
		return nil, store.ErrInvalidInput
	}
	if member.VehicleType != "" && !domain.ValidVehicleType(member.VehicleType) {
		return nil, store.ErrInvalidInput
	}
	if member.VehicleSize != "" && !domain.ValidVehicleSize(member.VehicleSize) {
		return nil, store.ErrInvalidInput
	}
	if member.ID == "" {
		member.ID = xid.New("mbr")
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}

	if member.MemberCode == "" {
		var seq int64
		if err := s.db.QueryRowContext(ctx, `SELECT nextval('member_code_seq')`).Scan(&seq); err != nil {
			return nil, err
		}
		member.MemberCode = fmt.Sprintf("MBR-%04d", seq)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, member_code, name, phone, vehicle_plate, vehicle_type, vehicle_size, vehicle_model, points, visit_count, joined_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,0,$9)
	`, member.ID, member.MemberCode, member.Name, member.Phone, nullIfEmpty(member.VehiclePlate),
		nullIfEmpty(member.VehicleType), nullIfEmpty(member.VehicleSize), nullIfEmpty(member.VehicleModel), member.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicatePhone
		}
		return nil, err
	}

	member.Points = 0
	member.VisitCount = 0
	created := member
	return &created, nil
}

func (s *Store) UpdateMember(ctx context.Context, member domain.Member) (*domain.Member, error) {
	member.Phone = strings.TrimSpace(member.Phone)
	if member.ID == "" || member.Name == "" || member.Phone == "" || member.Points < 0 {
		return nil, store.ErrInvalidInput
	}
	if member.VehicleType != "" && !domain.ValidVehicleType(member.VehicleType) {
		return nil, store.ErrInvalidInput
	}
	if member.VehicleSize != "" && !domain.ValidVehicleSize(member.VehicleSize) {
		return nil, store.ErrInvalidInput
	}

	updated, err := scanMember(s.db.QueryRowContext(ctx, `
		UPDATE members
		SET name = $2, phone = $3, vehicle_plate = $4, vehicle_type = $5, vehicle_size = $6, vehicle_model = $7, points = $8
		WHERE id = $1
		RETURNING `+memberColumns+`
	`, member.ID, member.Name, member.Phone, nullIfEmpty(member.VehiclePlate), nullIfEmpty(member.VehicleType),
		nullIfEmpty(member.VehicleSize), nullIfEmpty(member.VehicleModel), member.Points))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicatePhone
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) RecordStockIn(ctx context.Context, productID string, qty int, description string) (*domain.StockMovement, error) {
	if productID == "" || qty < 1 {
		return nil, store.ErrInvalidInput
	}
	return s.recordMovement(ctx, productID, func(stock int) (string, int, int) {
		return domain.MovementIn, qty, stock + qty
	}, description)
}

func (s *Store) RecordStockAdjustment(ctx context.Context, productID string, newTotal int, description string) (*domain.StockMovement, error) {
	if productID == "" || newTotal < 0 {
		return nil, store.ErrInvalidInput
	}
	return s.recordMovement(ctx, productID, func(stock int) (string, int, int) {
		qty := newTotal - stock
		if qty < 0 {
			qty = -qty
		}
		return domain.MovementAdjustment, qty, newTotal
	}, description)
}

// recordMovement locks the product row, derives the movement from the locked
// stock level and writes both the ledger entry and the new denormalized stock
// in one transaction.
func (s *Store) recordMovement(ctx context.Context, productID string, derive func(stock int) (direction string, qty int, after int), description string) (*domain.StockMovement, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var name string
	var stock int
	err = pgTx.QueryRowContext(ctx, `
		SELECT name, stock FROM products WHERE id = $1 FOR UPDATE
	`, productID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	direction, qty, after := derive(stock)
	movement := domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   productID,
		ProductName: name,
		Direction:   direction,
		Qty:         qty,
		StockBefore: stock,
		StockAfter:  after,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, direction, qty, stock_before, stock_after, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, movement.ID, movement.ProductID, movement.Direction, movement.Qty, movement.StockBefore, movement.StockAfter,
		nullIfEmpty(movement.Description), movement.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
	`, productID, movement.StockAfter)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &movement, nil
}

func (s *Store) ListStockMovements(ctx context.Context, productID string, from, to time.Time, limit int) ([]domain.StockMovement, error) {
	args := []any{nullIfEmpty(productID), nullTimeValue(from), nullTimeValue(to)}
	query := `
		SELECT m.id, m.product_id, p.name, m.direction, m.qty, m.stock_before, m.stock_after, COALESCE(m.description, ''), m.created_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id
		WHERE ($1::text IS NULL OR m.product_id = $1)
		  AND ($2::timestamptz IS NULL OR m.created_at >= $2)
		  AND ($3::timestamptz IS NULL OR m.created_at < $3)
		ORDER BY m.created_at DESC, m.id DESC
	`
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, 64)
	for rows.Next() {
		var mv domain.StockMovement
		if err := rows.Scan(&mv.ID, &mv.ProductID, &mv.ProductName, &mv.Direction, &mv.Qty, &mv.StockBefore, &mv.StockAfter, &mv.Description, &mv.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

func (s *Store) ReconcileStock(ctx context.Context) ([]domain.StockDrift, error) {
	// Each ledger row carries a signed delta (stock_after - stock_before), so
	// the running sum equals the level the ledger implies.
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.stock, COALESCE(SUM(m.stock_after - m.stock_before), 0) AS ledger_stock
		FROM products p
		LEFT JOIN stock_movements m ON m.product_id = p.id
		GROUP BY p.id, p.name, p.stock
		HAVING p.stock <> COALESCE(SUM(m.stock_after - m.stock_before), 0)
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drifts := make([]domain.StockDrift, 0, 4)
	for rows.Next() {
		var d domain.StockDrift
		if err := rows.Scan(&d.ProductID, &d.ProductName, &d.Stock, &d.LedgerStock); err != nil {
			return nil, err
		}
		d.Delta = d.Stock - d.LedgerStock
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func (s *Store) CreateCheckout(ctx context.Context, tx domain.Transaction, points domain.PointConfig) (*domain.Transaction, error) {
	if len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.Type != domain.TxTypeBengkel && tx.Type != domain.TxTypeKafe {
		return nil, store.ErrInvalidInput
	}
	if tx.PaymentAmount < 0 || tx.Discount < 0 || tx.PointsUsed < 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New("trx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	subtotal := int64(0)
	// Duplicate lines for one product must be checked against the stock they
	// jointly consume, not each against the initial level.
	needed := make(map[string]int, len(tx.Items))
	for i, item := range tx.Items {
		if item.Qty < 1 || item.Price < 0 {
			return nil, store.ErrInvalidInput
		}
		switch item.Kind {
		case domain.ItemKindProduct:
			var stock int
			err := pgTx.QueryRowContext(ctx, `
				SELECT stock FROM products WHERE id = $1 AND active = true FOR UPDATE
			`, item.ItemID).Scan(&stock)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, fmt.Errorf("product %s unavailable: %w", item.ItemID, store.ErrInvalidInput)
				}
				return nil, err
			}
			needed[item.ItemID] += item.Qty
			if stock < needed[item.ItemID] {
				return nil, store.ErrInsufficientStock
			}
		case domain.ItemKindService:
			var exists bool
			err := pgTx.QueryRowContext(ctx, `
				SELECT true FROM services WHERE id = $1 AND active = true
			`, item.ItemID).Scan(&exists)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, fmt.Errorf("service %s unavailable: %w", item.ItemID, store.ErrInvalidInput)
				}
				return nil, err
			}
		default:
			return nil, store.ErrInvalidInput
		}
		tx.Items[i].Subtotal = item.Price * int64(item.Qty)
		subtotal += tx.Items[i].Subtotal
	}

	if tx.Discount+tx.PointsUsed > subtotal {
		return nil, store.ErrInvalidInput
	}

	var member *domain.Member
	if tx.MemberID != "" {
		m, err := scanMember(pgTx.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, tx.MemberID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if tx.PointsUsed > m.Points {
			return nil, store.ErrInsufficientPoints
		}
		member = m
	} else if tx.PointsUsed > 0 {
		return nil, store.ErrInvalidInput
	}

	if tx.QueueID != "" {
		var status string
		err := pgTx.QueryRowContext(ctx, `SELECT status FROM queues WHERE id = $1 FOR UPDATE`, tx.QueueID).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if status == domain.QueueStatusDone {
			return nil, store.ErrInvalidState
		}
	}

	tx.Subtotal = subtotal
	tx.FinalAmount = subtotal - tx.Discount - tx.PointsUsed
	tx.PointsEarned = 0
	if member != nil {
		tx.PointsEarned = loyalty.EarnedPoints(tx.FinalAmount, points)
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

	day := s.dayKey(tx.CreatedAt)
	seq, err := nextCounter(ctx, pgTx, day, "invoice")
	if err != nil {
		return nil, err
	}
	tx.InvoiceNumber = fmt.Sprintf("INV-%s-%04d", day, seq)

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, invoice_number, type, member_id, queue_id, subtotal, discount,
			points_used, points_earned, final_amount, payment_method, payment_amount,
			change_amount, payment_status, cashier, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, tx.ID, tx.InvoiceNumber, tx.Type, nullIfEmpty(tx.MemberID), nullIfEmpty(tx.QueueID), tx.Subtotal,
		tx.Discount, tx.PointsUsed, tx.PointsEarned, tx.FinalAmount, tx.PaymentMethod, tx.PaymentAmount,
		tx.ChangeAmount, tx.PaymentStatus, nullIfEmpty(tx.Cashier), tx.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range tx.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, kind, item_id, name, price, qty, subtotal, technician)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, tx.ID, item.Kind, item.ItemID, item.Name, item.Price, item.Qty, item.Subtotal, nullIfEmpty(item.Technician))
		if err != nil {
			return nil, err
		}

		if item.Kind != domain.ItemKindProduct {
			continue
		}
		var name string
		var stock int
		err = pgTx.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, item.ItemID).Scan(&name, &stock)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, direction, qty, stock_before, stock_after, description, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, xid.New("mov"), item.ItemID, domain.MovementOut, item.Qty, stock, stock-item.Qty, "Penjualan "+tx.InvoiceNumber, tx.CreatedAt)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1
		`, item.ItemID, item.Qty)
		if err != nil {
			return nil, err
		}
	}

	if member != nil {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE members SET points = points - $2 + $3, visit_count = visit_count + 1 WHERE id = $1
		`, member.ID, tx.PointsUsed, tx.PointsEarned)
		if err != nil {
			return nil, err
		}
	}

	if tx.QueueID != "" {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE queues SET status = $2, transaction_id = $3 WHERE id = $1
		`, tx.QueueID, domain.QueueStatusDone, tx.ID)
		if err != nil {
			return nil, err
		}
	}

	if tx.PaymentStatus != domain.PaymentStatusPaid && tx.PaymentAmount > 0 {
		payment := domain.TransactionPayment{
			ID:            xid.New("pay"),
			TransactionID: tx.ID,
			Amount:        tx.PaymentAmount,
			Method:        tx.PaymentMethod,
			Note:          "Pembayaran awal",
			CreatedAt:     tx.CreatedAt,
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO transaction_payments (id, transaction_id, amount, method, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, payment.ID, payment.TransactionID, payment.Amount, payment.Method, nullIfEmpty(payment.Note), payment.CreatedAt)
		if err != nil {
			return nil, err
		}
		tx.Payments = append(tx.Payments, payment)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &tx, nil
}

const transactionColumns = `id, invoice_number, type, COALESCE(member_id, ''), COALESCE(queue_id, ''), subtotal, discount, points_used, points_earned, final_amount, payment_method, payment_amount, change_amount, payment_status, COALESCE(cashier, ''), created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(&tx.ID, &tx.InvoiceNumber, &tx.Type, &tx.MemberID, &tx.QueueID, &tx.Subtotal, &tx.Discount,
		&tx.PointsUsed, &tx.PointsEarned, &tx.FinalAmount, &tx.PaymentMethod, &tx.PaymentAmount,
		&tx.ChangeAmount, &tx.PaymentStatus, &tx.Cashier, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) loadTransactionDetails(ctx context.Context, txs []domain.Transaction) error {
	for i := range txs {
		itemRows, err := s.db.QueryContext(ctx, `
			SELECT kind, item_id, name, price, qty, subtotal, COALESCE(technician, '')
			FROM transaction_items
			WHERE transaction_id = $1
			ORDER BY id
		`, txs[i].ID)
		if err != nil {
			return err
		}
		for itemRows.Next() {
			var item domain.TransactionItem
			if err := itemRows.Scan(&item.Kind, &item.ItemID, &item.Name, &item.Price, &item.Qty, &item.Subtotal, &item.Technician); err != nil {
				_ = itemRows.Close()
				return err
			}
			txs[i].Items = append(txs[i].Items, item)
		}
		if err := itemRows.Err(); err != nil {
			_ = itemRows.Close()
			return err
		}
		_ = itemRows.Close()

		paymentRows, err := s.db.QueryContext(ctx, `
			SELECT id, transaction_id, amount, method, COALESCE(note, ''), created_at
			FROM transaction_payments
			WHERE transaction_id = $1
			ORDER BY created_at, id
		`, txs[i].ID)
		if err != nil {
			return err
		}
		for paymentRows.Next() {
			var p domain.TransactionPayment
			if err := paymentRows.Scan(&p.ID, &p.TransactionID, &p.Amount, &p.Method, &p.Note, &p.CreatedAt); err != nil {
				_ = paymentRows.Close()
				return err
			}
			txs[i].Payments = append(txs[i].Payments, p)
		}
		if err := paymentRows.Err(); err != nil {
			_ = paymentRows.Close()
			return err
		}
		_ = paymentRows.Close()
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	txs := []domain.Transaction{*tx}
	if err := s.loadTransactionDetails(ctx, txs); err != nil {
		return nil, err
	}
	return &txs[0], nil
}

func (s *Store) ListTransactions(ctx context.Context, from, to time.Time, txType string, limit int) ([]domain.Transaction, error) {
	args := []any{nullTimeValue(from), nullTimeValue(to), nullIfEmpty(txType)}
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		  AND ($3::text IS NULL OR type = $3)
		ORDER BY created_at DESC, id DESC
	`
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadTransactionDetails(ctx, txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) AddTransactionPayment(ctx context.Context, payment domain.TransactionPayment) (*domain.Transaction, error) {
	if payment.TransactionID == "" || payment.Amount < 1 {
		return nil, store.ErrInvalidInput
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	var finalAmount int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT payment_status, final_amount FROM transactions WHERE id = $1 FOR UPDATE
	`, payment.TransactionID).Scan(&status, &finalAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status == domain.PaymentStatusPaid {
		return nil, store.ErrInvalidState
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transaction_payments (id, transaction_id, amount, method, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.ID, payment.TransactionID, payment.Amount, payment.Method, nullIfEmpty(payment.Note), payment.CreatedAt)
	if err != nil {
		return nil, err
	}

	var paid int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transaction_payments WHERE transaction_id = $1
	`, payment.TransactionID).Scan(&paid)
	if err != nil {
		return nil, err
	}

	newStatus := domain.PaymentStatusTermin
	change := int64(0)
	if paid >= finalAmount {
		newStatus = domain.PaymentStatusPaid
		change = paid - finalAmount
	}
	_, err = pgTx.ExecContext(ctx, `
		UPDATE transactions SET payment_status = $2, change_amount = $3 WHERE id = $1
	`, payment.TransactionID, newStatus, change)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetTransaction(ctx, payment.TransactionID)
}

const queueColumns = `q.id, q.ticket_number, q.status, COALESCE(q.member_id, ''), COALESCE(q.transaction_id, ''), COALESCE(q.vehicle_plate, ''), COALESCE(q.notes, ''), q.created_at,
	COALESCE(m.name, ''), COALESCE(m.phone, ''), COALESCE(m.vehicle_type, ''), COALESCE(m.vehicle_size, ''), COALESCE(m.vehicle_model, '')`

func scanQueue(row interface{ Scan(...any) error }) (*domain.Queue, error) {
	var q domain.Queue
	err := row.Scan(&q.ID, &q.TicketNumber, &q.Status, &q.MemberID, &q.TransactionID, &q.VehiclePlate, &q.Notes, &q.CreatedAt,
		&q.MemberName, &q.MemberPhone, &q.VehicleType, &q.VehicleSize, &q.VehicleModel)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Store) CreateQueue(ctx context.Context, queue domain.Queue) (*domain.Queue, error) {
	if queue.ID == "" {
		queue.ID = xid.New("que")
	}
	if queue.CreatedAt.IsZero() {
		queue.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if queue.MemberID != "" {
		var exists bool
		err := pgTx.QueryRowContext(ctx, `SELECT true FROM members WHERE id = $1`, queue.MemberID).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
	}

	day := s.dayKey(queue.CreatedAt)
	seq, err := nextCounter(ctx, pgTx, day, "ticket")
	if err != nil {
		return nil, err
	}
	queue.TicketNumber = fmt.Sprintf("Q%03d", seq)
	queue.Status = domain.QueueStatusWaiting

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO queues (id, ticket_number, day_key, status, member_id, vehicle_plate, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, queue.ID, queue.TicketNumber, day, queue.Status, nullIfEmpty(queue.MemberID),
		nullIfEmpty(queue.VehiclePlate), nullIfEmpty(queue.Notes), queue.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetQueue(ctx, queue.ID)
}

func (s *Store) GetQueue(ctx context.Context, id string) (*domain.Queue, error) {
	q, err := scanQueue(s.db.QueryRowContext(ctx, `
		SELECT `+queueColumns+`
		FROM queues q
		LEFT JOIN members m ON m.id = q.member_id
		WHERE q.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return q, nil
}

func (s *Store) ListQueues(ctx context.Context, day time.Time) ([]domain.Queue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+queueColumns+`
		FROM queues q
		LEFT JOIN members m ON m.id = q.member_id
		WHERE q.day_key = $1
		ORDER BY q.ticket_number
	`, s.dayKey(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	queues := make([]domain.Queue, 0, 32)
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		queues = append(queues, *q)
	}
	return queues, rows.Err()
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

func (s *Store) UpdateQueueStatus(ctx context.Context, id string, status string) (*domain.Queue, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var current string
	err = pgTx.QueryRowContext(ctx, `SELECT status FROM queues WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if !validQueueTransition(current, status) {
		return nil, store.ErrInvalidState
	}

	if _, err := pgTx.ExecContext(ctx, `UPDATE queues SET status = $2 WHERE id = $1`, id, status); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetQueue(ctx, id)
}

func (s *Store) DeleteQueue(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM queues WHERE id = $1 AND status = $2
	`, id, domain.QueueStatusWaiting)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx, `SELECT true FROM queues WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return store.ErrInvalidState
	}
	return nil
}

func (s *Store) GetLoyaltyReward(ctx context.Context) (*domain.LoyaltyReward, error) {
	var reward domain.LoyaltyReward
	err := s.db.QueryRowContext(ctx, `
		SELECT visits_required, reward_name FROM loyalty_rewards WHERE id = 1
	`).Scan(&reward.VisitsRequired, &reward.RewardName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &reward, nil
}

func (s *Store) PutLoyaltyReward(ctx context.Context, reward domain.LoyaltyReward) error {
	if reward.VisitsRequired < 1 || reward.RewardName == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_rewards (id, visits_required, reward_name, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE SET visits_required = $1, reward_name = $2, updated_at = now()
	`, reward.VisitsRequired, reward.RewardName)
	return err
}

func (s *Store) HasLoyaltyClaim(ctx context.Context, memberID string, milestone int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT true FROM loyalty_claims WHERE member_id = $1 AND milestone_visit = $2
	`, memberID, milestone).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) CreateLoyaltyClaim(ctx context.Context, claim domain.LoyaltyClaim) (*domain.LoyaltyClaim, error) {
	if claim.MemberID == "" || claim.MilestoneVisit < 1 {
		return nil, store.ErrInvalidInput
	}
	if claim.ID == "" {
		claim.ID = xid.New("clm")
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_claims (id, member_id, milestone_visit, reward_name, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, claim.ID, claim.MemberID, claim.MilestoneVisit, claim.RewardName, claim.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrMilestoneClaimed
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	created := claim
	return &created, nil
}

func (s *Store) ListLoyaltyClaims(ctx context.Context, memberID string) ([]domain.LoyaltyClaim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, milestone_visit, reward_name, created_at
		FROM loyalty_claims
		WHERE member_id = $1
		ORDER BY milestone_visit DESC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := make([]domain.LoyaltyClaim, 0, 8)
	for rows.Next() {
		var c domain.LoyaltyClaim
		if err := rows.Scan(&c.ID, &c.MemberID, &c.MilestoneVisit, &c.RewardName, &c.CreatedAt); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (s *Store) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	var setting domain.Setting
	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value, updated_at FROM settings WHERE key = $1
	`, key).Scan(&setting.Key, &value, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	setting.Value = json.RawMessage(value)
	return &setting, nil
}

func (s *Store) PutSetting(ctx context.Context, key string, value json.RawMessage) (*domain.Setting, error) {
	if key == "" || !json.Valid(value) {
		return nil, store.ErrInvalidInput
	}
	var setting domain.Setting
	var stored []byte
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()
		RETURNING key, value, updated_at
	`, key, []byte(value)).Scan(&setting.Key, &stored, &setting.UpdatedAt)
	if err != nil {
		return nil, err
	}
	setting.Value = json.RawMessage(stored)
	return &setting, nil
}

const reminderColumns = `r.id, r.member_id, COALESCE(m.name, ''), COALESCE(r.vehicle_plate, ''), r.service_name, r.due_date, r.status, COALESCE(r.notes, ''), r.created_at`

func (s *Store) CreateReminder(ctx context.Context, reminder domain.ServiceReminder) (*domain.ServiceReminder, error) {
	if reminder.MemberID == "" || reminder.ServiceName == "" || reminder.DueDate.IsZero() {
		return nil, store.ErrInvalidInput
	}
	if reminder.ID == "" {
		reminder.ID = xid.New("rem")
	}
	reminder.Status = domain.ReminderStatusPending
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_reminders (id, member_id, vehicle_plate, service_name, due_date, status, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, reminder.ID, reminder.MemberID, nullIfEmpty(reminder.VehiclePlate), reminder.ServiceName,
		reminder.DueDate, reminder.Status, nullIfEmpty(reminder.Notes), reminder.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return s.getReminder(ctx, reminder.ID)
}

func (s *Store) getReminder(ctx context.Context, id string) (*domain.ServiceReminder, error) {
	var r domain.ServiceReminder
	err := s.db.QueryRowContext(ctx, `
		SELECT `+reminderColumns+`
		FROM service_reminders r
		LEFT JOIN members m ON m.id = r.member_id
		WHERE r.id = $1
	`, id).Scan(&r.ID, &r.MemberID, &r.MemberName, &r.VehiclePlate, &r.ServiceName, &r.DueDate, &r.Status, &r.Notes, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListReminders(ctx context.Context, status string, limit int) ([]domain.ServiceReminder, error) {
	args := []any{nullIfEmpty(status)}
	query := `
		SELECT ` + reminderColumns + `
		FROM service_reminders r
		LEFT JOIN members m ON m.id = r.member_id
		WHERE ($1::text IS NULL OR r.status = $1)
		ORDER BY r.due_date, r.id
	`
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := make([]domain.ServiceReminder, 0, 32)
	for rows.Next() {
		var r domain.ServiceReminder
		if err := rows.Scan(&r.ID, &r.MemberID, &r.MemberName, &r.VehiclePlate, &r.ServiceName, &r.DueDate, &r.Status, &r.Notes, &r.CreatedAt); err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *Store) UpdateReminderStatus(ctx context.Context, id string, status string) (*domain.ServiceReminder, error) {
	switch status {
	case domain.ReminderStatusPending, domain.ReminderStatusDue, domain.ReminderStatusSent, domain.ReminderStatusDone:
	default:
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `UPDATE service_reminders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.getReminder(ctx, id)
}

func (s *Store) MarkRemindersDue(ctx context.Context, asOf time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_reminders SET status = $1 WHERE status = $2 AND due_date <= $3
	`, domain.ReminderStatusDue, domain.ReminderStatusPending, asOf)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	if username == "" || password == "" {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTimeValue(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
