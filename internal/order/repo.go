package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("order not found")
)

type Repository interface {
	Create(ctx context.Context, o *Order, items []Item) error
	GetByID(ctx context.Context, id int64) (*Order, []Item, error)
	GetItems(ctx context.Context, orderID int64) ([]Item, error)
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Order, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, error)
	ListStale(ctx context.Context, status Status, createdBefore time.Time, limit int) ([]Order, error)
	AttachSession(ctx context.Context, id int64, sessionID string) error
	MarkPaid(ctx context.Context, id int64, paymentIntentID string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64) (bool, error)
	Transition(ctx context.Context, id int64, from, to Status) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderColumns = `id, customer_id, status, total::text, customer_name, customer_phone, customer_email,
	customer_address, whatsapp_message, payment_method, payment_status, stripe_session_id,
	payment_intent_id, paid_at, created_at, updated_at`

// Create stores the order and its items in one transaction.
func (r *PGRepo) Create(ctx context.Context, o *Order, items []Item) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `
    INSERT INTO orders (customer_id, status, total, customer_name, customer_phone, customer_email,
                        customer_address, whatsapp_message, payment_method, payment_status, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
    RETURNING id, created_at, updated_at
  `, o.CustomerID, o.Status, o.Total.String(), o.Customer.Name, o.Customer.Phone, o.Customer.Email,
		o.Customer.Address, nullable(o.WhatsAppMessage), o.PaymentMethod, o.PaymentStatus,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return err
	}

	for i := range items {
		items[i].OrderID = o.ID
		if err := tx.QueryRow(ctx, `
      INSERT INTO order_items (order_id, product_id, variation_id, product_name, price, quantity)
      VALUES ($1,$2,$3,$4,$5,$6)
      RETURNING id
    `, o.ID, items[i].ProductID, items[i].VariationID, items[i].Name, items[i].Price.String(), items[i].Quantity,
		).Scan(&items[i].ID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Order, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

func (r *PGRepo) GetItems(ctx context.Context, orderID int64) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.items(ctx, orderID)
}

func (r *PGRepo) items(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, product_id, variation_id, product_name, price::text, quantity
    FROM order_items
    WHERE order_id = $1
    ORDER BY id
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it    Item
			price string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariationID, &it.Name, &price, &it.Quantity); err != nil {
			return nil, err
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepo) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Order, error) {
	limit, offset = page(limit, offset)
	return r.list(ctx, `
    SELECT `+orderColumns+` FROM orders WHERE customer_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, customerID, limit, offset)
}

// ListByStatus lists newest first. An empty status lists every order.
func (r *PGRepo) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, error) {
	limit, offset = page(limit, offset)
	return r.list(ctx, `
    SELECT `+orderColumns+` FROM orders WHERE ($1 = '' OR status=$1)
    ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, status, limit, offset)
}

func (r *PGRepo) ListStale(ctx context.Context, status Status, createdBefore time.Time, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `
    SELECT `+orderColumns+` FROM orders WHERE status=$1 AND created_at < $2
    ORDER BY created_at LIMIT $3
  `, status, createdBefore, limit)
}

func (r *PGRepo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PGRepo) AttachSession(ctx context.Context, id int64, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
    UPDATE orders SET stripe_session_id = $2, updated_at = NOW()
    WHERE id = $1
  `, id, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid moves the order to paid unless another writer already did.
// It reports false when the guard matched no row; that is a no-op, not an error.
func (r *PGRepo) MarkPaid(ctx context.Context, id int64, paymentIntentID string, paidAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
    UPDATE orders
    SET status = 'paid', payment_status = 'paid',
        payment_intent_id = COALESCE(NULLIF($2,''), payment_intent_id),
        paid_at = COALESCE(paid_at, $3),
        updated_at = NOW()
    WHERE id = $1 AND status = ANY($4)
  `, id, paymentIntentID, paidAt, statusStrings(PaidFrom))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGRepo) MarkFailed(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
    UPDATE orders
    SET status = 'payment_failed', payment_status = 'failed', updated_at = NOW()
    WHERE id = $1 AND status = ANY($2)
  `, id, statusStrings(FailedFrom))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Transition changes status only if it still is from.
func (r *PGRepo) Transition(ctx context.Context, id int64, from, to Status) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
    UPDATE orders
    SET status = $3,
        payment_status = CASE WHEN $3 = 'paid' THEN 'paid' ELSE payment_status END,
        paid_at = CASE WHEN $3 = 'paid' THEN COALESCE(paid_at, NOW()) ELSE paid_at END,
        updated_at = NOW()
    WHERE id = $1 AND status = $2
  `, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                        Order
		total                    string
		message, session, intent *string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &total, &o.Customer.Name, &o.Customer.Phone,
		&o.Customer.Email, &o.Customer.Address, &message, &o.PaymentMethod, &o.PaymentStatus, &session,
		&intent, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, err
	}
	o.Total = d
	o.WhatsAppMessage = deref(message)
	o.SessionID = deref(session)
	o.PaymentIntentID = deref(intent)
	return &o, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
