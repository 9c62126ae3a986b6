package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayra/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, items, subtotal, coupon_discount, tax,
		shipping, cod_charges, total, applied_coupon, payment_method, payment_status,
		order_status, shipping_address, tracking_number, carrier, estimated_delivery,
		actual_delivery, current_location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	getOrderSQL = `SELECT id, user_id, items, subtotal, coupon_discount, tax, shipping,
		cod_charges, total, applied_coupon, payment_method, payment_status, order_status,
		shipping_address, tracking_number, carrier, estimated_delivery, actual_delivery,
		current_location, created_at
		FROM orders WHERE id = $1`

	getOrdersByUserSQL = `SELECT id, user_id, items, subtotal, coupon_discount, tax, shipping,
		cod_charges, total, applied_coupon, payment_method, payment_status, order_status,
		shipping_address, tracking_number, carrier, estimated_delivery, actual_delivery,
		current_location, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	// Appends are conflict-free: the unique (order_id, status, location)
	// index makes a lost race a silent no-op instead of a duplicate entry.
	insertTrackingUpdateSQL = `INSERT INTO tracking_updates (order_id, status, message, location, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, status, location) DO NOTHING`

	getTrackingUpdatesSQL = `SELECT order_id, status, message, location, source, created_at
		FROM tracking_updates WHERE order_id = ANY($1) ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its seed tracking updates. When
// clearCart is set the owner's cart is emptied in the same transaction,
// so a crash can never leave the order saved with a replayable cart.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, clearCart bool) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	var appliedCoupon []byte
	if o.AppliedCoupon != nil {
		if appliedCoupon, err = json.Marshal(o.AppliedCoupon); err != nil {
			return fmt.Errorf("marshaling applied coupon: %w", err)
		}
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, items,
			o.Totals.Subtotal, o.Totals.CouponDiscount, o.Totals.Tax,
			o.Totals.Shipping, o.Totals.CODCharges, o.Totals.Total,
			appliedCoupon, string(o.PaymentMethod), string(o.PaymentStatus),
			string(o.Status), address,
			o.Tracking.TrackingNumber, o.Tracking.Carrier,
			o.Tracking.EstimatedDelivery, o.Tracking.ActualDelivery,
			o.Tracking.CurrentLocation, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}

		for _, u := range o.Tracking.Updates {
			if err := insertUpdateTx(ctx, tx, o.ID, u); err != nil {
				return err
			}
		}

		if clearCart {
			return clearCartTx(ctx, tx, o.UserID)
		}
		return nil
	})
}

// ByID loads an order with its full tracking log.
// Returns order.ErrNotFound when absent.
func (r *OrderRepository) ByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %q: %w", id, err)
	}

	if err := r.attachUpdates(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// ByUser lists the user's orders, newest first, with tracking logs.
func (r *OrderRepository) ByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	os, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	refs := make([]*order.Order, len(os))
	for i := range os {
		refs[i] = &os[i]
	}
	if err := r.attachUpdates(ctx, refs); err != nil {
		return nil, err
	}
	return os, nil
}

// Apply persists a Change as a field-level merge: only the fields the
// transition touched are written, updates are appended conflict-free,
// and ActualDelivery can never be overwritten once set.
func (r *OrderRepository) Apply(ctx context.Context, ch *order.Change) error {
	if ch.Empty() {
		return nil
	}

	set := make([]string, 0, 4)
	args := make([]any, 0, 5)
	args = append(args, ch.OrderID)

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, column+" = $"+strconv.Itoa(len(args)))
	}

	if ch.PaymentStatus != nil {
		add("payment_status", string(*ch.PaymentStatus))
	}
	if ch.Status != nil {
		add("order_status", string(*ch.Status))
	}
	if ch.CurrentLocation != nil {
		add("current_location", *ch.CurrentLocation)
	}
	if ch.ActualDelivery != nil {
		args = append(args, *ch.ActualDelivery)
		set = append(set, "actual_delivery = COALESCE(actual_delivery, $"+strconv.Itoa(len(args))+")")
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if len(set) > 0 {
			sql := "UPDATE orders SET " + strings.Join(set, ", ") + " WHERE id = $1"
			tag, err := tx.Exec(ctx, sql, args...)
			if err != nil {
				return fmt.Errorf("updating order %q: %w", ch.OrderID, err)
			}
			if tag.RowsAffected() == 0 {
				return order.ErrNotFound
			}
		}

		for _, u := range ch.Updates {
			if err := insertUpdateTx(ctx, tx, ch.OrderID, u); err != nil {
				return err
			}
		}

		if ch.ClearCart {
			return clearCartTx(ctx, tx, ch.UserID)
		}
		return nil
	})
}

func insertUpdateTx(ctx context.Context, tx pgx.Tx, orderID string, u order.TrackingUpdate) error {
	_, err := tx.Exec(ctx, insertTrackingUpdateSQL,
		orderID, string(u.Status), u.Message, u.Location, string(u.Source), u.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("appending tracking update for order %q: %w", orderID, err)
	}
	return nil
}

// attachUpdates loads the tracking logs for the given orders in one query.
func (r *OrderRepository) attachUpdates(ctx context.Context, os []*order.Order) error {
	if len(os) == 0 {
		return nil
	}

	ids := make([]string, len(os))
	byID := make(map[string]*order.Order, len(os))
	for i, o := range os {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx, getTrackingUpdatesSQL, ids)
	if err != nil {
		return fmt.Errorf("loading tracking updates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID, status, source string
			u                       order.TrackingUpdate
		)
		if err := rows.Scan(&orderID, &status, &u.Message, &u.Location, &source, &u.Timestamp); err != nil {
			return fmt.Errorf("scanning tracking update: %w", err)
		}
		u.Status = order.Status(status)
		u.Source = order.UpdateSource(source)

		if o := byID[orderID]; o != nil && o.Tracking != nil {
			o.Tracking.Append(u)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                             order.Order
		items, address, appliedCoupon []byte
		method, payment, status       string
		t                             order.Tracking
	)

	err := row.Scan(
		&o.ID, &o.UserID, &items,
		&o.Totals.Subtotal, &o.Totals.CouponDiscount, &o.Totals.Tax,
		&o.Totals.Shipping, &o.Totals.CODCharges, &o.Totals.Total,
		&appliedCoupon, &method, &payment, &status, &address,
		&t.TrackingNumber, &t.Carrier, &t.EstimatedDelivery, &t.ActualDelivery,
		&t.CurrentLocation, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if len(appliedCoupon) > 0 {
		o.AppliedCoupon = &order.AppliedCoupon{}
		if err := json.Unmarshal(appliedCoupon, o.AppliedCoupon); err != nil {
			return o, fmt.Errorf("unmarshaling applied coupon: %w", err)
		}
	}

	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(payment)
	o.Status = order.Status(status)
	o.Tracking = &t

	return o, nil
}
