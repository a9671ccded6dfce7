package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	Create(ctx context.Context, order *Order) (int64, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// UpdateCheckout stores the checkout fields and total of an order that is
	// still unconfirmed.
	UpdateCheckout(ctx context.Context, order *Order) error
	// Accept marks an unconfirmed order accepted and takes its line
	// quantities out of stock, atomically.
	Accept(ctx context.Context, orderID, userID int64) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `id, user_id, created_at, full_name, email, phone, delivery_type,
	payment_type, city, address, subtotal, total_cost, status`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID,
		&o.UserID,
		&o.CreatedAt,
		&o.FullName,
		&o.Email,
		&o.Phone,
		&o.DeliveryType,
		&o.PaymentType,
		&o.City,
		&o.Address,
		&o.Subtotal,
		&o.TotalCost,
		&o.Status,
	)
}

// inTx runs fn in a transaction, rolling back when fn fails or panics.
func (r *postgresRepository) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Str("op", op).Msg("repository: panic recovered, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("op", op).Msg("repository: failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("op", op).Msg("repository: failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) (int64, error) {
	err := r.inTx(ctx, "create_order", func(tx pgx.Tx) error {
		o.CreatedAt = time.Now().UTC()
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, created_at, full_name, email, phone, delivery_type,
				payment_type, city, address, subtotal, total_cost, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`,
			o.UserID,
			o.CreatedAt,
			o.FullName,
			o.Email,
			o.Phone,
			o.DeliveryType,
			o.PaymentType,
			o.City,
			o.Address,
			o.Subtotal,
			o.TotalCost,
			string(o.Status),
		).Scan(&o.ID)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, l := range o.Lines {
			batch.Queue(`
				INSERT INTO order_lines (order_id, product_id, quantity, price)
				VALUES ($1, $2, $3, $4)
			`, o.ID, l.ProductID, l.Quantity, l.Price)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("repository: failed to insert order lines for order %d: %w", o.ID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return o.ID, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %d: %w", id, err)
	}

	lines, err := r.linesFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[id]
	if o.Lines == nil {
		o.Lines = []Line{}
	}
	return &o, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %d: %w", userID, err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	var ids []int64
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user id %d: %w", userID, err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %d: %w", userID, err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = []Line{}
		}
	}
	return orders, nil
}

func (r *postgresRepository) linesFor(ctx context.Context, orderIDs []int64) (map[int64][]Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT order_id, product_id, quantity, price
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, product_id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Line)
	for rows.Next() {
		var (
			orderID int64
			l       Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order line: %w", err)
		}
		out[orderID] = append(out[orderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating order lines: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) UpdateCheckout(ctx context.Context, o *Order) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET full_name = $1, email = $2, phone = $3, delivery_type = $4,
			payment_type = $5, city = $6, address = $7, total_cost = $8
		WHERE id = $9 AND user_id = $10 AND status = $11
	`,
		o.FullName,
		o.Email,
		o.Phone,
		o.DeliveryType,
		o.PaymentType,
		o.City,
		o.Address,
		o.TotalCost,
		o.ID,
		o.UserID,
		string(StatusUnconfirmed),
	)
	if err != nil {
		log.Error().Err(err).Int64("order_id", o.ID).Msg("repository: failed to update order checkout")
		return fmt.Errorf("repository: failed to update checkout of order %d: %w", o.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		log.Warn().Int64("order_id", o.ID).Msg("repository: order is no longer unconfirmed")
		return ErrOrderAlreadyProcessed
	}
	return nil
}

func (r *postgresRepository) Accept(ctx context.Context, orderID, userID int64) error {
	return r.inTx(ctx, "accept_order", func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `
			UPDATE orders SET status = $1
			WHERE id = $2 AND user_id = $3 AND status = $4
		`, string(StatusAccepted), orderID, userID, string(StatusUnconfirmed))
		if err != nil {
			return fmt.Errorf("repository: failed to accept order %d: %w", orderID, err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrOrderAlreadyProcessed
		}

		rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_lines WHERE order_id = $1`, orderID)
		if err != nil {
			return fmt.Errorf("repository: failed to query lines of order %d: %w", orderID, err)
		}
		lines, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[Line])
		if err != nil {
			return fmt.Errorf("repository: failed to collect lines of order %d: %w", orderID, err)
		}

		// Fixed lock order across concurrent payments.
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		for _, l := range lines {
			cmdTag, err := tx.Exec(ctx, `
				UPDATE products SET count = count - $1
				WHERE id = $2 AND count >= $1
			`, l.Quantity, l.ProductID)
			if err != nil {
				return fmt.Errorf("repository: failed to decrement stock of product %d: %w", l.ProductID, err)
			}
			if cmdTag.RowsAffected() == 0 {
				log.Warn().Int64("order_id", orderID).Int64("product_id", l.ProductID).Int("quantity", l.Quantity).Msg("repository: insufficient stock")
				return ErrInsufficientStock
			}
		}
		return nil
	})
}
