package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TemirB/foodcart/internal/domain"
)

var orderColumns = []string{
	"id", "firstname", "lastname", "phonenumber", "address", "comments",
	"status", "payment_method", "registered_at", "called_at", "delivered_at", "restaurant_id",
}

var _ domain.OrderRepository = (*OrderRepo)(nil)

type OrderRepo struct {
	pool *pgxpool.Pool
	sq   squirrel.StatementBuilderType
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{
		pool: pool,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateOrder inserts the order and its items in one transaction. Each item
// snapshots the current product price; an unknown product aborts the whole
// order with a *domain.ValidationError.
func (r *OrderRepo) CreateOrder(ctx context.Context, in domain.OrderInput) (*domain.Order, error) {
	const op = "database.OrderRepo.CreateOrder"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	query, args, err := r.sq.Insert("orders").
		Columns("firstname", "lastname", "phonenumber", "address", "comments").
		Values(in.Firstname, in.Lastname, in.Phonenumber, in.Address, in.Comments).
		Suffix("RETURNING " + strings.Join(orderColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build insert: %w", op, err)
	}

	o, err := scanOrder(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("%s: insert order: %w", op, asValidation(err))
	}

	batch := &pgx.Batch{}
	for _, it := range in.Products {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, quantity, price)
			SELECT $1, p.id, $3, p.price FROM products p WHERE p.id = $2
			RETURNING price
		`, o.ID, it.ProductID, it.Quantity)
	}

	br := tx.SendBatch(ctx, batch)
	o.Items = make([]domain.OrderItem, 0, len(in.Products))
	for _, it := range in.Products {
		item := domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity}
		if err := br.QueryRow().Scan(&item.Price); err != nil {
			br.Close()
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &domain.ValidationError{
					Reason: "unknown product " + strconv.FormatInt(it.ProductID, 10),
					Fields: []string{"products.product_id"},
				}
			}
			return nil, fmt.Errorf("%s: insert item: %w", op, asValidation(err))
		}
		o.Items = append(o.Items, item)
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("%s: close batch: %w", op, asValidation(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}
	return o, nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	const op = "database.OrderRepo.GetByID"

	query, args, err := r.sq.Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build select: %w", op, err)
	}

	o, err := scanOrder(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := r.items(ctx, []int64{id})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	o.Items = items[id]
	return o, nil
}

// RecentOrders returns up to limit orders, newest first, with their items.
func (r *OrderRepo) RecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	const op = "database.OrderRepo.RecentOrders"

	query, args, err := r.sq.Select(orderColumns...).
		From("orders").
		OrderBy("registered_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build select: %w", op, err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *OrderRepo) items(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	query, args, err := r.sq.Select("order_id", "product_id", "quantity", "price").
		From("order_items").
		Where(squirrel.Eq{"order_id": orderIDs}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID int64
			it      domain.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.Firstname, &o.Lastname, &o.Phonenumber, &o.Address, &o.Comments,
		&o.Status, &o.PaymentMethod, &o.RegisteredAt, &o.CalledAt, &o.DeliveredAt, &o.RestaurantID,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
