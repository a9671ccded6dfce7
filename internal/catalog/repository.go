package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/megano/internal/apperr"
)

var (
	ErrProductNotFound = apperr.New(apperr.KindNotFound, "product not found")
	ErrDuplicateReview = apperr.New(apperr.KindConflict, "a review for this product was already left with this email")
)

type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListMainCategoryProducts(ctx context.Context) ([]Product, error)
	ListProducts(ctx context.Context, q CatalogQuery) ([]Product, int, error)
	ListTags(ctx context.Context) ([]Tag, error)
	ListSales(ctx context.Context, now time.Time, limit, offset int) ([]SaleItem, int, error)
	ListOutOfStock(ctx context.Context, limit int) ([]Product, error)
	ListMostReviewed(ctx context.Context, limit int) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]Product, error)
	CreateReview(ctx context.Context, review *Review, rating func(rates []int) decimal.Decimal) error
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewRepository wraps the pgx pool in database/sql so the dynamic catalog
// queries can use sqlx binding and struct scanning.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{db: sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")}
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := r.db.SelectContext(ctx, &categories, `
		SELECT id, title, parent_id, main
		FROM categories
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select categories: %w", err)
	}

	var images []struct {
		CategoryID int64 `db:"category_id"`
		Image
	}
	err = r.db.SelectContext(ctx, &images, `
		SELECT DISTINCT ON (category_id) category_id, src, alt
		FROM category_images
		ORDER BY category_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select category images: %w", err)
	}

	byID := make(map[int64]Image, len(images))
	for _, img := range images {
		byID[img.CategoryID] = img.Image
	}
	for i := range categories {
		if img, ok := byID[categories[i].ID]; ok {
			categories[i].Image = &img
		}
	}

	return categories, nil
}

func (r *postgresRepository) ListMainCategoryProducts(ctx context.Context) ([]Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE c.main = TRUE
		ORDER BY p.id`
	return r.selectProducts(ctx, query)
}

func (r *postgresRepository) ListProducts(ctx context.Context, q CatalogQuery) ([]Product, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, q.CountSQL, q.CountArgs...); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count catalog products: %w", err)
	}

	products, err := r.selectProducts(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *postgresRepository) ListTags(ctx context.Context) ([]Tag, error) {
	tags := make([]Tag, 0)
	if err := r.db.SelectContext(ctx, &tags, `SELECT id, name FROM tags ORDER BY name`); err != nil {
		return nil, fmt.Errorf("repository: failed to select tags: %w", err)
	}
	return tags, nil
}

func (r *postgresRepository) ListSales(ctx context.Context, now time.Time, limit, offset int) ([]SaleItem, int, error) {
	day := truncateDay(now)

	var total int
	err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM sales WHERE date_from <= $1 AND date_to >= $1
	`, day)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count sales: %w", err)
	}

	items := make([]SaleItem, 0)
	err = r.db.SelectContext(ctx, &items, `
		SELECT s.product_id, p.title, p.price, s.sale_price, s.date_from, s.date_to
		FROM sales s
		JOIN products p ON p.id = s.product_id
		WHERE s.date_from <= $1 AND s.date_to >= $1
		ORDER BY s.date_to, s.product_id
		LIMIT $2 OFFSET $3
	`, day, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to select sales: %w", err)
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	images, err := r.imagesFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Images = images[items[i].ProductID]
	}

	return items, total, nil
}

func (r *postgresRepository) ListOutOfStock(ctx context.Context, limit int) ([]Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		WHERE p.count = 0
		ORDER BY p.id
		LIMIT $1`
	return r.selectProducts(ctx, query, limit)
}

func (r *postgresRepository) ListMostReviewed(ctx context.Context, limit int) ([]Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		WHERE p.count > 0
		ORDER BY reviews_count DESC, p.id
		LIMIT $1`
	return r.selectProducts(ctx, query, limit)
}

func (r *postgresRepository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product %d: %w", id, err)
	}

	products := []Product{p}
	if err := r.attach(ctx, products); err != nil {
		return nil, err
	}
	p = products[0]

	p.Specifications = make([]Specification, 0)
	err = r.db.SelectContext(ctx, &p.Specifications, `
		SELECT name, value FROM product_specifications WHERE product_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select specifications for product %d: %w", id, err)
	}

	p.Reviews = make([]Review, 0)
	err = r.db.SelectContext(ctx, &p.Reviews, `
		SELECT id, product_id, author, email, text, rate, created_at
		FROM reviews WHERE product_id = $1 ORDER BY created_at DESC, id DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select reviews for product %d: %w", id, err)
	}

	return &p, nil
}

func (r *postgresRepository) GetProductsByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products p WHERE p.id IN (?) ORDER BY p.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to expand product ids: %w", err)
	}
	return r.selectProducts(ctx, r.db.Rebind(query), args...)
}

// CreateReview inserts the review and stores the recomputed product rating in
// the same transaction.
func (r *postgresRepository) CreateReview(ctx context.Context, review *Review, rating func(rates []int) decimal.Decimal) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Int64("product_id", review.ProductID).Msg("repository: failed to rollback review transaction")
			}
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit review transaction: %w", commitErr)
		}
	}()

	var locked int64
	err = tx.GetContext(ctx, &locked, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, review.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("repository: failed to lock product %d: %w", review.ProductID, err)
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO reviews (product_id, author, email, text, rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, review.ProductID, review.Author, review.Email, review.Text, review.Rate, review.Date).Scan(&review.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateReview
		}
		return fmt.Errorf("repository: failed to insert review: %w", err)
	}

	var rates []int
	if err = tx.SelectContext(ctx, &rates, `SELECT rate FROM reviews WHERE product_id = $1`, review.ProductID); err != nil {
		return fmt.Errorf("repository: failed to select rates for product %d: %w", review.ProductID, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE products SET rating = $1 WHERE id = $2`, rating(rates), review.ProductID)
	if err != nil {
		return fmt.Errorf("repository: failed to update rating for product %d: %w", review.ProductID, err)
	}

	return nil
}

func (r *postgresRepository) selectProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	products := make([]Product, 0)
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select products: %w", err)
	}
	if err := r.attach(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// attach loads tags, images and sales for the given products in one query
// per relation.
func (r *postgresRepository) attach(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	images, err := r.imagesFor(ctx, ids)
	if err != nil {
		return err
	}

	query, args, err := sqlx.In(`
		SELECT pt.product_id, t.id, t.name
		FROM product_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.product_id IN (?)
		ORDER BY t.id`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to expand tag query: %w", err)
	}
	var tagRows []struct {
		ProductID int64 `db:"product_id"`
		Tag
	}
	if err := r.db.SelectContext(ctx, &tagRows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("repository: failed to select product tags: %w", err)
	}
	tags := make(map[int64][]Tag)
	for _, row := range tagRows {
		tags[row.ProductID] = append(tags[row.ProductID], row.Tag)
	}

	query, args, err = sqlx.In(`
		SELECT product_id, sale_price, date_from, date_to
		FROM sales WHERE product_id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to expand sale query: %w", err)
	}
	var sales []Sale
	if err := r.db.SelectContext(ctx, &sales, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("repository: failed to select product sales: %w", err)
	}
	saleByID := make(map[int64]*Sale, len(sales))
	for i := range sales {
		saleByID[sales[i].ProductID] = &sales[i]
	}

	for i := range products {
		id := products[i].ID
		products[i].Images = images[id]
		products[i].Tags = tags[id]
		products[i].Sale = saleByID[id]
		if products[i].Images == nil {
			products[i].Images = []Image{}
		}
		if products[i].Tags == nil {
			products[i].Tags = []Tag{}
		}
	}
	return nil
}

func (r *postgresRepository) imagesFor(ctx context.Context, ids []int64) (map[int64][]Image, error) {
	out := make(map[int64][]Image)
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
		SELECT product_id, src, alt FROM product_images
		WHERE product_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to expand image query: %w", err)
	}
	var rows []struct {
		ProductID int64 `db:"product_id"`
		Image
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select product images: %w", err)
	}
	for _, row := range rows {
		out[row.ProductID] = append(out[row.ProductID], row.Image)
	}
	return out, nil
}
