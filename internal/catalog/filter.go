package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vasiliy-maslov/megano/internal/apperr"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Filter is the typed catalog request. Category is selected explicitly by id
// or by exact title.
type Filter struct {
	Name          string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	FreeDelivery  bool
	Available     bool
	TagIDs        []int64
	CategoryID    *int64
	CategoryTitle string
	Sort          string
	SortType      string
	CurrentPage   int
	Limit         int
}

// sortColumns whitelists the sortable fields. "reviews" sorts by review count.
var sortColumns = map[string]string{
	"id":      "p.id",
	"price":   "p.price",
	"rating":  "p.rating",
	"date":    "p.created_at",
	"title":   "p.title",
	"count":   "p.count",
	"reviews": "reviews_count",
}

// ParseFilter reads the storefront query string.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Name:          strings.TrimSpace(q.Get("filter[name]")),
		FreeDelivery:  q.Get("filter[freeDelivery]") == "true",
		Available:     q.Get("filter[available]") == "true",
		CategoryTitle: strings.TrimSpace(q.Get("categoryTitle")),
		Sort:          q.Get("sort"),
		SortType:      q.Get("sortType"),
	}

	var err error
	if f.MinPrice, err = parseDecimalParam(q, "filter[minPrice]"); err != nil {
		return Filter{}, err
	}
	if f.MaxPrice, err = parseDecimalParam(q, "filter[maxPrice]"); err != nil {
		return Filter{}, err
	}

	for _, raw := range q["tags[]"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filter{}, apperr.Validation("invalid tag id %q", raw)
		}
		f.TagIDs = append(f.TagIDs, id)
	}

	if raw := q.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filter{}, apperr.Validation("invalid category id %q", raw)
		}
		f.CategoryID = &id
	}

	if f.CurrentPage, err = parseIntParam(q, "currentPage"); err != nil {
		return Filter{}, err
	}
	if f.Limit, err = parseIntParam(q, "limit"); err != nil {
		return Filter{}, err
	}

	return f, nil
}

func (f Filter) page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	page := f.CurrentPage
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// orderBy maps the sort key and direction. sortType "inc" sorts in
// DESCENDING order; any other value sorts ascending.
func (f Filter) orderBy() string {
	col, ok := sortColumns[f.Sort]
	if !ok {
		col = sortColumns["id"]
	}
	dir := "ASC"
	if f.SortType == "inc" {
		dir = "DESC"
	}
	if col == "p.id" {
		return "p.id " + dir
	}
	return fmt.Sprintf("%s %s, p.id ASC", col, dir)
}

// CatalogQuery holds the page query and its matching count query, both
// bound for Postgres.
type CatalogQuery struct {
	SQL       string
	Args      []any
	CountSQL  string
	CountArgs []any
}

const productColumns = `p.id, p.category_id, p.title, p.price, p.count, p.created_at,
	p.description, p.full_description, p.free_delivery, p.rating,
	(SELECT COUNT(*) FROM reviews r WHERE r.product_id = p.id) AS reviews_count`

// BuildCatalogQuery turns f into SQL. It does not touch the database.
func BuildCatalogQuery(f Filter) (CatalogQuery, error) {
	var (
		where []string
		args  []any
	)

	if f.MinPrice != nil {
		where = append(where, "p.price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, "p.price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.FreeDelivery {
		where = append(where, "p.free_delivery = TRUE")
	}
	if f.Name != "" {
		where = append(where, `p.title ILIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(titleCase(f.Name))+"%")
	}
	if f.Available {
		where = append(where, "p.count > 0")
	}
	if len(f.TagIDs) > 0 {
		tags := uniqueIDs(f.TagIDs)
		where = append(where, `p.id IN (
		SELECT pt.product_id FROM product_tags pt
		WHERE pt.tag_id IN (?)
		GROUP BY pt.product_id
		HAVING COUNT(DISTINCT pt.tag_id) = ?)`)
		args = append(args, tags, len(tags))
	}
	if f.CategoryID != nil {
		where = append(where, "p.category_id = ?")
		args = append(args, *f.CategoryID)
	} else if f.CategoryTitle != "" {
		where = append(where, "c.title = ?")
		args = append(args, f.CategoryTitle)
	}

	from := "FROM products p LEFT JOIN categories c ON c.id = p.category_id"
	if len(where) > 0 {
		from += "\n\tWHERE " + strings.Join(where, "\n\tAND ")
	}

	limit, offset := f.page()
	pageSQL := fmt.Sprintf("SELECT %s\n\t%s\n\tORDER BY %s\n\tLIMIT ? OFFSET ?", productColumns, from, f.orderBy())
	pageArgs := append(append([]any{}, args...), limit, offset)

	q, a, err := sqlx.In(pageSQL, pageArgs...)
	if err != nil {
		return CatalogQuery{}, fmt.Errorf("catalog: expand query: %w", err)
	}
	cq, ca, err := sqlx.In("SELECT COUNT(*)\n\t"+from, args...)
	if err != nil {
		return CatalogQuery{}, fmt.Errorf("catalog: expand count query: %w", err)
	}

	return CatalogQuery{
		SQL:       sqlx.Rebind(sqlx.DOLLAR, q),
		Args:      a,
		CountSQL:  sqlx.Rebind(sqlx.DOLLAR, cq),
		CountArgs: ca,
	}, nil
}

func lastPage(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func parseDecimalParam(q url.Values, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Validation("invalid %s %q", key, raw)
	}
	return &d, nil
}

func parseIntParam(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("invalid %s %q", key, raw)
	}
	return n, nil
}
