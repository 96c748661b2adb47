package sqlxrepos

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
)

// scopeColumns names, per scoped table, the columns an access.Scope compares to.
type scopeColumns struct {
	student    string
	teacher    string
	instructor string
}

// selectQuery builds a SELECT with `?` placeholders; the repository rebinds it for its driver.
type selectQuery struct {
	columns string
	from    string
	where   []string
	args    []interface{}
	orderBy []string
	limit   int
	offset  int
}

func newSelect(columns, from string) *selectQuery {
	return &selectQuery{columns: columns, from: from}
}

func (q *selectQuery) Where(cond string, args ...interface{}) *selectQuery {
	q.where = append(q.where, cond)
	q.args = append(q.args, args...)
	return q
}

// Scope restricts the rows to those visible under scope. The zero Scope matches nothing.
func (q *selectQuery) Scope(scope access.Scope, cols scopeColumns) *selectQuery {
	switch {
	case scope.All:
		return q
	case scope.StudentID != 0 && cols.student != "":
		return q.Where(cols.student+" = ?", scope.StudentID)
	case scope.TeacherID != 0 && cols.teacher != "":
		return q.Where(cols.teacher+" = ?", scope.TeacherID)
	case scope.InstructorID != 0 && cols.instructor != "":
		return q.Where(cols.instructor+" = ?", scope.InstructorID)
	}
	return q.Where("1 = 0")
}

// List applies cleaned list params: filters, search, ordering & pagination.
func (q *selectQuery) List(params core.ListParams, fs core.FieldSet) *selectQuery {
	for _, col := range sortedKeys(params.Filters) {
		q.Where(col+" = ?", params.Filters[col])
	}
	if params.Search != "" && len(fs.Search) > 0 {
		like := "%" + strings.ToLower(params.Search) + "%"
		conds := make([]string, 0, len(fs.Search))
		args := make([]interface{}, 0, len(fs.Search))
		for _, col := range fs.Search {
			conds = append(conds, "LOWER("+col+") LIKE ?")
			args = append(args, like)
		}
		q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	for _, ord := range params.Orderings {
		q.orderBy = append(q.orderBy, ord.String())
	}
	q.limit = params.PageSize
	q.offset = params.Offset()
	return q
}

func (q *selectQuery) OrderBy(ordering ...string) *selectQuery {
	q.orderBy = append(q.orderBy, ordering...)
	return q
}

func (q *selectQuery) whereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *selectQuery) SQL() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT " + q.columns + " FROM " + q.from + q.whereClause())
	if len(q.orderBy) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(q.orderBy, ", "))
	}
	args := q.args
	if q.limit > 0 {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(append([]interface{}{}, q.args...), q.limit, q.offset)
	}
	return sb.String(), args
}

func (q *selectQuery) CountSQL() (string, []interface{}) {
	return "SELECT COUNT(*) FROM " + q.from + q.whereClause(), q.args
}

// queryPage runs q and its count in one go.
func queryPage[T any](ctx context.Context, db *sqlx.DB, q *selectQuery, what string) ([]T, int, error) {
	var count int
	query, args := q.CountSQL()
	if err := db.GetContext(ctx, &count, db.Rebind(query), args...); err != nil {
		return nil, 0, dbError(err, "counting "+what)
	}
	results := make([]T, 0, q.limit)
	if count == 0 {
		return results, 0, nil
	}
	query, args = q.SQL()
	if err := db.SelectContext(ctx, &results, db.Rebind(query), args...); err != nil {
		return nil, 0, dbError(err, "querying "+what)
	}
	return results, count, nil
}

func selectAll[T any](ctx context.Context, db *sqlx.DB, q *selectQuery, what string) ([]T, error) {
	var results []T
	query, args := q.SQL()
	if err := db.SelectContext(ctx, &results, db.Rebind(query), args...); err != nil {
		return nil, dbError(err, "listing "+what)
	}
	return results, nil
}

// getOne returns notFound when q matches no row.
func getOne[T any](ctx context.Context, db *sqlx.DB, q *selectQuery, notFound error, what string) (T, error) {
	var result T
	query, args := q.SQL()
	if err := db.GetContext(ctx, &result, db.Rebind(query), args...); err != nil {
		return result, trapNoRowsErr(err, notFound, "finding "+what)
	}
	return result, nil
}

// insert runs an INSERT ... RETURNING id.
func insert(ctx context.Context, ext sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, ext.Rebind(query+" RETURNING id"), args...); err != nil {
		return 0, err
	}
	return id, nil
}

// execAffecting returns notFound when the statement changed no row.
func execAffecting(ctx context.Context, db *sqlx.DB, notFound error, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// trapNoRowsErr maps "no rows" to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return dbError(err, msg)
}

func dbError(err error, msg string) error {
	return core.NewUpstreamError("database", errors.Wrap(err, msg))
}

// isUniqueViolation reports whether err comes from a unique constraint, on postgres or sqlite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
