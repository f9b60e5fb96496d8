package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Rebind rewrites ? placeholders into the dialect's bind syntax.
func Rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SelectBuilder SQL查询构建器
type SelectBuilder struct {
	table      string
	selectCols []string
	joins      []string
	whereConds []string
	orderBy    []string
	limitVal   int
	args       []any
}

// Select 创建新的SELECT查询构建器
func Select(table string, cols ...string) *SelectBuilder {
	if len(cols) == 0 {
		cols = []string{"*"}
	}
	return &SelectBuilder{table: table, selectCols: cols}
}

// Join 添加JOIN
func (b *SelectBuilder) Join(joinType, table, onCondition string) *SelectBuilder {
	b.joins = append(b.joins, fmt.Sprintf("%s JOIN %s ON %s", joinType, table, onCondition))
	return b
}

// Where adds a condition; multiple conditions are ANDed.
func (b *SelectBuilder) Where(condition string, args ...any) *SelectBuilder {
	b.whereConds = append(b.whereConds, condition)
	b.args = append(b.args, args...)
	return b
}

// OrderBy 添加ORDER BY
func (b *SelectBuilder) OrderBy(cols ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, cols...)
	return b
}

// Limit 设置LIMIT
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limitVal = n
	return b
}

// Build 构建SQL语句
func (b *SelectBuilder) Build(d Dialect) (string, []any) {
	var query strings.Builder

	query.WriteString("SELECT ")
	query.WriteString(strings.Join(b.selectCols, ", "))
	query.WriteString(" FROM " + b.table)

	for _, join := range b.joins {
		query.WriteString(" " + join)
	}

	if len(b.whereConds) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(b.whereConds, " AND "))
	}

	if len(b.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limitVal > 0 {
		query.WriteString(fmt.Sprintf(" LIMIT %d", b.limitVal))
	}

	return Rebind(d, query.String()), b.args
}

func (b *SelectBuilder) Query(ctx context.Context, db DBTX, d Dialect) (*sql.Rows, error) {
	query, args := b.Build(d)
	return db.QueryContext(ctx, query, args...)
}

func (b *SelectBuilder) QueryRow(ctx context.Context, db DBTX, d Dialect) *sql.Row {
	query, args := b.Build(d)
	return db.QueryRowContext(ctx, query, args...)
}

// InsertBuilder INSERT构建器
type InsertBuilder struct {
	table     string
	cols      []string
	values    []any
	returning []string
}

// Insert 创建INSERT构建器
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// Set adds one column and its value.
func (i *InsertBuilder) Set(col string, val any) *InsertBuilder {
	i.cols = append(i.cols, col)
	i.values = append(i.values, val)
	return i
}

// Returning 添加RETURNING子句
func (i *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	i.returning = append(i.returning, cols...)
	return i
}

// Build 构建INSERT语句
func (i *InsertBuilder) Build(d Dialect) (string, []any) {
	var query strings.Builder

	query.WriteString("INSERT INTO " + i.table)
	query.WriteString(" (" + strings.Join(i.cols, ", ") + ")")

	placeholders := make([]string, len(i.cols))
	for j := range placeholders {
		placeholders[j] = "?"
	}
	query.WriteString(" VALUES (" + strings.Join(placeholders, ", ") + ")")

	if len(i.returning) > 0 {
		query.WriteString(" RETURNING " + strings.Join(i.returning, ", "))
	}

	return Rebind(d, query.String()), i.values
}

func (i *InsertBuilder) Exec(ctx context.Context, db DBTX, d Dialect) (sql.Result, error) {
	query, args := i.Build(d)
	return db.ExecContext(ctx, query, args...)
}

func (i *InsertBuilder) QueryRow(ctx context.Context, db DBTX, d Dialect) *sql.Row {
	query, args := i.Build(d)
	return db.QueryRowContext(ctx, query, args...)
}

type assignment struct {
	col string
	val any
}

// UpdateBuilder UPDATE构建器
type UpdateBuilder struct {
	table      string
	sets       []assignment
	conditions []string
	condArgs   []any
}

// Update 创建UPDATE构建器
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set 设置更新列
func (u *UpdateBuilder) Set(col string, val any) *UpdateBuilder {
	u.sets = append(u.sets, assignment{col: col, val: val})
	return u
}

// Where 设置WHERE条件
func (u *UpdateBuilder) Where(condition string, args ...any) *UpdateBuilder {
	u.conditions = append(u.conditions, condition)
	u.condArgs = append(u.condArgs, args...)
	return u
}

// Build 构建UPDATE语句
func (u *UpdateBuilder) Build(d Dialect) (string, []any) {
	var query strings.Builder

	query.WriteString("UPDATE " + u.table)

	args := make([]any, 0, len(u.sets)+len(u.condArgs))
	sets := make([]string, 0, len(u.sets))
	for _, s := range u.sets {
		sets = append(sets, s.col+" = ?")
		args = append(args, s.val)
	}
	query.WriteString(" SET " + strings.Join(sets, ", "))

	if len(u.conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(u.conditions, " AND "))
	}
	args = append(args, u.condArgs...)

	return Rebind(d, query.String()), args
}

func (u *UpdateBuilder) Exec(ctx context.Context, db DBTX, d Dialect) (sql.Result, error) {
	query, args := u.Build(d)
	return db.ExecContext(ctx, query, args...)
}

// DeleteBuilder DELETE构建器
type DeleteBuilder struct {
	table      string
	conditions []string
	args       []any
}

// Delete 创建DELETE构建器
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// Where 设置WHERE条件
func (d *DeleteBuilder) Where(condition string, args ...any) *DeleteBuilder {
	d.conditions = append(d.conditions, condition)
	d.args = append(d.args, args...)
	return d
}

// Build 构建DELETE语句
func (d *DeleteBuilder) Build(dialect Dialect) (string, []any) {
	var query strings.Builder

	query.WriteString("DELETE FROM " + d.table)

	if len(d.conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(d.conditions, " AND "))
	}

	return Rebind(dialect, query.String()), d.args
}

func (d *DeleteBuilder) Exec(ctx context.Context, db DBTX, dialect Dialect) (sql.Result, error) {
	query, args := d.Build(dialect)
	return db.ExecContext(ctx, query, args...)
}
