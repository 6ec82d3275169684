package decode

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/geoknoesis/semlift-go/errors"
)

// OpenFunc opens a database handle for an SQL source.
type OpenFunc func(driver, dsn string) (*sql.DB, error)

// Session runs dataframe queries. Rows are returned as JSON records.
type Session interface {
	Query(ctx context.Context, query string, maxRows int) ([]any, error)
	Table(ctx context.Context, table string, maxRows int) ([]any, error)
}

// DBSession serves dataframe sources from a database/sql handle.
type DBSession struct {
	DB *sql.DB
}

// Query implements Session.
func (s *DBSession) Query(ctx context.Context, query string, maxRows int) ([]any, error) {
	return queryRecords(ctx, s.DB, query, maxRows)
}

// Table implements Session.
func (s *DBSession) Table(ctx context.Context, table string, maxRows int) ([]any, error) {
	return queryRecords(ctx, s.DB, "SELECT * FROM "+table, maxRows)
}

func decodeDataFrame(ctx context.Context, session Session, src DataFrame, maxRows int) (any, error) {
	switch {
	case src.Query != "":
		return session.Query(ctx, src.Query, maxRows)
	case src.Table != "":
		return session.Table(ctx, src.Table, maxRows)
	default:
		return nil, errors.Configuration("dataframe input requires table or query")
	}
}

func (r *Registry) decodeSQL(ctx context.Context, src SQL, maxRows int) (any, error) {
	query := src.Query
	if query == "" {
		if src.Table == "" {
			return nil, errors.Configuration("SQL input requires table or query")
		}
		query = "SELECT * FROM " + src.Table
	}
	if src.Driver == "" {
		return nil, errors.Configuration("SQL input requires a driver")
	}
	open := r.Open
	if open == nil {
		open = sql.Open
	}
	db, err := open(src.Driver, src.DSN)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s database", src.Driver), errors.ErrConfiguration)
	}
	defer db.Close()
	return queryRecords(ctx, db, query, maxRows)
}

func queryRecords(ctx context.Context, db *sql.DB, query string, maxRows int) ([]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(errors.Wrap(err, "run query"), errors.ErrFetch)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}
	out := []any{}
	for rows.Next() {
		if maxRows > 0 && len(out) >= maxRows {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		record := make(map[string]any, len(columns))
		for i, name := range columns {
			record[name] = columnValue(values[i])
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(errors.Wrap(err, "read rows"), errors.ErrFetch)
	}
	return out, nil
}

func columnValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string:
		return x
	case []byte:
		return string(x)
	case int64:
		return json.Number(strconv.FormatInt(x, 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int:
		return json.Number(strconv.Itoa(x))
	case float64:
		return json.Number(strconv.FormatFloat(x, 'f', -1, 64))
	case float32:
		return json.Number(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
