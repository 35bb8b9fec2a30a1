package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"

	// Packages
	pgx "github.com/jackc/pgx/v5"
	pgconn "github.com/jackc/pgx/v5/pgconn"
	types "github.com/mutablelogic/go-pgbus/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Bind carries the variables for a statement. A variable is either expanded
// into the statement text (${key}, ${'key'} or ${"key"}) or passed to the
// server as the named argument @key. Named statements bound with
// WithQueries expand the same way, which is how ${pgbus.key} selects a
// statement.
type Bind struct {
	sync.RWMutex
	vars pgx.NamedArgs
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewBind returns variables from key/value pairs, or nil when the pairs are
// uneven or a key is not a non-empty string
func NewBind(pairs ...any) *Bind {
	return withPairs(pgx.NamedArgs{}, pairs)
}

// Copy returns an independent copy with further key/value pairs set, or
// nil when the pairs are invalid
func (bind *Bind) Copy(pairs ...any) *Bind {
	bind.RLock()
	vars := maps.Clone(bind.vars)
	bind.RUnlock()
	if vars == nil {
		vars = pgx.NamedArgs{}
	}
	return withPairs(vars, pairs)
}

func (bind *Bind) withQueries(queries ...*Queries) *Bind {
	if len(queries) == 0 {
		return bind
	}
	result := bind.Copy()
	for _, q := range queries {
		for _, key := range q.Keys() {
			result.vars[key] = q.Get(key)
		}
	}
	return result
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (bind *Bind) MarshalJSON() ([]byte, error) {
	bind.RLock()
	defer bind.RUnlock()
	return json.Marshal(bind.vars)
}

func (bind *Bind) String() string {
	data, err := json.MarshalIndent(bind, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Set a variable and return its argument name, or an empty string when
// the key is empty
func (bind *Bind) Set(key string, value any) string {
	if key == "" {
		return ""
	}
	bind.Lock()
	bind.vars[key] = value
	bind.Unlock()
	return "@" + key
}

// Get a variable, or nil
func (bind *Bind) Get(key string) any {
	bind.RLock()
	defer bind.RUnlock()
	return bind.vars[key]
}

func (bind *Bind) Has(key string) bool {
	bind.RLock()
	defer bind.RUnlock()
	_, exists := bind.vars[key]
	return exists
}

func (bind *Bind) Del(key string) {
	bind.Lock()
	defer bind.Unlock()
	delete(bind.vars, key)
}

// Replace expands variables in the query text. Positional parameters ($1)
// and dollar quotes ($$) are left untouched, and a []string bound to a
// single quoted key expands to a comma separated list of literals.
func (bind *Bind) Replace(query string) string {
	bind.RLock()
	defer bind.RUnlock()
	return expand(query, bind.vars)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - QUERY

// Query expands the query text and runs it with the variables as arguments
func (bind *Bind) Query(ctx context.Context, tx pgx.Tx, query string) (pgx.Rows, error) {
	bind.RLock()
	defer bind.RUnlock()
	return tx.Query(ctx, expand(query, bind.vars), bind.vars)
}

// Exec expands the query text and executes it with the variables as arguments
func (bind *Bind) Exec(ctx context.Context, tx pgx.Tx, query string) error {
	bind.RLock()
	defer bind.RUnlock()
	_, err := tx.Exec(ctx, expand(query, bind.vars), bind.vars)
	return err
}

// queue adds the statement to a batch. Returned rows are scanned into the
// reader when the batch results are read.
func (bind *Bind) queue(batch *pgx.Batch, query string, reader Reader) {
	bind.RLock()
	defer bind.RUnlock()
	q := batch.Queue(expand(query, bind.vars), bind.vars)
	switch {
	case reader != nil:
		q.QueryRow(func(row pgx.Row) error { return reader.Scan(row) })
	default:
		q.Exec(func(pgconn.CommandTag) error { return nil })
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func withPairs(vars pgx.NamedArgs, pairs []any) *Bind {
	if len(pairs)%2 != 0 {
		return nil
	}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok || key == "" {
			return nil
		}
		vars[key] = pairs[i+1]
	}
	return &Bind{vars: vars}
}

func expand(query string, vars pgx.NamedArgs) string {
	value := func(key string) string {
		return fmt.Sprint(vars[key])
	}
	return os.Expand(query, func(key string) string {
		switch {
		case key == "$":
			return "$$"
		case types.IsNumeric(key):
			return "$" + key
		case types.IsSingleQuoted(key):
			key = strings.Trim(key, "'")
			if list, ok := vars[key].([]string); ok {
				literals := make([]string, 0, len(list))
				for _, s := range list {
					literals = append(literals, types.Quote(s))
				}
				return strings.Join(literals, ",")
			}
			return types.Quote(value(key))
		case types.IsDoubleQuoted(key):
			return types.DoubleQuote(value(strings.Trim(key, `"`)))
		default:
			return value(key)
		}
	})
}
