package pg

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Queries is an ordered collection of named SQL statements
type Queries struct {
	keys    []string
	queries map[string]string
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

var (
	reQuerySeparator = regexp.MustCompile(`^--\s*([a-zA-Z0-9_.-]+)\s*$`)
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewQueries parses SQL statements from a reader. Each statement is preceded
// by a comment line "-- <key>", and text before the first key is ignored.
// Returns an error if a key is repeated.
//
//	-- queue.insert
//	INSERT INTO ${"schema"}.${"table"} (id) VALUES (@id)
//
//	-- queue.delete
//	DELETE FROM ${"schema"}.${"table"} WHERE id = @id
func NewQueries(r io.Reader) (*Queries, error) {
	self := &Queries{
		queries: make(map[string]string),
	}

	var key string
	var sql strings.Builder
	flush := func() {
		if key == "" {
			return
		}
		if stmt := strings.TrimSpace(sql.String()); stmt != "" {
			self.queries[key] = stmt
			self.keys = append(self.keys, key)
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if matches := reQuerySeparator.FindStringSubmatch(line); matches != nil {
			flush()
			key = matches[1]
			if _, exists := self.queries[key]; exists {
				return nil, ErrBadParameter.Withf("duplicate SQL statement key: %q", key)
			}
			sql.Reset()
			continue
		}
		sql.WriteString(line)
		sql.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	// Return success
	return self, nil
}

// MustQueries parses SQL statements from a string, and panics on error.
// It is intended for statements embedded at compile time.
func MustQueries(sql string) *Queries {
	queries, err := NewQueries(strings.NewReader(sql))
	if err != nil {
		panic(err)
	}
	return queries
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Keys returns the statement keys in the order they were parsed
func (s *Queries) Keys() []string {
	return s.keys
}

// Get returns the statement for a key, or an empty string
func (s *Queries) Get(key string) string {
	return s.queries[key]
}

// Has returns true if a statement exists for the key
func (s *Queries) Has(key string) bool {
	_, exists := s.queries[key]
	return exists
}
