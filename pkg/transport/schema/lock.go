package schema

import (
	// Packages
	pg "github.com/mutablelogic/go-pgbus"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// LockHolder selects the backend which holds a session advisory lock
type LockHolder struct {
	Key int64  `json:"key"`
	PID uint32 `json:"pid,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (l LockHolder) String() string {
	return stringify(l)
}

////////////////////////////////////////////////////////////////////////////////
// READER

func (l *LockHolder) Scan(row pg.Row) error {
	var pid int32
	if err := row.Scan(&pid); err != nil {
		return err
	}
	l.PID = uint32(pid)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// SELECTOR

// Select binds the key as the two words pg_locks reports for a bigint
// advisory lock
func (l LockHolder) Select(bind *pg.Bind, op pg.Op) (string, error) {
	bind.Set("classid", int64(uint32(uint64(l.Key)>>32)))
	bind.Set("objid", int64(uint32(uint64(l.Key))))
	switch op {
	case pg.Get:
		return bind.Replace("${pgbus.lock_holder}"), nil
	default:
		return "", pg.ErrNotImplemented.Withf("unsupported LockHolder operation %q", op)
	}
}
