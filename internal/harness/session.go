package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/sqlconform/internal/fixture"
	"github.com/roach88/sqlconform/internal/store"
)

// Isolation controls how cases share the fixture.
type Isolation string

const (
	// IsolationShared loads the fixture once; every case gets its own
	// read-only connection to the same database.
	IsolationShared Isolation = "shared"

	// IsolationPerCase loads the fixture into a fresh database for every
	// case and discards it afterwards.
	IsolationPerCase Isolation = "per-case"
)

// ParseIsolation converts a configuration value into an Isolation.
// An empty value selects IsolationShared.
func ParseIsolation(s string) (Isolation, error) {
	switch Isolation(strings.ToLower(strings.TrimSpace(s))) {
	case "", IsolationShared:
		return IsolationShared, nil
	case IsolationPerCase, "per_case", "percase":
		return IsolationPerCase, nil
	default:
		return "", fmt.Errorf("unknown isolation %q: must be %q or %q", s, IsolationShared, IsolationPerCase)
	}
}

var errSessionClosed = errors.New("session is closed")

// Conn is a read-only connection a single case queries through.
// *sql.Conn satisfies it.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// SessionInfo describes what a session serves.
type SessionInfo struct {
	Driver      string
	Table       string
	FixtureRows int
	Isolation   Isolation
}

// Session hands out a fresh read-only view of the fixture for each case.
// Every acquired Conn must be closed.
type Session interface {
	Acquire(ctx context.Context) (Conn, error)
	Info() SessionInfo
}

// FixtureSession is the Session backed by an in-memory store.
type FixtureSession struct {
	fx        *fixture.Fixture
	driver    string
	isolation Isolation

	// shared is the single store of a shared session, nil for per-case.
	shared *store.Store
}

// OpenSession prepares a session over fx. A shared session materializes the
// fixture immediately; a per-case session materializes it on every
// Acquire. The caller must Close the session.
func OpenSession(ctx context.Context, fx *fixture.Fixture, driver string, isolation Isolation) (*FixtureSession, error) {
	if isolation == "" {
		isolation = IsolationShared
	}
	if isolation != IsolationShared && isolation != IsolationPerCase {
		return nil, fmt.Errorf("unknown isolation %q", isolation)
	}
	if !store.IsSupportedDriver(driver) {
		return nil, fmt.Errorf("unsupported driver %q: must be one of %v", driver, store.SupportedDrivers)
	}

	s := &FixtureSession{fx: fx, driver: driver, isolation: isolation}
	if isolation == IsolationShared {
		st, err := openFixtureStore(ctx, fx, driver)
		if err != nil {
			return nil, err
		}
		s.shared = st
	}
	return s, nil
}

func openFixtureStore(ctx context.Context, fx *fixture.Fixture, driver string) (*store.Store, error) {
	st, err := store.Open(ctx, driver)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := fixture.Materialize(ctx, st, fx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// Acquire returns a read-only connection to a database holding the
// fixture exactly as loaded.
func (s *FixtureSession) Acquire(ctx context.Context) (Conn, error) {
	if s.isolation == IsolationShared {
		if s.shared == nil {
			return nil, errSessionClosed
		}
		conn, err := s.shared.View(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	st, err := openFixtureStore(ctx, s.fx, s.driver)
	if err != nil {
		return nil, err
	}
	view, err := st.View(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &caseConn{Conn: view, store: st}, nil
}

// Info implements Session.
func (s *FixtureSession) Info() SessionInfo {
	return SessionInfo{
		Driver:      s.driver,
		Table:       s.fx.Table,
		FixtureRows: s.fx.Len(),
		Isolation:   s.isolation,
	}
}

// Close releases the shared store, if any.
func (s *FixtureSession) Close() error {
	if s.shared == nil {
		return nil
	}
	err := s.shared.Close()
	s.shared = nil
	return err
}

// caseConn owns the per-case store its connection reads from and discards
// it on Close.
type caseConn struct {
	*sql.Conn
	store *store.Store
}

func (c *caseConn) Close() error {
	connErr := c.Conn.Close()
	storeErr := c.store.Close()
	if connErr != nil {
		return connErr
	}
	return storeErr
}
