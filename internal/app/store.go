package app

import (
	"context"
	"fmt"
	"io"

	"reqflow/internal/config"
	"reqflow/internal/domain"
	"reqflow/internal/secret"
	"reqflow/internal/storage"
	"reqflow/internal/storage/mongostore"
)

// stores bundles the opened backends. local is always the SQLite file in the
// data dir; settings and MCP approvals live there whatever the workflow
// backend is.
type stores struct {
	local     *storage.DB
	workflows domain.WorkflowStore
	closers   []io.Closer
}

func (s *stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStores opens the local SQLite database and the configured workflow backend.
func openStores(ctx context.Context, cfg *config.Config, secrets secret.SecretStore) (*stores, error) {
	local, err := storage.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}
	s := &stores{local: local, closers: []io.Closer{local}}

	st := cfg.Store
	password, err := secret.Password(secrets, secret.StoreKey(string(st.Driver), st.Host, st.User), st.Password)
	if err != nil {
		s.Close()
		return nil, err
	}

	switch st.Driver {
	case domain.DatabaseDriverSQLite:
		s.workflows = storage.NewWorkflowStore(local)

	case domain.DatabaseDriverPostgres, domain.DatabaseDriverMySQL:
		db, err := storage.Open(st.Driver, storeDSN(st, password))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open %s store: %w", st.Driver, err)
		}
		s.closers = append(s.closers, db)
		s.workflows = storage.NewWorkflowStore(db)

	case domain.DatabaseDriverMongoDB:
		uri := st.URI
		if uri == "" {
			uri = mongoURI(st, password)
		}
		ms, err := mongostore.New(ctx, uri, st.Database)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open mongodb store: %w", err)
		}
		s.closers = append(s.closers, closerFunc(func() error { return ms.Close(context.Background()) }))
		s.workflows = ms

	default:
		s.Close()
		return nil, fmt.Errorf("unsupported store driver %q", st.Driver)
	}
	return s, nil
}

// storeDSN returns the configured URI, or builds one from the host settings.
func storeDSN(st config.Store, password string) string {
	if st.URI != "" {
		return st.URI
	}
	if st.Driver == domain.DatabaseDriverMySQL {
		return storage.MySQLDSN(st.Host, st.Port, st.User, password, st.Database, st.SSLMode)
	}
	return storage.PostgresDSN(st.Host, st.Port, st.User, password, st.Database, st.SSLMode)
}

func mongoURI(st config.Store, password string) string {
	port := st.Port
	if port == 0 {
		port = 27017
	}
	if st.User == "" {
		return fmt.Sprintf("mongodb://%s:%d", st.Host, port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d", st.User, password, st.Host, port)
}
