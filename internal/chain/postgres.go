package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists keyed entries in PostgreSQL. It stands in for the
// remote data service in standalone deployments where no node endpoint is
// configured.
//
// Schema:
//
//	CREATE TABLE schemas (id TEXT PRIMARY KEY);
//	CREATE TABLE chain_entries (
//	    schema_id  TEXT NOT NULL REFERENCES schemas(id),
//	    owner      TEXT NOT NULL,
//	    key        TEXT NOT NULL,
//	    kind       SMALLINT NOT NULL,
//	    payload    BYTEA NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (schema_id, owner, key)
//	);
type PostgresStore struct {
	db     *pgxpool.Pool
	signer string
}

// NewPostgresStore constructs a Postgres-backed keyed store writing under the
// given signer identity.
func NewPostgresStore(db *pgxpool.Pool, signer string) *PostgresStore {
	if signer == "" {
		signer = defaultSignerAddress
	}
	return &PostgresStore{db: db, signer: signer}
}

// EnsureSchema provisions a schema identifier.
func (s *PostgresStore) EnsureSchema(ctx context.Context, schemaID string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO schemas (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, schemaID)
	return err
}

// GetByKey fetches entries for one owner-scoped key.
func (s *PostgresStore) GetByKey(ctx context.Context, schemaID, owner, key string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT key, owner, kind, payload FROM chain_entries
        WHERE schema_id = $1 AND owner = $2 AND key = $3`, schemaID, owner, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetAllForOwner fetches every entry an owner has published under a schema.
func (s *PostgresStore) GetAllForOwner(ctx context.Context, schemaID, owner string) ([]Entry, error) {
	var id string
	if err := s.db.QueryRow(ctx, `SELECT id FROM schemas WHERE id = $1`, schemaID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, schemaID)
		}
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT key, owner, kind, payload FROM chain_entries
        WHERE schema_id = $1 AND owner = $2 ORDER BY created_at`, schemaID, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// SetEntry writes under the store's own signer scope. A key that already
// exists is left untouched, preserving append-only collision semantics.
func (s *PostgresStore) SetEntry(ctx context.Context, schemaID, key string, payload []byte) error {
	_, err := s.db.Exec(ctx, `INSERT INTO chain_entries (schema_id, owner, key, kind, payload)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (schema_id, owner, key) DO NOTHING`,
		schemaID, s.signer, key, int16(EntryRawEncoded), payload)
	return err
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			kind int16
		)
		if err := rows.Scan(&e.Key, &e.Owner, &kind, &e.Payload); err != nil {
			return nil, err
		}
		e.Kind = EntryKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
