// Package postgres implements the entity store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/dispatch/internal/adapters/repository"
	"github.com/okian/dispatch/internal/domain/model"
)

const maxConns = 20

// Store is the PostgreSQL implementation of repository.Store. Capacity
// re-checks for InsertContact run inside a transaction that locks the
// operator row, so the invariant holds across processes as well.
type Store struct {
	pool *pgxpool.Pool
}

// Open opens a connection pool, verifies connectivity and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConns = maxConns
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return repository.ErrConflict
		case "23503": // foreign_key_violation
			return repository.ErrNotFound
		}
	}
	return err
}

// FindLeadByExternalID returns the lead for an external id.
func (s *Store) FindLeadByExternalID(ctx context.Context, externalID string) (model.Lead, error) {
	var lead model.Lead
	err := s.pool.QueryRow(ctx, qFindLead, externalID).Scan(&lead.ID, &lead.ExternalID)
	if err != nil {
		return model.Lead{}, translate(err)
	}
	return lead, nil
}

// InsertLead creates a lead; the unique index turns a lost race into ErrConflict.
func (s *Store) InsertLead(ctx context.Context, externalID string) (model.Lead, error) {
	var lead model.Lead
	err := s.pool.QueryRow(ctx, qInsertLead, externalID).Scan(&lead.ID)
	if err != nil {
		return model.Lead{}, translate(err)
	}
	lead.ExternalID = externalID
	return lead, nil
}

// CreateOperator persists a new operator.
func (s *Store) CreateOperator(ctx context.Context, name string, active bool, maxActiveLeads int) (model.Operator, error) {
	op := model.Operator{Name: name, Active: active, MaxActiveLeads: maxActiveLeads}
	err := s.pool.QueryRow(ctx, qInsertOperator, name, active, maxActiveLeads).Scan(&op.ID)
	if err != nil {
		return model.Operator{}, translate(err)
	}
	return op, nil
}

// UpdateOperator applies the non-nil fields to an existing operator.
func (s *Store) UpdateOperator(ctx context.Context, id int64, active *bool, maxActiveLeads *int) (model.Operator, error) {
	var op model.Operator
	err := s.pool.QueryRow(ctx, qUpdateOperator, id, active, maxActiveLeads).
		Scan(&op.ID, &op.Name, &op.Active, &op.MaxActiveLeads)
	if err != nil {
		return model.Operator{}, translate(err)
	}
	return op, nil
}

// GetOperator returns an operator by id.
func (s *Store) GetOperator(ctx context.Context, id int64) (model.Operator, error) {
	var op model.Operator
	err := s.pool.QueryRow(ctx, qGetOperator, id).
		Scan(&op.ID, &op.Name, &op.Active, &op.MaxActiveLeads)
	if err != nil {
		return model.Operator{}, translate(err)
	}
	return op, nil
}

// ListOperators returns all operators ordered by id.
func (s *Store) ListOperators(ctx context.Context) ([]model.Operator, error) {
	rows, err := s.pool.Query(ctx, qListOperators)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.Operator
	for rows.Next() {
		var op model.Operator
		if err := rows.Scan(&op.ID, &op.Name, &op.Active, &op.MaxActiveLeads); err != nil {
			return nil, translate(err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// CreateSource persists a new source with a unique name.
func (s *Store) CreateSource(ctx context.Context, name string) (model.Source, error) {
	src := model.Source{Name: name}
	err := s.pool.QueryRow(ctx, qInsertSource, name).Scan(&src.ID)
	if err != nil {
		return model.Source{}, translate(err)
	}
	return src, nil
}

// FindSource returns a source by id.
func (s *Store) FindSource(ctx context.Context, id int64) (model.Source, error) {
	var src model.Source
	err := s.pool.QueryRow(ctx, qFindSource, id).Scan(&src.ID, &src.Name)
	if err != nil {
		return model.Source{}, translate(err)
	}
	return src, nil
}

// ListSources returns all sources ordered by id.
func (s *Store) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx, qListSources)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.Name); err != nil {
			return nil, translate(err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// AttachOperator upserts the edge for (sourceID, operatorID).
func (s *Store) AttachOperator(ctx context.Context, sourceID, operatorID int64, weight int) (model.Edge, error) {
	edge := model.Edge{SourceID: sourceID, OperatorID: operatorID, Weight: weight}
	err := s.pool.QueryRow(ctx, qUpsertEdge, sourceID, operatorID, weight).Scan(&edge.ID)
	if err != nil {
		return model.Edge{}, translate(err)
	}
	return edge, nil
}

// ListEdgesWithOperator joins the source's edges to active operators.
func (s *Store) ListEdgesWithOperator(ctx context.Context, sourceID int64) ([]repository.EdgeOperator, error) {
	rows, err := s.pool.Query(ctx, qEdgesWithOperator, sourceID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []repository.EdgeOperator
	for rows.Next() {
		var eo repository.EdgeOperator
		if err := rows.Scan(&eo.Operator.ID, &eo.Operator.Name, &eo.Operator.Active, &eo.Operator.MaxActiveLeads, &eo.Weight); err != nil {
			return nil, translate(err)
		}
		out = append(out, eo)
	}
	return out, rows.Err()
}

// CountActiveContacts returns the operator's active contact count.
func (s *Store) CountActiveContacts(ctx context.Context, operatorID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, qCountActive, operatorID).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// InsertContact persists a contact. With an operator set, the operator row is
// locked and its capacity re-counted inside the same transaction; a full
// operator aborts with ErrConflict so the caller can re-run selection.
func (s *Store) InsertContact(ctx context.Context, leadID, sourceID int64, operatorID *int64) (model.Contact, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Contact{}, translate(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if operatorID != nil {
		var capacity, active int
		if err := tx.QueryRow(ctx, qLockOperator, *operatorID).Scan(&capacity); err != nil {
			return model.Contact{}, translate(err)
		}
		if err := tx.QueryRow(ctx, qCountActive, *operatorID).Scan(&active); err != nil {
			return model.Contact{}, translate(err)
		}
		if active >= capacity {
			return model.Contact{}, repository.ErrConflict
		}
	}

	contact := model.Contact{LeadID: leadID, SourceID: sourceID, OperatorID: operatorID, Active: true}
	if err := tx.QueryRow(ctx, qInsertContact, leadID, sourceID, operatorID).Scan(&contact.ID, &contact.CreatedAt); err != nil {
		return model.Contact{}, translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Contact{}, translate(err)
	}
	return contact, nil
}

// CloseContact clears the active flag, releasing the operator's capacity.
func (s *Store) CloseContact(ctx context.Context, contactID int64) (model.Contact, error) {
	var contact model.Contact
	err := s.pool.QueryRow(ctx, qCloseContact, contactID).
		Scan(&contact.ID, &contact.LeadID, &contact.SourceID, &contact.OperatorID, &contact.CreatedAt, &contact.Active)
	if err != nil {
		return model.Contact{}, translate(err)
	}
	return contact, nil
}

// ListContacts returns all contacts, closed ones included, ordered by id.
func (s *Store) ListContacts(ctx context.Context) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx, qListContacts)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.LeadID, &c.SourceID, &c.OperatorID, &c.CreatedAt, &c.Active); err != nil {
			return nil, translate(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContactStats aggregates total, assigned and unassigned contact counts.
func (s *Store) ContactStats(ctx context.Context) (model.ContactStats, error) {
	var stats model.ContactStats
	err := s.pool.QueryRow(ctx, qContactStats).Scan(&stats.Total, &stats.Assigned, &stats.Unassigned)
	if err != nil {
		return model.ContactStats{}, translate(err)
	}
	return stats, nil
}
