// Package repository provides persistence for sync policies and field mappings.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/marketsync/internal/database"
	apperrors "github.com/allisson/marketsync/internal/errors"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/syncconfig/domain"
)

const mappingColumns = `source_table, domain_field, remote_field, kind, remote_type, owner_field, inverse_of`

// PostgreSQLSyncConfigRepository handles sync configuration persistence for PostgreSQL.
type PostgreSQLSyncConfigRepository struct {
	db *sql.DB
}

// NewPostgreSQLSyncConfigRepository creates a new PostgreSQLSyncConfigRepository.
func NewPostgreSQLSyncConfigRepository(db *sql.DB) *PostgreSQLSyncConfigRepository {
	return &PostgreSQLSyncConfigRepository{db: db}
}

// GetPolicy retrieves the sync policy of a source table and operation.
func (r *PostgreSQLSyncConfigRepository) GetPolicy(
	ctx context.Context,
	sourceTable string,
	op outboxDomain.Operation,
) (*domain.SyncPolicy, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT source_table, operation, enabled, updated_at FROM sync_policies
			  WHERE source_table = $1 AND operation = $2`

	var policy domain.SyncPolicy
	err := querier.QueryRowContext(ctx, query, sourceTable, op).Scan(
		&policy.SourceTable, &policy.Operation, &policy.Enabled, &policy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get sync policy")
	}
	return &policy, nil
}

// ListPolicies returns every sync policy ordered by table and operation.
func (r *PostgreSQLSyncConfigRepository) ListPolicies(ctx context.Context) ([]*domain.SyncPolicy, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT source_table, operation, enabled, updated_at FROM sync_policies
			  ORDER BY source_table, operation`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list sync policies")
	}
	defer rows.Close() //nolint:errcheck

	return scanPolicies(rows)
}

// UpsertPolicy creates or replaces a sync policy.
func (r *PostgreSQLSyncConfigRepository) UpsertPolicy(ctx context.Context, policy *domain.SyncPolicy) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO sync_policies (source_table, operation, enabled, updated_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (source_table, operation)
			  DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`

	_, err := querier.ExecContext(ctx, query, policy.SourceTable, policy.Operation, policy.Enabled, policy.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert sync policy")
	}
	return nil
}

// ListMappings returns every field mapping ordered by table and field.
func (r *PostgreSQLSyncConfigRepository) ListMappings(ctx context.Context) ([]domain.FieldMapping, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mappingColumns + ` FROM field_mappings ORDER BY source_table, domain_field`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list field mappings")
	}
	defer rows.Close() //nolint:errcheck

	return scanMappings(rows)
}

// ListMappingsBySourceTable returns the field mappings of one source table.
func (r *PostgreSQLSyncConfigRepository) ListMappingsBySourceTable(
	ctx context.Context,
	sourceTable string,
) ([]domain.FieldMapping, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mappingColumns + ` FROM field_mappings WHERE source_table = $1 ORDER BY domain_field`

	rows, err := querier.QueryContext(ctx, query, sourceTable)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list field mappings")
	}
	defer rows.Close() //nolint:errcheck

	return scanMappings(rows)
}

// UpsertMapping creates or replaces the mapping of one column.
func (r *PostgreSQLSyncConfigRepository) UpsertMapping(ctx context.Context, mapping *domain.FieldMapping) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO field_mappings (` + mappingColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (source_table, domain_field)
			  DO UPDATE SET remote_field = EXCLUDED.remote_field, kind = EXCLUDED.kind,
			      remote_type = EXCLUDED.remote_type, owner_field = EXCLUDED.owner_field,
			      inverse_of = EXCLUDED.inverse_of`

	_, err := querier.ExecContext(
		ctx,
		query,
		mapping.SourceTable,
		mapping.DomainField,
		mapping.RemoteField,
		mapping.Kind,
		mapping.RemoteType,
		mapping.OwnerField,
		mapping.InverseOf,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert field mapping")
	}
	return nil
}

func scanPolicies(rows *sql.Rows) ([]*domain.SyncPolicy, error) {
	var policies []*domain.SyncPolicy
	for rows.Next() {
		var policy domain.SyncPolicy
		if err := rows.Scan(&policy.SourceTable, &policy.Operation, &policy.Enabled, &policy.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan sync policy")
		}
		policies = append(policies, &policy)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate sync policies")
	}
	return policies, nil
}

func scanMappings(rows *sql.Rows) ([]domain.FieldMapping, error) {
	var mappings []domain.FieldMapping
	for rows.Next() {
		var m domain.FieldMapping
		if err := rows.Scan(
			&m.SourceTable, &m.DomainField, &m.RemoteField, &m.Kind, &m.RemoteType, &m.OwnerField, &m.InverseOf,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan field mapping")
		}
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate field mappings")
	}
	return mappings, nil
}
