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

// MySQLSyncConfigRepository handles sync configuration persistence for MySQL.
type MySQLSyncConfigRepository struct {
	db *sql.DB
}

// NewMySQLSyncConfigRepository creates a new MySQLSyncConfigRepository.
func NewMySQLSyncConfigRepository(db *sql.DB) *MySQLSyncConfigRepository {
	return &MySQLSyncConfigRepository{db: db}
}

// GetPolicy retrieves the sync policy of a source table and operation.
func (r *MySQLSyncConfigRepository) GetPolicy(
	ctx context.Context,
	sourceTable string,
	op outboxDomain.Operation,
) (*domain.SyncPolicy, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT source_table, operation, enabled, updated_at FROM sync_policies
			  WHERE source_table = ? AND operation = ?`

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
func (r *MySQLSyncConfigRepository) ListPolicies(ctx context.Context) ([]*domain.SyncPolicy, error) {
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
func (r *MySQLSyncConfigRepository) UpsertPolicy(ctx context.Context, policy *domain.SyncPolicy) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO sync_policies (source_table, operation, enabled, updated_at)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE enabled = VALUES(enabled), updated_at = VALUES(updated_at)`

	_, err := querier.ExecContext(ctx, query, policy.SourceTable, policy.Operation, policy.Enabled, policy.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert sync policy")
	}
	return nil
}

// ListMappings returns every field mapping ordered by table and field.
func (r *MySQLSyncConfigRepository) ListMappings(ctx context.Context) ([]domain.FieldMapping, error) {
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
func (r *MySQLSyncConfigRepository) ListMappingsBySourceTable(
	ctx context.Context,
	sourceTable string,
) ([]domain.FieldMapping, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mappingColumns + ` FROM field_mappings WHERE source_table = ? ORDER BY domain_field`

	rows, err := querier.QueryContext(ctx, query, sourceTable)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list field mappings")
	}
	defer rows.Close() //nolint:errcheck

	return scanMappings(rows)
}

// UpsertMapping creates or replaces the mapping of one column.
func (r *MySQLSyncConfigRepository) UpsertMapping(ctx context.Context, mapping *domain.FieldMapping) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO field_mappings (` + mappingColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE remote_field = VALUES(remote_field), kind = VALUES(kind),
			      remote_type = VALUES(remote_type), owner_field = VALUES(owner_field),
			      inverse_of = VALUES(inverse_of)`

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
