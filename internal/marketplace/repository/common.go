// Package repository provides PostgreSQL and MySQL persistence for marketplace records.
package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "github.com/allisson/marketsync/internal/errors"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func isPostgreSQLUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isPostgreSQLForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func isMySQLUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func isMySQLForeignKeyViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1452
}

// requireRow turns an update or delete that matched nothing into notFound.
func requireRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// uuidBytes converts a UUID for MySQL BINARY(16) columns.
func uuidBytes(id uuid.UUID) []byte {
	b, _ := id.MarshalBinary()
	return b
}

// parseUUIDBytes converts a MySQL BINARY(16) column to a UUID.
func parseUUIDBytes(b []byte) (uuid.UUID, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse UUID: %w", err)
	}
	return id, nil
}

// amenitiesJSON encodes amenities for the MySQL JSON column.
func amenitiesJSON(amenities []string) (string, error) {
	if amenities == nil {
		amenities = []string{}
	}
	data, err := json.Marshal(amenities)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encode amenities")
	}
	return string(data), nil
}

func parseAmenitiesJSON(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var amenities []string
	if err := json.Unmarshal(data, &amenities); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode amenities")
	}
	return amenities, nil
}
