// Package tenancy provisions and scopes the per-entity storage namespaces.
//
// Each entity gets a dedicated Postgres schema (derived from its id) holding
// its tenant-local ledger tables, while shared catalog tables carry an
// entity_id column and are confined with Scope. Both strategies satisfy the
// same isolation contract; queries against shared tables must always pass
// through Scope.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fintrack/internal/model"
	"fintrack/prometheus"
)

// namespacePrefix keeps tenant schemas out of the way of ordinary schemas.
const namespacePrefix = "tenant_"

// Postgres SQLSTATEs for schema DDL failures.
const (
	pgDuplicateSchema   = "42P06"
	pgInvalidSchemaName = "3F000"
)

// NamespaceFor derives the storage namespace identifier for an entity.
// The mapping is pure and deterministic: entity 42 always maps to
// "tenant_42", so no lookup is ever needed to locate a tenant's schema.
func NamespaceFor(entity *model.Entity) string {
	return fmt.Sprintf("%s%d", namespacePrefix, entity.ID)
}

// Scope confines a shared-table queryable to rows belonging to the entity.
func Scope(db *gorm.DB, entity *model.Entity) *gorm.DB {
	return db.Where("entity_id = ?", entity.ID)
}

// Provisioner creates and destroys entity storage namespaces.
type Provisioner struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewProvisioner returns a Provisioner issuing DDL through db.
func NewProvisioner(db *gorm.DB, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{db: db, log: log}
}

// CreateNamespace creates the entity's schema and returns its name.
// Creating a namespace that already exists fails with a conflict error
// rather than succeeding silently; a duplicate create means a provisioning
// bug upstream and must not be masked. Failures are not retried, the caller
// decides whether to compensate.
func (p *Provisioner) CreateNamespace(ctx context.Context, entity *model.Entity) (string, error) {
	ns := NamespaceFor(entity)

	defer prometheus.TrackDBOperation("create_namespace")(time.Now())

	// ns is derived from a numeric id, never from caller input.
	if err := p.db.WithContext(ctx).Exec(fmt.Sprintf("CREATE SCHEMA %q", ns)).Error; err != nil {
		if isSQLState(err, pgDuplicateSchema) {
			p.log.Warn("Namespace already exists", zap.String("namespace", ns))
			return "", fmt.Errorf("namespace %s already exists: %w", ns, model.ErrConflict)
		}
		p.log.Error("Failed to create namespace", zap.String("namespace", ns), zap.Error(err))
		return "", fmt.Errorf("create namespace %s: %w", ns, err)
	}

	p.log.Info("Namespace created", zap.String("namespace", ns), zap.Uint("entity_id", entity.ID))
	return ns, nil
}

// DropNamespace drops the entity's schema and everything in it, returning
// the namespace name. Dropping an absent namespace fails with a not-found
// error.
func (p *Provisioner) DropNamespace(ctx context.Context, entity *model.Entity) (string, error) {
	ns := NamespaceFor(entity)

	defer prometheus.TrackDBOperation("drop_namespace")(time.Now())

	if err := p.db.WithContext(ctx).Exec(fmt.Sprintf("DROP SCHEMA %q CASCADE", ns)).Error; err != nil {
		if isSQLState(err, pgInvalidSchemaName) {
			p.log.Warn("Namespace does not exist", zap.String("namespace", ns))
			return "", fmt.Errorf("namespace %s does not exist: %w", ns, model.ErrNotFound)
		}
		p.log.Error("Failed to drop namespace", zap.String("namespace", ns), zap.Error(err))
		return "", fmt.Errorf("drop namespace %s: %w", ns, err)
	}

	p.log.Info("Namespace dropped", zap.String("namespace", ns), zap.Uint("entity_id", entity.ID))
	return ns, nil
}

// isSQLState reports whether err is a Postgres error with the given SQLSTATE.
func isSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
