// Package entity manages tenant root records and ties their lifecycle to the
// storage namespace each one owns.
package entity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fintrack/internal/model"
	"fintrack/internal/query"
	"fintrack/internal/tenancy"
	"fintrack/prometheus"
)

// entityFilterFields is the allow-list for entity list filters.
var entityFilterFields = []string{"status", "type", "owner_id"}

// entitySearchSpec searches entities by name.
var entitySearchSpec = query.SearchSpec{
	Fields: []string{"name"},
}

// Service manages entity records and their namespaces.
type Service struct {
	db   *gorm.DB
	prov *tenancy.Provisioner
	log  *zap.Logger
}

// NewService returns an entity Service backed by db and prov.
func NewService(db *gorm.DB, prov *tenancy.Provisioner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, prov: prov, log: log}
}

// CreateParams carries entity creation input. SkipProvision leaves the
// namespace uncreated, for setups that provision separately.
type CreateParams struct {
	Name          string
	Type          string
	OwnerID       uint
	SkipProvision bool
}

// DeleteParams carries entity deletion input. SkipTeardown leaves the
// namespace in place.
type DeleteParams struct {
	SkipTeardown bool
}

// Create inserts a new active entity owned by params.OwnerID and, unless
// skipped, provisions its namespace. When provisioning fails the entity row
// is rolled back, namespace creation itself is a single non-transactional
// DDL command, so compensation happens here rather than inside a
// transaction.
func (s *Service) Create(ctx context.Context, params CreateParams) (*model.Entity, error) {
	prometheus.RecordEntityOperation("create")

	if params.Name == "" {
		return nil, model.NewValidationError("name", "is required")
	}
	if params.OwnerID == 0 {
		return nil, model.NewValidationError("owner_id", "is required")
	}

	var owner model.User
	if err := s.db.WithContext(ctx).First(&owner, params.OwnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewValidationError("owner_id", "must reference an existing user")
		}
		return nil, err
	}

	if params.Type == "" {
		params.Type = model.EntityTypePersonal
	}

	ent := &model.Entity{
		Name:    params.Name,
		Type:    params.Type,
		Status:  model.EntityStatusActive,
		OwnerID: owner.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		s.log.Error("Failed to create entity", zap.String("name", params.Name), zap.Error(err))
		return nil, err
	}

	if !params.SkipProvision {
		if _, err := s.prov.CreateNamespace(ctx, ent); err != nil {
			// An entity row without its namespace is a latent inconsistency;
			// take the row back out and report the provisioning failure.
			if derr := s.db.WithContext(ctx).Unscoped().Delete(ent).Error; derr != nil {
				s.log.Error("Failed to roll back entity after provisioning failure",
					zap.Uint("entity_id", ent.ID), zap.Error(derr))
			}
			prometheus.RecordAccessError("provision_failed")
			return nil, fmt.Errorf("provision entity %d: %w", ent.ID, err)
		}
	}

	prometheus.ActiveEntitiesGauge.Inc()
	s.log.Info("Entity created",
		zap.Uint("id", ent.ID),
		zap.String("name", ent.Name),
		zap.Uint("owner_id", ent.OwnerID))

	return ent, nil
}

// Get returns the entity with the given id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id uint) (*model.Entity, error) {
	var ent model.Entity
	if err := s.db.WithContext(ctx).First(&ent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity %d: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	return &ent, nil
}

// Archive marks the entity archived. Archived entities keep their data and
// namespace but are excluded from active listings.
func (s *Service) Archive(ctx context.Context, ent *model.Entity) error {
	prometheus.RecordEntityOperation("archive")
	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := s.db.WithContext(ctx).Model(ent).
		Update("status", model.EntityStatusArchived).Error; err != nil {
		return err
	}

	prometheus.ActiveEntitiesGauge.Dec()
	s.log.Info("Entity archived", zap.Uint("id", ent.ID))
	return nil
}

// Delete removes the entity, its membership rows and, unless skipped, drops
// its namespace. The namespace is dropped first: when teardown fails the
// entity row stays so the caller can retry or repair, an entity row without
// a namespace is harder to detect than the reverse.
func (s *Service) Delete(ctx context.Context, ent *model.Entity, params DeleteParams) error {
	prometheus.RecordEntityOperation("delete")

	if !params.SkipTeardown {
		if _, err := s.prov.DropNamespace(ctx, ent); err != nil {
			prometheus.RecordAccessError("teardown_failed")
			return fmt.Errorf("teardown entity %d: %w", ent.ID, err)
		}
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tenancy.Scope(tx, ent).Delete(&model.Membership{}).Error; err != nil {
			return err
		}
		return tx.Delete(ent).Error
	})
	if err != nil {
		s.log.Error("Failed to delete entity", zap.Uint("id", ent.ID), zap.Error(err))
		return err
	}

	prometheus.ActiveEntitiesGauge.Dec()
	s.log.Info("Entity deleted", zap.Uint("id", ent.ID))
	return nil
}

// ListOptions carries the uniform list contract for entities.
type ListOptions struct {
	Filter map[string]any
	Search string
	Page   query.Options
}

// List returns one page of entities. Filters are restricted to status, type
// and owner_id; search matches the entity name case-insensitively. Results
// are ordered by id so pages are stable.
func (s *Service) List(ctx context.Context, opts ListOptions) (*query.Page[model.Entity], error) {
	prometheus.RecordEntityOperation("list")
	defer prometheus.TrackDBOperation("query")(time.Now())

	db := s.db.WithContext(ctx).Model(&model.Entity{})
	db = query.ApplyFilter(db, opts.Filter, entityFilterFields)
	db = query.ApplySearch(db, opts.Search, entitySearchSpec)

	return query.Paginate[model.Entity](db.Order("entities.id"), opts.Page)
}
