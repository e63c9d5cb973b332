// Package membership manages entity membership grants, resolves effective
// permissions and runs the ownership-transfer protocol. The entity's owner
// never appears as a membership row; ownership implies admin access and the
// invariant holds across every mutation here.
package membership

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

// memberFilterFields is the allow-list for member list filters.
var memberFilterFields = []string{"permission", "user_id"}

// memberSearchSpec searches across the member's user record.
var memberSearchSpec = query.SearchSpec{
	Relations: []query.Relation{
		{Name: "User", Fields: []string{"name", "email"}},
	},
}

// UserFinder resolves users by email. User management itself lives outside
// this service; only the lookup capability is consumed here.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Directory is the gorm-backed UserFinder.
type Directory struct {
	db *gorm.DB
}

// NewDirectory returns a Directory reading from db.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// FindUserByEmail returns the user with the given email, or ErrNotFound.
func (d *Directory) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", email, model.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// Service is the membership and permission resolver for entities.
type Service struct {
	db    *gorm.DB
	users UserFinder
	log   *zap.Logger
}

// NewService returns a membership Service backed by db. users may be nil, in
// which case a gorm-backed Directory on the same database is used.
func NewService(db *gorm.DB, users UserFinder, log *zap.Logger) *Service {
	if users == nil {
		users = NewDirectory(db)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, users: users, log: log}
}

// AddMember grants user access to entity with the given permission, which
// defaults to read when empty. The owner cannot be granted a membership and
// a duplicate grant fails with a conflict.
func (s *Service) AddMember(ctx context.Context, entity *model.Entity, user *model.User, permission model.Permission) (*model.Membership, error) {
	prometheus.RecordMembershipOperation("add")

	if permission == "" {
		permission = model.PermissionRead
	}
	if !permission.Valid() {
		prometheus.RecordAccessError("invalid_permission")
		return nil, model.NewValidationError("permission", "must be one of read, write, admin")
	}
	if user.ID == entity.OwnerID {
		prometheus.RecordAccessError("owner_membership_blocked")
		return nil, fmt.Errorf("owner of entity %d cannot be a member: %w", entity.ID, model.ErrInvalid)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var count int64
	if err := tenancy.Scope(s.db.WithContext(ctx).Model(&model.Membership{}), entity).
		Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		prometheus.RecordAccessError("membership_conflict")
		return nil, fmt.Errorf("user %d is already a member of entity %d: %w", user.ID, entity.ID, model.ErrConflict)
	}

	member := &model.Membership{
		EntityID:   entity.ID,
		UserID:     user.ID,
		Permission: permission,
	}

	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		// Race lost against a concurrent grant; the unique index decides.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			prometheus.RecordAccessError("membership_conflict")
			return nil, fmt.Errorf("user %d is already a member of entity %d: %w", user.ID, entity.ID, model.ErrConflict)
		}
		s.log.Error("Failed to add member",
			zap.Uint("entity_id", entity.ID),
			zap.Uint("user_id", user.ID),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("Member added",
		zap.Uint("entity_id", entity.ID),
		zap.Uint("user_id", user.ID),
		zap.String("permission", string(permission)))

	return member, nil
}

// AddMemberByEmail resolves the user through the UserFinder collaborator and
// grants them access. An unknown email surfaces as a per-field validation
// error rather than a bare not-found.
func (s *Service) AddMemberByEmail(ctx context.Context, entity *model.Entity, email string, permission model.Permission) (*model.Membership, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			prometheus.RecordAccessError("user_not_found")
			return nil, model.NewValidationError("user_email", "does not match any user")
		}
		return nil, err
	}
	return s.AddMember(ctx, entity, user, permission)
}

// MemberFromUser returns the membership row for (entity, user). Both the
// owner and users without a grant resolve to not-found; the owner is
// intentionally invisible to membership lookups.
func (s *Service) MemberFromUser(ctx context.Context, entity *model.Entity, user *model.User) (*model.Membership, error) {
	if user.ID == entity.OwnerID {
		return nil, fmt.Errorf("user %d owns entity %d: %w", user.ID, entity.ID, model.ErrNotFound)
	}

	var member model.Membership
	err := tenancy.Scope(s.db.WithContext(ctx), entity).
		Where("user_id = ?", user.ID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d is not a member of entity %d: %w", user.ID, entity.ID, model.ErrNotFound)
		}
		return nil, err
	}
	return &member, nil
}

// RemoveMember revokes user's membership of entity and returns the deleted
// row. Fails with not-found when no membership exists, which includes the
// owner.
func (s *Service) RemoveMember(ctx context.Context, entity *model.Entity, user *model.User) (*model.Membership, error) {
	prometheus.RecordMembershipOperation("remove")

	member, err := s.MemberFromUser(ctx, entity, user)
	if err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := s.db.WithContext(ctx).Delete(member).Error; err != nil {
		s.log.Error("Failed to remove member",
			zap.Uint("entity_id", entity.ID),
			zap.Uint("user_id", user.ID),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("Member removed",
		zap.Uint("entity_id", entity.ID),
		zap.Uint("user_id", user.ID))

	return member, nil
}

// UpdateMemberPermission changes the permission of an existing membership.
// The owner's permission is implicit and cannot be updated; an absent
// membership is not-found; a bad permission value is a validation error.
func (s *Service) UpdateMemberPermission(ctx context.Context, entity *model.Entity, user *model.User, permission model.Permission) (*model.Membership, error) {
	prometheus.RecordMembershipOperation("update")

	if user.ID == entity.OwnerID {
		prometheus.RecordAccessError("owner_membership_blocked")
		return nil, fmt.Errorf("owner permission is implicit and cannot be updated: %w", model.ErrInvalid)
	}

	member, err := s.MemberFromUser(ctx, entity, user)
	if err != nil {
		return nil, err
	}

	if !permission.Valid() {
		prometheus.RecordAccessError("invalid_permission")
		return nil, model.NewValidationError("permission", "must be one of read, write, admin")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := s.db.WithContext(ctx).Model(member).Update("permission", permission).Error; err != nil {
		return nil, err
	}

	s.log.Info("Member permission updated",
		zap.Uint("entity_id", entity.ID),
		zap.Uint("user_id", user.ID),
		zap.String("permission", string(permission)))

	return member, nil
}

// GetMemberPermission resolves the effective permission of user on entity:
// admin for the owner, the stored level for members, unauthorized otherwise.
// This is a read path and never fails; resolution errors degrade to
// unauthorized.
func (s *Service) GetMemberPermission(ctx context.Context, entity *model.Entity, user *model.User) model.Permission {
	if user.ID == entity.OwnerID {
		return model.PermissionAdmin
	}

	member, err := s.MemberFromUser(ctx, entity, user)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.log.Warn("Permission resolution failed, treating as unauthorized",
				zap.Uint("entity_id", entity.ID),
				zap.Uint("user_id", user.ID),
				zap.Error(err))
		}
		return model.PermissionUnauthorized
	}
	return member.Permission
}

// ListOptions carries the uniform list contract: an untrusted filter map, a
// free-text search term and pagination parameters.
type ListOptions struct {
	Filter map[string]any
	Search string
	Page   query.Options
}

// ListMembers returns one page of the entity's memberships. Filters are
// restricted to permission and user_id; search matches the member's user
// name and email case-insensitively. Results are ordered by membership id
// so pages are stable.
func (s *Service) ListMembers(ctx context.Context, entity *model.Entity, opts ListOptions) (*query.Page[model.Membership], error) {
	prometheus.RecordMembershipOperation("list")
	defer prometheus.TrackDBOperation("query")(time.Now())

	db := tenancy.Scope(s.db.WithContext(ctx).Model(&model.Membership{}), entity)
	db = query.ApplyFilter(db, opts.Filter, memberFilterFields)
	db = query.ApplySearch(db, opts.Search, memberSearchSpec)

	return query.Paginate[model.Membership](db.Order("memberships.id"), opts.Page)
}

// TransferOwnership makes to the new owner of entity. Only the current owner
// may transfer (unauthorized otherwise, with no mutation) and the target
// must be an existing, different user. The owner update, the removal of the
// target's stale membership and the admin grant for the former owner commit
// in a single transaction; a failure at any step leaves no partial state.
func (s *Service) TransferOwnership(ctx context.Context, entity *model.Entity, from, to *model.User) (*model.Entity, error) {
	prometheus.RecordMembershipOperation("transfer")

	if from.ID != entity.OwnerID {
		prometheus.RecordAccessError("transfer_unauthorized")
		s.log.Warn("Ownership transfer attempted by non-owner",
			zap.Uint("entity_id", entity.ID),
			zap.Uint("user_id", from.ID))
		return nil, fmt.Errorf("user %d does not own entity %d: %w", from.ID, entity.ID, model.ErrUnauthorized)
	}
	if from.ID == to.ID {
		prometheus.RecordAccessError("transfer_to_self")
		return nil, fmt.Errorf("entity %d is already owned by user %d: %w", entity.ID, to.ID, model.ErrInvalid)
	}

	defer prometheus.TrackDBOperation("transaction")(time.Now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target model.User
		if err := tx.First(&target, to.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.NewValidationError("owner_id", "must reference an existing user")
			}
			return err
		}

		if err := tx.Model(&model.Entity{}).Where("id = ?", entity.ID).
			Update("owner_id", target.ID).Error; err != nil {
			return err
		}

		// The new owner must not keep a membership row.
		if err := tenancy.Scope(tx, entity).Where("user_id = ?", target.ID).
			Delete(&model.Membership{}).Error; err != nil {
			return err
		}

		// The former owner keeps full access as an admin member.
		grant := model.Membership{
			EntityID:   entity.ID,
			UserID:     from.ID,
			Permission: model.PermissionAdmin,
		}
		return tx.Create(&grant).Error
	})
	if err != nil {
		prometheus.RecordAccessError("transfer_failed")
		return nil, err
	}

	entity.OwnerID = to.ID

	s.log.Info("Ownership transferred",
		zap.Uint("entity_id", entity.ID),
		zap.Uint("from_user_id", from.ID),
		zap.Uint("to_user_id", to.ID))

	return entity, nil
}
