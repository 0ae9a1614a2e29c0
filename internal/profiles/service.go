package profiles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
)

// Service manages profiles mirrored from the auth platform.
type Service interface {
	Ensure(ctx context.Context, identity Identity) error
	Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	Role(ctx context.Context, userID uuid.UUID) (enums.ProfileRole, error)
	Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*ProfileDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*ProfileList, error)
	SetRole(ctx context.Context, actorID, targetID uuid.UUID, role enums.ProfileRole) (*ProfileDTO, error)
}

type service struct {
	repo  *Repository
	cache ExistenceCache
	logg  *logger.Logger
}

// NewService wires the profile service; cache may be nil to always hit the database.
func NewService(repo *Repository, cache ExistenceCache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, cache: cache, logg: logg}, nil
}

// Ensure creates the caller's profile on first sight. Concurrent first requests
// race on the insert and the loser is a no-op.
func (s *service) Ensure(ctx context.Context, identity Identity) error {
	if identity.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeNotAuthenticated, "user identity missing")
	}
	if s.cache != nil {
		known, err := s.cache.Known(ctx, identity.UserID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "profile cache lookup failed")
		} else if known {
			return nil
		}
	}

	profile := &models.Profile{
		ID:       identity.UserID,
		Email:    strings.TrimSpace(identity.Email),
		FullName: strings.TrimSpace(identity.FullName),
		Role:     enums.ProfileRoleUser,
	}
	if phone := strings.TrimSpace(identity.Phone); phone != "" {
		profile.Phone = &phone
	}
	created, err := s.repo.InsertIfMissing(ctx, profile)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "ensure profile")
	}
	if created {
		s.logg.Info(s.logg.WithUserID(ctx, identity.UserID.String()), "profile created")
	}

	if s.cache != nil {
		if err := s.cache.Remember(ctx, identity.UserID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "profile cache store failed")
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(profile), nil
}

func (s *service) Role(ctx context.Context, userID uuid.UUID) (enums.ProfileRole, error) {
	profile, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*ProfileDTO, error) {
	updates := map[string]any{}
	if input.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*input.FullName)
	}
	if input.Phone != nil {
		if phone := strings.TrimSpace(*input.Phone); phone != "" {
			updates["phone"] = phone
		} else {
			updates["phone"] = nil
		}
	}
	if input.DateOfBirth != nil {
		raw := strings.TrimSpace(*input.DateOfBirth)
		if raw == "" {
			updates["date_of_birth"] = nil
		} else {
			dob, err := time.Parse(dateLayout, raw)
			if err != nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_of_birth must be YYYY-MM-DD")
			}
			if dob.After(time.Now()) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_of_birth must be in the past")
			}
			updates["date_of_birth"] = dob
		}
	}
	if len(updates) > 0 {
		found, err := s.repo.Update(ctx, userID, updates)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
	}
	return s.Get(ctx, userID)
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ProfileList, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		if strings.Contains(err.Error(), "cursor") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list profiles")
	}
	out := &ProfileList{Users: make([]ProfileDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		out.Users = append(out.Users, *FromModel(&rows[i]))
	}
	return out, nil
}

// SetRole changes a user's role. Granting or removing admin rights requires a
// superadmin, and nobody may change their own role.
func (s *service) SetRole(ctx context.Context, actorID, targetID uuid.UUID, role enums.ProfileRole) (*ProfileDTO, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if actorID == targetID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot change your own role")
	}
	actor, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not authorized")
	}
	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	touchesAdmin := role.IsAdmin() || target.Role.IsAdmin()
	if touchesAdmin && actor.Role != enums.ProfileRoleSuperadmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only a superadmin may change admin roles")
	}
	if target.Role == role {
		return FromModel(target), nil
	}
	if _, err := s.repo.Update(ctx, targetID, map[string]any{"role": role}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"actor_id":  actorID.String(),
		"target_id": targetID.String(),
		"from_role": target.Role,
		"to_role":   role,
	})
	s.logg.Info(logCtx, "profile role changed")
	return s.Get(ctx, targetID)
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return profile, nil
}
