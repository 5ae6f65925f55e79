package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/datajpa/internal/member/model"
	baserepo "github.com/festy23/datajpa/pkg/repository"
)

// TeamRepository defines team data access operations.
type TeamRepository interface {
	baserepo.Repository[model.Team, uint]

	// FindByName returns the team called name, if any.
	FindByName(ctx context.Context, name string) (*model.Team, bool, error)

	// FindWithMembers returns the team with its members fetched.
	FindWithMembers(ctx context.Context, id uint) (*model.Team, error)
}

type teamRepository struct {
	baserepo.Repository[model.Team, uint]

	logger *zap.SugaredLogger

	byName          *baserepo.DerivedQuery[model.Team]
	withMembersByID *baserepo.DerivedQuery[model.Team]
}

// NewTeamRepository creates a team repository.
func NewTeamRepository(db *gorm.DB, logger *zap.SugaredLogger) (TeamRepository, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	base, err := baserepo.New[model.Team, uint](db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create team repository: %w", err)
	}

	byName, err := base.Derive("findByName")
	if err != nil {
		return nil, fmt.Errorf("failed to create team repository: %w", err)
	}
	withMembers, err := base.Derive("findByID", baserepo.WithEntityGraph("Members"))
	if err != nil {
		return nil, fmt.Errorf("failed to create team repository: %w", err)
	}

	return &teamRepository{
		Repository:      base,
		logger:          logger,
		byName:          byName,
		withMembersByID: withMembers,
	}, nil
}

func (r *teamRepository) FindByName(ctx context.Context, name string) (*model.Team, bool, error) {
	r.logger.Debugw("FindByName called", "name", name)
	return r.byName.FindOne(ctx, name)
}

func (r *teamRepository) FindWithMembers(ctx context.Context, id uint) (*model.Team, error) {
	r.logger.Debugw("FindWithMembers called", "team_id", id)

	team, found, err := r.withMembersByID.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		r.logger.Debugw("FindWithMembers team not found", "team_id", id)
		return nil, model.ErrTeamNotFound
	}
	return team, nil
}
