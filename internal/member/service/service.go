// Package service provides business logic for members.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/festy23/datajpa/internal/member/model"
	"github.com/festy23/datajpa/internal/member/repository"
	baserepo "github.com/festy23/datajpa/pkg/repository"
)

// Service defines member business operations.
type Service interface {
	// GetMember returns the member with id.
	GetMember(ctx context.Context, id uint) (*model.Member, error)

	// FindUsername returns the username of the member with id.
	FindUsername(ctx context.Context, id uint) (string, error)

	// ListMembers returns one page of member views with their team names.
	ListMembers(ctx context.Context, pageable baserepo.Pageable) (*baserepo.Page[model.MemberDto], error)

	// Seed saves count sequential members unless members already exist.
	// It returns the number of members created.
	Seed(ctx context.Context, count int) (int, error)
}

type service struct {
	repo   repository.MemberRepository
	logger *zap.SugaredLogger
}

// New creates a new member service instance.
func New(repo repository.MemberRepository, logger *zap.SugaredLogger) Service {
	return &service{repo: repo, logger: logger}
}

// GetMember returns the member with id or model.ErrMemberNotFound.
func (s *service) GetMember(ctx context.Context, id uint) (*model.Member, error) {
	s.logger.Debugw("GetMember called", "member_id", id)

	if id == 0 {
		return nil, model.ErrInvalidMemberID
	}

	m, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Errorw("GetMember failed", "member_id", id, "error", err)
		return nil, err
	}
	if !found {
		s.logger.Debugw("GetMember member not found", "member_id", id)
		return nil, model.ErrMemberNotFound
	}
	return m, nil
}

// FindUsername returns the username of the member with id.
func (s *service) FindUsername(ctx context.Context, id uint) (string, error) {
	m, err := s.GetMember(ctx, id)
	if err != nil {
		return "", err
	}
	return m.Username, nil
}

// ListMembers returns one page of member views.
func (s *service) ListMembers(
	ctx context.Context,
	pageable baserepo.Pageable,
) (*baserepo.Page[model.MemberDto], error) {
	s.logger.Debugw("ListMembers called", "page", pageable.Page, "size", pageable.Size, "sort", pageable.Sort)

	page, err := s.repo.FindAllWithTeam(ctx, pageable)
	if err != nil {
		if errors.Is(err, baserepo.ErrUnknownProperty) || errors.Is(err, baserepo.ErrInvalidPageable) {
			s.logger.Debugw("ListMembers rejected page request", "error", err)
		} else {
			s.logger.Errorw("ListMembers failed", "error", err)
		}
		return nil, err
	}

	return baserepo.MapPage(page, model.NewMemberDto), nil
}

// Seed saves members member0..member{count-1} with ages 0..count-1 in one transaction.
func (s *service) Seed(ctx context.Context, count int) (int, error) {
	s.logger.Infow("Seed called", "count", count)

	if count <= 0 {
		return 0, nil
	}

	existing, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Errorw("Seed failed to count members", "error", err)
		return 0, err
	}
	if existing > 0 {
		s.logger.Infow("Seed skipped, members already exist", "existing", existing)
		return 0, nil
	}

	members := make([]*model.Member, 0, count)
	for i := range count {
		members = append(members, model.NewMember(fmt.Sprintf("member%d", i), i, nil))
	}

	err = s.repo.Transaction(ctx, func(ctx context.Context) error {
		_, err := s.repo.SaveAll(ctx, members)
		return err
	})
	if err != nil {
		s.logger.Errorw("Seed failed", "count", count, "error", err)
		return 0, err
	}

	s.logger.Infow("Seed completed", "created", len(members))
	return len(members), nil
}
