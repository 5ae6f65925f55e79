// Package repository provides data access for members and teams on top of the
// generic repository.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/datajpa/internal/member/model"
	baserepo "github.com/festy23/datajpa/pkg/repository"
)

// MemberRepository defines member data access operations.
type MemberRepository interface {
	baserepo.Repository[model.Member, uint]

	// FindByUsernameAndAgeGreaterThan returns members named username older than age.
	FindByUsernameAndAgeGreaterThan(ctx context.Context, username string, age int) ([]*model.Member, error)

	// FindByUsername returns members named username.
	FindByUsername(ctx context.Context, username string) ([]*model.Member, error)

	// FindListByUsername returns members named username.
	FindListByUsername(ctx context.Context, username string) ([]*model.Member, error)

	// FindMemberByUsername returns the single member named username.
	FindMemberByUsername(ctx context.Context, username string) (*model.Member, error)

	// FindOptionalByUsername returns the member named username, if any.
	FindOptionalByUsername(ctx context.Context, username string) (*model.Member, bool, error)

	// FindUser returns members matching username and age exactly.
	FindUser(ctx context.Context, username string, age int) ([]*model.Member, error)

	// FindUsernameList returns every username.
	FindUsernameList(ctx context.Context) ([]string, error)

	// FindMemberDto returns the view of every member that belongs to a team.
	FindMemberDto(ctx context.Context) ([]model.MemberDto, error)

	// FindByNames returns members whose username is one of names.
	FindByNames(ctx context.Context, names []string) ([]*model.Member, error)

	// FindByAge returns one page of members of the given age.
	FindByAge(ctx context.Context, age int, pageable baserepo.Pageable) (*baserepo.Page[model.Member], error)

	// BulkAgePlus increments the age of every member at least age years old.
	BulkAgePlus(ctx context.Context, age int) (int64, error)

	// FindMemberFetchJoin returns all members with their team joined in.
	FindMemberFetchJoin(ctx context.Context) ([]*model.Member, error)

	// FindMemberEntityGraph returns all members with their team fetched.
	FindMemberEntityGraph(ctx context.Context) ([]*model.Member, error)

	// FindEntityGraphByUsername returns members named username with their team fetched.
	FindEntityGraphByUsername(ctx context.Context, username string) ([]*model.Member, error)

	// FindAllWithTeam returns one page of members with their team fetched.
	FindAllWithTeam(ctx context.Context, pageable baserepo.Pageable) (*baserepo.Page[model.Member], error)

	// LoadTeam resolves the team of m with a separate query.
	LoadTeam(ctx context.Context, m *model.Member) error
}

const (
	findUserQuery = `SELECT * FROM members WHERE username = @username AND age = @age`

	findUsernameListQuery = `SELECT username FROM members ORDER BY member_id`

	findMemberDtoQuery = `
		SELECT m.member_id AS id, m.username AS username, t.name AS team_name
		FROM members m
		JOIN teams t ON t.team_id = m.team_id
		ORDER BY m.member_id`

	findByNamesQuery = `SELECT * FROM members WHERE username IN @names ORDER BY member_id`
)

type memberRepository struct {
	baserepo.Repository[model.Member, uint]

	logger *zap.SugaredLogger

	byUsernameAndAgeGreaterThan *baserepo.DerivedQuery[model.Member]
	byUsername                  *baserepo.DerivedQuery[model.Member]
	listByUsername              *baserepo.DerivedQuery[model.Member]
	memberByUsername            *baserepo.DerivedQuery[model.Member]
	optionalByUsername          *baserepo.DerivedQuery[model.Member]
	byAge                       *baserepo.DerivedQuery[model.Member]
	ageGreaterThanEqualUpdate   *baserepo.DerivedQuery[model.Member]
	allWithTeam                 *baserepo.DerivedQuery[model.Member]
	entityGraphByUsername       *baserepo.DerivedQuery[model.Member]
}

// NewMemberRepository creates a member repository. Every derived query is
// parsed here, so a malformed one fails construction.
func NewMemberRepository(db *gorm.DB, logger *zap.SugaredLogger) (MemberRepository, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	base, err := baserepo.New[model.Member, uint](db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create member repository: %w", err)
	}

	r := &memberRepository{Repository: base, logger: logger}
	queries := []struct {
		dst  **baserepo.DerivedQuery[model.Member]
		name string
		opts []baserepo.QueryOption
	}{
		{&r.byUsernameAndAgeGreaterThan, "findByUsernameAndAgeGreaterThan", nil},
		{&r.byUsername, "findByUsername", nil},
		{&r.listByUsername, "findListByUsername", nil},
		{&r.memberByUsername, "findMemberByUsername", nil},
		{&r.optionalByUsername, "findOptionalByUsername", nil},
		{&r.byAge, "findByAge", nil},
		{&r.ageGreaterThanEqualUpdate, "updateByAgeGreaterThanEqual", nil},
		{&r.allWithTeam, "findAll", []baserepo.QueryOption{baserepo.WithEntityGraph("Team")}},
		{&r.entityGraphByUsername, "findEntityGraphByUsername", []baserepo.QueryOption{baserepo.WithEntityGraph("Team")}},
	}
	for _, q := range queries {
		dq, err := base.Derive(q.name, q.opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create member repository: %w", err)
		}
		*q.dst = dq
	}
	return r, nil
}

func (r *memberRepository) FindByUsernameAndAgeGreaterThan(
	ctx context.Context,
	username string,
	age int,
) ([]*model.Member, error) {
	r.logger.Debugw("FindByUsernameAndAgeGreaterThan called", "username", username, "age", age)
	return r.byUsernameAndAgeGreaterThan.Find(ctx, username, age)
}

func (r *memberRepository) FindByUsername(ctx context.Context, username string) ([]*model.Member, error) {
	r.logger.Debugw("FindByUsername called", "username", username)
	return r.byUsername.Find(ctx, username)
}

func (r *memberRepository) FindListByUsername(ctx context.Context, username string) ([]*model.Member, error) {
	r.logger.Debugw("FindListByUsername called", "username", username)
	return r.listByUsername.Find(ctx, username)
}

func (r *memberRepository) FindMemberByUsername(ctx context.Context, username string) (*model.Member, error) {
	r.logger.Debugw("FindMemberByUsername called", "username", username)

	m, found, err := r.memberByUsername.FindOne(ctx, username)
	if err != nil {
		return nil, err
	}
	if !found {
		r.logger.Debugw("FindMemberByUsername member not found", "username", username)
		return nil, model.ErrMemberNotFound
	}
	return m, nil
}

func (r *memberRepository) FindOptionalByUsername(ctx context.Context, username string) (*model.Member, bool, error) {
	r.logger.Debugw("FindOptionalByUsername called", "username", username)
	return r.optionalByUsername.FindOne(ctx, username)
}

func (r *memberRepository) FindUser(ctx context.Context, username string, age int) ([]*model.Member, error) {
	r.logger.Debugw("FindUser called", "username", username, "age", age)
	return r.Query(ctx, findUserQuery, sql.Named("username", username), sql.Named("age", age))
}

func (r *memberRepository) FindUsernameList(ctx context.Context) ([]string, error) {
	r.logger.Debugw("FindUsernameList called")

	names, err := baserepo.Scan[string](ctx, r, findUsernameListQuery)
	if err != nil {
		r.logger.Errorw("FindUsernameList database error", "error", err)
		return nil, err
	}
	return names, nil
}

func (r *memberRepository) FindMemberDto(ctx context.Context) ([]model.MemberDto, error) {
	r.logger.Debugw("FindMemberDto called")

	dtos, err := baserepo.Scan[model.MemberDto](ctx, r, findMemberDtoQuery)
	if err != nil {
		r.logger.Errorw("FindMemberDto database error", "error", err)
		return nil, err
	}
	return dtos, nil
}

func (r *memberRepository) FindByNames(ctx context.Context, names []string) ([]*model.Member, error) {
	r.logger.Debugw("FindByNames called", "count", len(names))
	return r.Query(ctx, findByNamesQuery, sql.Named("names", names))
}

func (r *memberRepository) FindByAge(
	ctx context.Context,
	age int,
	pageable baserepo.Pageable,
) (*baserepo.Page[model.Member], error) {
	r.logger.Debugw("FindByAge called", "age", age, "page", pageable.Page, "size", pageable.Size)
	return r.byAge.FindPage(ctx, pageable, age)
}

func (r *memberRepository) BulkAgePlus(ctx context.Context, age int) (int64, error) {
	r.logger.Infow("BulkAgePlus called", "age", age)

	n, err := r.ageGreaterThanEqualUpdate.Update(ctx, baserepo.Assignments{"Age": gorm.Expr("age + ?", 1)}, age)
	if err != nil {
		r.logger.Errorw("BulkAgePlus database error", "age", age, "error", err)
		return 0, err
	}

	r.logger.Infow("BulkAgePlus completed", "age", age, "updated_count", n)
	return n, nil
}

func (r *memberRepository) FindMemberFetchJoin(ctx context.Context) ([]*model.Member, error) {
	r.logger.Debugw("FindMemberFetchJoin called")
	return r.FetchJoin(ctx, "Team")
}

func (r *memberRepository) FindMemberEntityGraph(ctx context.Context) ([]*model.Member, error) {
	r.logger.Debugw("FindMemberEntityGraph called")
	return r.allWithTeam.Find(ctx)
}

func (r *memberRepository) FindEntityGraphByUsername(ctx context.Context, username string) ([]*model.Member, error) {
	r.logger.Debugw("FindEntityGraphByUsername called", "username", username)
	return r.entityGraphByUsername.Find(ctx, username)
}

func (r *memberRepository) FindAllWithTeam(
	ctx context.Context,
	pageable baserepo.Pageable,
) (*baserepo.Page[model.Member], error) {
	r.logger.Debugw("FindAllWithTeam called", "page", pageable.Page, "size", pageable.Size)
	return r.allWithTeam.FindPage(ctx, pageable)
}

func (r *memberRepository) LoadTeam(ctx context.Context, m *model.Member) error {
	r.logger.Debugw("LoadTeam called", "member_id", m.ID)
	return r.LoadRelation(ctx, m, "Team")
}
