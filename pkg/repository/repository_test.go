package repository

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/datajpa/pkg/persistence"
)

func (f *fixture) byName(t *testing.T, ctx context.Context, name string) *testPlayer {
	t.Helper()
	p, found, err := f.players.MustDerive("findByName").FindOne(ctx, name)
	require.NoError(t, err)
	require.True(t, found, "player %s", name)
	return p
}

func names(players []*testPlayer) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.Name)
	}
	return out
}

func TestNew(t *testing.T) {
	db := setupTestDB(t)

	t.Run("identifier type must match primary key", func(t *testing.T) {
		_, err := New[testPlayer, string](db, zap.NewNop().Sugar())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match primary key type")
	})

	t.Run("nil database", func(t *testing.T) {
		_, err := New[testPlayer, uint](nil, nil)
		require.Error(t, err)
	})

	t.Run("nil logger", func(t *testing.T) {
		repo, err := New[testPlayer, uint](db, nil)
		require.NoError(t, err)
		assert.NotNil(t, repo)
	})
}

func TestRepository_SaveAndFind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.players.Save(ctx, &testPlayer{Name: "alice", Age: 10})
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	found, ok, err := f.players.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", found.Name)

	found.Age = 11
	_, err = f.players.Save(ctx, found)
	require.NoError(t, err)

	again, err := f.players.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, again.Age)

	_, ok, err = f.players.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.players.GetByID(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	exists, err := f.players.ExistsByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.players.ExistsByID(ctx, 999)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_SaveAllCountDelete(t *testing.T) {
	f := newFixture(t)
	ctx := unitOfWork()

	saved, err := f.players.SaveAll(ctx, []*testPlayer{{Name: "a"}, {Name: "b"}, {Name: "c"}})
	require.NoError(t, err)
	require.Len(t, saved, 3)

	n, err := f.players.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, f.players.Delete(ctx, saved[0]))
	require.NoError(t, f.players.DeleteByID(ctx, saved[1].ID))
	require.NoError(t, f.players.DeleteByID(ctx, 999))

	_, ok, err := f.players.FindByID(ctx, saved[0].ID)
	require.NoError(t, err)
	assert.False(t, ok, "deleted entity must not be served from the persistence context")

	n, err = f.players.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, f.players.DeleteAll(ctx))
	n, err = f.players.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, persistence.FromContext(ctx).Len())
}

func TestRepository_Identity(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	t.Run("one instance per row within a unit of work", func(t *testing.T) {
		ctx := unitOfWork()
		alice := f.byName(t, ctx, "alice")

		byID, err := f.players.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Same(t, alice, byID)

		all, err := f.players.FindAll(ctx)
		require.NoError(t, err)
		assert.Contains(t, all, alice)
	})

	t.Run("fresh instances without a unit of work", func(t *testing.T) {
		ctx := context.Background()
		a := f.byName(t, ctx, "alice")
		b := f.byName(t, ctx, "alice")
		assert.NotSame(t, a, b)
		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("saved entity becomes managed", func(t *testing.T) {
		ctx := unitOfWork()
		p, err := f.players.Save(ctx, &testPlayer{Name: "frank"})
		require.NoError(t, err)

		got, err := f.players.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Same(t, p, got)
	})
}

func TestRepository_FindAllSorted(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := unitOfWork()

	all, err := f.players.FindAll(ctx, Desc("age"), Asc("name"))
	require.NoError(t, err)
	assert.Equal(t, []string{"dave", "carol", "bob", "erin", "alice"}, names(all))

	_, err = f.players.FindAll(ctx, Asc("height"))
	assert.True(t, errors.Is(err, ErrUnknownProperty))
}

func TestRepository_FindPage(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := unitOfWork()

	page, err := f.players.FindPage(ctx, PageRequest(0, 2, Desc("age")))
	require.NoError(t, err)
	assert.Equal(t, []string{"dave", "carol"}, names(page.Content))
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 3, page.TotalPages())
	assert.True(t, page.IsFirst())
	assert.True(t, page.HasNext())

	page, err = f.players.FindPage(ctx, PageRequest(2, 2, Desc("age"), Asc("name")))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names(page.Content))
	assert.Equal(t, int64(5), page.TotalElements)
	assert.True(t, page.IsLast())

	_, err = f.players.FindPage(ctx, PageRequest(0, 0))
	assert.True(t, errors.Is(err, ErrInvalidPageable))

	page, err = f.players.FindPage(ctx, PageRequest(math.MaxInt/2+1, 2, Desc("age")))
	assert.True(t, errors.Is(err, ErrInvalidPageable))
	assert.Nil(t, page)
}

func TestDerivedQuery_Find(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := unitOfWork()

	t.Run("conjunction", func(t *testing.T) {
		got, err := f.players.MustDerive("findByNameAndAgeGreaterThan").Find(ctx, "carol", 15)
		require.NoError(t, err)
		assert.Equal(t, []string{"carol"}, names(got))

		got, err = f.players.MustDerive("findByNameAndAgeGreaterThan").Find(ctx, "alice", 15)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("static order and limit", func(t *testing.T) {
		got, err := f.players.MustDerive("findTop2ByActiveTrueOrderByAgeDesc").Find(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"dave", "carol"}, names(got))
	})

	t.Run("dynamic sort", func(t *testing.T) {
		got, err := f.players.MustDerive("findByAge").FindSorted(ctx, By(Desc("name")), 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"erin", "bob"}, names(got))
	})

	t.Run("in and null", func(t *testing.T) {
		got, err := f.players.MustDerive("findByNameInOrderByName").Find(ctx, []string{"bob", "dave", "zoe"})
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "dave"}, names(got))

		got, err = f.players.MustDerive("findByClubIDIsNull").Find(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"erin"}, names(got))
	})

	t.Run("containing", func(t *testing.T) {
		got, err := f.players.MustDerive("findByNameContainingOrderByNameAsc").Find(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "carol", "dave"}, names(got))

		for _, wildcard := range []string{"%", "_", "a_i"} {
			got, err = f.players.MustDerive("findByNameContaining").Find(ctx, wildcard)
			require.NoError(t, err)
			assert.Empty(t, got, wildcard)
		}

		got, err = f.players.MustDerive("findByNameStartingWith").Find(ctx, "ca")
		require.NoError(t, err)
		assert.Equal(t, []string{"carol"}, names(got))
	})

	t.Run("wrong argument count", func(t *testing.T) {
		_, err := f.players.MustDerive("findByName").Find(ctx)
		assert.True(t, errors.Is(err, ErrArgumentCount))
	})
}

func TestDerivedQuery_FindOne(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := unitOfWork()
	q := f.players.MustDerive("findByAge")

	p, found, err := q.FindOne(ctx, 30)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "carol", p.Name)

	p, found, err = q.FindOne(ctx, 99)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, p)

	_, _, err = q.FindOne(ctx, 20)
	assert.True(t, errors.Is(err, ErrNonUniqueResult))
}

func TestDerivedQuery_FindPage(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := unitOfWork()
	q := f.players.MustDerive("findByAgeGreaterThanEqual")

	page, err := q.FindPage(ctx, PageRequest(0, 3, Asc("name")), 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "dave"}, names(page.Content))
	assert.Equal(t, int64(4), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages())

	page, err = q.FindPage(ctx, PageRequest(1, 3, Asc("name")), 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"erin"}, names(page.Content))
	assert.Equal(t, int64(4), page.TotalElements)
	assert.True(t, page.IsLast())
}

func TestDerivedQuery_CountExists(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := unitOfWork()

	n, err := f.players.MustDerive("countByActiveTrue").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ok, err := f.players.MustDerive("existsByName").Exists(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.players.MustDerive("existsByName").Exists(ctx, "zoe")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDerivedQuery_Delete(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := unitOfWork()

	bob := f.byName(t, ctx, "bob")

	removed, err := f.players.MustDerive("deleteByActiveFalse").Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, ok, err := f.players.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := f.players.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestDerivedQuery_BulkUpdate(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	t.Run("managed instances stay stale until cleared", func(t *testing.T) {
		ctx := unitOfWork()
		alice := f.byName(t, ctx, "alice")
		require.Equal(t, 10, alice.Age)

		n, err := f.players.MustDerive("updateByAgeGreaterThanEqual").
			Update(ctx, Assignments{"age": gorm.Expr("age + ?", 1)}, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		stale := f.byName(t, ctx, "alice")
		assert.Same(t, alice, stale)
		assert.Equal(t, 10, stale.Age)

		persistence.Clear(ctx)
		fresh := f.byName(t, ctx, "alice")
		assert.NotSame(t, alice, fresh)
		assert.Equal(t, 11, fresh.Age)
	})

	t.Run("clear automatically", func(t *testing.T) {
		ctx := unitOfWork()
		dave := f.byName(t, ctx, "dave")

		q, err := f.players.Derive("updateByName", WithClearAutomatically())
		require.NoError(t, err)
		n, err := q.Update(ctx, Assignments{"Age": 50}, "dave")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		fresh := f.byName(t, ctx, "dave")
		assert.NotSame(t, dave, fresh)
		assert.Equal(t, 50, fresh.Age)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		_, err := f.players.MustDerive("updateByName").Update(context.Background(), Assignments{"height": 1}, "dave")
		assert.True(t, errors.Is(err, ErrUnknownProperty))
	})

	t.Run("no assignments", func(t *testing.T) {
		_, err := f.players.MustDerive("updateByName").Update(context.Background(), nil, "dave")
		assert.True(t, errors.Is(err, ErrMalformedQuery))
	})
}

func TestRepository_DeriveOptions(t *testing.T) {
	f := newFixture(t)

	_, err := f.players.Derive("countByName", WithEntityGraph("Club"))
	assert.True(t, errors.Is(err, ErrMalformedQuery))

	_, err = f.players.Derive("findByName", WithClearAutomatically())
	assert.True(t, errors.Is(err, ErrMalformedQuery))

	_, err = f.players.Derive("findByName", WithEntityGraph("Coach"))
	assert.True(t, errors.Is(err, ErrUnknownProperty))

	assert.Panics(t, func() { f.players.MustDerive("fetchEverything") })

	q := f.players.MustDerive("findByAgeBetween")
	assert.Equal(t, "findByAgeBetween", q.Name())
	assert.Equal(t, 2, q.Arity())
}

func TestRepository_EntityGraph(t *testing.T) {
	f := newFixture(t)
	reds, _ := f.seed(t)

	t.Run("to-one relation joined", func(t *testing.T) {
		ctx := unitOfWork()
		q := f.players.MustDerive("findByClubIDOrderByName", WithEntityGraph("Club"))

		got, err := q.Find(ctx, reds.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.NotNil(t, got[0].Club)
		assert.Equal(t, "reds", got[0].Club.Name)
		assert.Same(t, got[0].Club, got[1].Club, "related rows share one managed instance")

		club, err := f.clubs.GetByID(ctx, reds.ID)
		require.NoError(t, err)
		assert.Same(t, got[0].Club, club)
	})

	t.Run("null relation", func(t *testing.T) {
		q := f.players.MustDerive("findByName", WithEntityGraph("Club"))
		got, err := q.Find(unitOfWork(), "erin")
		require.NoError(t, err)
		require.Len(t, got, 1)
		if got[0].Club != nil {
			assert.Zero(t, got[0].Club.ID)
		}
	})

	t.Run("collection preloaded", func(t *testing.T) {
		q := f.clubs.MustDerive("findByName", WithEntityGraph("Players"))
		got, err := q.Find(unitOfWork(), "blues")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.ElementsMatch(t, []string{"carol", "dave"}, names(got[0].Players))
	})

	t.Run("graph initializes an already managed instance", func(t *testing.T) {
		ctx := unitOfWork()
		alice := f.byName(t, ctx, "alice")
		require.Nil(t, alice.Club)

		got, err := f.players.MustDerive("findByName", WithEntityGraph("Club")).Find(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Same(t, alice, got[0])
		require.NotNil(t, alice.Club)
		assert.Equal(t, "reds", alice.Club.Name)
	})

	t.Run("paged with graph", func(t *testing.T) {
		q := f.players.MustDerive("findAll", WithEntityGraph("Club"))
		page, err := q.FindPage(unitOfWork(), PageRequest(0, 2, Asc("name")))
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.TotalElements)
		require.Len(t, page.Content, 2)
		require.NotNil(t, page.Content[1].Club)
		assert.Equal(t, "reds", page.Content[1].Club.Name)
	})
}

func TestRepository_FetchJoin(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := unitOfWork()

	got, err := f.players.FetchJoin(ctx, "Club")
	require.NoError(t, err)
	require.Len(t, got, 5)
	for _, p := range got {
		if p.ClubID != nil {
			require.NotNil(t, p.Club, p.Name)
			assert.Equal(t, *p.ClubID, p.Club.ID)
		}
	}

	_, err = f.clubs.FetchJoin(ctx, "Players")
	assert.True(t, errors.Is(err, ErrUnsupportedRelation))

	_, err = f.players.FetchJoin(ctx, "Coach")
	assert.True(t, errors.Is(err, ErrUnknownProperty))
}

func TestRepository_LoadRelation(t *testing.T) {
	f := newFixture(t)
	reds, _ := f.seed(t)
	ctx := unitOfWork()

	alice := f.byName(t, ctx, "alice")
	require.Nil(t, alice.Club)
	require.NoError(t, f.players.LoadRelation(ctx, alice, "club"))
	require.NotNil(t, alice.Club)
	assert.Equal(t, "reds", alice.Club.Name)

	erin := f.byName(t, ctx, "erin")
	require.NoError(t, f.players.LoadRelation(ctx, erin, "Club"))
	assert.Nil(t, erin.Club)

	club, err := f.clubs.GetByID(ctx, reds.ID)
	require.NoError(t, err)
	assert.Same(t, alice.Club, club)

	require.NoError(t, f.clubs.LoadRelation(ctx, club, "Players"))
	assert.ElementsMatch(t, []string{"alice", "bob"}, names(club.Players))
	assert.Contains(t, club.Players, alice)

	err = f.players.LoadRelation(ctx, alice, "Coach")
	assert.True(t, errors.Is(err, ErrUnknownProperty))
}

func TestRepository_ExplicitQueries(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	t.Run("entity query", func(t *testing.T) {
		got, err := f.players.Query(unitOfWork(), "SELECT * FROM players WHERE age > ? ORDER BY name", 25)
		require.NoError(t, err)
		assert.Equal(t, []string{"carol", "dave"}, names(got))
	})

	t.Run("scoped query", func(t *testing.T) {
		got, err := f.players.FindScoped(unitOfWork(), func(db *gorm.DB) *gorm.DB {
			return db.Where("active = ?", false).Order("name")
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "erin"}, names(got))
	})

	t.Run("scalar projection", func(t *testing.T) {
		got, err := Scan[string](context.Background(), f.players, "SELECT name FROM players ORDER BY name")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol", "dave", "erin"}, got)
	})

	t.Run("dto projection", func(t *testing.T) {
		type row struct {
			Name     string
			ClubName *string
		}
		got, err := Scan[row](context.Background(), f.players,
			"SELECT p.name AS name, c.name AS club_name FROM players p LEFT JOIN clubs c ON c.id = p.club_id ORDER BY p.name")
		require.NoError(t, err)
		require.Len(t, got, 5)
		require.NotNil(t, got[0].ClubName)
		assert.Equal(t, "reds", *got[0].ClubName)
		assert.Nil(t, got[4].ClubName)
	})

	t.Run("empty projection", func(t *testing.T) {
		got, err := Scan[string](context.Background(), f.players, "SELECT name FROM players WHERE age > 100")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("modifying statement", func(t *testing.T) {
		ctx := unitOfWork()
		alice := f.byName(t, ctx, "alice")

		n, err := f.players.Exec(ctx, Modifying{SQL: "UPDATE players SET age = age * 2", ClearAutomatically: true})
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		fresh := f.byName(t, ctx, "alice")
		assert.NotSame(t, alice, fresh)
		assert.Equal(t, alice.Age*2, fresh.Age)
	})
}

func TestRepository_Transaction(t *testing.T) {
	f := newFixture(t)
	errBoom := errors.New("boom")

	t.Run("rollback discards writes and managed entities", func(t *testing.T) {
		ctx := unitOfWork()
		err := f.players.Transaction(ctx, func(ctx context.Context) error {
			_, err := f.players.Save(ctx, &testPlayer{Name: "zed"})
			require.NoError(t, err)
			_, err = f.clubs.Save(ctx, &testClub{Name: "greens"})
			require.NoError(t, err)
			return errBoom
		})
		assert.True(t, errors.Is(err, errBoom))
		assert.Zero(t, persistence.FromContext(ctx).Len())

		n, err := f.players.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = f.clubs.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("commit", func(t *testing.T) {
		ctx := unitOfWork()
		err := f.players.Transaction(ctx, func(ctx context.Context) error {
			_, err := f.players.Save(ctx, &testPlayer{Name: "yan"})
			return err
		})
		require.NoError(t, err)

		n, err := f.players.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
