package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/festy23/datajpa/internal/member/model"
	"github.com/festy23/datajpa/internal/middleware"
	"github.com/festy23/datajpa/pkg/repository"
)

func setupIntegrationDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Team{}, &model.Member{}))
	return db
}

// seedMembers stores member1..member5; member1 and member2 join teamA,
// member3 joins teamB.
func seedMembers(t *testing.T, db *gorm.DB) {
	teamA := model.NewTeam("teamA")
	teamB := model.NewTeam("teamB")
	require.NoError(t, db.Create(teamA).Error)
	require.NoError(t, db.Create(teamB).Error)

	teams := []*model.Team{teamA, teamA, teamB, nil, nil}
	for i, team := range teams {
		m := model.NewMember(fmt.Sprintf("member%d", i+1), 10*(i+1), team)
		require.NoError(t, db.Omit(clause.Associations).Create(m).Error)
	}
}

func setupRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()

	svc, err := NewService(db, log)
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.UnitOfWork(), middleware.Auditor())
	RegisterRoutes(r, svc, log)
	return r
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestMemberRoutes_FindMember(t *testing.T) {
	db := setupIntegrationDB(t)
	seedMembers(t, db)
	router := setupRouter(t, db)

	t.Run("by id", func(t *testing.T) {
		w := get(router, "/members/1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "member1", w.Body.String())
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("resolved by id", func(t *testing.T) {
		w := get(router, "/members2/3")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "member3", w.Body.String())
	})

	t.Run("missing member", func(t *testing.T) {
		for _, target := range []string{"/members/99", "/members2/99"} {
			w := get(router, target)

			assert.Equal(t, http.StatusNotFound, w.Code, target)

			var response map[string]map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "NOT_FOUND", response["error"]["code"])
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		w := get(router, "/members/abc")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMemberRoutes_List(t *testing.T) {
	db := setupIntegrationDB(t)
	seedMembers(t, db)
	router := setupRouter(t, db)

	t.Run("default sort is username descending", func(t *testing.T) {
		w := get(router, "/members?size=2")
		require.Equal(t, http.StatusOK, w.Code)

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		for _, key := range []string{
			"content", "totalElements", "totalPages", "number", "size",
			"numberOfElements", "first", "last", "empty", "sort",
		} {
			assert.Contains(t, raw, key)
		}

		var page repository.Page[model.MemberDto]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		require.Len(t, page.Content, 2)
		assert.Equal(t, "member5", page.Content[0].Username)
		assert.Equal(t, "member4", page.Content[1].Username)
		assert.Nil(t, page.Content[0].TeamName)
		assert.Equal(t, int64(5), page.TotalElements)
		assert.Equal(t, 3, page.TotalPages())
		assert.True(t, page.IsFirst())
		assert.False(t, page.IsLast())
	})

	t.Run("explicit page and sort", func(t *testing.T) {
		w := get(router, "/members?page=1&size=2&sort=username,asc")
		require.Equal(t, http.StatusOK, w.Code)

		var page repository.Page[model.MemberDto]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		require.Len(t, page.Content, 2)
		assert.Equal(t, "member3", page.Content[0].Username)
		require.NotNil(t, page.Content[0].TeamName)
		assert.Equal(t, "teamB", *page.Content[0].TeamName)
		assert.Equal(t, "member4", page.Content[1].Username)
		assert.Nil(t, page.Content[1].TeamName)
		assert.Equal(t, 1, page.Number)
	})

	t.Run("last page", func(t *testing.T) {
		w := get(router, "/members?page=2&size=2&sort=username")
		require.Equal(t, http.StatusOK, w.Code)

		var page repository.Page[model.MemberDto]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		require.Len(t, page.Content, 1)
		assert.Equal(t, "member5", page.Content[0].Username)
		assert.True(t, page.IsLast())
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		w := get(router, "/members?page=9&size=2")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"content":[]`)
		assert.Contains(t, w.Body.String(), `"totalElements":5`)
	})

	t.Run("huge page index is empty", func(t *testing.T) {
		w := get(router, "/members?page=9223372036854775807&size=2")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"content":[]`)
		assert.Contains(t, w.Body.String(), `"totalElements":5`)
	})

	t.Run("unknown sort property", func(t *testing.T) {
		w := get(router, "/members?sort=height")

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "INVALID_REQUEST", response["error"]["code"])
	})
}
