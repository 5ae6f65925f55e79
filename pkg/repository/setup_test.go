package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/festy23/datajpa/pkg/persistence"
)

type testClub struct {
	ID      uint          `gorm:"primaryKey"`
	Name    string        `gorm:"not null"`
	Players []*testPlayer `gorm:"foreignKey:ClubID"`
}

func (testClub) TableName() string {
	return "clubs"
}

type testPlayer struct {
	ID       uint      `gorm:"primaryKey"`
	Name     string    `gorm:"not null"`
	Age      int
	Active   bool
	Nickname *string
	ClubID   *uint
	Club     *testClub `gorm:"foreignKey:ClubID"`
}

func (testPlayer) TableName() string {
	return "players"
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&testClub{}, &testPlayer{}))
	return db
}

type fixture struct {
	db      *gorm.DB
	players Repository[testPlayer, uint]
	clubs   Repository[testClub, uint]
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	log := zaptest.NewLogger(t).Sugar()

	players, err := New[testPlayer, uint](db, log)
	require.NoError(t, err)
	clubs, err := New[testClub, uint](db, log)
	require.NoError(t, err)

	return &fixture{db: db, players: players, clubs: clubs}
}

// seed inserts two clubs and five players directly, bypassing any persistence context.
func (f *fixture) seed(t *testing.T) (reds, blues *testClub) {
	reds = &testClub{Name: "reds"}
	blues = &testClub{Name: "blues"}
	require.NoError(t, f.db.Create(reds).Error)
	require.NoError(t, f.db.Create(blues).Error)

	nick := "ace"
	players := []*testPlayer{
		{Name: "alice", Age: 10, Active: true, ClubID: &reds.ID, Nickname: &nick},
		{Name: "bob", Age: 20, Active: false, ClubID: &reds.ID},
		{Name: "carol", Age: 30, Active: true, ClubID: &blues.ID},
		{Name: "dave", Age: 40, Active: true, ClubID: &blues.ID},
		{Name: "erin", Age: 20, Active: false},
	}
	require.NoError(t, f.db.Omit("Club").Create(&players).Error)
	return reds, blues
}

func unitOfWork() context.Context {
	return persistence.NewContext(context.Background())
}
