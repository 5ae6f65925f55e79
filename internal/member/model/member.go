package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Member is a user that optionally belongs to one team. It owns the team
// foreign key; Team stays nil until a fetch strategy or an explicit load
// resolves it, while TeamID is always populated from the row.
type Member struct {
	ID       uint   `gorm:"primaryKey;column:member_id"              json:"id"`
	Username string `gorm:"column:username;type:varchar(255)"        json:"username"`
	Age      int    `gorm:"column:age;not null"                      json:"age"`
	TeamID   *uint  `gorm:"column:team_id;index:idx_members_team_id" json:"teamId,omitempty"`
	Team     *Team  `gorm:"foreignKey:TeamID;references:ID"          json:"team,omitempty"`
	Auditable
}

// TableName specifies the table name for GORM.
func (Member) TableName() string {
	return "members"
}

// NewMember creates an unsaved member, assigned to team when team is not nil.
func NewMember(username string, age int, team *Team) *Member {
	m := &Member{Username: username, Age: age}
	if team != nil {
		m.ChangeTeam(team)
	}
	return m
}

// ChangeTeam moves the member to team and keeps both sides of the relation
// consistent in memory.
func (m *Member) ChangeTeam(team *Team) {
	m.Team = team
	m.TeamID = nil
	if team == nil {
		return
	}
	if team.ID != 0 {
		id := team.ID
		m.TeamID = &id
	}
	team.Members = append(team.Members, m)
}

// TeamName returns the name of the resolved team, or nil.
func (m *Member) TeamName() *string {
	if m.Team == nil || m.Team.ID == 0 {
		return nil
	}
	name := m.Team.Name
	return &name
}

// BeforeSave copies the key of a resolved team into TeamID, so a team saved
// after ChangeTeam is still referenced.
func (m *Member) BeforeSave(tx *gorm.DB) error {
	if m.Team != nil && m.Team.ID != 0 {
		id := m.Team.ID
		m.TeamID = &id
	}
	return nil
}

func (m *Member) String() string {
	return fmt.Sprintf("Member{id=%d, username=%s, age=%d}", m.ID, m.Username, m.Age)
}
