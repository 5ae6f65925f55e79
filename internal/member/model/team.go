package model

// Team groups members. Members is the non-owning side of the relation: it is
// filled only by an entity graph or an explicit load, and saving a team never
// writes member rows.
type Team struct {
	ID      uint      `gorm:"primaryKey;column:team_id"              json:"id"`
	Name    string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Members []*Member `gorm:"foreignKey:TeamID;references:ID"        json:"-"`
	Auditable
}

// TableName specifies the table name for GORM.
func (Team) TableName() string {
	return "teams"
}

// NewTeam creates an unsaved team.
func NewTeam(name string) *Team {
	return &Team{Name: name}
}
