package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/festy23/datajpa/internal/audit"
)

// Auditable records who created and last modified a row, and when.
// The principal is taken from the auditor bound to the statement context.
type Auditable struct {
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime;<-:create"    json:"createdAt"`
	CreatedBy      string    `gorm:"column:created_by;type:varchar(255);<-:create" json:"createdBy"`
	LastModifiedAt time.Time `gorm:"column:last_modified_at;autoUpdateTime"        json:"lastModifiedAt"`
	LastModifiedBy string    `gorm:"column:last_modified_by;type:varchar(255)"     json:"lastModifiedBy"`
}

// BeforeCreate stamps both audit principals.
func (a *Auditable) BeforeCreate(tx *gorm.DB) error {
	auditor := audit.Auditor(tx.Statement.Context)
	a.CreatedBy = auditor
	a.LastModifiedBy = auditor
	return nil
}

// BeforeUpdate stamps the last modifying principal.
func (a *Auditable) BeforeUpdate(tx *gorm.DB) error {
	a.LastModifiedBy = audit.Auditor(tx.Statement.Context)
	return nil
}
