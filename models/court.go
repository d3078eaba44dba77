package models

import "time"

// Court is a magistrates' court that lists cases
type Court struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	CourtCode string `gorm:"size:10;not null;uniqueIndex" json:"courtCode"`
	Name      string `gorm:"not null" json:"name"`
}

// TableName specifies the table name for Court model
func (Court) TableName() string {
	return "courts"
}
