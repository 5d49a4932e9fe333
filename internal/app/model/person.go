package model

import (
	"time"
)

// Person is someone the owner buys gifts for.
type Person struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`        // person ID
	OwnerID       string    `gorm:"type:varchar(128);not null;index" json:"-"`    // owner ID
	Name          string    `gorm:"not null" json:"name"`                         // display name
	Relationship  string    `json:"relationship,omitempty"`                       // e.g. friend, sister
	BirthdayMonth *int      `json:"birthday_month,omitempty"`                     // 1-12
	BirthdayDay   *int      `json:"birthday_day,omitempty"`                       // 1-31
	BirthdayYear  *int      `json:"birthday_year,omitempty"`                      // optional
	Notes         string    `json:"notes,omitempty"`                              // free text
	CreatedAt     time.Time `json:"created_at"`                                   // created
	UpdatedAt     time.Time `json:"updated_at"`                                   // updated
}

func (Person) TableName() string {
	return "people"
}
