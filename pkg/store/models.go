package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID             string `gorm:"primaryKey"`
	FirstName      string `gorm:"not null"`
	LastName       string `gorm:"not null"`
	Email          string `gorm:"uniqueIndex;not null"`
	Phone          string
	PasswordHash   string `gorm:"not null"`
	Account        int    `gorm:"not null"`
	Contact        int
	SchoolName     string
	Profile        datatypes.JSON `gorm:"type:jsonb"`
	ResetToken     string         `gorm:"index"`
	ResetExpires   time.Time
	ContactHistory datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null"`
	UpdatedAt      time.Time
}

func (UserModel) TableName() string { return "users" }

type PlayModel struct {
	ID               string `gorm:"primaryKey"`
	Title            string `gorm:"not null;index"`
	AuthorID         string `gorm:"not null;index"`
	PublicationDate  time.Time
	SubmissionDate   time.Time `gorm:"index"`
	Acts             int
	Duration         int
	Total            int
	Males            int
	Females          int
	Funding          string
	OrganizationType string
	Genre            string `gorm:"index"`
	Abstract         string `gorm:"type:text"`
	CoverImage       string `gorm:"type:text"`
	PlayFile         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time      `gorm:"not null"`
	UpdatedAt        time.Time
}

func (PlayModel) TableName() string { return "plays" }
