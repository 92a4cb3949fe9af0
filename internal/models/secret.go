package models

import "time"

// Secret is a named, write-once blob. It backs the signing key so every
// instance sharing the database signs with the same key.
type Secret struct {
	Name      string `gorm:"primaryKey;size:100"`
	Value     string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (Secret) TableName() string {
	return "secrets"
}
