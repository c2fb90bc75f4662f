// Package models contains data models for the auth service.
package models

// SecretQuestion is a catalog entry for the fallback identity challenge.
// The catalog is immutable after seeding; users reference entries by id.
type SecretQuestion struct {
	ID       int64  `json:"id" gorm:"primaryKey"`
	Question string `json:"question" gorm:"not null"`
}

// TableName returns the database table name for the SecretQuestion model.
func (SecretQuestion) TableName() string {
	return "secret_questions"
}
