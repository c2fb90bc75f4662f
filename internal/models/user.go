// Package models contains data models for the auth service.
package models

import "time"

// User represents an account in the system. Password and SecretAnswer hold
// bcrypt hashes, never plaintext, and are excluded from JSON output.
type User struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name             string    `json:"name" gorm:"not null"`
	Email            string    `json:"email" gorm:"uniqueIndex;not null"`
	Password         string    `json:"-" gorm:"not null"`
	Role             Role      `json:"role" gorm:"not null;default:USER"`
	AboutSlug        *string   `json:"aboutSlug" gorm:"uniqueIndex"`
	AboutContent     string    `json:"aboutContent"`
	SecretQuestionID int64     `json:"secretQuestionId" gorm:"not null"`
	SecretAnswer     string    `json:"-" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// UserProfile is the sanitized projection of a User that is safe to return
// to callers. It never carries credential material.
type UserProfile struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Role             Role    `json:"role"`
	AboutSlug        *string `json:"aboutSlug"`
	AboutContent     string  `json:"aboutContent"`
	SecretQuestionID int64   `json:"secretQuestionId"`
}

// Profile returns the sanitized projection of the user.
func (u *User) Profile() *UserProfile {
	return &UserProfile{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		AboutSlug:        u.AboutSlug,
		AboutContent:     u.AboutContent,
		SecretQuestionID: u.SecretQuestionID,
	}
}
