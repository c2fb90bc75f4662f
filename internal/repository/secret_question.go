package repository

import (
	"context"
	"fmt"

	"github.com/akaumigame6/web-token-sec/internal/models"
	"gorm.io/gorm"
)

// SecretQuestionRepository defines the interface for secret-question catalog access.
type SecretQuestionRepository interface {
	List(ctx context.Context) ([]models.SecretQuestion, error)
	FindByID(ctx context.Context, id int64) (*models.SecretQuestion, error)
	ReplaceAll(ctx context.Context, questions []models.SecretQuestion) error
}

type secretQuestionRepository struct {
	db *gorm.DB
}

// NewSecretQuestionRepository creates a new SecretQuestionRepository instance.
func NewSecretQuestionRepository(db *gorm.DB) SecretQuestionRepository {
	return &secretQuestionRepository{db: db}
}

func (r *secretQuestionRepository) List(ctx context.Context) ([]models.SecretQuestion, error) {
	var questions []models.SecretQuestion
	err := r.db.WithContext(ctx).Order("id asc").Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list secret questions: %w", err)
	}
	return questions, nil
}

func (r *secretQuestionRepository) FindByID(ctx context.Context, id int64) (*models.SecretQuestion, error) {
	var question models.SecretQuestion
	err := r.db.WithContext(ctx).First(&question, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find secret question %d: %w", id, err)
	}
	return &question, nil
}

// ReplaceAll wipes the catalog and inserts the given questions in one
// transaction. Seed tooling only; the catalog is immutable at runtime.
func (r *secretQuestionRepository) ReplaceAll(ctx context.Context, questions []models.SecretQuestion) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SecretQuestion{}).Error; err != nil {
			return err
		}
		return tx.Create(&questions).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace secret questions: %w", err)
	}
	return nil
}
