package repo

import (
	"errors"

	"gorm.io/gorm"

	"registry-console/internal/domain"
)

type RepositoryRepo struct{ db *gorm.DB }

func NewRepositoryRepo(db *gorm.DB) *RepositoryRepo { return &RepositoryRepo{db: db} }

func (r *RepositoryRepo) Create(rep *domain.Repository) error { return r.db.Create(rep).Error }

func (r *RepositoryRepo) FindByID(id uint) (*domain.Repository, error) {
	var rep domain.Repository
	err := r.db.First(&rep, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rep, err
}

func (r *RepositoryRepo) FindByName(name string) (*domain.Repository, error) {
	var rep domain.Repository
	err := r.db.First(&rep, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rep, err
}

func (r *RepositoryRepo) List() ([]domain.Repository, error) {
	var reps []domain.Repository
	err := r.db.Order("name asc").Find(&reps).Error
	return reps, err
}

func (r *RepositoryRepo) ListPublic() ([]domain.Repository, error) {
	var reps []domain.Repository
	err := r.db.Where("is_public = ?", true).Order("name asc").Find(&reps).Error
	return reps, err
}

func (r *RepositoryRepo) Update(rep *domain.Repository) error { return r.db.Save(rep).Error }

// DeleteCascade 权限行和仓库行在同一事务里删除
func (r *RepositoryRepo) DeleteCascade(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("repository_id = ?", id).Delete(&domain.Permission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Repository{}, id).Error
	})
}
