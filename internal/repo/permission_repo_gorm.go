package repo

import (
	"errors"

	"gorm.io/gorm"

	"registry-console/internal/domain"
)

type PermissionRepo struct{ db *gorm.DB }

func NewPermissionRepo(db *gorm.DB) *PermissionRepo { return &PermissionRepo{db: db} }

func (r *PermissionRepo) Create(p *domain.Permission) error { return r.db.Create(p).Error }

func (r *PermissionRepo) FindByID(id uint) (*domain.Permission, error) {
	var p domain.Permission
	err := r.db.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *PermissionRepo) FindByUserAndRepo(userID, repoID uint) (*domain.Permission, error) {
	var p domain.Permission
	err := r.db.First(&p, "user_id = ? AND repository_id = ?", userID, repoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *PermissionRepo) List() ([]domain.Permission, error) {
	var ps []domain.Permission
	err := r.db.Order("id asc").Find(&ps).Error
	return ps, err
}

func (r *PermissionRepo) ListByRepository(repoID uint) ([]domain.Permission, error) {
	var ps []domain.Permission
	err := r.db.Where("repository_id = ?", repoID).Find(&ps).Error
	return ps, err
}

func (r *PermissionRepo) ListByUser(userID uint) ([]domain.Permission, error) {
	var ps []domain.Permission
	err := r.db.Where("user_id = ?", userID).Find(&ps).Error
	return ps, err
}

func (r *PermissionRepo) Update(p *domain.Permission) error { return r.db.Save(p).Error }

func (r *PermissionRepo) Delete(id uint) error {
	return r.db.Delete(&domain.Permission{}, id).Error
}
