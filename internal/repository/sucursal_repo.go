package repository

import (
	"context"

	"servivent/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SucursalRepository interface {
	ListActivas(ctx context.Context, empresaID uuid.UUID) ([]model.Sucursal, error)
}

type sucursalRepo struct{ db *gorm.DB }

func NewSucursalRepository(db *gorm.DB) SucursalRepository { return &sucursalRepo{db: db} }

func (r *sucursalRepo) ListActivas(ctx context.Context, empresaID uuid.UUID) ([]model.Sucursal, error) {
	var sucursales []model.Sucursal
	err := r.db.WithContext(ctx).
		Where("empresa_id = ? AND activa = true", empresaID).
		Order("nombre ASC").
		Find(&sucursales).Error
	return sucursales, err
}
