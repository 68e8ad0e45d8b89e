package repository

import (
	"context"

	"servivent/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProveedorRepository interface {
	FindByID(ctx context.Context, empresaID, id uuid.UUID) (*model.Proveedor, error)
}

type proveedorRepo struct{ db *gorm.DB }

func NewProveedorRepository(db *gorm.DB) ProveedorRepository { return &proveedorRepo{db: db} }

func (r *proveedorRepo) FindByID(ctx context.Context, empresaID, id uuid.UUID) (*model.Proveedor, error) {
	var p model.Proveedor
	err := r.db.WithContext(ctx).
		Where("id = ? AND empresa_id = ? AND activo = true", id, empresaID).
		First(&p).Error
	return &p, err
}
