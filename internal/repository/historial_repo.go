package repository

import (
	"context"

	"servivent/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistorialRepository appends to the immutable cost and price history tables.
type HistorialRepository interface {
	CreateCostoTx(tx *gorm.DB, h *model.HistorialCosto) error
	CreatePrecioTx(tx *gorm.DB, h *model.HistorialPrecio) error
	ListCostosByProducto(ctx context.Context, productoID uuid.UUID, page, limit int) ([]model.HistorialCosto, int64, error)
	ListPreciosByProducto(ctx context.Context, productoID uuid.UUID, listaPrecioID *uuid.UUID, page, limit int) ([]model.HistorialPrecio, int64, error)
}

type historialRepository struct{ db *gorm.DB }

func NewHistorialRepository(db *gorm.DB) HistorialRepository {
	return &historialRepository{db: db}
}

func (r *historialRepository) CreateCostoTx(tx *gorm.DB, h *model.HistorialCosto) error {
	return tx.Create(h).Error
}

func (r *historialRepository) CreatePrecioTx(tx *gorm.DB, h *model.HistorialPrecio) error {
	return tx.Create(h).Error
}

// ListCostosByProducto returns paginated CAPP changes for one product,
// ordered newest-first (append-only table, so this reflects natural insert order).
func (r *historialRepository) ListCostosByProducto(
	ctx context.Context,
	productoID uuid.UUID,
	page, limit int,
) ([]model.HistorialCosto, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.HistorialCosto{}).
		Where("producto_id = ?", productoID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.HistorialCosto
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("producto_id = ?", productoID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// ListPreciosByProducto returns price changes newest-first, optionally for a
// single list. The list name is preloaded for display.
func (r *historialRepository) ListPreciosByProducto(
	ctx context.Context,
	productoID uuid.UUID,
	listaPrecioID *uuid.UUID,
	page, limit int,
) ([]model.HistorialPrecio, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.HistorialPrecio{}).Where("producto_id = ?", productoID)
	if listaPrecioID != nil {
		q = q.Where("lista_precio_id = ?", *listaPrecioID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.HistorialPrecio
	if err := q.Preload("ListaPrecio").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
