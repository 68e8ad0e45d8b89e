package repository

import (
	"context"
	"time"

	"servivent/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListaPrecioRepository reads price lists and stores each product's gain rule
// and resulting price per list.
type ListaPrecioRepository interface {
	ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]model.ListaPrecio, error)
	PreciosByProducto(ctx context.Context, productoID uuid.UUID) ([]model.PrecioProducto, error)

	PreciosByProductoTx(tx *gorm.DB, productoID uuid.UUID) ([]model.PrecioProducto, error)
	UpsertPrecioTx(tx *gorm.DB, p *model.PrecioProducto) error
	UpdatePrecioTx(tx *gorm.DB, productoID, listaPrecioID uuid.UUID, precio decimal.Decimal) error
}

type listaPrecioRepo struct{ db *gorm.DB }

func NewListaPrecioRepository(db *gorm.DB) ListaPrecioRepository {
	return &listaPrecioRepo{db: db}
}

// ListByEmpresa returns the general list first, then the rest by display order.
func (r *listaPrecioRepo) ListByEmpresa(ctx context.Context, empresaID uuid.UUID) ([]model.ListaPrecio, error) {
	var listas []model.ListaPrecio
	err := r.db.WithContext(ctx).
		Where("empresa_id = ?", empresaID).
		Order("es_general DESC, orden ASC, nombre ASC").
		Find(&listas).Error
	return listas, err
}

func (r *listaPrecioRepo) PreciosByProducto(ctx context.Context, productoID uuid.UUID) ([]model.PrecioProducto, error) {
	return r.PreciosByProductoTx(r.db.WithContext(ctx), productoID)
}

func (r *listaPrecioRepo) PreciosByProductoTx(tx *gorm.DB, productoID uuid.UUID) ([]model.PrecioProducto, error) {
	var precios []model.PrecioProducto
	err := tx.Where("producto_id = ?", productoID).Find(&precios).Error
	return precios, err
}

func (r *listaPrecioRepo) UpsertPrecioTx(tx *gorm.DB, p *model.PrecioProducto) error {
	p.UpdatedAt = time.Now()
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "producto_id"}, {Name: "lista_precio_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ganancia_maxima", "ganancia_minima", "precio", "updated_at"}),
	}).Create(p).Error
}

func (r *listaPrecioRepo) UpdatePrecioTx(tx *gorm.DB, productoID, listaPrecioID uuid.UUID, precio decimal.Decimal) error {
	return tx.Model(&model.PrecioProducto{}).
		Where("producto_id = ? AND lista_precio_id = ?", productoID, listaPrecioID).
		Updates(map[string]interface{}{"precio": precio, "updated_at": time.Now()}).Error
}
