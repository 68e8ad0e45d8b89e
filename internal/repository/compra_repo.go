package repository

import (
	"context"
	"time"

	"servivent/internal/dto"
	"servivent/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompraRepository interface {
	NextFolio(ctx context.Context, tx *gorm.DB) (int64, error)
	CreateTx(tx *gorm.DB, c *model.Compra) error
	FindByID(ctx context.Context, empresaID, id uuid.UUID) (*model.Compra, error)
	List(ctx context.Context, empresaID uuid.UUID, filter dto.CompraFilter) ([]model.Compra, int64, error)

	// FindForUpdateTx locks the purchase row and loads its items in input order.
	FindForUpdateTx(tx *gorm.DB, empresaID, id uuid.UUID) (*model.Compra, error)
	UpdateItemCostoTx(tx *gorm.DB, itemID uuid.UUID, costoBase, asignado decimal.Decimal) error
	CreateCostosTx(tx *gorm.DB, costos []model.CompraCosto) error
	MarcarCostosAplicadosTx(tx *gorm.DB, id uuid.UUID, metodo string, fecha time.Time) error

	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type compraRepo struct{ db *gorm.DB }

func NewCompraRepository(db *gorm.DB) CompraRepository { return &compraRepo{db: db} }

func (r *compraRepo) DB() *gorm.DB { return r.db }

func (r *compraRepo) NextFolio(ctx context.Context, tx *gorm.DB) (int64, error) {
	// Uses a PostgreSQL sequence for atomic folio generation
	var num int64
	err := tx.WithContext(ctx).Raw("SELECT nextval('compras_folio_seq')").Scan(&num).Error
	return num, err
}

// CreateTx inserts the purchase with its items and their branch distribution.
func (r *compraRepo) CreateTx(tx *gorm.DB, c *model.Compra) error {
	return tx.Create(c).Error
}

func (r *compraRepo) FindByID(ctx context.Context, empresaID, id uuid.UUID) (*model.Compra, error) {
	var c model.Compra
	err := r.db.WithContext(ctx).
		Preload("Proveedor").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Preload("Items.Producto").
		Preload("Items.Distribuciones").
		Preload("Costos").
		Where("id = ? AND empresa_id = ?", id, empresaID).
		First(&c).Error
	return &c, err
}

func (r *compraRepo) List(ctx context.Context, empresaID uuid.UUID, filter dto.CompraFilter) ([]model.Compra, int64, error) {
	var compras []model.Compra
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Compra{}).Where("empresa_id = ?", empresaID)
	if filter.ProveedorID != "" {
		q = q.Where("proveedor_id = ?", filter.ProveedorID)
	}
	if filter.Pendientes {
		q = q.Where("costos_aplicados = false")
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("Proveedor").
		Order("folio DESC").
		Limit(filter.Limit).
		Offset(offset).
		Find(&compras).Error
	return compras, total, err
}

func (r *compraRepo) FindForUpdateTx(tx *gorm.DB, empresaID, id uuid.UUID) (*model.Compra, error) {
	var c model.Compra
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND empresa_id = ?", id, empresaID).
		First(&c).Error; err != nil {
		return nil, err
	}
	err := tx.Preload("Producto").
		Where("compra_id = ?", c.ID).
		Order("orden ASC").
		Find(&c.Items).Error
	return &c, err
}

func (r *compraRepo) UpdateItemCostoTx(tx *gorm.DB, itemID uuid.UUID, costoBase, asignado decimal.Decimal) error {
	return tx.Model(&model.CompraItem{}).Where("id = ?", itemID).Updates(map[string]interface{}{
		"costo_base":     costoBase,
		"costo_asignado": asignado,
	}).Error
}

func (r *compraRepo) CreateCostosTx(tx *gorm.DB, costos []model.CompraCosto) error {
	if len(costos) == 0 {
		return nil
	}
	return tx.Create(&costos).Error
}

func (r *compraRepo) MarcarCostosAplicadosTx(tx *gorm.DB, id uuid.UUID, metodo string, fecha time.Time) error {
	return tx.Model(&model.Compra{}).Where("id = ?", id).Updates(map[string]interface{}{
		"costos_aplicados": true,
		"metodo_prorrateo": metodo,
		"fecha_costos":     fecha,
	}).Error
}
