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

// ProductoRepository defines the data access contract for products and their
// per-branch stock. Every read is scoped to a company.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
type ProductoRepository interface {
	FindByID(ctx context.Context, empresaID, id uuid.UUID) (*model.Producto, error)
	FindByIDs(ctx context.Context, empresaID uuid.UUID, ids []uuid.UUID) ([]model.Producto, error)
	Stock(ctx context.Context, productoID uuid.UUID) ([]model.StockSucursal, error)

	// Used inside transactions; callers must pass the tx instance
	FindForUpdateTx(tx *gorm.DB, empresaID, id uuid.UUID) (*model.Producto, error)
	StockForUpdateTx(tx *gorm.DB, productoID uuid.UUID) ([]model.StockSucursal, error)
	IncrementarStockTx(tx *gorm.DB, empresaID, productoID, sucursalID uuid.UUID, delta int) error
	UpdateCAPPTx(tx *gorm.DB, id uuid.UUID, capp decimal.Decimal) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) DB() *gorm.DB { return r.db }

func (r *productoRepo) FindByID(ctx context.Context, empresaID, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).Where("id = ? AND empresa_id = ?", id, empresaID).First(&p).Error
	return &p, err
}

func (r *productoRepo) FindByIDs(ctx context.Context, empresaID uuid.UUID, ids []uuid.UUID) ([]model.Producto, error) {
	var productos []model.Producto
	err := r.db.WithContext(ctx).
		Where("empresa_id = ? AND id IN ?", empresaID, ids).
		Find(&productos).Error
	return productos, err
}

func (r *productoRepo) Stock(ctx context.Context, productoID uuid.UUID) ([]model.StockSucursal, error) {
	var stock []model.StockSucursal
	err := r.db.WithContext(ctx).
		Preload("Sucursal").
		Where("producto_id = ?", productoID).
		Find(&stock).Error
	return stock, err
}

func (r *productoRepo) FindForUpdateTx(tx *gorm.DB, empresaID, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND empresa_id = ?", id, empresaID).
		First(&p).Error
	return &p, err
}

func (r *productoRepo) StockForUpdateTx(tx *gorm.DB, productoID uuid.UUID) ([]model.StockSucursal, error) {
	var stock []model.StockSucursal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("producto_id = ?", productoID).
		Find(&stock).Error
	return stock, err
}

// IncrementarStockTx adds delta to the branch stock, creating the row the
// first time a product reaches a branch.
func (r *productoRepo) IncrementarStockTx(tx *gorm.DB, empresaID, productoID, sucursalID uuid.UUID, delta int) error {
	row := model.StockSucursal{
		ProductoID: productoID,
		SucursalID: sucursalID,
		EmpresaID:  empresaID,
		Cantidad:   delta,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "producto_id"}, {Name: "sucursal_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"cantidad":   gorm.Expr("inventarios.cantidad + ?", delta),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
}

func (r *productoRepo) UpdateCAPPTx(tx *gorm.DB, id uuid.UUID, capp decimal.Decimal) error {
	return tx.Model(&model.Producto{}).Where("id = ?", id).Update("capp", capp).Error
}
