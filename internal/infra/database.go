package infra

import (
	"fmt"

	"servivent/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, migrates every
// table and then applies the idempotent SQL patches GORM cannot express
// (sequences, partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table, then applies schema patches.
// Integration tests call it directly against a fresh container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Sucursal{},
		&model.Proveedor{},
		&model.ListaPrecio{},
		&model.Producto{},
		&model.StockSucursal{},
		&model.PrecioProducto{},
		&model.Compra{},
		&model.CompraItem{},
		&model.CompraDistribucion{},
		&model.CompraCosto{},
		&model.HistorialCosto{},
		&model.HistorialPrecio{},
		&model.MovimientoStock{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that AutoMigrate cannot
// handle on its own. Each one uses IF NOT EXISTS semantics so re-running on an
// already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// purchase folio numbers come from a sequence, shared by every company
		`CREATE SEQUENCE IF NOT EXISTS compras_folio_seq START 1`,
		// a SKU is unique per company
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_productos_empresa_sku
		    ON productos (empresa_id, sku)`,
		// only one general price list per company
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_listas_precio_general
		    ON listas_precio (empresa_id) WHERE es_general`,
		// apply-costs lookups scan purchases still pending allocation
		`CREATE INDEX IF NOT EXISTS idx_compras_costos_pendientes
		    ON compras (empresa_id, created_at) WHERE NOT costos_aplicados`,
		`CREATE INDEX IF NOT EXISTS idx_historial_costos_producto
		    ON historial_costos (producto_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_historial_precios_producto
		    ON historial_precios (producto_id, lista_precio_id, created_at DESC)`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
