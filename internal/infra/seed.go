package infra

import (
	"fmt"

	"servivent/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Demo is the data created by SeedDemo.
type Demo struct {
	EmpresaID  uuid.UUID
	Sucursales []model.Sucursal
	Listas     []model.ListaPrecio
	Proveedor  model.Proveedor
	Productos  []model.Producto
}

// SeedDemo creates a company with two branches, a general and a wholesale
// list, one supplier and two products without stock. Rows are keyed on
// deterministic IDs so running it twice is a no-op.
func SeedDemo(db *gorm.DB, empresaID uuid.UUID) (*Demo, error) {
	id := func(nombre string) uuid.UUID { return uuid.NewSHA1(empresaID, []byte(nombre)) }

	d := &Demo{
		EmpresaID: empresaID,
		Sucursales: []model.Sucursal{
			{ID: id("sucursal:central"), EmpresaID: empresaID, Nombre: "Central", Activa: true},
			{ID: id("sucursal:norte"), EmpresaID: empresaID, Nombre: "Norte", Activa: true},
		},
		Listas: []model.ListaPrecio{
			{ID: id("lista:general"), EmpresaID: empresaID, Nombre: "General", EsGeneral: true},
			{ID: id("lista:mayorista"), EmpresaID: empresaID, Nombre: "Mayorista", Orden: 1},
		},
		Proveedor: model.Proveedor{ID: id("proveedor:andina"), EmpresaID: empresaID, Nombre: "Ferreteria Andina", NIT: "1020304050", Activo: true},
		Productos: []model.Producto{
			{ID: id("producto:CEM-50"), EmpresaID: empresaID, SKU: "CEM-50", Nombre: "Cemento 50kg", CAPP: decimal.Zero, Activo: true},
			{ID: id("producto:FIE-12"), EmpresaID: empresaID, SKU: "FIE-12", Nombre: "Fierro 12mm", CAPP: decimal.Zero, Activo: true},
		},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		skip := tx.Clauses(clause.OnConflict{DoNothing: true})
		for _, v := range []interface{}{&d.Sucursales, &d.Listas, &d.Proveedor, &d.Productos} {
			if err := skip.Omit(clause.Associations).Create(v).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed demo: %w", err)
	}
	return d, nil
}
