package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producto is a catalog item of one company. CAPP is the weighted average
// unit cost in BOB and is only changed by purchases and cost applications.
type Producto struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU       string          `gorm:"column:sku;not null"`
	Nombre    string          `gorm:"index;not null"`
	CAPP      decimal.Decimal `gorm:"column:capp;type:decimal(14,4);not null;default:0"`
	Activo    bool            `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Stock   []StockSucursal  `gorm:"foreignKey:ProductoID"`
	Precios []PrecioProducto `gorm:"foreignKey:ProductoID"`
}

// Sucursal is a branch that holds stock.
type Sucursal struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID uuid.UUID `gorm:"type:uuid;not null;index"`
	Nombre    string    `gorm:"not null"`
	Activa    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
}

func (Sucursal) TableName() string { return "sucursales" }

// StockSucursal is the on-hand quantity of a product in a branch.
// Cantidad may go negative through sales; purchases only add to it.
type StockSucursal struct {
	ProductoID uuid.UUID `gorm:"type:uuid;primaryKey"`
	SucursalID uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmpresaID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Cantidad   int       `gorm:"not null;default:0"`
	UpdatedAt  time.Time

	Sucursal *Sucursal `gorm:"foreignKey:SucursalID"`
}

func (StockSucursal) TableName() string { return "inventarios" }
