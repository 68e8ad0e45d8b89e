package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Compra is a registered purchase. CostosAplicados is set exactly once, when
// the additional-cost pool is distributed over its items.
type Compra struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID       uuid.UUID `gorm:"type:uuid;not null;index"`
	ProveedorID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Folio           int64     `gorm:"uniqueIndex;not null"`
	Fecha           time.Time `gorm:"not null"`
	Referencia      *string
	Moneda          string          `gorm:"type:varchar(3);not null"`
	TipoCambio      decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	TipoPago        string          `gorm:"not null"`
	Total           decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TotalBase       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CostosAplicados bool            `gorm:"not null;default:false"`
	MetodoProrrateo *string
	FechaCostos     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Proveedor *Proveedor    `gorm:"foreignKey:ProveedorID"`
	Items     []CompraItem  `gorm:"foreignKey:CompraID"`
	Costos    []CompraCosto `gorm:"foreignKey:CompraID"`
}

// CompraItem is one product of a purchase. CostoBase is the unit cost in BOB
// and grows by the allocated share when additional costs are applied.
type CompraItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompraID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Orden         int             `gorm:"not null;default:0"` // input order, drives rounding
	Cantidad      int             `gorm:"not null"`
	CostoUnitario decimal.Decimal `gorm:"type:decimal(14,4);not null"`
	CostoBase     decimal.Decimal `gorm:"type:decimal(14,4);not null"`
	CostoAsignado decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`

	Producto       *Producto            `gorm:"foreignKey:ProductoID"`
	Distribuciones []CompraDistribucion `gorm:"foreignKey:CompraItemID"`
}

// CompraDistribucion is how many units of an item went to a branch.
type CompraDistribucion struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompraItemID uuid.UUID `gorm:"type:uuid;not null;index"`
	SucursalID   uuid.UUID `gorm:"type:uuid;not null"`
	Cantidad     int       `gorm:"not null"`
}

func (CompraDistribucion) TableName() string { return "compra_distribuciones" }

// CompraCosto is one entry of the additional-cost pool (freight, customs...).
type CompraCosto struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompraID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Concepto  string          `gorm:"not null"`
	Monto     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt time.Time
}
