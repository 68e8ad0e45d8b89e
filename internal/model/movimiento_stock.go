package model

import (
	"time"

	"github.com/google/uuid"
)

// MovimientoStock registra cada entrada de stock en una sucursal.
type MovimientoStock struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductoID    uuid.UUID `gorm:"type:uuid;not null;index"`
	SucursalID    uuid.UUID `gorm:"type:uuid;not null"`
	Tipo          string    `gorm:"not null"` // "compra"
	Cantidad      int       `gorm:"not null"` // positive = entrada
	StockAnterior int       `gorm:"not null"`
	StockNuevo    int       `gorm:"not null"`
	Motivo        string
	ReferenciaID  *uuid.UUID `gorm:"type:uuid"` // compra_id
	CreatedAt     time.Time
}

// TableName overrides GORM's default pluralization (movimiento_stocks → movimientos_stock).
func (MovimientoStock) TableName() string { return "movimientos_stock" }
