package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MotivoCompra            = "compra"
	MotivoCostosAdicionales = "costos_adicionales"
	MotivoRecalculo         = "recalculo"
)

// HistorialCosto records every CAPP change of a product.
// Rows are immutable: never updated nor deleted.
type HistorialCosto struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	CompraID    *uuid.UUID      `gorm:"type:uuid;index"`
	CAPPAntes   decimal.Decimal `gorm:"column:capp_antes;type:decimal(14,4);not null"`
	CAPPDespues decimal.Decimal `gorm:"column:capp_despues;type:decimal(14,4);not null"`
	Motivo      string          `gorm:"not null"` // compra | costos_adicionales
	CreatedAt   time.Time
}

func (HistorialCosto) TableName() string { return "historial_costos" }

// HistorialPrecio records every list price change of a product.
type HistorialPrecio struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ListaPrecioID uuid.UUID       `gorm:"type:uuid;not null"`
	CompraID      *uuid.UUID      `gorm:"type:uuid"`
	PrecioAntes   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	PrecioDespues decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Motivo        string          `gorm:"not null"` // compra | costos_adicionales | recalculo
	CreatedAt     time.Time

	ListaPrecio *ListaPrecio `gorm:"foreignKey:ListaPrecioID"`
}
