package model

import (
	"time"

	"servivent/internal/precios"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListaPrecio is a named price list. Exactly one list per company is general.
type ListaPrecio struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID uuid.UUID `gorm:"type:uuid;not null;index"`
	Nombre    string    `gorm:"not null"`
	EsGeneral bool      `gorm:"not null;default:false"`
	Orden     int       `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (ListaPrecio) TableName() string { return "listas_precio" }

// PrecioProducto stores the gain rule of a product in a list and the price it
// produced. Nil gains mean the field was left blank.
type PrecioProducto struct {
	ProductoID     uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ListaPrecioID  uuid.UUID        `gorm:"type:uuid;primaryKey"`
	EmpresaID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	GananciaMaxima *decimal.Decimal `gorm:"type:decimal(14,4)"`
	GananciaMinima *decimal.Decimal `gorm:"type:decimal(14,4)"`
	Precio         decimal.Decimal  `gorm:"type:decimal(14,2);not null;default:0"`
	UpdatedAt      time.Time

	ListaPrecio *ListaPrecio `gorm:"foreignKey:ListaPrecioID"`
}

func (PrecioProducto) TableName() string { return "precios_producto" }

// Regla converts the stored row into the validator's representation.
func (p PrecioProducto) Regla(l ListaPrecio) precios.Regla {
	return precios.Regla{
		ListaPrecioID:    l.ID.String(),
		Nombre:           l.Nombre,
		EsGeneral:        l.EsGeneral,
		GananciaMaxima:   gananciaDe(p.GananciaMaxima),
		GananciaMinima:   gananciaDe(p.GananciaMinima),
		PrecioResultante: p.Precio,
	}
}

// ReglaVacia is the rule of a list the product has no price in yet.
func ReglaVacia(l ListaPrecio) precios.Regla {
	return precios.Regla{ListaPrecioID: l.ID.String(), Nombre: l.Nombre, EsGeneral: l.EsGeneral}
}

// GananciaPtr is the storage form of a gain: nil when blank or not numeric.
func GananciaPtr(g precios.Ganancia) *decimal.Decimal {
	v, ok := g.Numero()
	if !ok {
		return nil
	}
	return &v
}

func gananciaDe(v *decimal.Decimal) precios.Ganancia {
	if v == nil {
		return precios.Ganancia{}
	}
	return precios.GananciaDe(*v)
}
