package compra

import (
	"servivent/internal/costeo"

	"github.com/shopspring/decimal"
)

// Borrador is the in-memory purchase being assembled. Closing the wizard
// simply drops it; nothing is persisted until Asistente.Enviar succeeds,
// after which the draft is consumed and rejects further submissions.
type Borrador struct {
	cabecera Cabecera
	lineas   []Linea
	compraID string // set once registered
}

// NuevoBorrador validates the header and starts an empty draft.
func NuevoBorrador(cab Cabecera) (*Borrador, error) {
	if err := cab.validar(); err != nil {
		return nil, err
	}
	if cab.Moneda == costeo.MonedaBOB {
		cab.TipoCambio = decimal.Zero
	}
	return &Borrador{cabecera: cab}, nil
}

// Cabecera returns the header.
func (b *Borrador) Cabecera() Cabecera { return b.cabecera }

// Agregar appends a committed line. A product can only appear once.
func (b *Borrador) Agregar(l Linea) error {
	if b.compraID != "" {
		return ErrBorradorEnviado
	}
	if l.CantidadTotal <= 0 || !l.CostoUnitario.IsPositive() {
		return ErrLineaNoConfirmada
	}
	for _, existente := range b.lineas {
		if existente.ProductoID == l.ProductoID {
			return ErrProductoDuplicado
		}
	}
	b.lineas = append(b.lineas, l)
	return nil
}

// Reemplazar swaps the line of the same product, used when a line is edited
// again after being added.
func (b *Borrador) Reemplazar(l Linea) bool {
	if b.compraID != "" {
		return false
	}
	for i := range b.lineas {
		if b.lineas[i].ProductoID == l.ProductoID {
			b.lineas[i] = l
			return true
		}
	}
	return false
}

// Quitar removes the line of a product and reports whether it existed.
func (b *Borrador) Quitar(productoID string) bool {
	if b.compraID != "" {
		return false
	}
	for i := range b.lineas {
		if b.lineas[i].ProductoID == productoID {
			b.lineas = append(b.lineas[:i], b.lineas[i+1:]...)
			return true
		}
	}
	return false
}

// Lineas returns a copy of the lines in insertion order.
func (b *Borrador) Lineas() []Linea {
	return append([]Linea(nil), b.lineas...)
}

// Total is the purchase amount in the purchase currency.
func (b *Borrador) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.lineas {
		total = total.Add(l.Subtotal())
	}
	return total
}

// TotalBase is the purchase amount in BOB.
func (b *Borrador) TotalBase() decimal.Decimal {
	return costeo.CostoEnMonedaBase(b.Total(), b.cabecera.Moneda, b.cabecera.TipoCambio)
}

// Enviado returns the purchase the draft was registered as, if any.
func (b *Borrador) Enviado() (string, bool) {
	return b.compraID, b.compraID != ""
}

func (b *Borrador) marcarEnviado(compraID string) { b.compraID = compraID }

// Validar checks the draft can be submitted.
func (b *Borrador) Validar() error {
	if b.compraID != "" {
		return ErrBorradorEnviado
	}
	if err := b.cabecera.validar(); err != nil {
		return err
	}
	if len(b.lineas) == 0 {
		return ErrCompraVacia
	}
	return nil
}
