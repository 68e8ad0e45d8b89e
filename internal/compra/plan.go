package compra

import (
	"context"
	"fmt"
	"sort"

	"servivent/internal/costeo"

	"github.com/shopspring/decimal"
)

// Plan is a whole purchase described up front, as loaded from a file by the
// command-line wizard. Each line goes through the same editor steps a user
// would take.
type Plan struct {
	Cabecera Cabecera    `json:"cabecera"`
	Lineas   []PlanLinea `json:"lineas"`
	Costos   *PlanCostos `json:"costos,omitempty"`
}

// PlanLinea is one product. Ganancias is keyed by price list ID; lists not
// named keep the product's current rule.
type PlanLinea struct {
	ProductoID    string                  `json:"producto_id"`
	CostoUnitario decimal.Decimal         `json:"costo_unitario"`
	Distribucion  map[string]int          `json:"distribucion"`
	Ganancias     map[string]PlanGanancia `json:"ganancias,omitempty"`
}

// PlanGanancia holds gains as typed, so blanks and bad input reach the
// validator unchanged.
type PlanGanancia struct {
	Maxima string `json:"maxima"`
	Minima string `json:"minima"`
}

type PlanCostos struct {
	Metodo costeo.Metodo           `json:"metodo"`
	Pool   []costeo.CostoAdicional `json:"pool"`
}

// ResultadoPlan reports what was done. CompraID is set as soon as the
// purchase is registered, even if the cost application then fails.
type ResultadoPlan struct {
	CompraID string
	Costos   *ResultadoCostos
}

// EjecutarPlan builds the draft line by line, registers it and, when the
// plan carries a pool, applies the additional costs.
func (a *Asistente) EjecutarPlan(ctx context.Context, p Plan) (*ResultadoPlan, error) {
	b, err := NuevoBorrador(p.Cabecera)
	if err != nil {
		return nil, err
	}
	for _, pl := range p.Lineas {
		if err := a.cargarLinea(ctx, b, pl); err != nil {
			return nil, fmt.Errorf("producto %s: %w", pl.ProductoID, err)
		}
	}

	id, err := a.Enviar(ctx, b)
	if err != nil {
		return nil, err
	}
	out := &ResultadoPlan{CompraID: id}
	if p.Costos == nil || len(p.Costos.Pool) == 0 {
		return out, nil
	}
	out.Costos, err = a.AplicarCostos(ctx, id, p.Costos.Metodo, p.Costos.Pool)
	return out, err
}

func (a *Asistente) cargarLinea(ctx context.Context, b *Borrador, pl PlanLinea) error {
	e, err := a.AbrirEditor(ctx, b, pl.ProductoID)
	if err != nil {
		return err
	}

	e.FijarCostoUnitario(pl.CostoUnitario)
	for suc, q := range pl.Distribucion {
		e.FijarCantidadSucursal(suc, q)
	}
	if !e.Avanzar() {
		return fmt.Errorf("%w: %v", ErrLineaNoConfirmada, e.Errores())
	}

	listas := make([]string, 0, len(pl.Ganancias))
	for id := range pl.Ganancias {
		listas = append(listas, id)
	}
	sort.Strings(listas)
	for _, id := range listas {
		g := pl.Ganancias[id]
		a.EditarGanancia(e, id, g.Maxima, g.Minima)
	}
	// Avanzar validates on the spot; the delayed warning would repeat it.
	a.revision.Cancelar()
	if !e.Avanzar() {
		return fmt.Errorf("%w: %v", ErrLineaNoConfirmada, e.ErroresReglas())
	}
	return a.Confirmar(b, e)
}
