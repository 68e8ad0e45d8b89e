package compra

import (
	"math"
	"strconv"
	"strings"

	"servivent/internal/costeo"
	"servivent/internal/precios"

	"github.com/shopspring/decimal"
)

// Paso is the step the line editor is on.
type Paso int

const (
	PasoInventario Paso = iota // cost and branch distribution
	PasoPrecios                // gain rules per price list
	PasoConfirmado
)

func (p Paso) String() string {
	switch p {
	case PasoInventario:
		return "inventario"
	case PasoPrecios:
		return "precios"
	case PasoConfirmado:
		return "confirmado"
	}
	return "desconocido"
}

// Validation message keys exposed by Editor.Errores.
const (
	CampoCostoUnitario = "costo_unitario"
	CampoCantidad      = "cantidad"
)

const (
	msgCostoPositivo    = "El costo unitario debe ser mayor a cero"
	msgCantidadPositiva = "Debe distribuir al menos una unidad"
)

// Editor collects one product's purchase data. It is not safe for concurrent
// use; the wizard owns it.
type Editor struct {
	detalle    DetalleProducto
	moneda     costeo.Moneda
	tipoCambio decimal.Decimal

	paso          Paso
	costoUnitario decimal.Decimal
	distribucion  map[string]int
	reglas        []precios.Regla
	errores       map[string]string
	reglasError   map[string]precios.ErrorCampo
}

// NuevoEditor starts an editor on the inventory step. Every branch known to
// the product starts with zero units, and the product's current rules are
// copied so edits never leak back into the detail.
func NuevoEditor(detalle DetalleProducto, moneda costeo.Moneda, tipoCambio decimal.Decimal) *Editor {
	e := &Editor{
		detalle:      detalle,
		moneda:       moneda,
		tipoCambio:   tipoCambio,
		paso:         PasoInventario,
		distribucion: make(map[string]int, len(detalle.StockPorSucursal)),
		reglas:       append([]precios.Regla(nil), detalle.Reglas...),
		errores:      map[string]string{},
		reglasError:  map[string]precios.ErrorCampo{},
	}
	for suc := range detalle.StockPorSucursal {
		e.distribucion[suc] = 0
	}
	return e
}

// Paso returns the current step.
func (e *Editor) Paso() Paso { return e.paso }

// FijarCostoUnitario sets the unit cost in the purchase currency. A
// non-positive value is kept but flagged, and blocks Avanzar.
func (e *Editor) FijarCostoUnitario(v decimal.Decimal) {
	e.costoUnitario = v
	if v.IsPositive() {
		delete(e.errores, CampoCostoUnitario)
		return
	}
	e.errores[CampoCostoUnitario] = msgCostoPositivo
}

// FijarCantidadSucursal sets how many units go to a branch. Negative values
// are clamped to zero.
func (e *Editor) FijarCantidadSucursal(sucursalID string, qty int) {
	if qty < 0 {
		qty = 0
	}
	e.distribucion[sucursalID] = qty
	if e.CantidadTotal() > 0 {
		delete(e.errores, CampoCantidad)
	}
}

// FijarCantidadSucursalTexto parses a quantity typed by the user; anything
// that is not a finite number counts as zero. Fractions are truncated.
func (e *Editor) FijarCantidadSucursalTexto(sucursalID, s string) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 {
		f = 0
	}
	e.FijarCantidadSucursal(sucursalID, int(f))
}

// Distribucion returns a copy of the per-branch quantities.
func (e *Editor) Distribucion() map[string]int {
	out := make(map[string]int, len(e.distribucion))
	for k, v := range e.distribucion {
		out[k] = v
	}
	return out
}

// CantidadTotal adds the quantities of every branch.
func (e *Editor) CantidadTotal() int {
	total := 0
	for _, q := range e.distribucion {
		total += q
	}
	return total
}

// CostoBase is the unit cost converted to BOB.
func (e *Editor) CostoBase() decimal.Decimal {
	return costeo.CostoEnMonedaBase(e.costoUnitario, e.moneda, e.tipoCambio)
}

// NuevoCAPP previews the weighted average cost after this purchase. The
// backend recomputes it authoritatively on registration.
func (e *Editor) NuevoCAPP() decimal.Decimal {
	return costeo.CAPP(
		decimal.NewFromInt(int64(e.detalle.StockTotal())),
		e.detalle.CAPPActual,
		decimal.NewFromInt(int64(e.CantidadTotal())),
		e.CostoBase(),
	)
}

// Precios derives the sale price of each price list from the current inputs.
func (e *Editor) Precios() []precios.Regla {
	return precios.Recalcular(e.reglas, e.NuevoCAPP())
}

// FijarGanancia edits the gains of a price list, as typed. Unknown lists are
// ignored. Validation runs again for live feedback.
func (e *Editor) FijarGanancia(listaID, maxima, minima string) {
	for i := range e.reglas {
		if e.reglas[i].ListaPrecioID != listaID {
			continue
		}
		e.reglas[i].GananciaMaxima = precios.GananciaTexto(maxima)
		e.reglas[i].GananciaMinima = precios.GananciaTexto(minima)
	}
	if e.paso == PasoPrecios {
		e.reglasError = precios.Validar(e.reglas).Errores
	}
}

// Errores returns the inventory-step validation messages keyed by field.
func (e *Editor) Errores() map[string]string {
	out := make(map[string]string, len(e.errores))
	for k, v := range e.errores {
		out[k] = v
	}
	return out
}

// ErroresReglas returns the price-step validation messages keyed by list.
func (e *Editor) ErroresReglas() map[string]precios.ErrorCampo {
	out := make(map[string]precios.ErrorCampo, len(e.reglasError))
	for k, v := range e.reglasError {
		out[k] = v
	}
	return out
}

// Avanzar moves one step forward when the current step validates. It reports
// whether the step changed.
func (e *Editor) Avanzar() bool {
	switch e.paso {
	case PasoInventario:
		if !e.validarInventario() {
			return false
		}
		e.paso = PasoPrecios
		e.reglasError = precios.Validar(e.reglas).Errores
		return true
	case PasoPrecios:
		res := precios.Validar(e.reglas)
		e.reglasError = res.Errores
		if !res.Valido {
			return false
		}
		e.paso = PasoConfirmado
		return true
	}
	return false
}

// Retroceder moves one step back. Entered data is kept.
func (e *Editor) Retroceder() {
	if e.paso > PasoInventario {
		e.paso--
	}
}

func (e *Editor) validarInventario() bool {
	ok := true
	if !e.costoUnitario.IsPositive() {
		e.errores[CampoCostoUnitario] = msgCostoPositivo
		ok = false
	}
	if e.CantidadTotal() <= 0 {
		e.errores[CampoCantidad] = msgCantidadPositiva
		ok = false
	}
	return ok
}

// Linea freezes the editor into a purchase line. Both gates are checked again.
func (e *Editor) Linea() (Linea, error) {
	if e.paso != PasoConfirmado {
		return Linea{}, ErrLineaNoConfirmada
	}
	if !e.validarInventario() {
		e.paso = PasoInventario
		return Linea{}, ErrLineaNoConfirmada
	}
	if res := precios.Validar(e.reglas); !res.Valido {
		e.reglasError = res.Errores
		e.paso = PasoPrecios
		return Linea{}, ErrLineaNoConfirmada
	}
	distribucion := make(map[string]int)
	for suc, q := range e.distribucion {
		if q > 0 {
			distribucion[suc] = q
		}
	}
	return Linea{
		ProductoID:    e.detalle.ProductoID,
		CostoUnitario: e.costoUnitario,
		Distribucion:  distribucion,
		Reglas:        e.Precios(),
		CantidadTotal: e.CantidadTotal(),
		CostoBase:     e.CostoBase(),
		NuevoCAPP:     e.NuevoCAPP(),
	}, nil
}
