// Package compra holds the purchase wizard: the per-product line editor, the
// purchase draft, and the orchestration that talks to the backend.
package compra

import (
	"context"
	"errors"
	"time"

	"servivent/internal/costeo"
	"servivent/internal/precios"

	"github.com/shopspring/decimal"
)

var (
	ErrProductoDuplicado = errors.New("el producto ya esta en la compra")
	ErrCompraVacia       = errors.New("la compra no tiene productos")
	ErrTipoCambio        = errors.New("el tipo de cambio es obligatorio para compras en USD")
	ErrLineaNoConfirmada = errors.New("la linea no fue confirmada")
	ErrCostosYaAplicados = errors.New("los costos adicionales ya fueron aplicados a esta compra")
	ErrOperacionEnCurso  = errors.New("ya hay una operacion en curso")
	ErrBorradorEnviado   = errors.New("la compra ya fue registrada")
)

// TipoPago is how the supplier is paid.
type TipoPago string

const (
	PagoContado TipoPago = "Contado"
	PagoCredito TipoPago = "Credito"
)

// DetalleProducto is what the backend reports for a product before it is
// added to a purchase.
type DetalleProducto struct {
	ProductoID       string          `json:"producto_id"`
	Nombre           string          `json:"nombre"`
	CAPPActual       decimal.Decimal `json:"capp_actual"`
	StockPorSucursal map[string]int  `json:"stock_por_sucursal"`
	Reglas           []precios.Regla `json:"reglas"`
}

// StockTotal adds the stock of every branch.
func (d DetalleProducto) StockTotal() int {
	total := 0
	for _, q := range d.StockPorSucursal {
		total += q
	}
	return total
}

// Cabecera is the purchase header.
type Cabecera struct {
	ProveedorID string          `json:"proveedor_id"`
	Moneda      costeo.Moneda   `json:"moneda"`
	TipoCambio  decimal.Decimal `json:"tipo_cambio"`
	TipoPago    TipoPago        `json:"tipo_pago"`
	Fecha       time.Time       `json:"fecha"`
	Referencia  string          `json:"referencia,omitempty"`
}

func (c Cabecera) validar() error {
	if c.Moneda == costeo.MonedaUSD && !c.TipoCambio.IsPositive() {
		return ErrTipoCambio
	}
	if c.Moneda != costeo.MonedaUSD && c.Moneda != costeo.MonedaBOB {
		return errors.New("moneda no soportada")
	}
	if c.TipoPago != PagoContado && c.TipoPago != PagoCredito {
		return errors.New("tipo de pago invalido")
	}
	return nil
}

// Linea is a committed purchase line. Build it with Editor.Linea.
type Linea struct {
	ProductoID    string          `json:"producto_id"`
	CostoUnitario decimal.Decimal `json:"costo_unitario"`
	Distribucion  map[string]int  `json:"distribucion"`
	Reglas        []precios.Regla `json:"reglas"`
	CantidadTotal int             `json:"cantidad_total"`
	CostoBase     decimal.Decimal `json:"costo_base"`
	NuevoCAPP     decimal.Decimal `json:"nuevo_capp"`
}

// Subtotal is unit cost times quantity in the purchase currency.
func (l Linea) Subtotal() decimal.Decimal {
	return l.CostoUnitario.Mul(decimal.NewFromInt(int64(l.CantidadTotal)))
}

// ResultadoCostos is the backend's answer to an additional-cost application.
type ResultadoCostos struct {
	CompraID string          `json:"compra_id"`
	Metodo   costeo.Metodo   `json:"metodo"`
	Total    decimal.Decimal `json:"total"`
	Items    []ItemCosto     `json:"items"`
}

// ItemCosto is one line of an applied allocation.
type ItemCosto struct {
	ProductoID     string          `json:"producto_id"`
	Cantidad       int             `json:"cantidad"`
	CostoAnterior  decimal.Decimal `json:"costo_anterior"`
	Asignado       decimal.Decimal `json:"asignado"`
	CostoAjustado  decimal.Decimal `json:"costo_ajustado"`
	CAPPResultante decimal.Decimal `json:"capp_resultante"`
}

// Backend is the remote side of the wizard.
type Backend interface {
	DetalleProducto(ctx context.Context, productoID string) (*DetalleProducto, error)
	RegistrarCompra(ctx context.Context, cab Cabecera, lineas []Linea) (string, error)
	AplicarCostos(ctx context.Context, compraID string, metodo costeo.Metodo, pool []costeo.CostoAdicional) (*ResultadoCostos, error)
}

// Nivel is the severity of a user notification.
type Nivel string

const (
	NivelInfo        Nivel = "info"
	NivelExito       Nivel = "exito"
	NivelAdvertencia Nivel = "advertencia"
	NivelError       Nivel = "error"
)

// NotificationSink shows dismissable messages to the user.
type NotificationSink interface {
	Notificar(mensaje string, nivel Nivel)
}

// LoadingSink toggles the busy indicator of the triggering control.
type LoadingSink interface {
	Cargando(activo bool)
}
