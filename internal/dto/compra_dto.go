package dto

import (
	"time"

	"servivent/internal/precios"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RegistrarCompraRequest struct {
	ProveedorID string              `json:"proveedor_id" validate:"required,uuid"`
	Moneda      string              `json:"moneda"       validate:"required,oneof=BOB USD"`
	TipoCambio  decimal.Decimal     `json:"tipo_cambio"`
	TipoPago    string              `json:"tipo_pago"    validate:"required,oneof=Contado Credito"`
	Fecha       *time.Time          `json:"fecha"`
	Referencia  *string             `json:"referencia"   validate:"omitempty,max=60"`
	Items       []CompraItemRequest `json:"items"        validate:"required,min=1,dive"`
}

// CompraItemRequest is one purchase line. Distribucion maps branch ID to
// units received there.
type CompraItemRequest struct {
	ProductoID    string          `json:"producto_id"    validate:"required,uuid"`
	CostoUnitario decimal.Decimal `json:"costo_unitario" validate:"required,gt=0"`
	Distribucion  map[string]int  `json:"distribucion"   validate:"required,min=1"`
	Reglas        []precios.Regla `json:"reglas"`
}

type CostoAdicionalRequest struct {
	Concepto string          `json:"concepto" validate:"required,max=80"`
	Monto    decimal.Decimal `json:"monto"    validate:"gte=0"`
}

// AplicarCostosRequest distributes an additional-cost pool over the items of
// a registered purchase. Metodo defaults to "valor".
type AplicarCostosRequest struct {
	Metodo string                  `json:"metodo" validate:"omitempty,oneof=valor cantidad"`
	Costos []CostoAdicionalRequest `json:"costos" validate:"required,min=1,dive"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type CompraFilter struct {
	ProveedorID string `form:"proveedor_id"`
	Pendientes  bool   `form:"pendientes"`
	Page        int    `form:"page,default=1"   validate:"min=1"`
	Limit       int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CompraItemResponse struct {
	ID            string          `json:"id"`
	ProductoID    string          `json:"producto_id"`
	Nombre        string          `json:"nombre,omitempty"`
	Cantidad      int             `json:"cantidad"`
	CostoUnitario decimal.Decimal `json:"costo_unitario"`
	CostoBase     decimal.Decimal `json:"costo_base"`
	CostoAsignado decimal.Decimal `json:"costo_asignado"`
	Distribucion  map[string]int  `json:"distribucion"`
}

type CostoAdicionalResponse struct {
	Concepto string          `json:"concepto"`
	Monto    decimal.Decimal `json:"monto"`
}

type CompraResponse struct {
	ID              string                   `json:"id"`
	Folio           int64                    `json:"folio"`
	ProveedorID     string                   `json:"proveedor_id"`
	Proveedor       string                   `json:"proveedor,omitempty"`
	Fecha           time.Time                `json:"fecha"`
	Referencia      *string                  `json:"referencia,omitempty"`
	Moneda          string                   `json:"moneda"`
	TipoCambio      decimal.Decimal          `json:"tipo_cambio"`
	TipoPago        string                   `json:"tipo_pago"`
	Total           decimal.Decimal          `json:"total"`
	TotalBase       decimal.Decimal          `json:"total_base"`
	CostosAplicados bool                     `json:"costos_aplicados"`
	MetodoProrrateo *string                  `json:"metodo_prorrateo,omitempty"`
	FechaCostos     *time.Time               `json:"fecha_costos,omitempty"`
	Items           []CompraItemResponse     `json:"items"`
	Costos          []CostoAdicionalResponse `json:"costos"`
}

type CompraListResponse struct {
	Data       []CompraResponse `json:"data"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
}

// ItemCostoResponse is one line of an allocation, previewed or applied.
type ItemCostoResponse struct {
	CompraItemID   string          `json:"compra_item_id"`
	ProductoID     string          `json:"producto_id"`
	Nombre         string          `json:"nombre,omitempty"`
	Cantidad       int             `json:"cantidad"`
	CostoAnterior  decimal.Decimal `json:"costo_anterior"`
	Asignado       decimal.Decimal `json:"asignado"`
	CostoAjustado  decimal.Decimal `json:"costo_ajustado"`
	CAPPResultante decimal.Decimal `json:"capp_resultante"`
}

type CostosResponse struct {
	CompraID string              `json:"compra_id"`
	Metodo   string              `json:"metodo"`
	Total    decimal.Decimal     `json:"total"`
	Aplicado bool                `json:"aplicado"`
	Items    []ItemCostoResponse `json:"items"`
}
