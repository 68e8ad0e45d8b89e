package dto

import (
	"time"

	"servivent/internal/precios"

	"github.com/shopspring/decimal"
)

// ─── Response DTOs ───────────────────────────────────────────────────────────

// DetalleProductoResponse is what the purchase wizard needs to open a line:
// current CAPP, stock per branch and the gain rule of every price list.
type DetalleProductoResponse struct {
	ProductoID       string          `json:"producto_id"`
	SKU              string          `json:"sku"`
	Nombre           string          `json:"nombre"`
	CAPPActual       decimal.Decimal `json:"capp_actual"`
	StockPorSucursal map[string]int  `json:"stock_por_sucursal"`
	Sucursales       []SucursalStock `json:"sucursales"`
	Reglas           []precios.Regla `json:"reglas"`

	// Markup of each stored list price over the current CAPP, by list id.
	MargenPct map[string]decimal.Decimal `json:"margen_pct"`
}

type SucursalStock struct {
	SucursalID string `json:"sucursal_id"`
	Nombre     string `json:"nombre"`
	Cantidad   int    `json:"cantidad"`
}

// HistorialCostoResponse is one CAPP change of a product.
type HistorialCostoResponse struct {
	ID          string          `json:"id"`
	CompraID    *string         `json:"compra_id,omitempty"`
	CAPPAntes   decimal.Decimal `json:"capp_antes"`
	CAPPDespues decimal.Decimal `json:"capp_despues"`
	Motivo      string          `json:"motivo"`
	CreatedAt   time.Time       `json:"created_at"`
}

type HistorialCostoListResponse struct {
	Data       []HistorialCostoResponse `json:"data"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	Limit      int                      `json:"limit"`
	TotalPages int                      `json:"total_pages"`
}

// HistorialPrecioResponse is one list price change of a product.
type HistorialPrecioResponse struct {
	ID            string          `json:"id"`
	ListaPrecioID string          `json:"lista_precio_id"`
	Lista         string          `json:"lista,omitempty"`
	CompraID      *string         `json:"compra_id,omitempty"`
	PrecioAntes   decimal.Decimal `json:"precio_antes"`
	PrecioDespues decimal.Decimal `json:"precio_despues"`
	Motivo        string          `json:"motivo"`
	CreatedAt     time.Time       `json:"created_at"`
}

type HistorialPrecioListResponse struct {
	Data       []HistorialPrecioResponse `json:"data"`
	Total      int64                     `json:"total"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
	TotalPages int                       `json:"total_pages"`
}

type MovimientoStockResponse struct {
	ID            string    `json:"id"`
	SucursalID    string    `json:"sucursal_id"`
	Tipo          string    `json:"tipo"`
	Cantidad      int       `json:"cantidad"`
	StockAnterior int       `json:"stock_anterior"`
	StockNuevo    int       `json:"stock_nuevo"`
	Motivo        string    `json:"motivo,omitempty"`
	ReferenciaID  *string   `json:"referencia_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type MovimientoStockListResponse struct {
	Data       []MovimientoStockResponse `json:"data"`
	Total      int64                     `json:"total"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
	TotalPages int                       `json:"total_pages"`
}

// PaginaFilter is the common page/limit query of list endpoints.
type PaginaFilter struct {
	SucursalID    string `form:"sucursal_id"`
	ListaPrecioID string `form:"lista_precio_id"`
	Page          int    `form:"page,default=1"   validate:"min=1"`
	Limit         int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Price rules ─────────────────────────────────────────────────────────────

// ValidarReglasRequest runs the price rule validator without persisting.
// When CAPP is sent the resulting prices are returned too.
type ValidarReglasRequest struct {
	Reglas []precios.Regla  `json:"reglas" validate:"required,min=1"`
	CAPP   *decimal.Decimal `json:"capp"`
}

type ValidarReglasResponse struct {
	precios.Resultado
	Reglas []precios.Regla `json:"reglas,omitempty"`
}
