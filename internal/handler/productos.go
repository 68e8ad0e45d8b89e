package handler

import (
	"net/http"

	"servivent/internal/dto"
	"servivent/internal/middleware"
	"servivent/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductosHandler struct{ svc service.ProductoService }

func NewProductosHandler(svc service.ProductoService) *ProductosHandler {
	return &ProductosHandler{svc: svc}
}

// Detalle godoc
// @Summary      Detalle de producto para compras
// @Description  CAPP actual, stock por sucursal y regla de ganancia de cada lista de precios. Cacheado en Redis.
// @Tags         productos
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID del producto"
// @Success      200 {object} dto.DetalleProductoResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/productos/{id}/detalle [get]
func (h *ProductosHandler) Detalle(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Detalle(c.Request.Context(), middleware.EmpresaID(c), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HistorialCostos godoc
// @Summary      Historial de CAPP
// @Tags         productos
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "UUID del producto"
// @Param        page  query int    false "Página (default 1)"
// @Param        limit query int    false "Registros por página (default 50)"
// @Success      200   {object} dto.HistorialCostoListResponse
// @Router       /v1/productos/{id}/historial-costos [get]
func (h *ProductosHandler) HistorialCostos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var filter dto.PaginaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.HistorialCostos(c.Request.Context(), middleware.EmpresaID(c), id, filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movimientos godoc
// @Summary      Movimientos de stock del producto
// @Tags         productos
// @Produce      json
// @Security     BearerAuth
// @Param        id          path  string true  "UUID del producto"
// @Param        sucursal_id query string false "Filtrar por sucursal"
// @Param        page        query int    false "Página (default 1)"
// @Param        limit       query int    false "Registros por página (default 50)"
// @Success      200         {object} dto.MovimientoStockListResponse
// @Router       /v1/productos/{id}/movimientos [get]
func (h *ProductosHandler) Movimientos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var filter dto.PaginaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Movimientos(c.Request.Context(), middleware.EmpresaID(c), id, filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ValidarReglas godoc
// @Summary      Validar reglas de precio
// @Description  Valida las ganancias de cada lista sin persistir. Con capp devuelve además los precios resultantes.
// @Tags         reglas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.ValidarReglasRequest true "Reglas a validar"
// @Success      200  {object} dto.ValidarReglasResponse
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/reglas/validar [post]
func (h *ProductosHandler) ValidarReglas(c *gin.Context) {
	var req dto.ValidarReglasRequest
	if !bindAndValidate(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.ValidarReglas(req))
}
