package handler

import (
	"net/http"

	"servivent/internal/dto"
	"servivent/internal/middleware"
	"servivent/internal/service"

	"github.com/gin-gonic/gin"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ComprasHandler struct{ svc service.CompraService }

func NewComprasHandler(svc service.CompraService) *ComprasHandler {
	return &ComprasHandler{svc: svc}
}

// Registrar godoc
// @Summary      Registrar una compra
// @Description  Crea la compra ACID: ingresa stock por sucursal, recalcula el CAPP y guarda reglas y precios por lista.
// @Tags         compras
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.RegistrarCompraRequest true "Cabecera e items"
// @Success      201  {object} dto.CompraResponse
// @Failure      400  {object} apierror.APIError
// @Failure      422  {object} apierror.ReglasError
// @Router       /v1/compras [post]
func (h *ComprasHandler) Registrar(c *gin.Context) {
	var req dto.RegistrarCompraRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Registrar(c.Request.Context(), middleware.EmpresaID(c), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Obtener godoc
// @Summary      Obtener compra
// @Tags         compras
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la compra"
// @Success      200 {object} dto.CompraResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/compras/{id} [get]
func (h *ComprasHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), middleware.EmpresaID(c), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary      Listar compras
// @Tags         compras
// @Produce      json
// @Security     BearerAuth
// @Param        proveedor_id query string false "Filtrar por proveedor"
// @Param        pendientes   query bool   false "Solo compras sin costos adicionales aplicados"
// @Param        page         query int    false "Página (default 1)"
// @Param        limit        query int    false "Registros por página (default 20)"
// @Success      200          {object} dto.CompraListResponse
// @Router       /v1/compras [get]
func (h *ComprasHandler) Listar(c *gin.Context) {
	var filter dto.CompraFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), middleware.EmpresaID(c), filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PrevisualizarCostos godoc
// @Summary      Previsualizar prorrateo de costos adicionales
// @Description  Calcula la asignación sin persistir nada.
// @Tags         compras
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                   true "UUID de la compra"
// @Param        body body     dto.AplicarCostosRequest true "Pool de costos y método"
// @Success      200  {object} dto.CostosResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/compras/{id}/costos/preview [post]
func (h *ComprasHandler) PrevisualizarCostos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AplicarCostosRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.PrevisualizarCostos(c.Request.Context(), middleware.EmpresaID(c), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AplicarCostos godoc
// @Summary      Aplicar costos adicionales
// @Description  Prorratea el pool sobre los items, ajusta costos y CAPP. Una sola vez por compra.
// @Tags         compras
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                   true "UUID de la compra"
// @Param        body body     dto.AplicarCostosRequest true "Pool de costos y método"
// @Success      200  {object} dto.CostosResponse
// @Failure      409  {object} apierror.APIError "Costos ya aplicados u operación en curso"
// @Failure      422  {object} apierror.APIError "Asignación inválida"
// @Router       /v1/compras/{id}/costos [post]
func (h *ComprasHandler) AplicarCostos(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AplicarCostosRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AplicarCostos(c.Request.Context(), middleware.EmpresaID(c), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Planilla godoc
// @Summary      Planilla de costos (XLSX)
// @Tags         compras
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        id  path string true "UUID de la compra"
// @Success      200 {file} file
// @Failure      404 {object} apierror.APIError
// @Router       /v1/compras/{id}/costos/planilla [get]
func (h *ComprasHandler) Planilla(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	data, nombre, err := h.svc.Planilla(c.Request.Context(), middleware.EmpresaID(c), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+nombre+`"`)
	c.Data(http.StatusOK, mimeXLSX, data)
}
