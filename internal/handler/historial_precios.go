package handler

import (
	"net/http"

	"servivent/internal/dto"
	"servivent/internal/middleware"

	"github.com/gin-gonic/gin"
)

// HistorialPrecios godoc
// @Summary      Historial de precios de un producto
// @Description  Retorna el historial inmutable de cambios de precio por lista, ordenado por fecha descendente.
// @Tags         productos
// @Produce      json
// @Security     BearerAuth
// @Param        id              path     string  true  "UUID del producto"
// @Param        lista_precio_id query    string  false "Filtrar por lista de precios"
// @Param        page            query    int     false "Página (default 1)"
// @Param        limit           query    int     false "Registros por página (default 50, max 200)"
// @Success      200             {object} dto.HistorialPrecioListResponse
// @Failure      400             {object} apierror.APIError
// @Failure      404             {object} apierror.APIError
// @Router       /v1/productos/{id}/historial-precios [get]
func (h *ProductosHandler) HistorialPrecios(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var filter dto.PaginaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.HistorialPrecios(c.Request.Context(), middleware.EmpresaID(c), id, filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
