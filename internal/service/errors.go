package service

import (
	"errors"

	"servivent/internal/precios"
)

var (
	ErrNoEncontrado      = errors.New("recurso no encontrado")
	ErrProveedorInvalido = errors.New("proveedor inexistente o inactivo")
	ErrSucursalInvalida  = errors.New("sucursal inexistente o inactiva")
	ErrCantidadInvalida  = errors.New("la cantidad total de cada producto debe ser mayor a cero")
	ErrProductoInactivo  = errors.New("producto inexistente o inactivo")
	ErrFiltroInvalido    = errors.New("filtro invalido")
)

// ReglasInvalidasError reports the price rules of one purchase line that did
// not pass validation.
type ReglasInvalidasError struct {
	ProductoID string
	Resultado  precios.Resultado
}

func (e *ReglasInvalidasError) Error() string {
	return "reglas de precio invalidas para el producto " + e.ProductoID
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
