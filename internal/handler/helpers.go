package handler

import (
	"errors"
	"net/http"
	"reflect"

	"servivent/internal/apierror"
	"servivent/internal/compra"
	"servivent/internal/costeo"
	"servivent/internal/middleware"
	"servivent/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return validar(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return false
	}
	return validar(c, req)
}

func validar(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// paramID parses a UUID path parameter, writing 400 when it is malformed.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// responderError maps domain errors to HTTP statuses. Unknown errors become a
// generic 500 and are logged with the request ID; the client never sees them.
func responderError(c *gin.Context, err error) {
	var reglas *service.ReglasInvalidasError
	switch {
	case errors.As(err, &reglas):
		c.JSON(http.StatusUnprocessableEntity, apierror.NewReglas(reglas.Resultado.Errores))
	case errors.Is(err, service.ErrNoEncontrado):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.Is(err, compra.ErrCostosYaAplicados),
		errors.Is(err, compra.ErrOperacionEnCurso):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, costeo.ErrAsignacionInvalida):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	case errors.Is(err, compra.ErrProductoDuplicado),
		errors.Is(err, compra.ErrTipoCambio),
		errors.Is(err, compra.ErrCompraVacia),
		errors.Is(err, compra.ErrLineaNoConfirmada),
		errors.Is(err, service.ErrProveedorInvalido),
		errors.Is(err, service.ErrSucursalInvalida),
		errors.Is(err, service.ErrCantidadInvalida),
		errors.Is(err, service.ErrProductoInactivo),
		errors.Is(err, service.ErrFiltroInvalido):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	default:
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("unhandled service error")
		c.JSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
	}
}
