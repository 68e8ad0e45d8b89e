// Package precios validates the gain rules of each price list and derives
// the resulting sale prices from a product's weighted average cost.
package precios

import (
	"github.com/shopspring/decimal"
)

const (
	MsgRequerido    = "Requerido"
	MsgExcedeMaximo = "No puede superar al máximo"
)

// Regla is the gain policy of one price list for one product.
type Regla struct {
	ListaPrecioID    string          `json:"lista_precio_id"`
	Nombre           string          `json:"nombre,omitempty"`
	EsGeneral        bool            `json:"es_general"`
	GananciaMaxima   Ganancia        `json:"ganancia_maxima"`
	GananciaMinima   Ganancia        `json:"ganancia_minima"`
	PrecioResultante decimal.Decimal `json:"precio_resultante"`
}

// ErrorCampo carries the message for each field of a rule; empty means ok.
type ErrorCampo struct {
	GananciaMaxima string `json:"ganancia_maxima,omitempty"`
	GananciaMinima string `json:"ganancia_minima,omitempty"`
}

func (e ErrorCampo) vacio() bool {
	return e.GananciaMaxima == "" && e.GananciaMinima == ""
}

// Resultado is the outcome of Validar. Errores is keyed by price list ID.
type Resultado struct {
	Valido  bool                  `json:"valido"`
	Errores map[string]ErrorCampo `json:"errores"`
}

// Validar checks every rule:
//   - the general list needs both gains, and both numeric;
//   - any other list that sets a maximum must set a numeric minimum too,
//     and a gain typed as text that is not a number is rejected;
//   - the minimum cannot exceed the maximum.
func Validar(reglas []Regla) Resultado {
	res := Resultado{Valido: true, Errores: map[string]ErrorCampo{}}
	for _, r := range reglas {
		if e := validarRegla(r); !e.vacio() {
			res.Errores[r.ListaPrecioID] = e
			res.Valido = false
		}
	}
	return res
}

func validarRegla(r Regla) ErrorCampo {
	var e ErrorCampo
	maximo, maxOK := r.GananciaMaxima.Numero()
	minimo, minOK := r.GananciaMinima.Numero()

	if r.EsGeneral {
		if !maxOK {
			e.GananciaMaxima = MsgRequerido
		}
		if !minOK {
			e.GananciaMinima = MsgRequerido
		}
	} else {
		// Text that is not a number counts as missing, never as blank.
		if !maxOK && !r.GananciaMaxima.Vacia() {
			e.GananciaMaxima = MsgRequerido
		}
		if !minOK && (maxOK || !r.GananciaMinima.Vacia()) {
			e.GananciaMinima = MsgRequerido
		}
	}

	if maxOK && minOK && minimo.GreaterThan(maximo) {
		e.GananciaMinima = MsgExcedeMaximo
	}
	return e
}

// Recalcular returns a copy of reglas with PrecioResultante = capp + maximum
// gain. A rule without a numeric maximum sells at cost.
func Recalcular(reglas []Regla, capp decimal.Decimal) []Regla {
	out := make([]Regla, len(reglas))
	for i, r := range reglas {
		r.PrecioResultante = capp.Add(r.GananciaMaxima.O(decimal.Zero))
		out[i] = r
	}
	return out
}

// Margen returns the markup percentage of precio over capp, rounded to two
// decimals. Zero when capp is zero.
func Margen(capp, precio decimal.Decimal) decimal.Decimal {
	if capp.IsZero() {
		return decimal.Zero
	}
	return precio.Sub(capp).Div(capp).Mul(decimal.NewFromInt(100)).Round(2)
}

// General returns the default price list's rule, if any.
func General(reglas []Regla) (Regla, bool) {
	for _, r := range reglas {
		if r.EsGeneral {
			return r, true
		}
	}
	return Regla{}, false
}
