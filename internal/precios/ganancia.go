package precios

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type estadoGanancia uint8

const (
	gananciaVacia estadoGanancia = iota
	gananciaNumerica
	gananciaInvalida
)

// Ganancia is a gain input as typed by the user: blank, numeric, or text that
// does not parse. The zero value is blank.
type Ganancia struct {
	valor  decimal.Decimal
	texto  string
	estado estadoGanancia
}

// GananciaDe wraps a numeric gain.
func GananciaDe(v decimal.Decimal) Ganancia {
	return Ganancia{valor: v, estado: gananciaNumerica}
}

// GananciaTexto parses user input. Whitespace-only input is blank.
func GananciaTexto(s string) Ganancia {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ganancia{}
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return Ganancia{texto: s, estado: gananciaInvalida}
	}
	return GananciaDe(v)
}

// Vacia reports whether nothing was entered.
func (g Ganancia) Vacia() bool { return g.estado == gananciaVacia }

// Numero returns the value and true when the input is numeric.
func (g Ganancia) Numero() (decimal.Decimal, bool) {
	return g.valor, g.estado == gananciaNumerica
}

// O returns the numeric value or def.
func (g Ganancia) O(def decimal.Decimal) decimal.Decimal {
	if v, ok := g.Numero(); ok {
		return v
	}
	return def
}

func (g Ganancia) String() string {
	switch g.estado {
	case gananciaNumerica:
		return g.valor.String()
	case gananciaInvalida:
		return g.texto
	}
	return ""
}

// MarshalJSON writes null for blank, a quoted decimal for numbers and the raw
// text for unparsable input.
func (g Ganancia) MarshalJSON() ([]byte, error) {
	if g.Vacia() {
		return []byte("null"), nil
	}
	return json.Marshal(g.String())
}

// UnmarshalJSON accepts null, JSON numbers and strings.
func (g *Ganancia) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*g = Ganancia{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = GananciaTexto(s)
		return nil
	}
	*g = GananciaTexto(string(b))
	return nil
}
