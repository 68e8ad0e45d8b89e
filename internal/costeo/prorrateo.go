// Package costeo distributes a purchase's additional costs (freight, customs,
// handling) across its lines and keeps the weighted average cost (CAPP) of
// each product up to date.
//
// Two proration methods are supported:
//
//	valor:    share = pool * (qty * unitValue) / sum(qty * unitValue)
//	cantidad: share = pool * qty / sum(qty)
//
// Shares are kept in cents with the largest remainder method: every line is
// within one cent of its exact share and the allocated total always equals
// the pool.
package costeo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Escala is the number of decimals kept on every allocated share.
const Escala int32 = 2

// Metodo selects how the additional-cost pool is split across lines.
type Metodo string

const (
	MetodoPorValor    Metodo = "valor"    // recommended default
	MetodoPorCantidad Metodo = "cantidad" // identical per-unit cost
)

var (
	// ErrAsignacionInvalida is the root of every allocation failure.
	ErrAsignacionInvalida = errors.New("asignacion de costos invalida")
	// ErrBaseValorCero means the lines carry no monetary weight, so a
	// non-zero pool cannot be prorated by value.
	ErrBaseValorCero = fmt.Errorf("%w: el valor total de las lineas es cero, use el prorrateo por cantidad", ErrAsignacionInvalida)
)

// ParseMetodo accepts "valor" / "cantidad" (case-insensitive). Empty input
// selects the by-value method.
func ParseMetodo(s string) (Metodo, error) {
	switch Metodo(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetodoPorValor:
		return MetodoPorValor, nil
	case MetodoPorCantidad:
		return MetodoPorCantidad, nil
	}
	return "", fmt.Errorf("%w: metodo %q desconocido", ErrAsignacionInvalida, s)
}

// CostoAdicional is one entry of the additional-cost pool.
type CostoAdicional struct {
	Concepto string          `json:"concepto"`
	Monto    decimal.Decimal `json:"monto"`
}

// LineaCosto is a purchase line as seen by the allocator.
type LineaCosto struct {
	ID            string
	Cantidad      decimal.Decimal
	ValorUnitario decimal.Decimal
}

// Valor returns qty * unitValue, the line's weight for the by-value method.
func (l LineaCosto) Valor() decimal.Decimal {
	return l.Cantidad.Mul(l.ValorUnitario)
}

// Resultado holds the share assigned to every line.
type Resultado struct {
	Metodo       Metodo
	Total        decimal.Decimal
	Asignaciones map[string]decimal.Decimal
	// Orden keeps the input order of line IDs; ties on leftover cents favour later lines.
	Orden []string
}

// Asignado returns the share of line id (zero when unknown).
func (r *Resultado) Asignado(id string) decimal.Decimal {
	return r.Asignaciones[id]
}

// Suma adds every assigned share.
func (r *Resultado) Suma() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.Asignaciones {
		total = total.Add(v)
	}
	return total
}

// TotalPool adds the pool amounts. Negative amounts are rejected.
func TotalPool(pool []CostoAdicional) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range pool {
		if c.Monto.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: el monto de %q es negativo", ErrAsignacionInvalida, c.Concepto)
		}
		total = total.Add(c.Monto)
	}
	return total, nil
}

// Asignar splits the pool across lines with the given method.
func Asignar(pool []CostoAdicional, lineas []LineaCosto, metodo Metodo) (*Resultado, error) {
	if metodo != MetodoPorValor && metodo != MetodoPorCantidad {
		return nil, fmt.Errorf("%w: metodo %q desconocido", ErrAsignacionInvalida, metodo)
	}
	if len(lineas) == 0 {
		return nil, fmt.Errorf("%w: no hay lineas para prorratear", ErrAsignacionInvalida)
	}
	total, err := TotalPool(pool)
	if err != nil {
		return nil, err
	}

	vistos := make(map[string]struct{}, len(lineas))
	pesos := make([]decimal.Decimal, len(lineas))
	base := decimal.Zero
	for i, l := range lineas {
		if _, dup := vistos[l.ID]; dup {
			return nil, fmt.Errorf("%w: linea %q repetida", ErrAsignacionInvalida, l.ID)
		}
		vistos[l.ID] = struct{}{}
		if !l.Cantidad.IsPositive() {
			return nil, fmt.Errorf("%w: la cantidad de la linea %q debe ser mayor a cero", ErrAsignacionInvalida, l.ID)
		}
		if l.ValorUnitario.IsNegative() {
			return nil, fmt.Errorf("%w: el valor unitario de la linea %q es negativo", ErrAsignacionInvalida, l.ID)
		}
		if metodo == MetodoPorValor {
			pesos[i] = l.Valor()
		} else {
			pesos[i] = l.Cantidad
		}
		base = base.Add(pesos[i])
	}

	res := &Resultado{
		Metodo:       metodo,
		Total:        total,
		Asignaciones: make(map[string]decimal.Decimal, len(lineas)),
		Orden:        make([]string, 0, len(lineas)),
	}
	for _, l := range lineas {
		res.Orden = append(res.Orden, l.ID)
	}

	if total.IsZero() {
		for _, l := range lineas {
			res.Asignaciones[l.ID] = decimal.Zero
		}
		return res, nil
	}
	if base.IsZero() {
		// Only reachable by value: every quantity is positive.
		return nil, ErrBaseValorCero
	}

	repartirCentavos(res, lineas, pesos, base, total)
	return res, nil
}

// repartirCentavos truncates every exact share to cents, then hands the
// leftover cents one by one to the lines with the largest truncated
// remainder; ties go to the later line. Every share stays within one cent
// of its exact value. A sub-cent residual, only possible when the pool
// itself has more than two decimals, lands on the last line.
func repartirCentavos(res *Resultado, lineas []LineaCosto, pesos []decimal.Decimal, base, total decimal.Decimal) {
	centavo := decimal.New(1, -Escala)
	partes := make([]decimal.Decimal, len(lineas))
	restos := make([]decimal.Decimal, len(lineas))
	asignado := decimal.Zero
	for i := range lineas {
		exacta := total.Mul(pesos[i]).Div(base)
		partes[i] = exacta.Truncate(Escala)
		restos[i] = exacta.Sub(partes[i])
		asignado = asignado.Add(partes[i])
	}

	orden := make([]int, len(lineas))
	for i := range orden {
		orden[i] = i
	}
	sort.SliceStable(orden, func(a, b int) bool {
		ra, rb := restos[orden[a]], restos[orden[b]]
		if !ra.Equal(rb) {
			return ra.GreaterThan(rb)
		}
		return orden[a] > orden[b]
	})

	faltan := total.Sub(asignado)
	for k := 0; faltan.GreaterThanOrEqual(centavo) && k < len(orden); k++ {
		partes[orden[k]] = partes[orden[k]].Add(centavo)
		faltan = faltan.Sub(centavo)
	}
	ultimo := len(lineas) - 1
	partes[ultimo] = partes[ultimo].Add(faltan)

	for i, l := range lineas {
		res.Asignaciones[l.ID] = partes[i]
	}
}

// CostoUnitarioAjustado spreads a line's share over its units:
// valorUnitario + asignado/cantidad.
func CostoUnitarioAjustado(valorUnitario, asignado, cantidad decimal.Decimal) decimal.Decimal {
	if !cantidad.IsPositive() {
		return valorUnitario
	}
	return valorUnitario.Add(asignado.Div(cantidad))
}
