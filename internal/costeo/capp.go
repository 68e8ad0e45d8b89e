package costeo

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Moneda is the currency a purchase is invoiced in. BOB is the base currency.
type Moneda string

const (
	MonedaBOB Moneda = "BOB"
	MonedaUSD Moneda = "USD"
)

// ParseMoneda accepts BOB / USD (case-insensitive).
func ParseMoneda(s string) (Moneda, error) {
	switch Moneda(strings.ToUpper(strings.TrimSpace(s))) {
	case MonedaBOB:
		return MonedaBOB, nil
	case MonedaUSD:
		return MonedaUSD, nil
	}
	return "", fmt.Errorf("moneda %q no soportada", s)
}

// CostoEnMonedaBase converts a purchase-currency cost to BOB.
func CostoEnMonedaBase(costo decimal.Decimal, moneda Moneda, tipoCambio decimal.Decimal) decimal.Decimal {
	if moneda == MonedaUSD {
		return costo.Mul(tipoCambio)
	}
	return costo
}

// CAPP blends an incoming lot into the weighted average cost:
//
//	(stock*capp + qty*costo) / (stock + qty)
//
// A negative stock counts as zero. With nothing on hand and nothing incoming
// the incoming cost is returned.
func CAPP(stockExistente, cappActual, cantidadEntrante, costoEntrante decimal.Decimal) decimal.Decimal {
	if stockExistente.IsNegative() {
		stockExistente = decimal.Zero
	}
	total := stockExistente.Add(cantidadEntrante)
	if !total.IsPositive() {
		return costoEntrante
	}
	return stockExistente.Mul(cappActual).
		Add(cantidadEntrante.Mul(costoEntrante)).
		Div(total)
}

// CAPPConCargo lands an extra cost on stock that is already registered:
// (stock*capp + cargo) / stock. Without stock the CAPP is left unchanged.
func CAPPConCargo(stock, capp, cargo decimal.Decimal) decimal.Decimal {
	if !stock.IsPositive() {
		return capp
	}
	return stock.Mul(capp).Add(cargo).Div(stock)
}
