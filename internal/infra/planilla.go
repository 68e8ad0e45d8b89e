package infra

import (
	"bytes"
	"fmt"

	"servivent/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const hojaCostos = "Costos"

var encabezadoPlanilla = []interface{}{
	"Producto", "Cantidad", "Costo unitario", "Costo base", "Costo asignado", "Costo ajustado", "Subtotal base",
}

// GenerarPlanillaCostos renders the cost sheet of a purchase: one row per item
// in input order, then the additional-cost pool and the totals.
func GenerarPlanillaCostos(c *dto.CompraResponse) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", hojaCostos); err != nil {
		return nil, err
	}

	titulo := fmt.Sprintf("Compra #%d - %s", c.Folio, c.Proveedor)
	estado := "Costos adicionales pendientes"
	if c.CostosAplicados {
		estado = "Costos adicionales aplicados"
		if c.MetodoProrrateo != nil {
			estado += " (" + *c.MetodoProrrateo + ")"
		}
	}
	rows := [][]interface{}{
		{titulo},
		{"Fecha", c.Fecha.Format("2006-01-02"), "Moneda", c.Moneda, "Tipo de cambio", num(c.TipoCambio)},
		{estado},
		{},
		encabezadoPlanilla,
	}

	totalAsignado := decimal.Zero
	for _, it := range c.Items {
		qty := decimal.NewFromInt(int64(it.Cantidad))
		// CostoBase already includes the share once costs were applied.
		costoPrevio := it.CostoBase
		if c.CostosAplicados && it.Cantidad > 0 {
			costoPrevio = it.CostoBase.Sub(it.CostoAsignado.Div(qty))
		}
		nombre := it.Nombre
		if nombre == "" {
			nombre = it.ProductoID
		}
		rows = append(rows, []interface{}{
			nombre,
			it.Cantidad,
			num(it.CostoUnitario),
			num(costoPrevio.Round(4)),
			num(it.CostoAsignado),
			num(it.CostoBase),
			num(it.CostoBase.Mul(qty).Round(2)),
		})
		totalAsignado = totalAsignado.Add(it.CostoAsignado)
	}

	rows = append(rows, []interface{}{}, []interface{}{"Costo adicional", "Monto"})
	totalPool := decimal.Zero
	for _, co := range c.Costos {
		rows = append(rows, []interface{}{co.Concepto, num(co.Monto)})
		totalPool = totalPool.Add(co.Monto)
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"Total compra", num(c.Total)},
		[]interface{}{"Total base (BOB)", num(c.TotalBase)},
		[]interface{}{"Total costos adicionales", num(totalPool)},
		[]interface{}{"Total asignado", num(totalAsignado)},
	)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(hojaCostos, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(hojaCostos, "A", "A", 32); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(hojaCostos, "B", "G", 16); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

// num writes decimals as numeric cells so the sheet can be summed.
func num(d decimal.Decimal) float64 { return d.InexactFloat64() }
