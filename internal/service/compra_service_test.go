package service_test

import (
	"context"
	"errors"
	"testing"

	"servivent/internal/compra"
	"servivent/internal/costeo"
	"servivent/internal/dto"
	"servivent/internal/infra"
	"servivent/internal/model"
	"servivent/internal/precios"
	"servivent/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decEq(t *testing.T, want string, got decimal.Decimal, msg ...string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msg)
}

// fixture is one company with two branches, two price lists, one supplier
// and a product holding 10 units (6 central, 4 norte) at CAPP 50.
type fixture struct {
	empresa   uuid.UUID
	central   model.Sucursal
	norte     model.Sucursal
	general   model.ListaPrecio
	mayorista model.ListaPrecio
	proveedor *model.Proveedor
	cemento   *model.Producto

	productos   *stubProductoRepo
	listas      *stubListaRepo
	historial   *stubHistorialRepo
	movimientos *stubMovimientoRepo
	compras     *stubCompraRepo
	locker      *stubLocker
	eventos     *stubPublisher

	svc service.CompraService
}

func newFixture() *fixture {
	f := &fixture{empresa: uuid.New()}
	f.central = model.Sucursal{ID: uuid.New(), EmpresaID: f.empresa, Nombre: "Central", Activa: true}
	f.norte = model.Sucursal{ID: uuid.New(), EmpresaID: f.empresa, Nombre: "Norte", Activa: true}
	f.general = model.ListaPrecio{ID: uuid.New(), EmpresaID: f.empresa, Nombre: "General", EsGeneral: true}
	f.mayorista = model.ListaPrecio{ID: uuid.New(), EmpresaID: f.empresa, Nombre: "Mayorista", Orden: 1}
	f.proveedor = &model.Proveedor{ID: uuid.New(), EmpresaID: f.empresa, Nombre: "Ferreteria Andina", Activo: true}
	f.cemento = &model.Producto{ID: uuid.New(), EmpresaID: f.empresa, SKU: "CEM-50", Nombre: "Cemento 50kg", CAPP: dec("50"), Activo: true}

	f.productos = newStubProductoRepo()
	f.productos.add(f.cemento, map[uuid.UUID]int{f.central.ID: 6, f.norte.ID: 4})
	f.listas = newStubListaRepo(f.general, f.mayorista)
	f.historial = &stubHistorialRepo{}
	f.movimientos = &stubMovimientoRepo{}
	f.compras = newStubCompraRepo(f.productos)
	f.locker = &stubLocker{}
	f.eventos = &stubPublisher{}

	f.svc = service.NewCompraService(service.CompraDeps{
		Compras:     f.compras,
		Productos:   f.productos,
		Proveedores: &stubProveedorRepo{proveedores: map[uuid.UUID]*model.Proveedor{f.proveedor.ID: f.proveedor}},
		Sucursales:  &stubSucursalRepo{sucursales: []model.Sucursal{f.central, f.norte}},
		Listas:      f.listas,
		Historial:   f.historial,
		Movimientos: f.movimientos,
		Locker:      f.locker,
		Eventos:     f.eventos,
	})
	return f
}

func (f *fixture) reglaGeneral(max, min string) precios.Regla {
	return precios.Regla{
		ListaPrecioID:  f.general.ID.String(),
		EsGeneral:      true,
		GananciaMaxima: precios.GananciaTexto(max),
		GananciaMinima: precios.GananciaTexto(min),
	}
}

// request receives 5 units of cement at 80 (3 central, 2 norte).
func (f *fixture) request() dto.RegistrarCompraRequest {
	return dto.RegistrarCompraRequest{
		ProveedorID: f.proveedor.ID.String(),
		Moneda:      "BOB",
		TipoPago:    "Contado",
		Items: []dto.CompraItemRequest{{
			ProductoID:    f.cemento.ID.String(),
			CostoUnitario: dec("80"),
			Distribucion:  map[string]int{f.central.ID.String(): 3, f.norte.ID.String(): 2},
			Reglas:        []precios.Regla{f.reglaGeneral("20", "10")},
		}},
	}
}

// ── Registrar ─────────────────────────────────────────────────────────────────

func TestRegistrar_StockCAPPYPrecios(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.Registrar(context.Background(), f.empresa, f.request())
	require.NoError(t, err)

	assert.Equal(t, int64(1), resp.Folio)
	assert.Equal(t, "Ferreteria Andina", resp.Proveedor)
	decEq(t, "400", resp.Total)
	decEq(t, "400", resp.TotalBase)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 5, resp.Items[0].Cantidad)
	assert.Equal(t, "Cemento 50kg", resp.Items[0].Nombre)

	assert.Equal(t, 9, f.productos.stock[f.cemento.ID][f.central.ID])
	assert.Equal(t, 6, f.productos.stock[f.cemento.ID][f.norte.ID])

	// (10*50 + 5*80) / 15
	decEq(t, "60", f.cemento.CAPP)
	require.Len(t, f.historial.costos, 1)
	decEq(t, "50", f.historial.costos[0].CAPPAntes)
	decEq(t, "60", f.historial.costos[0].CAPPDespues)
	assert.Equal(t, model.MotivoCompra, f.historial.costos[0].Motivo)

	decEq(t, "80", f.listas.precio(f.cemento.ID, f.general.ID))
	decEq(t, "60", f.listas.precio(f.cemento.ID, f.mayorista.ID), "blank maximum sells at cost")
	assert.Len(t, f.historial.precios, 2)

	require.Len(t, f.movimientos.movimientos, 2)
	for _, m := range f.movimientos.movimientos {
		assert.Equal(t, "compra", m.Tipo)
		assert.Equal(t, m.StockAnterior+m.Cantidad, m.StockNuevo)
	}

	require.Len(t, f.eventos.eventos, 1)
	assert.Equal(t, infra.EventoCompraRegistrada, f.eventos.eventos[0].Tipo)
	assert.Equal(t, resp.ID, f.eventos.eventos[0].CompraID)
}

func TestRegistrar_GuardaLaReglaEnviada(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Items[0].Reglas = append(req.Items[0].Reglas, precios.Regla{
		ListaPrecioID:  f.mayorista.ID.String(),
		GananciaMaxima: precios.GananciaTexto("8"),
		GananciaMinima: precios.GananciaTexto("4"),
	})

	_, err := f.svc.Registrar(context.Background(), f.empresa, req)
	require.NoError(t, err)

	fila := f.listas.filas[f.cemento.ID][f.mayorista.ID]
	require.NotNil(t, fila.GananciaMaxima)
	decEq(t, "8", *fila.GananciaMaxima)
	decEq(t, "68", fila.Precio)
}

func TestRegistrar_USDUsaCostoBase(t *testing.T) {
	f := newFixture()
	f.productos.stock[f.cemento.ID] = map[uuid.UUID]int{}
	req := f.request()
	req.Moneda = "USD"
	req.TipoCambio = dec("6.96")
	req.Items[0].CostoUnitario = dec("10")

	resp, err := f.svc.Registrar(context.Background(), f.empresa, req)
	require.NoError(t, err)

	decEq(t, "50", resp.Total)
	decEq(t, "348", resp.TotalBase)
	decEq(t, "69.6", resp.Items[0].CostoBase)
	decEq(t, "69.6", f.cemento.CAPP, "no stock on hand: CAPP is the incoming base cost")
}

func TestRegistrar_Rechazos(t *testing.T) {
	tests := []struct {
		name    string
		mutar   func(f *fixture, r *dto.RegistrarCompraRequest)
		wantErr error
	}{
		{
			name:    "USD sin tipo de cambio",
			mutar:   func(_ *fixture, r *dto.RegistrarCompraRequest) { r.Moneda = "USD" },
			wantErr: compra.ErrTipoCambio,
		},
		{
			name: "producto repetido",
			mutar: func(_ *fixture, r *dto.RegistrarCompraRequest) {
				r.Items = append(r.Items, r.Items[0])
			},
			wantErr: compra.ErrProductoDuplicado,
		},
		{
			name:    "proveedor desconocido",
			mutar:   func(_ *fixture, r *dto.RegistrarCompraRequest) { r.ProveedorID = uuid.NewString() },
			wantErr: service.ErrProveedorInvalido,
		},
		{
			name: "sucursal desconocida",
			mutar: func(_ *fixture, r *dto.RegistrarCompraRequest) {
				r.Items[0].Distribucion = map[string]int{uuid.NewString(): 2}
			},
			wantErr: service.ErrSucursalInvalida,
		},
		{
			name: "cantidad total cero",
			mutar: func(f *fixture, r *dto.RegistrarCompraRequest) {
				r.Items[0].Distribucion = map[string]int{f.central.ID.String(): 0}
			},
			wantErr: service.ErrCantidadInvalida,
		},
		{
			name: "producto inactivo",
			mutar: func(f *fixture, _ *dto.RegistrarCompraRequest) {
				f.cemento.Activo = false
			},
			wantErr: service.ErrProductoInactivo,
		},
		{
			name:    "sin items",
			mutar:   func(_ *fixture, r *dto.RegistrarCompraRequest) { r.Items = nil },
			wantErr: compra.ErrCompraVacia,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := f.request()
			tt.mutar(f, &req)

			_, err := f.svc.Registrar(context.Background(), f.empresa, req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.compras.compras, "nothing is stored on rejection")
			assert.Empty(t, f.eventos.eventos)
		})
	}
}

func TestRegistrar_ReglaGeneralIncompleta(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Items[0].Reglas = []precios.Regla{f.reglaGeneral("", "10")}

	_, err := f.svc.Registrar(context.Background(), f.empresa, req)

	var reglasErr *service.ReglasInvalidasError
	require.True(t, errors.As(err, &reglasErr))
	assert.False(t, reglasErr.Resultado.Valido)
	assert.Equal(t, precios.MsgRequerido, reglasErr.Resultado.Errores[f.general.ID.String()].GananciaMaxima)
	decEq(t, "50", f.cemento.CAPP)
}

func TestRegistrar_UsaReglaGuardadaSiNoSeEnvia(t *testing.T) {
	f := newFixture()
	max, min := dec("15"), dec("5")
	f.listas.filas[f.cemento.ID] = map[uuid.UUID]model.PrecioProducto{
		f.general.ID: {ProductoID: f.cemento.ID, ListaPrecioID: f.general.ID, GananciaMaxima: &max, GananciaMinima: &min, Precio: dec("65")},
	}
	req := f.request()
	req.Items[0].Reglas = nil

	_, err := f.svc.Registrar(context.Background(), f.empresa, req)
	require.NoError(t, err)
	decEq(t, "75", f.listas.precio(f.cemento.ID, f.general.ID))

	var general *model.HistorialPrecio
	for i := range f.historial.precios {
		if f.historial.precios[i].ListaPrecioID == f.general.ID {
			general = &f.historial.precios[i]
		}
	}
	require.NotNil(t, general)
	decEq(t, "65", general.PrecioAntes)
	decEq(t, "75", general.PrecioDespues)
}

// ── Costos adicionales ────────────────────────────────────────────────────────

// seedCompra stores a registered purchase of two products:
// A: 10 @ 10 (stock 10, CAPP 10) and B: 10 @ 30 (stock 20, CAPP 30).
func seedCompra(f *fixture) (*model.Compra, *model.Producto, *model.Producto) {
	a := &model.Producto{ID: uuid.New(), EmpresaID: f.empresa, Nombre: "Clavos", CAPP: dec("10"), Activo: true}
	b := &model.Producto{ID: uuid.New(), EmpresaID: f.empresa, Nombre: "Alambre", CAPP: dec("30"), Activo: true}
	f.productos.add(a, map[uuid.UUID]int{f.central.ID: 10})
	f.productos.add(b, map[uuid.UUID]int{f.central.ID: 12, f.norte.ID: 8})

	c := &model.Compra{
		EmpresaID:   f.empresa,
		ProveedorID: f.proveedor.ID,
		Folio:       7,
		Moneda:      "BOB",
		TipoPago:    "Credito",
		Items: []model.CompraItem{
			{ProductoID: a.ID, Orden: 0, Cantidad: 10, CostoUnitario: dec("10"), CostoBase: dec("10")},
			{ProductoID: b.ID, Orden: 1, Cantidad: 10, CostoUnitario: dec("30"), CostoBase: dec("30")},
		},
	}
	_ = f.compras.CreateTx(nil, c)
	return c, a, b
}

func poolFlete(monto string, metodo string) dto.AplicarCostosRequest {
	return dto.AplicarCostosRequest{
		Metodo: metodo,
		Costos: []dto.CostoAdicionalRequest{{Concepto: "Flete", Monto: dec(monto)}},
	}
}

func TestAplicarCostos_PorValor(t *testing.T) {
	f := newFixture()
	c, a, b := seedCompra(f)

	resp, err := f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("100", ""))
	require.NoError(t, err)

	assert.Equal(t, "valor", resp.Metodo)
	assert.True(t, resp.Aplicado)
	require.Len(t, resp.Items, 2)
	decEq(t, "25", resp.Items[0].Asignado)
	decEq(t, "75", resp.Items[1].Asignado)
	decEq(t, "12.5", resp.Items[0].CostoAjustado)
	decEq(t, "37.5", resp.Items[1].CostoAjustado)

	// (10*10 + 25)/10 and (20*30 + 75)/20
	decEq(t, "12.5", a.CAPP)
	decEq(t, "33.75", b.CAPP)
	assert.Len(t, f.historial.costos, 2)

	stored := f.compras.compras[c.ID]
	assert.True(t, stored.CostosAplicados)
	require.NotNil(t, stored.MetodoProrrateo)
	assert.Equal(t, "valor", *stored.MetodoProrrateo)
	require.Len(t, stored.Costos, 1)
	decEq(t, "37.5", stored.Items[1].CostoBase)

	assert.Equal(t, []string{"lock:costos:" + c.ID.String()}, f.locker.tomados)
	assert.Equal(t, 1, f.locker.liberado)
	require.Len(t, f.eventos.eventos, 1)
	assert.Equal(t, infra.EventoCostosAplicados, f.eventos.eventos[0].Tipo)
}

func TestAplicarCostos_UnaSolaVez(t *testing.T) {
	f := newFixture()
	c, a, _ := seedCompra(f)

	_, err := f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("100", "cantidad"))
	require.NoError(t, err)
	capp := a.CAPP

	_, err = f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("100", "cantidad"))
	assert.ErrorIs(t, err, compra.ErrCostosYaAplicados)
	assert.True(t, capp.Equal(a.CAPP), "second application must not move CAPP")
	assert.Len(t, f.compras.compras[c.ID].Costos, 1)
	assert.Equal(t, 2, f.locker.liberado)
}

func TestAplicarCostos_ResiduoEnUltimaLinea(t *testing.T) {
	f := newFixture()
	c, _, _ := seedCompra(f)
	c.Items = append(c.Items, model.CompraItem{
		ID: uuid.New(), CompraID: c.ID, ProductoID: f.cemento.ID, Orden: 2, Cantidad: 10, CostoBase: dec("50"),
	})

	resp, err := f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("100", "cantidad"))
	require.NoError(t, err)

	decEq(t, "33.33", resp.Items[0].Asignado)
	decEq(t, "33.33", resp.Items[1].Asignado)
	decEq(t, "33.34", resp.Items[2].Asignado)
}

func TestAplicarCostos_OperacionEnCurso(t *testing.T) {
	f := newFixture()
	c, _, _ := seedCompra(f)
	f.locker.ocupado = true

	_, err := f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("100", ""))
	assert.ErrorIs(t, err, compra.ErrOperacionEnCurso)
	assert.False(t, f.compras.compras[c.ID].CostosAplicados)
}

func TestAplicarCostos_Errores(t *testing.T) {
	f := newFixture()
	c, _, _ := seedCompra(f)

	_, err := f.svc.AplicarCostos(context.Background(), f.empresa, uuid.New(), poolFlete("100", ""))
	assert.ErrorIs(t, err, service.ErrNoEncontrado)

	_, err = f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("100", "peso"))
	assert.ErrorIs(t, err, costeo.ErrAsignacionInvalida)

	_, err = f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("-5", ""))
	assert.ErrorIs(t, err, costeo.ErrAsignacionInvalida)
	assert.False(t, f.compras.compras[c.ID].CostosAplicados)
}

func TestAplicarCostos_SinStockNoMueveCAPP(t *testing.T) {
	f := newFixture()
	c, a, _ := seedCompra(f)
	f.productos.stock[a.ID] = map[uuid.UUID]int{f.central.ID: 0}

	resp, err := f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("100", ""))
	require.NoError(t, err)
	decEq(t, "10", a.CAPP)
	decEq(t, "10", resp.Items[0].CAPPResultante)
	assert.Len(t, f.historial.costos, 1, "only the product with stock gets a history row")
}

func TestPrevisualizarCostos_NoPersiste(t *testing.T) {
	f := newFixture()
	c, a, _ := seedCompra(f)

	resp, err := f.svc.PrevisualizarCostos(context.Background(), f.empresa, c.ID, poolFlete("100", "valor"))
	require.NoError(t, err)

	assert.False(t, resp.Aplicado)
	decEq(t, "25", resp.Items[0].Asignado)
	decEq(t, "12.5", resp.Items[0].CAPPResultante)
	assert.Equal(t, "Clavos", resp.Items[0].Nombre)

	decEq(t, "10", a.CAPP)
	assert.False(t, f.compras.compras[c.ID].CostosAplicados)
	assert.Empty(t, f.historial.costos)
	assert.Empty(t, f.locker.tomados)
}

func TestPrevisualizarCostos_YaAplicados(t *testing.T) {
	f := newFixture()
	c, _, _ := seedCompra(f)
	_, err := f.svc.AplicarCostos(context.Background(), f.empresa, c.ID, poolFlete("10", ""))
	require.NoError(t, err)

	_, err = f.svc.PrevisualizarCostos(context.Background(), f.empresa, c.ID, poolFlete("10", ""))
	assert.ErrorIs(t, err, compra.ErrCostosYaAplicados)
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func TestObtenerYListar(t *testing.T) {
	f := newFixture()
	c, _, _ := seedCompra(f)

	got, err := f.svc.Obtener(context.Background(), f.empresa, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Folio)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Clavos", got.Items[0].Nombre)

	_, err = f.svc.Obtener(context.Background(), uuid.New(), c.ID)
	assert.ErrorIs(t, err, service.ErrNoEncontrado, "other companies cannot see it")

	list, err := f.svc.Listar(context.Background(), f.empresa, dto.CompraFilter{Pendientes: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.Limit)
	assert.Equal(t, 1, list.TotalPages)
}

func TestPlanilla(t *testing.T) {
	f := newFixture()
	c, _, _ := seedCompra(f)

	data, nombre, err := f.svc.Planilla(context.Background(), f.empresa, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "compra-000007-costos.xlsx", nombre)
	assert.NotEmpty(t, data)
}
