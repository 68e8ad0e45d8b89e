//go:build integration

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v
package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"servivent/internal/compra"
	"servivent/internal/config"
	"servivent/internal/costeo"
	"servivent/internal/dto"
	"servivent/internal/infra"
	"servivent/internal/middleware"
	"servivent/internal/repository"
	"servivent/internal/router"
	"servivent/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/xuri/excelize/v2"
)

const jwtSecret = "test-secret-key"

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	token  string
	demo   *infra.Demo
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("servivent_test"),
		tcPostgres.WithUsername("servivent"),
		tcPostgres.WithPassword("servivent"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		WorkerPoolSize:     1,
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		CacheTTLSeconds:    60,
		JWTSecret:          jwtSecret,
		CORSOrigins:        "*",
		RateLimitPerMinute: 1000,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	demo, err := infra.SeedDemo(db, uuid.New())
	require.NoError(t, err)

	cache := infra.NewCache(rdb, time.Minute)
	worker.StartWorkerPool(ctx, rdb, &worker.WorkerHandlers{
		Precios: worker.NewPreciosWorker(
			repository.NewProductoRepository(db),
			repository.NewListaPrecioRepository(db),
			repository.NewHistorialRepository(db),
			cache,
		),
	}, cfg.WorkerPoolSize)

	srv := httptest.NewServer(router.New(ctx, cfg, router.Deps{DB: db, Redis: rdb}))
	t.Cleanup(srv.Close)

	token, err := middleware.FirmarToken(jwtSecret, "e2e", demo.EmpresaID.String(), middleware.RolCompras, time.Hour)
	require.NoError(t, err)

	return &testEnv{server: srv, token: token, demo: demo}
}

func (e *testEnv) cemento() string   { return e.demo.Productos[0].ID.String() }
func (e *testEnv) fierro() string    { return e.demo.Productos[1].ID.String() }
func (e *testEnv) central() string   { return e.demo.Sucursales[0].ID.String() }
func (e *testEnv) norte() string     { return e.demo.Sucursales[1].ID.String() }
func (e *testEnv) general() string   { return e.demo.Listas[0].ID.String() }
func (e *testEnv) mayorista() string { return e.demo.Listas[1].ID.String() }

// registrar buys 10 cement @ 50 (6 central, 4 norte) and 10 rebar @ 30.
func (e *testEnv) registrar(t *testing.T) dto.CompraResponse {
	t.Helper()
	resp := do(t, e.server, http.MethodPost, "/v1/compras", jsonBody(t, map[string]any{
		"proveedor_id": e.demo.Proveedor.ID.String(),
		"moneda":       "BOB",
		"tipo_pago":    "Credito",
		"items": []map[string]any{
			{
				"producto_id":    e.cemento(),
				"costo_unitario": "50",
				"distribucion":   map[string]int{e.central(): 6, e.norte(): 4},
				"reglas": []map[string]any{
					{"lista_precio_id": e.general(), "es_general": true, "ganancia_maxima": "20", "ganancia_minima": "10"},
				},
			},
			{
				"producto_id":    e.fierro(),
				"costo_unitario": "30",
				"distribucion":   map[string]int{e.central(): 10},
				"reglas": []map[string]any{
					{"lista_precio_id": e.general(), "es_general": true, "ganancia_maxima": "5", "ganancia_minima": "2"},
					{"lista_precio_id": e.mayorista(), "ganancia_maxima": "3", "ganancia_minima": "1"},
				},
			},
		},
	}), e.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var c dto.CompraResponse
	decodeJSON(t, resp, &c)
	return c
}

func (e *testEnv) detalle(t *testing.T, productoID string) dto.DetalleProductoResponse {
	t.Helper()
	resp := do(t, e.server, http.MethodGet, "/v1/productos/"+productoID+"/detalle", nil, e.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var det dto.DetalleProductoResponse
	decodeJSON(t, resp, &det)
	return det
}

// get builds an authenticated request without asserting, for use in
// goroutines and Eventually conditions.
func (e *testEnv) get(path string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	req.Header.Set("Authorization", "Bearer "+e.token)
	return req
}

func precioGeneral(det dto.DetalleProductoResponse) decimal.Decimal {
	for _, r := range det.Reglas {
		if r.EsGeneral {
			return r.PrecioResultante
		}
	}
	return decimal.Zero
}

var flete = map[string]any{
	"metodo": "valor",
	"costos": []map[string]any{{"concepto": "Flete", "monto": "100"}},
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_CompraYCostosAdicionales(t *testing.T) {
	env := setupTestEnv(t)

	// 1. Register the purchase
	c := env.registrar(t)
	assert.True(t, c.Total.Equal(dec("800")))
	require.Len(t, c.Items, 2)

	det := env.detalle(t, env.cemento())
	assert.True(t, det.CAPPActual.Equal(dec("50")))
	assert.Equal(t, 6, det.StockPorSucursal[env.central()])
	assert.Equal(t, 4, det.StockPorSucursal[env.norte()])
	assert.True(t, precioGeneral(det).Equal(dec("70")))

	// 2. Preview does not persist
	resp := do(t, env.server, http.MethodPost, "/v1/compras/"+c.ID+"/costos/preview", jsonBody(t, flete), env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prev dto.CostosResponse
	decodeJSON(t, resp, &prev)
	assert.False(t, prev.Aplicado)
	assert.True(t, env.detalle(t, env.cemento()).CAPPActual.Equal(dec("50")))

	// 3. Apply: by value 500/300 of 800 -> 62.5 and 37.5
	resp = do(t, env.server, http.MethodPost, "/v1/compras/"+c.ID+"/costos", jsonBody(t, flete), env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var aplicado dto.CostosResponse
	decodeJSON(t, resp, &aplicado)
	require.Len(t, aplicado.Items, 2)
	assert.True(t, aplicado.Items[0].Asignado.Equal(dec("62.5")))
	assert.True(t, aplicado.Items[1].Asignado.Equal(dec("37.5")))
	assert.True(t, aplicado.Items[0].CAPPResultante.Equal(dec("56.25")))

	// 4. Prices follow the new CAPP once the worker runs
	assert.Eventually(t, func() bool {
		resp, err := env.server.Client().Do(env.get("/v1/productos/" + env.cemento() + "/detalle"))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var det dto.DetalleProductoResponse
		if json.NewDecoder(resp.Body).Decode(&det) != nil {
			return false
		}
		return precioGeneral(det).Equal(dec("76.25"))
	}, 15*time.Second, 200*time.Millisecond)

	// 5. Applying twice is rejected
	resp = do(t, env.server, http.MethodPost, "/v1/compras/"+c.ID+"/costos", jsonBody(t, flete), env.token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// 6. History shows the purchase and the cost application
	resp = do(t, env.server, http.MethodGet, "/v1/productos/"+env.cemento()+"/historial-costos", nil, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist dto.HistorialCostoListResponse
	decodeJSON(t, resp, &hist)
	assert.Equal(t, int64(2), hist.Total)

	// 7. Spreadsheet
	resp = do(t, env.server, http.MethodGet, "/v1/compras/"+c.ID+"/costos/planilla", nil, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	titulo, err := f.GetCellValue("Costos", "A1")
	require.NoError(t, err)
	assert.Contains(t, titulo, "Compra #")
}

func TestE2E_AplicarCostosConcurrente(t *testing.T) {
	env := setupTestEnv(t)
	c := env.registrar(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses []int
	)
	payload, err := json.Marshal(flete)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/compras/"+c.ID+"/costos", bytes.NewReader(payload))
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+env.token)
			resp, err := env.server.Client().Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			mu.Lock()
			statuses = append(statuses, resp.StatusCode)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, statuses)
	assert.True(t, env.detalle(t, env.cemento()).CAPPActual.Equal(dec("56.25")), "the pool is applied exactly once")
}

func TestE2E_AsistenteContraElBackend(t *testing.T) {
	env := setupTestEnv(t)
	env.registrar(t)

	client := infra.NewBackendClient(env.server.URL, env.token, 10*time.Second, nil)
	a := compra.NuevoAsistente(client, nil, nil)

	res, err := a.EjecutarPlan(context.Background(), compra.Plan{
		Cabecera: compra.Cabecera{
			ProveedorID: env.demo.Proveedor.ID.String(),
			Moneda:      costeo.MonedaBOB,
			TipoPago:    compra.PagoContado,
			Fecha:       time.Now(),
		},
		Lineas: []compra.PlanLinea{{
			ProductoID:    env.fierro(),
			CostoUnitario: dec("40"),
			Distribucion:  map[string]int{env.norte(): 10},
		}},
		Costos: &compra.PlanCostos{
			Metodo: costeo.MetodoPorCantidad,
			Pool:   []costeo.CostoAdicional{{Concepto: "Descarga", Monto: dec("20")}},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.CompraID)
	require.NotNil(t, res.Costos)
	assert.True(t, res.Costos.Total.Equal(dec("20")))

	// (10*30 + 10*40)/20 = 35, then +20 over 20 units on hand
	assert.True(t, env.detalle(t, env.fierro()).CAPPActual.Equal(dec("36")))

	_, err = a.AplicarCostos(context.Background(), res.CompraID, costeo.MetodoPorCantidad, nil)
	assert.ErrorIs(t, err, compra.ErrCostosYaAplicados)
}

func TestE2E_SinTokenYRoles(t *testing.T) {
	env := setupTestEnv(t)

	resp := do(t, env.server, http.MethodGet, "/v1/compras", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	consulta, err := middleware.FirmarToken(jwtSecret, "lector", env.demo.EmpresaID.String(), middleware.RolConsulta, time.Hour)
	require.NoError(t, err)
	resp = do(t, env.server, http.MethodPost, "/v1/compras", jsonBody(t, map[string]any{}), consulta)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
