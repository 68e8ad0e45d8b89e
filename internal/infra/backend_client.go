package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"servivent/internal/apierror"
	"servivent/internal/compra"
	"servivent/internal/costeo"
	"servivent/internal/dto"
)

// BackendClient talks to the purchasing API on behalf of the wizard. It
// implements compra.Backend. Transport failures and 5xx responses count
// against the circuit breaker; 4xx answers are the backend rejecting the
// request and are returned as-is.
type BackendClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

var _ compra.Backend = (*BackendClient)(nil)

// BackendError carries the backend's own message so it can be shown verbatim.
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string { return e.Detail }

func NewBackendClient(baseURL, token string, timeout time.Duration, breaker *CircuitBreaker) *BackendClient {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCBConfig())
	}
	return &BackendClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// DetalleProducto fetches get_product_details.
func (c *BackendClient) DetalleProducto(ctx context.Context, productoID string) (*compra.DetalleProducto, error) {
	var resp dto.DetalleProductoResponse
	if err := c.do(ctx, http.MethodGet, "/v1/productos/"+productoID+"/detalle", nil, &resp); err != nil {
		return nil, err
	}
	return &compra.DetalleProducto{
		ProductoID:       resp.ProductoID,
		Nombre:           resp.Nombre,
		CAPPActual:       resp.CAPPActual,
		StockPorSucursal: resp.StockPorSucursal,
		Reglas:           resp.Reglas,
	}, nil
}

// RegistrarCompra submits the draft and returns the new purchase ID.
func (c *BackendClient) RegistrarCompra(ctx context.Context, cab compra.Cabecera, lineas []compra.Linea) (string, error) {
	req := dto.RegistrarCompraRequest{
		ProveedorID: cab.ProveedorID,
		Moneda:      string(cab.Moneda),
		TipoCambio:  cab.TipoCambio,
		TipoPago:    string(cab.TipoPago),
	}
	if !cab.Fecha.IsZero() {
		fecha := cab.Fecha
		req.Fecha = &fecha
	}
	if cab.Referencia != "" {
		ref := cab.Referencia
		req.Referencia = &ref
	}
	for _, l := range lineas {
		req.Items = append(req.Items, dto.CompraItemRequest{
			ProductoID:    l.ProductoID,
			CostoUnitario: l.CostoUnitario,
			Distribucion:  l.Distribucion,
			Reglas:        l.Reglas,
		})
	}

	var resp dto.CompraResponse
	if err := c.do(ctx, http.MethodPost, "/v1/compras", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// AplicarCostos calls aplicar_costos_adicionales_a_compra. A 409 is mapped to
// compra.ErrCostosYaAplicados.
func (c *BackendClient) AplicarCostos(ctx context.Context, compraID string, metodo costeo.Metodo, pool []costeo.CostoAdicional) (*compra.ResultadoCostos, error) {
	req := dto.AplicarCostosRequest{Metodo: string(metodo)}
	for _, p := range pool {
		req.Costos = append(req.Costos, dto.CostoAdicionalRequest{Concepto: p.Concepto, Monto: p.Monto})
	}

	var resp dto.CostosResponse
	err := c.do(ctx, http.MethodPost, "/v1/compras/"+compraID+"/costos", req, &resp)
	var be *BackendError
	if errors.As(err, &be) && be.Status == http.StatusConflict {
		return nil, fmt.Errorf("%w: %s", compra.ErrCostosYaAplicados, be.Detail)
	}
	if err != nil {
		return nil, err
	}

	out := &compra.ResultadoCostos{
		CompraID: resp.CompraID,
		Metodo:   costeo.Metodo(resp.Metodo),
		Total:    resp.Total,
	}
	for _, it := range resp.Items {
		out.Items = append(out.Items, compra.ItemCosto{
			ProductoID:     it.ProductoID,
			Cantidad:       it.Cantidad,
			CostoAnterior:  it.CostoAnterior,
			Asignado:       it.Asignado,
			CostoAjustado:  it.CostoAjustado,
			CAPPResultante: it.CAPPResultante,
		})
	}
	return out, nil
}

func (c *BackendClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rechazo error
	err := c.breaker.Execute(func() error {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("backend: marshal payload: %w", err)
			}
			reader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("backend: create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("backend: unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return decodeBackendError(resp)
		}
		if resp.StatusCode >= 400 {
			rechazo = decodeBackendError(resp)
			return nil
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("backend: decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return rechazo
}

func decodeBackendError(resp *http.Response) error {
	var env apierror.APIError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &env) != nil || env.Detail == "" {
		env.Detail = fmt.Sprintf("backend returned %d", resp.StatusCode)
	}
	return &BackendError{Status: resp.StatusCode, Detail: env.Detail}
}
