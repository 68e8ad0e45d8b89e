package service

import (
	"context"
	"errors"
	"fmt"

	"servivent/internal/dto"
	"servivent/internal/infra"
	"servivent/internal/model"
	"servivent/internal/precios"
	"servivent/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductoService serves what the purchase wizard reads about a product.
type ProductoService interface {
	// Detalle is get_product_details: CAPP, stock per branch and the gain
	// rule of every price list of the company.
	Detalle(ctx context.Context, empresaID, productoID uuid.UUID) (*dto.DetalleProductoResponse, error)
	HistorialCostos(ctx context.Context, empresaID, productoID uuid.UUID, filter dto.PaginaFilter) (*dto.HistorialCostoListResponse, error)
	HistorialPrecios(ctx context.Context, empresaID, productoID uuid.UUID, filter dto.PaginaFilter) (*dto.HistorialPrecioListResponse, error)
	Movimientos(ctx context.Context, empresaID, productoID uuid.UUID, filter dto.PaginaFilter) (*dto.MovimientoStockListResponse, error)
	ValidarReglas(req dto.ValidarReglasRequest) dto.ValidarReglasResponse
}

type productoService struct {
	repo        repository.ProductoRepository
	sucursales  repository.SucursalRepository
	listas      repository.ListaPrecioRepository
	historial   repository.HistorialRepository
	movimientos repository.MovimientoStockRepository
	cache       *infra.Cache
}

func NewProductoService(
	repo repository.ProductoRepository,
	sucursales repository.SucursalRepository,
	listas repository.ListaPrecioRepository,
	historial repository.HistorialRepository,
	movimientos repository.MovimientoStockRepository,
	cache *infra.Cache,
) ProductoService {
	return &productoService{
		repo:        repo,
		sucursales:  sucursales,
		listas:      listas,
		historial:   historial,
		movimientos: movimientos,
		cache:       cache,
	}
}

func (s *productoService) Detalle(ctx context.Context, empresaID, productoID uuid.UUID) (*dto.DetalleProductoResponse, error) {
	key := infra.DetalleCacheKey(empresaID.String(), productoID.String())
	var cached dto.DetalleProductoResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := s.findProducto(ctx, empresaID, productoID)
	if err != nil {
		return nil, err
	}
	stock, err := s.repo.Stock(ctx, productoID)
	if err != nil {
		return nil, fmt.Errorf("stock de %s: %w", p.Nombre, err)
	}
	sucursales, err := s.sucursales.ListActivas(ctx, empresaID)
	if err != nil {
		return nil, fmt.Errorf("sucursales: %w", err)
	}
	listas, err := s.listas.ListByEmpresa(ctx, empresaID)
	if err != nil {
		return nil, fmt.Errorf("listas de precio: %w", err)
	}
	filas, err := s.listas.PreciosByProducto(ctx, productoID)
	if err != nil {
		return nil, fmt.Errorf("precios de %s: %w", p.Nombre, err)
	}

	resp := &dto.DetalleProductoResponse{
		ProductoID:       p.ID.String(),
		SKU:              p.SKU,
		Nombre:           p.Nombre,
		CAPPActual:       p.CAPP,
		StockPorSucursal: make(map[string]int, len(sucursales)),
		Sucursales:       make([]dto.SucursalStock, 0, len(sucursales)),
		Reglas:           reglasDeProducto(listas, filas),
		MargenPct:        make(map[string]decimal.Decimal),
	}
	for _, r := range resp.Reglas {
		if r.PrecioResultante.IsPositive() {
			resp.MargenPct[r.ListaPrecioID] = precios.Margen(p.CAPP, r.PrecioResultante)
		}
	}

	// Every active branch is listed, with zero when the product never
	// reached it.
	porSucursal := make(map[uuid.UUID]int, len(stock))
	for _, st := range stock {
		porSucursal[st.SucursalID] = st.Cantidad
	}
	for _, suc := range sucursales {
		qty := porSucursal[suc.ID]
		resp.StockPorSucursal[suc.ID.String()] = qty
		resp.Sucursales = append(resp.Sucursales, dto.SucursalStock{
			SucursalID: suc.ID.String(),
			Nombre:     suc.Nombre,
			Cantidad:   qty,
		})
	}

	s.cache.Set(ctx, key, resp)
	return resp, nil
}

// reglasDeProducto returns one rule per price list in list order. Lists the
// product has no price in yet come back blank.
func reglasDeProducto(listas []model.ListaPrecio, filas []model.PrecioProducto) []precios.Regla {
	porLista := make(map[uuid.UUID]model.PrecioProducto, len(filas))
	for _, f := range filas {
		porLista[f.ListaPrecioID] = f
	}
	reglas := make([]precios.Regla, 0, len(listas))
	for _, l := range listas {
		if f, ok := porLista[l.ID]; ok {
			reglas = append(reglas, f.Regla(l))
			continue
		}
		reglas = append(reglas, model.ReglaVacia(l))
	}
	return reglas
}

func (s *productoService) HistorialCostos(ctx context.Context, empresaID, productoID uuid.UUID, filter dto.PaginaFilter) (*dto.HistorialCostoListResponse, error) {
	if _, err := s.findProducto(ctx, empresaID, productoID); err != nil {
		return nil, err
	}
	rows, total, err := s.historial.ListCostosByProducto(ctx, productoID, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}

	resp := &dto.HistorialCostoListResponse{
		Data:       make([]dto.HistorialCostoResponse, 0, len(rows)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for _, h := range rows {
		item := dto.HistorialCostoResponse{
			ID:          h.ID.String(),
			CAPPAntes:   h.CAPPAntes,
			CAPPDespues: h.CAPPDespues,
			Motivo:      h.Motivo,
			CreatedAt:   h.CreatedAt,
		}
		if h.CompraID != nil {
			id := h.CompraID.String()
			item.CompraID = &id
		}
		resp.Data = append(resp.Data, item)
	}
	return resp, nil
}

func (s *productoService) HistorialPrecios(ctx context.Context, empresaID, productoID uuid.UUID, filter dto.PaginaFilter) (*dto.HistorialPrecioListResponse, error) {
	if _, err := s.findProducto(ctx, empresaID, productoID); err != nil {
		return nil, err
	}
	var lista *uuid.UUID
	if filter.ListaPrecioID != "" {
		id, err := uuid.Parse(filter.ListaPrecioID)
		if err != nil {
			return nil, fmt.Errorf("lista_precio_id: %w", ErrFiltroInvalido)
		}
		lista = &id
	}
	rows, total, err := s.historial.ListPreciosByProducto(ctx, productoID, lista, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}

	resp := &dto.HistorialPrecioListResponse{
		Data:       make([]dto.HistorialPrecioResponse, 0, len(rows)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for _, h := range rows {
		item := dto.HistorialPrecioResponse{
			ID:            h.ID.String(),
			ListaPrecioID: h.ListaPrecioID.String(),
			PrecioAntes:   h.PrecioAntes,
			PrecioDespues: h.PrecioDespues,
			Motivo:        h.Motivo,
			CreatedAt:     h.CreatedAt,
		}
		if h.ListaPrecio != nil {
			item.Lista = h.ListaPrecio.Nombre
		}
		if h.CompraID != nil {
			id := h.CompraID.String()
			item.CompraID = &id
		}
		resp.Data = append(resp.Data, item)
	}
	return resp, nil
}

func (s *productoService) Movimientos(ctx context.Context, empresaID, productoID uuid.UUID, filter dto.PaginaFilter) (*dto.MovimientoStockListResponse, error) {
	f := repository.MovimientoStockFilter{
		EmpresaID:  empresaID,
		ProductoID: &productoID,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}
	if filter.SucursalID != "" {
		sid, err := uuid.Parse(filter.SucursalID)
		if err != nil {
			return nil, fmt.Errorf("sucursal_id: %w", ErrFiltroInvalido)
		}
		f.SucursalID = &sid
	}
	rows, total, err := s.movimientos.List(ctx, f)
	if err != nil {
		return nil, err
	}

	resp := &dto.MovimientoStockListResponse{
		Data:       make([]dto.MovimientoStockResponse, 0, len(rows)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for _, m := range rows {
		item := dto.MovimientoStockResponse{
			ID:            m.ID.String(),
			SucursalID:    m.SucursalID.String(),
			Tipo:          m.Tipo,
			Cantidad:      m.Cantidad,
			StockAnterior: m.StockAnterior,
			StockNuevo:    m.StockNuevo,
			Motivo:        m.Motivo,
			CreatedAt:     m.CreatedAt,
		}
		if m.ReferenciaID != nil {
			ref := m.ReferenciaID.String()
			item.ReferenciaID = &ref
		}
		resp.Data = append(resp.Data, item)
	}
	return resp, nil
}

// ValidarReglas runs the rule validator without touching storage. With a CAPP
// the resulting prices come back as well.
func (s *productoService) ValidarReglas(req dto.ValidarReglasRequest) dto.ValidarReglasResponse {
	resp := dto.ValidarReglasResponse{Resultado: precios.Validar(req.Reglas)}
	if req.CAPP != nil {
		resp.Reglas = redondearPrecios(precios.Recalcular(req.Reglas, *req.CAPP))
	}
	return resp
}

func (s *productoService) findProducto(ctx context.Context, empresaID, productoID uuid.UUID) (*model.Producto, error) {
	p, err := s.repo.FindByID(ctx, empresaID, productoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("producto %s: %w", productoID, ErrNoEncontrado)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func redondearPrecios(reglas []precios.Regla) []precios.Regla {
	for i := range reglas {
		reglas[i].PrecioResultante = reglas[i].PrecioResultante.Round(2)
	}
	return reglas
}
