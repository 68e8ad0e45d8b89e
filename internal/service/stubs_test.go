package service_test

import (
	"context"
	"sort"
	"time"

	"servivent/internal/dto"
	"servivent/internal/infra"
	"servivent/internal/model"
	"servivent/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Productos / stock ─────────────────────────────────────────────────────────

type stubProductoRepo struct {
	productos map[uuid.UUID]*model.Producto
	stock     map[uuid.UUID]map[uuid.UUID]int // producto -> sucursal -> qty
}

func newStubProductoRepo() *stubProductoRepo {
	return &stubProductoRepo{
		productos: make(map[uuid.UUID]*model.Producto),
		stock:     make(map[uuid.UUID]map[uuid.UUID]int),
	}
}

func (r *stubProductoRepo) add(p *model.Producto, stock map[uuid.UUID]int) {
	r.productos[p.ID] = p
	r.stock[p.ID] = stock
	if r.stock[p.ID] == nil {
		r.stock[p.ID] = make(map[uuid.UUID]int)
	}
}

func (r *stubProductoRepo) FindByID(_ context.Context, empresaID, id uuid.UUID) (*model.Producto, error) {
	p, ok := r.productos[id]
	if !ok || p.EmpresaID != empresaID {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *stubProductoRepo) FindByIDs(_ context.Context, empresaID uuid.UUID, ids []uuid.UUID) ([]model.Producto, error) {
	var out []model.Producto
	for _, id := range ids {
		if p, ok := r.productos[id]; ok && p.EmpresaID == empresaID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubProductoRepo) Stock(_ context.Context, productoID uuid.UUID) ([]model.StockSucursal, error) {
	return r.filas(productoID), nil
}

func (r *stubProductoRepo) FindForUpdateTx(_ *gorm.DB, empresaID, id uuid.UUID) (*model.Producto, error) {
	p, err := r.FindByID(context.Background(), empresaID, id)
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductoRepo) StockForUpdateTx(_ *gorm.DB, productoID uuid.UUID) ([]model.StockSucursal, error) {
	return r.filas(productoID), nil
}

func (r *stubProductoRepo) IncrementarStockTx(_ *gorm.DB, _, productoID, sucursalID uuid.UUID, delta int) error {
	if r.stock[productoID] == nil {
		r.stock[productoID] = make(map[uuid.UUID]int)
	}
	r.stock[productoID][sucursalID] += delta
	return nil
}

func (r *stubProductoRepo) UpdateCAPPTx(_ *gorm.DB, id uuid.UUID, capp decimal.Decimal) error {
	if p, ok := r.productos[id]; ok {
		p.CAPP = capp
	}
	return nil
}

func (r *stubProductoRepo) DB() *gorm.DB { return nil }

func (r *stubProductoRepo) filas(productoID uuid.UUID) []model.StockSucursal {
	var out []model.StockSucursal
	for sid, qty := range r.stock[productoID] {
		out = append(out, model.StockSucursal{ProductoID: productoID, SucursalID: sid, Cantidad: qty})
	}
	return out
}

var _ repository.ProductoRepository = (*stubProductoRepo)(nil)

// ── Sucursales / proveedores ──────────────────────────────────────────────────

type stubSucursalRepo struct{ sucursales []model.Sucursal }

func (r *stubSucursalRepo) ListActivas(_ context.Context, empresaID uuid.UUID) ([]model.Sucursal, error) {
	var out []model.Sucursal
	for _, s := range r.sucursales {
		if s.EmpresaID == empresaID && s.Activa {
			out = append(out, s)
		}
	}
	return out, nil
}

var _ repository.SucursalRepository = (*stubSucursalRepo)(nil)

type stubProveedorRepo struct{ proveedores map[uuid.UUID]*model.Proveedor }

func (r *stubProveedorRepo) FindByID(_ context.Context, empresaID, id uuid.UUID) (*model.Proveedor, error) {
	p, ok := r.proveedores[id]
	if !ok || p.EmpresaID != empresaID || !p.Activo {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

var _ repository.ProveedorRepository = (*stubProveedorRepo)(nil)

// ── Listas de precio ──────────────────────────────────────────────────────────

type stubListaRepo struct {
	listas []model.ListaPrecio
	filas  map[uuid.UUID]map[uuid.UUID]model.PrecioProducto // producto -> lista -> fila
}

func newStubListaRepo(listas ...model.ListaPrecio) *stubListaRepo {
	return &stubListaRepo{listas: listas, filas: make(map[uuid.UUID]map[uuid.UUID]model.PrecioProducto)}
}

func (r *stubListaRepo) ListByEmpresa(_ context.Context, _ uuid.UUID) ([]model.ListaPrecio, error) {
	return r.listas, nil
}

func (r *stubListaRepo) PreciosByProducto(_ context.Context, productoID uuid.UUID) ([]model.PrecioProducto, error) {
	return r.PreciosByProductoTx(nil, productoID)
}

func (r *stubListaRepo) PreciosByProductoTx(_ *gorm.DB, productoID uuid.UUID) ([]model.PrecioProducto, error) {
	var out []model.PrecioProducto
	for _, f := range r.filas[productoID] {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ListaPrecioID.String() < out[j].ListaPrecioID.String() })
	return out, nil
}

func (r *stubListaRepo) UpsertPrecioTx(_ *gorm.DB, p *model.PrecioProducto) error {
	if r.filas[p.ProductoID] == nil {
		r.filas[p.ProductoID] = make(map[uuid.UUID]model.PrecioProducto)
	}
	r.filas[p.ProductoID][p.ListaPrecioID] = *p
	return nil
}

func (r *stubListaRepo) UpdatePrecioTx(_ *gorm.DB, productoID, listaID uuid.UUID, precio decimal.Decimal) error {
	f, ok := r.filas[productoID][listaID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	f.Precio = precio
	r.filas[productoID][listaID] = f
	return nil
}

func (r *stubListaRepo) precio(productoID, listaID uuid.UUID) decimal.Decimal {
	return r.filas[productoID][listaID].Precio
}

var _ repository.ListaPrecioRepository = (*stubListaRepo)(nil)

// ── Historial / movimientos ───────────────────────────────────────────────────

type stubHistorialRepo struct {
	costos  []model.HistorialCosto
	precios []model.HistorialPrecio
}

func (r *stubHistorialRepo) CreateCostoTx(_ *gorm.DB, h *model.HistorialCosto) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	r.costos = append(r.costos, *h)
	return nil
}

func (r *stubHistorialRepo) CreatePrecioTx(_ *gorm.DB, h *model.HistorialPrecio) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	r.precios = append(r.precios, *h)
	return nil
}

func (r *stubHistorialRepo) ListCostosByProducto(_ context.Context, productoID uuid.UUID, _, _ int) ([]model.HistorialCosto, int64, error) {
	var out []model.HistorialCosto
	for _, h := range r.costos {
		if h.ProductoID == productoID {
			out = append(out, h)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubHistorialRepo) ListPreciosByProducto(_ context.Context, productoID uuid.UUID, lista *uuid.UUID, _, _ int) ([]model.HistorialPrecio, int64, error) {
	var out []model.HistorialPrecio
	for _, h := range r.precios {
		if h.ProductoID != productoID || (lista != nil && h.ListaPrecioID != *lista) {
			continue
		}
		out = append(out, h)
	}
	return out, int64(len(out)), nil
}

var _ repository.HistorialRepository = (*stubHistorialRepo)(nil)

type stubMovimientoRepo struct{ movimientos []model.MovimientoStock }

func (r *stubMovimientoRepo) CreateTx(_ *gorm.DB, m *model.MovimientoStock) error {
	m.ID = uuid.New()
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *stubMovimientoRepo) List(_ context.Context, f repository.MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	var out []model.MovimientoStock
	for _, m := range r.movimientos {
		if f.ProductoID != nil && m.ProductoID != *f.ProductoID {
			continue
		}
		if f.SucursalID != nil && m.SucursalID != *f.SucursalID {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

var _ repository.MovimientoStockRepository = (*stubMovimientoRepo)(nil)

// ── Compras ───────────────────────────────────────────────────────────────────

type stubCompraRepo struct {
	compras   map[uuid.UUID]*model.Compra
	productos *stubProductoRepo
	folio     int64
}

func newStubCompraRepo(productos *stubProductoRepo) *stubCompraRepo {
	return &stubCompraRepo{compras: make(map[uuid.UUID]*model.Compra), productos: productos}
}

func (r *stubCompraRepo) NextFolio(_ context.Context, _ *gorm.DB) (int64, error) {
	r.folio++
	return r.folio, nil
}

func (r *stubCompraRepo) CreateTx(_ *gorm.DB, c *model.Compra) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	for i := range c.Items {
		c.Items[i].ID = uuid.New()
		c.Items[i].CompraID = c.ID
		for j := range c.Items[i].Distribuciones {
			c.Items[i].Distribuciones[j].ID = uuid.New()
			c.Items[i].Distribuciones[j].CompraItemID = c.Items[i].ID
		}
	}
	r.compras[c.ID] = c
	return nil
}

// FindByID mimics the preloads: each item carries its product.
func (r *stubCompraRepo) FindByID(_ context.Context, empresaID, id uuid.UUID) (*model.Compra, error) {
	c, ok := r.compras[id]
	if !ok || c.EmpresaID != empresaID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	cp.Items = append([]model.CompraItem(nil), c.Items...)
	for i := range cp.Items {
		cp.Items[i].Producto = r.productos.productos[cp.Items[i].ProductoID]
	}
	return &cp, nil
}

func (r *stubCompraRepo) List(_ context.Context, empresaID uuid.UUID, f dto.CompraFilter) ([]model.Compra, int64, error) {
	var out []model.Compra
	for _, c := range r.compras {
		if c.EmpresaID == empresaID && (!f.Pendientes || !c.CostosAplicados) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Folio > out[j].Folio })
	return out, int64(len(out)), nil
}

func (r *stubCompraRepo) FindForUpdateTx(_ *gorm.DB, empresaID, id uuid.UUID) (*model.Compra, error) {
	return r.FindByID(context.Background(), empresaID, id)
}

func (r *stubCompraRepo) UpdateItemCostoTx(_ *gorm.DB, itemID uuid.UUID, costoBase, asignado decimal.Decimal) error {
	for _, c := range r.compras {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				c.Items[i].CostoBase = costoBase
				c.Items[i].CostoAsignado = asignado
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubCompraRepo) CreateCostosTx(_ *gorm.DB, costos []model.CompraCosto) error {
	for _, co := range costos {
		c := r.compras[co.CompraID]
		c.Costos = append(c.Costos, co)
	}
	return nil
}

func (r *stubCompraRepo) MarcarCostosAplicadosTx(_ *gorm.DB, id uuid.UUID, metodo string, fecha time.Time) error {
	c := r.compras[id]
	c.CostosAplicados = true
	c.MetodoProrrateo = &metodo
	c.FechaCostos = &fecha
	return nil
}

func (r *stubCompraRepo) DB() *gorm.DB { return nil }

var _ repository.CompraRepository = (*stubCompraRepo)(nil)

// ── Infra ─────────────────────────────────────────────────────────────────────

type stubLocker struct {
	ocupado  bool
	tomados  []string
	liberado int
}

func (l *stubLocker) Obtain(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.ocupado {
		return nil, infra.ErrLockNotObtained
	}
	l.tomados = append(l.tomados, key)
	return func() { l.liberado++ }, nil
}

var _ infra.Locker = (*stubLocker)(nil)

type stubPublisher struct{ eventos []infra.Evento }

func (p *stubPublisher) Publish(_ context.Context, e infra.Evento) error {
	p.eventos = append(p.eventos, e)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

var _ infra.EventPublisher = (*stubPublisher)(nil)
