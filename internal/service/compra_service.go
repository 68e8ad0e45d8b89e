package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"servivent/internal/compra"
	"servivent/internal/costeo"
	"servivent/internal/dto"
	"servivent/internal/infra"
	"servivent/internal/model"
	"servivent/internal/precios"
	"servivent/internal/repository"
	"servivent/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// lockCostosTTL bounds how long one cost application may hold the purchase.
const lockCostosTTL = 30 * time.Second

type CompraService interface {
	Registrar(ctx context.Context, empresaID uuid.UUID, req dto.RegistrarCompraRequest) (*dto.CompraResponse, error)
	Obtener(ctx context.Context, empresaID, id uuid.UUID) (*dto.CompraResponse, error)
	Listar(ctx context.Context, empresaID uuid.UUID, filter dto.CompraFilter) (*dto.CompraListResponse, error)
	PrevisualizarCostos(ctx context.Context, empresaID, id uuid.UUID, req dto.AplicarCostosRequest) (*dto.CostosResponse, error)
	AplicarCostos(ctx context.Context, empresaID, id uuid.UUID, req dto.AplicarCostosRequest) (*dto.CostosResponse, error)
	Planilla(ctx context.Context, empresaID, id uuid.UUID) ([]byte, string, error)
}

type compraService struct {
	repo        repository.CompraRepository
	productos   repository.ProductoRepository
	proveedores repository.ProveedorRepository
	sucursales  repository.SucursalRepository
	listas      repository.ListaPrecioRepository
	historial   repository.HistorialRepository
	movimientos repository.MovimientoStockRepository
	cache       *infra.Cache
	locker      infra.Locker
	eventos     infra.EventPublisher
	dispatcher  *worker.Dispatcher
}

// CompraDeps groups the collaborators of the purchase service. Cache, Locker,
// Eventos and Dispatcher are optional.
type CompraDeps struct {
	Compras     repository.CompraRepository
	Productos   repository.ProductoRepository
	Proveedores repository.ProveedorRepository
	Sucursales  repository.SucursalRepository
	Listas      repository.ListaPrecioRepository
	Historial   repository.HistorialRepository
	Movimientos repository.MovimientoStockRepository
	Cache       *infra.Cache
	Locker      infra.Locker
	Eventos     infra.EventPublisher
	Dispatcher  *worker.Dispatcher
}

func NewCompraService(d CompraDeps) CompraService {
	eventos := d.Eventos
	if eventos == nil {
		eventos = infra.NopPublisher{}
	}
	return &compraService{
		repo:        d.Compras,
		productos:   d.Productos,
		proveedores: d.Proveedores,
		sucursales:  d.Sucursales,
		listas:      d.Listas,
		historial:   d.Historial,
		movimientos: d.Movimientos,
		cache:       d.Cache,
		locker:      d.Locker,
		eventos:     eventos,
		dispatcher:  d.Dispatcher,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── Registrar ─────────────────────────────────────────────────────────────────
// registrar_compra, one ACID transaction:
//   1. Validate header, supplier, branches, products and price rules (outside TX)
//   2. BEGIN TX: nextval folio, create compra + items + distribution
//   3. Per product: lock row and stock, blend CAPP, add stock per branch,
//      record movements and cost history, store rules and resulting prices
//   4. COMMIT
//   5. Invalidate cached details, publish compra.registrada

type lineaResuelta struct {
	producto     *model.Producto
	costo        decimal.Decimal
	costoBase    decimal.Decimal
	cantidad     int
	distribucion []model.CompraDistribucion
	reglas       []precios.Regla
}

func (s *compraService) Registrar(ctx context.Context, empresaID uuid.UUID, req dto.RegistrarCompraRequest) (*dto.CompraResponse, error) {
	if len(req.Items) == 0 {
		return nil, compra.ErrCompraVacia
	}
	moneda, err := costeo.ParseMoneda(req.Moneda)
	if err != nil {
		return nil, err
	}
	tipoCambio := req.TipoCambio
	if moneda == costeo.MonedaUSD && !tipoCambio.IsPositive() {
		return nil, compra.ErrTipoCambio
	}
	if moneda == costeo.MonedaBOB {
		tipoCambio = decimal.Zero
	}

	proveedorID, err := uuid.Parse(req.ProveedorID)
	if err != nil {
		return nil, ErrProveedorInvalido
	}
	proveedor, err := s.proveedores.FindByID(ctx, empresaID, proveedorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProveedorInvalido
	}
	if err != nil {
		return nil, err
	}

	lineas, err := s.resolverLineas(ctx, empresaID, moneda, tipoCambio, req.Items)
	if err != nil {
		return nil, err
	}

	fecha := time.Now()
	if req.Fecha != nil {
		fecha = *req.Fecha
	}
	c := model.Compra{
		EmpresaID:   empresaID,
		ProveedorID: proveedor.ID,
		Fecha:       fecha,
		Referencia:  req.Referencia,
		Moneda:      string(moneda),
		TipoCambio:  tipoCambio,
		TipoPago:    req.TipoPago,
		Total:       decimal.Zero,
		TotalBase:   decimal.Zero,
	}
	for i, l := range lineas {
		qty := decimal.NewFromInt(int64(l.cantidad))
		c.Total = c.Total.Add(l.costo.Mul(qty))
		c.TotalBase = c.TotalBase.Add(l.costoBase.Mul(qty))
		c.Items = append(c.Items, model.CompraItem{
			ProductoID:     l.producto.ID,
			Orden:          i,
			Cantidad:       l.cantidad,
			CostoUnitario:  l.costo,
			CostoBase:      l.costoBase,
			CostoAsignado:  decimal.Zero,
			Distribuciones: l.distribucion,
		})
	}
	c.Total = c.Total.Round(2)
	c.TotalBase = c.TotalBase.Round(2)

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		folio, err := s.repo.NextFolio(ctx, tx)
		if err != nil {
			return err
		}
		c.Folio = folio
		if err := s.repo.CreateTx(tx, &c); err != nil {
			return err
		}
		for _, l := range lineas {
			if err := s.ingresarLinea(tx, &c, l); err != nil {
				return fmt.Errorf("producto %s: %w", l.producto.Nombre, err)
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	ids := make([]uuid.UUID, 0, len(lineas))
	nombres := make(map[uuid.UUID]string, len(lineas))
	for _, l := range lineas {
		ids = append(ids, l.producto.ID)
		nombres[l.producto.ID] = l.producto.Nombre
	}
	s.invalidarDetalles(ctx, empresaID, ids)
	s.publicar(ctx, infra.Evento{
		Tipo:      infra.EventoCompraRegistrada,
		EmpresaID: empresaID.String(),
		CompraID:  c.ID.String(),
		Datos:     map[string]interface{}{"folio": c.Folio, "total_base": c.TotalBase},
	})

	log.Info().
		Str("compra_id", c.ID.String()).
		Int64("folio", c.Folio).
		Int("items", len(c.Items)).
		Msg("compra registrada")

	c.Proveedor = proveedor
	resp := compraToResponse(&c)
	for i := range resp.Items {
		pid, _ := uuid.Parse(resp.Items[i].ProductoID)
		resp.Items[i].Nombre = nombres[pid]
	}
	return resp, nil
}

// resolverLineas validates every request line against the catalog, the active
// branches and the company's price lists.
func (s *compraService) resolverLineas(
	ctx context.Context,
	empresaID uuid.UUID,
	moneda costeo.Moneda,
	tipoCambio decimal.Decimal,
	items []dto.CompraItemRequest,
) ([]lineaResuelta, error) {
	ids := make([]uuid.UUID, 0, len(items))
	vistos := make(map[uuid.UUID]struct{}, len(items))
	for _, it := range items {
		pid, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrProductoInactivo, it.ProductoID)
		}
		if _, dup := vistos[pid]; dup {
			return nil, fmt.Errorf("%w: %s", compra.ErrProductoDuplicado, it.ProductoID)
		}
		vistos[pid] = struct{}{}
		ids = append(ids, pid)
	}

	productos, err := s.productos.FindByIDs(ctx, empresaID, ids)
	if err != nil {
		return nil, err
	}
	porID := make(map[uuid.UUID]*model.Producto, len(productos))
	for i := range productos {
		porID[productos[i].ID] = &productos[i]
	}

	sucursales, err := s.sucursales.ListActivas(ctx, empresaID)
	if err != nil {
		return nil, err
	}
	activas := make(map[uuid.UUID]struct{}, len(sucursales))
	for _, suc := range sucursales {
		activas[suc.ID] = struct{}{}
	}

	listas, err := s.listas.ListByEmpresa(ctx, empresaID)
	if err != nil {
		return nil, err
	}

	lineas := make([]lineaResuelta, 0, len(items))
	for i, it := range items {
		p, ok := porID[ids[i]]
		if !ok || !p.Activo {
			return nil, fmt.Errorf("%w: %s", ErrProductoInactivo, it.ProductoID)
		}
		if !it.CostoUnitario.IsPositive() {
			return nil, fmt.Errorf("%w: costo unitario de %s", compra.ErrLineaNoConfirmada, p.Nombre)
		}

		dist, total, err := resolverDistribucion(it.Distribucion, activas)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Nombre, err)
		}

		guardadas, err := s.listas.PreciosByProducto(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		reglas := combinarReglas(listas, guardadas, it.Reglas)
		if res := precios.Validar(reglas); !res.Valido {
			return nil, &ReglasInvalidasError{ProductoID: p.ID.String(), Resultado: res}
		}

		lineas = append(lineas, lineaResuelta{
			producto:     p,
			costo:        it.CostoUnitario,
			costoBase:    costeo.CostoEnMonedaBase(it.CostoUnitario, moneda, tipoCambio),
			cantidad:     total,
			distribucion: dist,
			reglas:       reglas,
		})
	}
	return lineas, nil
}

// resolverDistribucion drops zero entries and returns the rest ordered by
// branch so stock rows are always locked in the same order.
func resolverDistribucion(in map[string]int, activas map[uuid.UUID]struct{}) ([]model.CompraDistribucion, int, error) {
	dist := make([]model.CompraDistribucion, 0, len(in))
	total := 0
	for raw, qty := range in {
		if qty < 0 {
			return nil, 0, ErrCantidadInvalida
		}
		if qty == 0 {
			continue
		}
		sid, err := uuid.Parse(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s", ErrSucursalInvalida, raw)
		}
		if _, ok := activas[sid]; !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrSucursalInvalida, raw)
		}
		dist = append(dist, model.CompraDistribucion{SucursalID: sid, Cantidad: qty})
		total += qty
	}
	if total <= 0 {
		return nil, 0, ErrCantidadInvalida
	}
	sort.Slice(dist, func(i, j int) bool { return dist[i].SucursalID.String() < dist[j].SucursalID.String() })
	return dist, total, nil
}

// combinarReglas builds one rule per company list: the one sent with the
// line, else the stored one, else blank.
func combinarReglas(listas []model.ListaPrecio, guardadas []model.PrecioProducto, enviadas []precios.Regla) []precios.Regla {
	porLista := make(map[string]precios.Regla, len(enviadas))
	for _, r := range enviadas {
		porLista[r.ListaPrecioID] = r
	}
	base := reglasDeProducto(listas, guardadas)
	for i, l := range listas {
		if r, ok := porLista[l.ID.String()]; ok {
			base[i].GananciaMaxima = r.GananciaMaxima
			base[i].GananciaMinima = r.GananciaMinima
		}
	}
	return base
}

func (s *compraService) ingresarLinea(tx *gorm.DB, c *model.Compra, l lineaResuelta) error {
	prod, err := s.productos.FindForUpdateTx(tx, c.EmpresaID, l.producto.ID)
	if err != nil {
		return err
	}
	stock, err := s.productos.StockForUpdateTx(tx, prod.ID)
	if err != nil {
		return err
	}
	porSucursal := make(map[uuid.UUID]int, len(stock))
	existente := 0
	for _, st := range stock {
		porSucursal[st.SucursalID] = st.Cantidad
		existente += st.Cantidad
	}

	cappAntes := prod.CAPP
	nuevoCAPP := costeo.CAPP(
		decimal.NewFromInt(int64(existente)),
		cappAntes,
		decimal.NewFromInt(int64(l.cantidad)),
		l.costoBase,
	).Round(4)

	for _, d := range l.distribucion {
		if err := s.productos.IncrementarStockTx(tx, c.EmpresaID, prod.ID, d.SucursalID, d.Cantidad); err != nil {
			return err
		}
		antes := porSucursal[d.SucursalID]
		if err := s.movimientos.CreateTx(tx, &model.MovimientoStock{
			EmpresaID:     c.EmpresaID,
			ProductoID:    prod.ID,
			SucursalID:    d.SucursalID,
			Tipo:          "compra",
			Cantidad:      d.Cantidad,
			StockAnterior: antes,
			StockNuevo:    antes + d.Cantidad,
			Motivo:        fmt.Sprintf("Compra #%d", c.Folio),
			ReferenciaID:  &c.ID,
		}); err != nil {
			return err
		}
	}

	if err := s.productos.UpdateCAPPTx(tx, prod.ID, nuevoCAPP); err != nil {
		return err
	}
	if err := s.historial.CreateCostoTx(tx, &model.HistorialCosto{
		EmpresaID:   c.EmpresaID,
		ProductoID:  prod.ID,
		CompraID:    &c.ID,
		CAPPAntes:   cappAntes,
		CAPPDespues: nuevoCAPP,
		Motivo:      model.MotivoCompra,
	}); err != nil {
		return err
	}

	return s.guardarPrecios(tx, c, prod.ID, nuevoCAPP, l.reglas)
}

// guardarPrecios stores each list's rule with price = CAPP + maximum gain and
// records the lists whose price moved.
func (s *compraService) guardarPrecios(tx *gorm.DB, c *model.Compra, productoID uuid.UUID, capp decimal.Decimal, reglas []precios.Regla) error {
	for _, r := range precios.Recalcular(reglas, capp) {
		listaID, err := uuid.Parse(r.ListaPrecioID)
		if err != nil {
			return err
		}
		precio := r.PrecioResultante.Round(2)
		if err := s.listas.UpsertPrecioTx(tx, &model.PrecioProducto{
			ProductoID:     productoID,
			ListaPrecioID:  listaID,
			EmpresaID:      c.EmpresaID,
			GananciaMaxima: model.GananciaPtr(r.GananciaMaxima),
			GananciaMinima: model.GananciaPtr(r.GananciaMinima),
			Precio:         precio,
		}); err != nil {
			return err
		}
		// reglas carries the stored price of lists that already had one
		if precio.Equal(reglaPrecio(reglas, r.ListaPrecioID)) {
			continue
		}
		if err := s.historial.CreatePrecioTx(tx, &model.HistorialPrecio{
			EmpresaID:     c.EmpresaID,
			ProductoID:    productoID,
			ListaPrecioID: listaID,
			CompraID:      &c.ID,
			PrecioAntes:   reglaPrecio(reglas, r.ListaPrecioID),
			PrecioDespues: precio,
			Motivo:        model.MotivoCompra,
		}); err != nil {
			return err
		}
	}
	return nil
}

func reglaPrecio(reglas []precios.Regla, listaID string) decimal.Decimal {
	for _, r := range reglas {
		if r.ListaPrecioID == listaID {
			return r.PrecioResultante
		}
	}
	return decimal.Zero
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *compraService) Obtener(ctx context.Context, empresaID, id uuid.UUID) (*dto.CompraResponse, error) {
	c, err := s.findCompra(ctx, empresaID, id)
	if err != nil {
		return nil, err
	}
	return compraToResponse(c), nil
}

func (s *compraService) Listar(ctx context.Context, empresaID uuid.UUID, filter dto.CompraFilter) (*dto.CompraListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	compras, total, err := s.repo.List(ctx, empresaID, filter)
	if err != nil {
		return nil, err
	}
	resp := &dto.CompraListResponse{
		Data:       make([]dto.CompraResponse, 0, len(compras)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for i := range compras {
		resp.Data = append(resp.Data, *compraToResponse(&compras[i]))
	}
	return resp, nil
}

func (s *compraService) findCompra(ctx context.Context, empresaID, id uuid.UUID) (*model.Compra, error) {
	c, err := s.repo.FindByID(ctx, empresaID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("compra %s: %w", id, ErrNoEncontrado)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ── Costos adicionales ────────────────────────────────────────────────────────

func poolDe(req dto.AplicarCostosRequest) []costeo.CostoAdicional {
	pool := make([]costeo.CostoAdicional, 0, len(req.Costos))
	for _, c := range req.Costos {
		pool = append(pool, costeo.CostoAdicional{Concepto: c.Concepto, Monto: c.Monto})
	}
	return pool
}

// asignar splits the pool over the items in input order, weighting by the
// current base cost.
func asignar(c *model.Compra, req dto.AplicarCostosRequest) (*costeo.Resultado, error) {
	metodo, err := costeo.ParseMetodo(req.Metodo)
	if err != nil {
		return nil, err
	}
	lineas := make([]costeo.LineaCosto, 0, len(c.Items))
	for _, it := range c.Items {
		lineas = append(lineas, costeo.LineaCosto{
			ID:            it.ID.String(),
			Cantidad:      decimal.NewFromInt(int64(it.Cantidad)),
			ValorUnitario: it.CostoBase,
		})
	}
	return costeo.Asignar(poolDe(req), lineas, metodo)
}

// PrevisualizarCostos runs the allocation without storing anything.
func (s *compraService) PrevisualizarCostos(ctx context.Context, empresaID, id uuid.UUID, req dto.AplicarCostosRequest) (*dto.CostosResponse, error) {
	c, err := s.findCompra(ctx, empresaID, id)
	if err != nil {
		return nil, err
	}
	if c.CostosAplicados {
		return nil, compra.ErrCostosYaAplicados
	}
	res, err := asignar(c, req)
	if err != nil {
		return nil, err
	}

	resp := &dto.CostosResponse{CompraID: c.ID.String(), Metodo: string(res.Metodo), Total: res.Total}
	for _, it := range c.Items {
		capp := decimal.Zero
		nombre := ""
		if it.Producto != nil {
			capp = it.Producto.CAPP
			nombre = it.Producto.Nombre
		}
		stock, err := s.productos.Stock(ctx, it.ProductoID)
		if err != nil {
			return nil, err
		}
		resp.Items = append(resp.Items, itemCosto(it, nombre, res.Asignado(it.ID.String()), capp, sumarStock(stock)))
	}
	return resp, nil
}

// ── AplicarCostos ─────────────────────────────────────────────────────────────
// aplicar_costos_adicionales_a_compra, at most once per purchase:
//   1. Redis lock on the purchase (when available) so concurrent requests
//      fail fast instead of queueing on the row lock
//   2. BEGIN TX: lock compra, reject if already applied
//   3. Allocate, raise each item's base cost by share/qty
//   4. Land each share on the registered stock's CAPP, record cost history
//   5. Store the pool, set the applied flag
//   6. COMMIT, then enqueue price recalculation and publish the event

func (s *compraService) AplicarCostos(ctx context.Context, empresaID, id uuid.UUID, req dto.AplicarCostosRequest) (*dto.CostosResponse, error) {
	if s.locker != nil {
		release, err := s.locker.Obtain(ctx, "lock:costos:"+id.String(), lockCostosTTL)
		if errors.Is(err, infra.ErrLockNotObtained) {
			return nil, compra.ErrOperacionEnCurso
		}
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var (
		resp      *dto.CostosResponse
		productos []uuid.UUID
	)
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		c, err := s.repo.FindForUpdateTx(tx, empresaID, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("compra %s: %w", id, ErrNoEncontrado)
		}
		if err != nil {
			return err
		}
		if c.CostosAplicados {
			return compra.ErrCostosYaAplicados
		}

		res, err := asignar(c, req)
		if err != nil {
			return err
		}

		resp = &dto.CostosResponse{CompraID: c.ID.String(), Metodo: string(res.Metodo), Total: res.Total, Aplicado: true}
		for _, it := range c.Items {
			share := res.Asignado(it.ID.String())
			item, err := s.cargarItem(tx, c, it, share)
			if err != nil {
				return err
			}
			resp.Items = append(resp.Items, item)
			productos = append(productos, it.ProductoID)
		}

		costos := make([]model.CompraCosto, 0, len(req.Costos))
		for _, p := range poolDe(req) {
			costos = append(costos, model.CompraCosto{CompraID: c.ID, Concepto: p.Concepto, Monto: p.Monto})
		}
		if err := s.repo.CreateCostosTx(tx, costos); err != nil {
			return err
		}
		return s.repo.MarcarCostosAplicadosTx(tx, c.ID, string(res.Metodo), time.Now())
	})
	if txErr != nil {
		return nil, txErr
	}

	if err := s.dispatcher.EnqueuePrecios(ctx, worker.PreciosJobPayload{
		EmpresaID:   empresaID,
		ProductoIDs: productos,
		CompraID:    &id,
		Motivo:      model.MotivoCostosAdicionales,
	}); err != nil {
		// prices stay on the previous CAPP until the next purchase
		log.Error().Err(err).Str("compra_id", id.String()).Msg("no se pudo encolar el recalculo de precios")
	}
	s.invalidarDetalles(ctx, empresaID, productos)
	s.publicar(ctx, infra.Evento{
		Tipo:      infra.EventoCostosAplicados,
		EmpresaID: empresaID.String(),
		CompraID:  id.String(),
		Datos:     map[string]interface{}{"metodo": resp.Metodo, "total": resp.Total},
	})

	log.Info().
		Str("compra_id", id.String()).
		Str("metodo", resp.Metodo).
		Str("total", resp.Total.String()).
		Msg("costos adicionales aplicados")
	return resp, nil
}

func (s *compraService) cargarItem(tx *gorm.DB, c *model.Compra, it model.CompraItem, share decimal.Decimal) (dto.ItemCostoResponse, error) {
	qty := decimal.NewFromInt(int64(it.Cantidad))
	ajustado := costeo.CostoUnitarioAjustado(it.CostoBase, share, qty).Round(4)
	if err := s.repo.UpdateItemCostoTx(tx, it.ID, ajustado, share); err != nil {
		return dto.ItemCostoResponse{}, err
	}

	prod, err := s.productos.FindForUpdateTx(tx, c.EmpresaID, it.ProductoID)
	if err != nil {
		return dto.ItemCostoResponse{}, err
	}
	stock, err := s.productos.StockForUpdateTx(tx, it.ProductoID)
	if err != nil {
		return dto.ItemCostoResponse{}, err
	}
	existente := sumarStock(stock)

	item := itemCosto(it, prod.Nombre, share, prod.CAPP, existente)
	if item.CAPPResultante.Equal(prod.CAPP) {
		return item, nil
	}
	if err := s.productos.UpdateCAPPTx(tx, prod.ID, item.CAPPResultante); err != nil {
		return dto.ItemCostoResponse{}, err
	}
	if err := s.historial.CreateCostoTx(tx, &model.HistorialCosto{
		EmpresaID:   c.EmpresaID,
		ProductoID:  prod.ID,
		CompraID:    &c.ID,
		CAPPAntes:   prod.CAPP,
		CAPPDespues: item.CAPPResultante,
		Motivo:      model.MotivoCostosAdicionales,
	}); err != nil {
		return dto.ItemCostoResponse{}, err
	}
	return item, nil
}

func itemCosto(it model.CompraItem, nombre string, share, capp decimal.Decimal, stock int) dto.ItemCostoResponse {
	qty := decimal.NewFromInt(int64(it.Cantidad))
	return dto.ItemCostoResponse{
		CompraItemID:   it.ID.String(),
		ProductoID:     it.ProductoID.String(),
		Nombre:         nombre,
		Cantidad:       it.Cantidad,
		CostoAnterior:  it.CostoBase,
		Asignado:       share,
		CostoAjustado:  costeo.CostoUnitarioAjustado(it.CostoBase, share, qty).Round(4),
		CAPPResultante: costeo.CAPPConCargo(decimal.NewFromInt(int64(stock)), capp, share).Round(4),
	}
}

func sumarStock(stock []model.StockSucursal) int {
	total := 0
	for _, st := range stock {
		total += st.Cantidad
	}
	return total
}

// ── Planilla ──────────────────────────────────────────────────────────────────

// Planilla renders the purchase's cost sheet as XLSX. Pending purchases list
// their items with no allocation yet.
func (s *compraService) Planilla(ctx context.Context, empresaID, id uuid.UUID) ([]byte, string, error) {
	c, err := s.findCompra(ctx, empresaID, id)
	if err != nil {
		return nil, "", err
	}
	resp := compraToResponse(c)
	buf, err := infra.GenerarPlanillaCostos(resp)
	if err != nil {
		return nil, "", fmt.Errorf("planilla compra %d: %w", c.Folio, err)
	}
	return buf.Bytes(), fmt.Sprintf("compra-%06d-costos.xlsx", c.Folio), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *compraService) invalidarDetalles(ctx context.Context, empresaID uuid.UUID, productos []uuid.UUID) {
	keys := make([]string, 0, len(productos))
	for _, id := range productos {
		keys = append(keys, infra.DetalleCacheKey(empresaID.String(), id.String()))
	}
	s.cache.Del(ctx, keys...)
}

// publicar never fails the request: the transaction is already committed.
func (s *compraService) publicar(ctx context.Context, e infra.Evento) {
	if err := s.eventos.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("tipo", e.Tipo).Str("compra_id", e.CompraID).Msg("events: publish failed")
	}
}

func compraToResponse(c *model.Compra) *dto.CompraResponse {
	resp := &dto.CompraResponse{
		ID:              c.ID.String(),
		Folio:           c.Folio,
		ProveedorID:     c.ProveedorID.String(),
		Fecha:           c.Fecha,
		Referencia:      c.Referencia,
		Moneda:          c.Moneda,
		TipoCambio:      c.TipoCambio,
		TipoPago:        c.TipoPago,
		Total:           c.Total,
		TotalBase:       c.TotalBase,
		CostosAplicados: c.CostosAplicados,
		MetodoProrrateo: c.MetodoProrrateo,
		FechaCostos:     c.FechaCostos,
		Items:           make([]dto.CompraItemResponse, 0, len(c.Items)),
		Costos:          make([]dto.CostoAdicionalResponse, 0, len(c.Costos)),
	}
	if c.Proveedor != nil {
		resp.Proveedor = c.Proveedor.Nombre
	}
	for _, it := range c.Items {
		item := dto.CompraItemResponse{
			ID:            it.ID.String(),
			ProductoID:    it.ProductoID.String(),
			Cantidad:      it.Cantidad,
			CostoUnitario: it.CostoUnitario,
			CostoBase:     it.CostoBase,
			CostoAsignado: it.CostoAsignado,
			Distribucion:  make(map[string]int, len(it.Distribuciones)),
		}
		if it.Producto != nil {
			item.Nombre = it.Producto.Nombre
		}
		for _, d := range it.Distribuciones {
			item.Distribucion[d.SucursalID.String()] = d.Cantidad
		}
		resp.Items = append(resp.Items, item)
	}
	for _, co := range c.Costos {
		resp.Costos = append(resp.Costos, dto.CostoAdicionalResponse{Concepto: co.Concepto, Monto: co.Monto})
	}
	return resp
}
