package router

import (
	"context"
	"time"

	"servivent/internal/config"
	"servivent/internal/handler"
	"servivent/internal/infra"
	"servivent/internal/middleware"
	"servivent/internal/repository"
	"servivent/internal/service"
	"servivent/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators built in cmd/server. Redis and
// Eventos may be nil.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Eventos infra.EventPublisher
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// ctx bounds the background goroutines started here (rate limiter purge).
func New(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	limiter.StartPurge(ctx)

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.ErrorHandler())

	// ── Infrastructure ───────────────────────────────────────────────────────
	cache := infra.NewCache(d.Redis, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	// ── Repositories ─────────────────────────────────────────────────────────
	productoRepo := repository.NewProductoRepository(d.DB)
	sucursalRepo := repository.NewSucursalRepository(d.DB)
	proveedorRepo := repository.NewProveedorRepository(d.DB)
	listaRepo := repository.NewListaPrecioRepository(d.DB)
	historialRepo := repository.NewHistorialRepository(d.DB)
	movimientoRepo := repository.NewMovimientoStockRepository(d.DB)
	compraRepo := repository.NewCompraRepository(d.DB)

	// Price recalculation goes through the Redis queue when available,
	// otherwise it runs right after the request commits.
	dispatcher := worker.NewDispatcher(d.Redis)
	if dispatcher == nil {
		dispatcher = worker.NewInlineDispatcher(&worker.WorkerHandlers{
			Precios: worker.NewPreciosWorker(productoRepo, listaRepo, historialRepo, cache),
		})
	}

	// ── Services ─────────────────────────────────────────────────────────────
	compraDeps := service.CompraDeps{
		Compras:     compraRepo,
		Productos:   productoRepo,
		Proveedores: proveedorRepo,
		Sucursales:  sucursalRepo,
		Listas:      listaRepo,
		Historial:   historialRepo,
		Movimientos: movimientoRepo,
		Cache:       cache,
		Eventos:     d.Eventos,
		Dispatcher:  dispatcher,
	}
	if d.Redis != nil {
		compraDeps.Locker = infra.NewRedisLocker(d.Redis)
	}
	compraSvc := service.NewCompraService(compraDeps)
	productoSvc := service.NewProductoService(productoRepo, sucursalRepo, listaRepo, historialRepo, movimientoRepo, cache)

	// ── Handlers ─────────────────────────────────────────────────────────────
	comprasH := handler.NewComprasHandler(compraSvc)
	productosH := handler.NewProductosHandler(productoSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis))

	// Protected routes; limited per company once the token is known
	todos := middleware.RequireRole(middleware.RolAdministrador, middleware.RolCompras, middleware.RolConsulta)
	escritura := middleware.RequireRole(middleware.RolAdministrador, middleware.RolCompras)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), limiter.Middleware())
	{
		prods := v1.Group("/productos", todos)
		{
			prods.GET("/:id/detalle", productosH.Detalle)
			prods.GET("/:id/historial-costos", productosH.HistorialCostos)
			prods.GET("/:id/historial-precios", productosH.HistorialPrecios)
			prods.GET("/:id/movimientos", productosH.Movimientos)
		}

		v1.POST("/reglas/validar", todos, productosH.ValidarReglas)

		compras := v1.Group("/compras")
		{
			compras.GET("", todos, comprasH.Listar)
			compras.GET("/:id", todos, comprasH.Obtener)
			compras.GET("/:id/costos/planilla", todos, comprasH.Planilla)
			compras.POST("/:id/costos/preview", todos, comprasH.PrevisualizarCostos)

			compras.POST("", escritura, comprasH.Registrar)
			compras.POST("/:id/costos", escritura, comprasH.AplicarCostos)
		}
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
