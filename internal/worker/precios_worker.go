package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"servivent/internal/infra"
	"servivent/internal/model"
	"servivent/internal/precios"
	"servivent/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PreciosJobPayload asks for the list prices of some products to be derived
// again from their current CAPP.
type PreciosJobPayload struct {
	EmpresaID   uuid.UUID   `json:"empresa_id"`
	ProductoIDs []uuid.UUID `json:"producto_ids"`
	CompraID    *uuid.UUID  `json:"compra_id,omitempty"`
	Motivo      string      `json:"motivo"`
}

// PreciosWorker recalculates price = CAPP + maximum gain for every list of
// each product and records the changes in historial_precios.
type PreciosWorker struct {
	productos repository.ProductoRepository
	listas    repository.ListaPrecioRepository
	historial repository.HistorialRepository
	cache     *infra.Cache
}

func NewPreciosWorker(
	productos repository.ProductoRepository,
	listas repository.ListaPrecioRepository,
	historial repository.HistorialRepository,
	cache *infra.Cache,
) *PreciosWorker {
	return &PreciosWorker{productos: productos, listas: listas, historial: historial, cache: cache}
}

func (w *PreciosWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var p PreciosJobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadInvalido, err)
	}
	if p.EmpresaID == uuid.Nil || len(p.ProductoIDs) == 0 {
		return fmt.Errorf("%w: empresa y productos requeridos", ErrPayloadInvalido)
	}
	if p.Motivo == "" {
		p.Motivo = model.MotivoRecalculo
	}

	listas, err := w.listas.ListByEmpresa(ctx, p.EmpresaID)
	if err != nil {
		return fmt.Errorf("listas de precio: %w", err)
	}

	// One transaction per product: a failure only retries what is left,
	// and already updated products are idempotent on the next attempt.
	for _, id := range p.ProductoIDs {
		cambios, err := w.recalcularProducto(ctx, p, listas, id)
		if err != nil {
			return fmt.Errorf("producto %s: %w", id, err)
		}
		w.cache.Del(ctx, infra.DetalleCacheKey(p.EmpresaID.String(), id.String()))
		log.Debug().Str("producto_id", id.String()).Int("cambios", cambios).Msg("precios recalculados")
	}
	return nil
}

func (w *PreciosWorker) recalcularProducto(
	ctx context.Context,
	p PreciosJobPayload,
	listas []model.ListaPrecio,
	productoID uuid.UUID,
) (int, error) {
	cambios := 0
	err := runTx(ctx, w.productos.DB(), func(tx *gorm.DB) error {
		prod, err := w.productos.FindForUpdateTx(tx, p.EmpresaID, productoID)
		if err != nil {
			return err
		}
		filas, err := w.listas.PreciosByProductoTx(tx, productoID)
		if err != nil {
			return err
		}

		porLista := make(map[uuid.UUID]model.PrecioProducto, len(filas))
		for _, f := range filas {
			porLista[f.ListaPrecioID] = f
		}

		for _, l := range listas {
			fila, ok := porLista[l.ID]
			if !ok {
				continue // product not priced in this list yet
			}
			nueva := precios.Recalcular([]precios.Regla{fila.Regla(l)}, prod.CAPP)[0]
			precio := nueva.PrecioResultante.Round(2)
			if precio.Equal(fila.Precio) {
				continue
			}
			if err := w.listas.UpdatePrecioTx(tx, productoID, l.ID, precio); err != nil {
				return err
			}
			if err := w.historial.CreatePrecioTx(tx, &model.HistorialPrecio{
				EmpresaID:     p.EmpresaID,
				ProductoID:    productoID,
				ListaPrecioID: l.ID,
				CompraID:      p.CompraID,
				PrecioAntes:   fila.Precio,
				PrecioDespues: precio,
				Motivo:        p.Motivo,
			}); err != nil {
				return err
			}
			cambios++
		}
		return nil
	})
	return cambios, err
}
