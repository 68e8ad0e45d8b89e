package compra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"servivent/internal/costeo"
	"servivent/internal/precios"

	"github.com/rs/zerolog/log"
)

// Asistente drives the purchase wizard against the backend. Remote calls
// toggle the loading sink, and a call that is already running rejects a
// second one instead of queueing it.
type Asistente struct {
	backend Backend
	notif   NotificationSink
	loading LoadingSink

	// revision debounces the rule warning while gains are being typed.
	revision *Temporizador

	mu        sync.Mutex
	ocupado   bool
	aplicadas map[string]bool
}

// NuevoAsistente wires the wizard. Nil sinks are replaced by no-ops.
func NuevoAsistente(backend Backend, notif NotificationSink, loading LoadingSink) *Asistente {
	if notif == nil {
		notif = sinkNulo{}
	}
	if loading == nil {
		loading = sinkNulo{}
	}
	return &Asistente{
		backend:   backend,
		notif:     notif,
		loading:   loading,
		aplicadas: map[string]bool{},
		revision:  NuevoTemporizador(EsperaRevision),
	}
}

// EsperaRevision is the quiet period before the rule warning is shown.
const EsperaRevision = 400 * time.Millisecond

type sinkNulo struct{}

func (sinkNulo) Notificar(string, Nivel) {}
func (sinkNulo) Cargando(bool)           {}

func (a *Asistente) tomar() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ocupado {
		return false
	}
	a.ocupado = true
	a.loading.Cargando(true)
	return true
}

func (a *Asistente) soltar() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ocupado = false
	a.loading.Cargando(false)
}

// AbrirEditor loads the product detail and starts a line editor for it.
func (a *Asistente) AbrirEditor(ctx context.Context, b *Borrador, productoID string) (*Editor, error) {
	if !a.tomar() {
		return nil, ErrOperacionEnCurso
	}
	defer a.soltar()

	detalle, err := a.backend.DetalleProducto(ctx, productoID)
	if err != nil {
		a.fallo("No se pudo cargar el producto", err)
		return nil, err
	}
	cab := b.Cabecera()
	return NuevoEditor(*detalle, cab.Moneda, cab.TipoCambio), nil
}

// Confirmar commits the editor's line into the draft. An already-present
// product is replaced, which is how a line is edited after being added.
func (a *Asistente) Confirmar(b *Borrador, e *Editor) error {
	l, err := e.Linea()
	if err != nil {
		a.notif.Notificar("Revise los datos del producto antes de guardar", NivelAdvertencia)
		return err
	}
	if b.Reemplazar(l) {
		return nil
	}
	return b.Agregar(l)
}

// EditarGanancia applies a gain change to the editor right away (field
// messages are in Editor.ErroresReglas) and schedules a single warning once
// the user stops typing, if the rules are still invalid by then.
func (a *Asistente) EditarGanancia(e *Editor, listaID, maxima, minima string) {
	e.FijarGanancia(listaID, maxima, minima)
	reglas := e.Precios()
	a.revision.Programar(func() {
		if res := precios.Validar(reglas); !res.Valido {
			a.notif.Notificar(fmt.Sprintf("Revise las ganancias de %d lista(s) de precio", len(res.Errores)), NivelAdvertencia)
		}
	})
}

// Cerrar drops any pending warning. The wizard must not be used afterwards.
func (a *Asistente) Cerrar() { a.revision.Stop() }

// Enviar registers the draft. On failure the draft is left untouched so the
// user can retry.
func (a *Asistente) Enviar(ctx context.Context, b *Borrador) (string, error) {
	if err := b.Validar(); err != nil {
		a.notif.Notificar(err.Error(), NivelAdvertencia)
		return "", err
	}
	if !a.tomar() {
		return "", ErrOperacionEnCurso
	}
	defer a.soltar()

	id, err := a.backend.RegistrarCompra(ctx, b.Cabecera(), b.Lineas())
	if err != nil {
		a.fallo("No se pudo registrar la compra", err)
		return "", err
	}
	b.marcarEnviado(id)
	log.Info().Str("compra_id", id).Int("lineas", len(b.Lineas())).Msg("compra registrada")
	a.notif.Notificar("Compra registrada", NivelExito)
	return id, nil
}

// PrevisualizarCostos runs the allocation locally so the user can compare
// methods before applying. A zero-value basis is reported as a blocking error.
func (a *Asistente) PrevisualizarCostos(pool []costeo.CostoAdicional, lineas []costeo.LineaCosto, metodo costeo.Metodo) (*costeo.Resultado, error) {
	res, err := costeo.Asignar(pool, lineas, metodo)
	if errors.Is(err, costeo.ErrBaseValorCero) {
		a.notif.Notificar("Las lineas no tienen valor: use el prorrateo por cantidad", NivelError)
		return nil, err
	}
	if err != nil {
		a.notif.Notificar(err.Error(), NivelError)
		return nil, err
	}
	return res, nil
}

// PuedeAplicarCostos reports whether the apply action should still be offered.
func (a *Asistente) PuedeAplicarCostos(compraID string, yaAplicados bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !yaAplicados && !a.aplicadas[compraID]
}

// AplicarCostos asks the backend to apply the pool to a registered purchase.
// A purchase that was applied once is never offered again.
func (a *Asistente) AplicarCostos(ctx context.Context, compraID string, metodo costeo.Metodo, pool []costeo.CostoAdicional) (*ResultadoCostos, error) {
	if !a.PuedeAplicarCostos(compraID, false) {
		return nil, ErrCostosYaAplicados
	}
	if !a.tomar() {
		return nil, ErrOperacionEnCurso
	}
	defer a.soltar()

	res, err := a.backend.AplicarCostos(ctx, compraID, metodo, pool)
	if errors.Is(err, ErrCostosYaAplicados) {
		a.marcarAplicada(compraID)
	}
	if err != nil {
		a.fallo("No se pudieron aplicar los costos", err)
		return nil, err
	}
	a.marcarAplicada(compraID)
	a.notif.Notificar(fmt.Sprintf("Costos aplicados: %s", res.Total.StringFixed(2)), NivelExito)
	return res, nil
}

func (a *Asistente) marcarAplicada(compraID string) {
	a.mu.Lock()
	a.aplicadas[compraID] = true
	a.mu.Unlock()
}

func (a *Asistente) fallo(contexto string, err error) {
	log.Warn().Err(err).Msg(contexto)
	a.notif.Notificar(fmt.Sprintf("%s: %s", contexto, err.Error()), NivelError)
}
