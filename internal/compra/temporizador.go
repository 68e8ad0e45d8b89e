package compra

import (
	"sync"
	"time"
)

// Temporizador debounces checks that run while the user is still typing:
// each Programar cancels the pending call and schedules a new one.
type Temporizador struct {
	espera time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	detenido bool
}

// NuevoTemporizador creates a debouncer with the given quiet period.
func NuevoTemporizador(espera time.Duration) *Temporizador {
	return &Temporizador{espera: espera}
}

// Programar schedules fn after the quiet period, superseding any pending call.
func (t *Temporizador) Programar(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detenido {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.espera, func() {
		t.mu.Lock()
		vigente := gen == t.gen
		t.mu.Unlock()
		if vigente {
			fn()
		}
	})
}

// Cancelar drops the pending call, if any.
func (t *Temporizador) Cancelar() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// Stop cancels the pending call and ignores every later Programar.
func (t *Temporizador) Stop() {
	t.Cancelar()
	t.mu.Lock()
	t.detenido = true
	t.mu.Unlock()
}
