// cmd/compras: registers a purchase described in a JSON file through the
// same wizard steps the UI uses, then optionally applies additional costs.
// Uso: go run ./cmd/compras -plan compra.json -token $TOKEN
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"servivent/internal/compra"
	"servivent/internal/config"
	"servivent/internal/infra"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logSink shows wizard notifications on the console.
type logSink struct{}

func (logSink) Notificar(mensaje string, nivel compra.Nivel) {
	ev := log.Info()
	switch nivel {
	case compra.NivelError:
		ev = log.Error()
	case compra.NivelAdvertencia:
		ev = log.Warn()
	}
	ev.Str("nivel", string(nivel)).Msg(mensaje)
}

func (logSink) Cargando(activo bool) {
	if activo {
		log.Debug().Msg("enviando…")
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	planPath := flag.String("plan", "compra.json", "archivo JSON con cabecera, lineas y costos")
	token := flag.String("token", os.Getenv("SERVIVENT_TOKEN"), "Bearer token (ver cmd/gentoken)")
	url := flag.String("url", cfg.BackendURL, "URL base del backend")
	flag.Parse()

	raw, err := os.ReadFile(*planPath)
	if err != nil {
		log.Fatal().Err(err).Msg("no se pudo leer el plan")
	}
	var plan compra.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		log.Fatal().Err(err).Msg("plan invalido")
	}

	timeout := time.Duration(cfg.BackendTimeoutSeconds) * time.Second
	client := infra.NewBackendClient(*url, *token, timeout, nil)
	asistente := compra.NuevoAsistente(client, logSink{}, logSink{})
	defer asistente.Cerrar()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := asistente.EjecutarPlan(ctx, plan)
	if res != nil && res.CompraID != "" {
		log.Info().Str("compra_id", res.CompraID).Msg("compra registrada")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("plan interrumpido")
	}
	if res.Costos != nil {
		for _, it := range res.Costos.Items {
			log.Info().
				Str("producto_id", it.ProductoID).
				Str("asignado", it.Asignado.StringFixed(2)).
				Str("costo_ajustado", it.CostoAjustado.StringFixed(4)).
				Str("capp", it.CAPPResultante.StringFixed(4)).
				Msg("costo prorrateado")
		}
	}
}
