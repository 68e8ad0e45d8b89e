// cmd/seed: creates the demo company (branches, price lists, supplier,
// products). Safe to run repeatedly.
// Uso: go run ./cmd/seed -empresa <uuid>
package main

import (
	"flag"
	"fmt"
	"os"

	"servivent/internal/config"
	"servivent/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	empresa := flag.String("empresa", "00000000-0000-0000-0000-000000000001", "UUID de la empresa demo")
	flag.Parse()

	empresaID, err := uuid.Parse(*empresa)
	if err != nil {
		log.Fatal().Err(err).Msg("-empresa debe ser un UUID")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	demo, err := infra.SeedDemo(db, empresaID)
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	fmt.Fprintf(os.Stdout, "empresa    %s\n", demo.EmpresaID)
	for _, s := range demo.Sucursales {
		fmt.Fprintf(os.Stdout, "sucursal   %s  %s\n", s.ID, s.Nombre)
	}
	for _, l := range demo.Listas {
		fmt.Fprintf(os.Stdout, "lista      %s  %s\n", l.ID, l.Nombre)
	}
	fmt.Fprintf(os.Stdout, "proveedor  %s  %s\n", demo.Proveedor.ID, demo.Proveedor.Nombre)
	for _, p := range demo.Productos {
		fmt.Fprintf(os.Stdout, "producto   %s  %s\n", p.ID, p.Nombre)
	}
}
