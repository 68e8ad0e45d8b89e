// cmd/gentoken: mints a development access token. Production tokens come from
// the identity service.
// Uso: go run ./cmd/gentoken -empresa <uuid> -rol compras
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"servivent/internal/config"
	"servivent/internal/middleware"

	"github.com/google/uuid"
)

func main() {
	empresa := flag.String("empresa", "", "UUID de la empresa")
	usuario := flag.String("usuario", "dev", "ID del usuario")
	rol := flag.String("rol", middleware.RolAdministrador, "administrador | compras | consulta")
	ttl := flag.Duration("ttl", 8*time.Hour, "vigencia del token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		fmt.Fprintln(os.Stderr, "gentoken no se usa en produccion")
		os.Exit(1)
	}
	if _, err := uuid.Parse(*empresa); err != nil {
		fmt.Fprintln(os.Stderr, "-empresa debe ser un UUID")
		os.Exit(1)
	}

	tok, err := middleware.FirmarToken(cfg.JWTSecret, *usuario, *empresa, *rol, *ttl)
	if err != nil {
		panic(err)
	}
	fmt.Println(tok)
}
