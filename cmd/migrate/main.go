// cmd/migrate/main.go
package main

import (
	"log/slog"
	"os"

	"cashback-advisor/internal/config"
	"cashback-advisor/internal/storage/postgres"
)

// Применяет встроенные миграции. Аргумент: up (по умолчанию), down, status.
func main() {
	cfg := config.MustLoad()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	slog.Info("Применяем миграции", "command", command)

	if err := postgres.Migrate(cfg.DBConn, command); err != nil {
		slog.Error("Миграции завершились с ошибкой", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Миграции применены")
}
