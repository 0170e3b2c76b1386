package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"autoria-scraper/config"
	"autoria-scraper/models"
)

// DumpSQL writes a full pg_dump of the configured database into dir and
// returns the dump file's path. pg_dump must be on PATH; the password is
// passed through the environment, never the command line.
func DumpSQL(ctx context.Context, cfg *config.Config, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dump dir: %w", err)
	}
	path := dumpPath(dir, "sql")

	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-f", path,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pg_dump: %w: %s", err, stderr.String())
	}
	return path, nil
}

// DumpCSV writes the given cars as a timestamped CSV file into dir and
// returns the file's path.
func DumpCSV(cars []models.Car, dir string) (string, error) {
	path := dumpPath(dir, "csv")
	if err := NewCSVWriter(path).Write(cars); err != nil {
		return "", err
	}
	return path, nil
}

func dumpPath(dir, ext string) string {
	stamp := time.Now().Format("20060102_150405")
	return filepath.Join(dir, fmt.Sprintf("autoria_dump_%s.%s", stamp, ext))
}
