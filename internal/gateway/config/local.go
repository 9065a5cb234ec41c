package config

import (
	"os"
	"strings"
)

// applyLocalDefaults points exports at the docker-compose MinIO when its root
// credentials are present and nothing else was configured.
func applyLocalDefaults(cfg *Config) {
	if cfg.Export.CanUseS3() {
		return
	}
	user := strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))
	password := strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))
	if user == "" || password == "" {
		return
	}
	cfg.Export.Endpoint = firstNonEmpty(strings.TrimSpace(cfg.Export.Endpoint), strings.TrimSpace(os.Getenv("EXPORT_MINIO_ENDPOINT")), "minio:9000")
	cfg.Export.AccessKey = firstNonEmpty(cfg.Export.AccessKey, user)
	cfg.Export.SecretKey = firstNonEmpty(cfg.Export.SecretKey, password)
	cfg.Export.UseSSL = false
}
