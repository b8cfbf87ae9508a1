package configwatcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"appcc_edu_backend/internal/config"
	"appcc_edu_backend/pkg/configwatcher"

	"github.com/stretchr/testify/require"
)

const baseConfig = `server:
  port: "8080"
  mode: %s
jwt:
  secret: "test-secret"
  expire_hours: 1
storage:
  type: minio
`

func writeConfig(t *testing.T, path, mode string) {
	t.Helper()
	content := []byte(fmt.Sprintf(baseConfig, mode))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	writeConfig(t, file, "debug")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 1)
	go func() {
		_ = configwatcher.WatchConfig(ctx, file, func(cfg *config.Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// 等待 watcher 就绪
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, file, "test")

	select {
	case cfg := <-reloaded:
		require.Equal(t, "test", cfg.Server.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
