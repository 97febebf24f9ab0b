package launcher

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript creates an executable shell script standing in for a real binary
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	location := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(location, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return location
}

func testService(binaries Binaries, socketDir string) *Service {
	return New(
		WithLogger(discardLogger()),
		WithConfig(Config{
			Binaries:        binaries,
			StartTimeout:    2 * time.Second,
			StopGracePeriod: 500 * time.Millisecond,
			X11SocketDir:    socketDir,
		}),
	)
}
