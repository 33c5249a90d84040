package cmd

import (
	"context"
	"log/slog"

	"github.com/relaykvm/bridge/bridge"
)

// Windows has no SIGUSR1; release-capture has no local trigger there.
func watchReleaseCapture(ctx context.Context, sess *bridge.Session, logger *slog.Logger) {}
