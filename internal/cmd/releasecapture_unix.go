//go:build !windows

package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaykvm/bridge/bridge"
)

// watchReleaseCapture forwards SIGUSR1 to the controller as a
// release-capture notification. The signal stands in for a physical button
// on the bridge hardware; a GPIO watcher delivers it the same way.
func watchReleaseCapture(ctx context.Context, sess *bridge.Session, logger *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ch:
				if err := sess.NotifyReleaseCapture(ctx); err != nil {
					logger.Warn("release-capture notification failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
