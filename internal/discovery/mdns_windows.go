//go:build windows

package discovery

import (
	"context"

	"go.uber.org/zap"
)

// mdnsHosts is disabled on Windows: hashicorp/mdns cannot bind the
// multicast group alongside the native Bonjour service there. The
// subnet sweep covers discovery on its own.
func mdnsHosts(_ context.Context, logger *zap.Logger) []string {
	logger.Debug("mdns fast path unavailable on windows")
	return nil
}
