package discovery

import (
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/FlowerWrong/websock-server/internal/logging"
	"github.com/FlowerWrong/websock-server/internal/version"
)

const (
	// ServiceType is the mDNS service type advertised while serving.
	ServiceType = "_websock._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// Advertiser announces the serving endpoint on the local network so
// monitors and clients can find it without configuration.
type Advertiser struct {
	instance string
	server   *zeroconf.Server
}

// NewAdvertiser registers the service and starts responding to mDNS
// queries until Shutdown.
func NewAdvertiser(instance string, port int) (*Advertiser, error) {
	txt := []string{
		"version=" + version.Version,
		"started=" + time.Now().UTC().Format(time.RFC3339),
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS advertisement registered",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)

	return &Advertiser{instance: instance, server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
	logging.Info("mDNS advertisement withdrawn",
		zap.String("instance", a.instance),
	)
}
