package servers

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/charmbracelet/log"
	"github.com/grandcat/zeroconf"
)

const (
	ServiceType = "_rsum._tcp"
	Domain      = "local."
	ServiceID   = "service_id=rsum"
)

// TxtRecords are advertised with every announcement.
func TxtRecords() []string {
	return []string{"version=1", ServiceID, "digest_size=" + strconv.Itoa(rsum.Size)}
}

// Announce registers the hash service over mDNS and keeps it registered until
// ctx is done.
func Announce(ctx context.Context, port string) error {
	portNumber, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("failed to parse port %q: %w", port, err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instance := fmt.Sprintf("rsum-%s-%d", hostname, portNumber)

	server, err := zeroconf.Register(instance, ServiceType, Domain, portNumber, TxtRecords(), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	defer server.Shutdown()

	log.Infof("Announcing %s on port %d", instance, portNumber)
	<-ctx.Done()
	log.Warn("Shutting down mDNS announcement...")
	return nil
}
