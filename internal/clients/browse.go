package clients

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TypeTerrors/rsum/internal/servers"
	"github.com/charmbracelet/log"
	"github.com/grandcat/zeroconf"
)

// Peer is an rsum daemon found over mDNS.
type Peer struct {
	Instance string
	Addr     string
}

// ValidateService checks if the discovered service contains the required TXT records
func ValidateService(txtRecords []string) bool {
	for _, txt := range txtRecords {
		if strings.Contains(txt, servers.ServiceID) {
			return true
		}
	}
	return false
}

// Browse collects the daemons that answer within timeout.
func Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := newPeerSet()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			found.add(entry)
		}
	}()

	if err := resolver.Browse(ctx, servers.ServiceType, servers.Domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse mDNS: %w", err)
	}
	<-ctx.Done()

	// the resolver closes entries once ctx is done
	select {
	case <-done:
	case <-time.After(time.Second):
		log.Warn("mDNS resolver did not finish, returning peers found so far")
	}
	return found.list(), nil
}

type peerSet struct {
	mu    sync.Mutex
	peers map[string]Peer
}

func newPeerSet() *peerSet {
	return &peerSet{peers: make(map[string]Peer)}
}

func (s *peerSet) add(entry *zeroconf.ServiceEntry) {
	if !ValidateService(entry.Text) {
		log.Debugf("Service %s did not advertise the correct service, skipping...", entry.Instance)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ip := range entry.AddrIPv4 {
		addr := net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port))
		s.peers[addr] = Peer{Instance: entry.Instance, Addr: addr}
	}
}

func (s *peerSet) list() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Addr < peers[j].Addr })
	return peers
}
