package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// mDNS service parameters for INDI.
const (
	// ServiceType is the mDNS service type indiserver announces.
	ServiceType = "_indi._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the INDI server port used when an announcement
	// carries none.
	DefaultPort = 7624

	// FindTimeout bounds FindFirst when the caller's context has no
	// deadline.
	FindTimeout = 10 * time.Second
)

// ErrNotFound indicates no server was announced before the deadline.
var ErrNotFound = errors.New("no INDI server found")

// Server is one announced INDI server.
type Server struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the announced hostname.
	Host string

	// Port is the announced TCP port.
	Port uint16

	// Addresses holds the resolved IP addresses, IPv4 first.
	Addresses []string

	// Text holds the raw TXT records.
	Text []string
}

// Addr returns a dialable host:port for the first resolved address,
// falling back to the hostname.
func (s *Server) Addr() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// BrowserConfig configures browsing.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface. Empty
	// means all interfaces.
	Interface string
}

// Browser watches for INDI server announcements.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse reports servers as they are announced and as they disappear.
// Announcements from multiple interfaces are aggregated per instance
// name. Both channels close when ctx is cancelled.
func (b *Browser) Browse(ctx context.Context) (added, removed <-chan *Server, err error) {
	opts, err := b.options()
	if err != nil {
		return nil, nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	gone := make(chan *zeroconf.ServiceEntry)
	addedCh := make(chan *Server)
	removedCh := make(chan *Server)

	go func() {
		defer close(addedCh)
		defer close(removedCh)

		// Aggregate by instance name; an instance disappears when its
		// last interface's addresses are gone.
		servers := make(map[string]*Server)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := toServer(entry)
				if existing, found := servers[svc.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				servers[svc.InstanceName] = svc
				select {
				case addedCh <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-gone:
				if !ok {
					continue
				}
				existing, found := servers[entry.Instance]
				if !found {
					continue
				}
				existing.Addresses = subtractAddresses(existing.Addresses, toServer(entry).Addresses)
				if len(existing.Addresses) > 0 {
					continue
				}
				delete(servers, entry.Instance)
				select {
				case removedCh <- existing:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, gone, opts...)
	}()

	return addedCh, removedCh, nil
}

// FindFirst returns the first announced server.
func (b *Browser) FindFirst(ctx context.Context) (*Server, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, FindTimeout)
		defer cancel()
	}

	added, _, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case svc, ok := <-added:
		if !ok {
			return nil, ErrNotFound
		}
		return svc, nil
	case <-ctx.Done():
		return nil, ErrNotFound
	}
}

func (b *Browser) options() ([]zeroconf.ClientOption, error) {
	if b.config.Interface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(b.config.Interface)
	if err != nil {
		return nil, err
	}
	return []zeroconf.ClientOption{zeroconf.SelectIfaces([]net.Interface{*iface})}, nil
}

// Advertiser announces an INDI server over mDNS.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Advertise starts announcing. Call Shutdown to withdraw the
// announcement.
func (a *Advertiser) Advertise(instance string, port int, txt []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
	}
	if port == 0 {
		port = DefaultPort
	}
	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return err
	}
	a.server = server
	return nil
}

// Shutdown withdraws the announcement. Safe to call when idle.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// toServer converts a zeroconf entry.
func toServer(entry *zeroconf.ServiceEntry) *Server {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &Server{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		Text:         entry.Text,
	}
}

// mergeAddresses appends addresses not already present.
func mergeAddresses(existing, incoming []string) []string {
	for _, addr := range incoming {
		found := false
		for _, have := range existing {
			if have == addr {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, addr)
		}
	}
	return existing
}

// subtractAddresses removes the given addresses.
func subtractAddresses(existing, remove []string) []string {
	out := existing[:0]
	for _, have := range existing {
		drop := false
		for _, addr := range remove {
			if have == addr {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, have)
		}
	}
	return out
}
