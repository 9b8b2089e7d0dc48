package mqttv5

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ResolveTimeout bounds a single DNS lookup race (§4.3).
const ResolveTimeout = 5 * time.Second

// brokerEndpoint is one entry of a parsed, comma-separated broker list.
type brokerEndpoint struct {
	Scheme string // e.g. "tcp", "ssl", "ws", "wss", "quic"; empty for bare host[:port] entries
	Host   string
	Port   uint16
	Path   string // non-empty for ws/wss entries carrying a URI path
}

// parseHosts parses a comma-separated broker string into a ServerList.
// Each entry may be "host", "host:port", or a "scheme://host[:port][/path]"
// URI; entries without an explicit port fall back to defaultPort. Malformed
// entries are dropped; parsing resumes at the next comma so one bad entry
// does not poison the whole list.
func parseHosts(hosts string, defaultPort uint16) ([]brokerEndpoint, error) {
	var out []brokerEndpoint

	for _, raw := range strings.Split(hosts, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		var path, scheme string
		hostport := entry

		if idx := strings.Index(entry, "://"); idx >= 0 {
			scheme = entry[:idx]
			hostport = entry[idx+3:]
			if slash := strings.IndexByte(hostport, '/'); slash >= 0 {
				path = hostport[slash:]
				hostport = hostport[:slash]
			}
		}

		host, portStr, err := net.SplitHostPort(hostport)
		port := defaultPort
		if err != nil {
			// No port present; treat the whole remainder as host. A colon
			// left in it is malformed unless it is a bare IPv6 literal.
			if strings.Contains(hostport, ":") && net.ParseIP(hostport) == nil {
				continue // drop malformed entry
			}
			host = hostport
		} else if portStr != "" {
			p, perr := strconv.ParseUint(portStr, 10, 16)
			if perr != nil {
				continue // drop malformed entry
			}
			port = uint16(p)
		}

		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}

		out = append(out, brokerEndpoint{Scheme: scheme, Host: host, Port: port, Path: path})
	}

	if len(out) == 0 {
		return nil, ErrHostNotFound
	}

	return out, nil
}

// endpointResolver turns a parsed ServerList into round-robin, DNS-resolved
// "host:port" strings for Client.dial, racing resolution against
// ResolveTimeout per attempt (§4.3).
type endpointResolver struct {
	mu        sync.Mutex
	endpoints []brokerEndpoint
	index     int
}

// newEndpointResolver builds a resolver over a fixed endpoint list.
func newEndpointResolver(endpoints []brokerEndpoint) *endpointResolver {
	return &endpointResolver{endpoints: endpoints}
}

// Next advances the round-robin index, resolves the chosen host, and
// returns an address string suitable for net.Dial (host resolved to its
// first A/AAAA record, original port preserved) plus the path, if any, for
// WebSocket endpoints.
//
// Errors: ErrHostNotFound if the resolver holds no endpoints,
// ErrOperationAborted if ctx is done before resolution starts, ErrTryAgain
// once the round-robin index has wrapped past the end of the list without a
// successful resolution in this call, ErrTimedOut if a single lookup
// exceeds ResolveTimeout.
func (r *endpointResolver) Next(ctx context.Context) (brokerEndpoint, string, error) {
	r.mu.Lock()
	n := len(r.endpoints)
	if n == 0 {
		r.mu.Unlock()
		return brokerEndpoint{}, "", ErrHostNotFound
	}

	select {
	case <-ctx.Done():
		r.mu.Unlock()
		return brokerEndpoint{}, "", ErrOperationAborted
	default:
	}

	start := r.index
	for attempt := 0; attempt < n; attempt++ {
		idx := (start + attempt) % n
		ep := r.endpoints[idx]
		r.index = (idx + 1) % n
		r.mu.Unlock()

		addr, err := resolveOne(ctx, ep)
		if err == nil {
			return ep, addr, nil
		}
		if err == ErrOperationAborted || err == ErrTimedOut {
			return brokerEndpoint{}, "", err
		}

		r.mu.Lock()
	}
	r.mu.Unlock()

	return brokerEndpoint{}, "", ErrTryAgain
}

// resolveOne resolves a single endpoint's host, racing ResolveTimeout.
func resolveOne(ctx context.Context, ep brokerEndpoint) (string, error) {
	if ip := net.ParseIP(ep.Host); ip != nil {
		return net.JoinHostPort(ep.Host, strconv.Itoa(int(ep.Port))), nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, ResolveTimeout)
	defer cancel()

	type result struct {
		addrs []string
		err   error
	}
	done := make(chan result, 1)

	go func() {
		addrs, err := net.DefaultResolver.LookupHost(lookupCtx, ep.Host)
		done <- result{addrs: addrs, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrOperationAborted
	case <-lookupCtx.Done():
		return "", ErrTimedOut
	case res := <-done:
		if res.err != nil || len(res.addrs) == 0 {
			return "", ErrTryAgain
		}
		return net.JoinHostPort(res.addrs[0], strconv.Itoa(int(ep.Port))), nil
	}
}

// Len reports the number of endpoints held by the resolver.
func (r *endpointResolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}
