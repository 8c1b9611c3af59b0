// Package health provides the health checks of an mxgraph process: schema
// library paths, the active catalog and the publish backends.
//
// Checks return a Status; Combine folds several into one, so a host can
// report a single state:
//
//	status := health.Combine(
//	    health.LibraryCheck(cfg.Libraries...),
//	    health.CatalogCheck(reg.Current()),
//	)
//	if status.IsUnhealthy() {
//	    log.Fatal(status.Message)
//	}
package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zero-day-ai/mxgraph/catalog"
)

// FileCheck verifies that a file or directory exists at the specified path.
// It returns healthy if the path exists, unhealthy otherwise.
func FileCheck(path string) Status {
	if path == "" {
		return Unhealthy("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Unhealthy(
				fmt.Sprintf("path '%s' does not exist", path),
				map[string]any{"path": path},
			)
		}
		return Unhealthy(
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	fileType := "file"
	if info.IsDir() {
		fileType = "directory"
	}
	return Healthy(fmt.Sprintf("%s '%s' exists", fileType, path))
}

// LibraryCheck verifies the configured schema library paths. Glob patterns
// must match at least one file. The result is unhealthy when no path
// resolves and degraded when only some do.
func LibraryCheck(paths ...string) Status {
	if len(paths) == 0 {
		return Unhealthy("no schema libraries configured", nil)
	}

	var missing []string
	for _, p := range paths {
		if strings.ContainsAny(p, "*?[") {
			matches, err := filepath.Glob(p)
			if err != nil || len(matches) == 0 {
				missing = append(missing, p)
			}
			continue
		}
		if FileCheck(p).IsUnhealthy() {
			missing = append(missing, p)
		}
	}

	switch {
	case len(missing) == len(paths):
		return Unhealthy("no schema library path resolves", map[string]any{"missing": missing})
	case len(missing) > 0:
		return Degraded(
			fmt.Sprintf("%d of %d schema library path(s) missing", len(missing), len(paths)),
			map[string]any{"missing": missing},
		)
	}
	return Healthy(fmt.Sprintf("all %d schema library path(s) resolve", len(paths)))
}

// CatalogCheck reports unhealthy for a missing or empty catalog.
func CatalogCheck(c *catalog.Catalog) Status {
	if c == nil || c.Len() == 0 {
		return Unhealthy("catalog has no node types", nil)
	}
	return Healthy(fmt.Sprintf("catalog revision %d has %d node type(s)", c.Revision(), c.Len()))
}

// NetworkCheck verifies TCP connectivity to a host and port.
// It uses the provided context for timeout and cancellation control.
func NetworkCheck(ctx context.Context, host string, port int) Status {
	if host == "" {
		return Unhealthy("host cannot be empty", nil)
	}
	if port <= 0 || port > 65535 {
		return Unhealthy(
			fmt.Sprintf("invalid port number: %d", port),
			map[string]any{"port": port},
		)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("failed to connect to %s", address),
			map[string]any{
				"host":  host,
				"port":  port,
				"error": err.Error(),
			},
		)
	}
	conn.Close()

	return Healthy(fmt.Sprintf("successfully connected to %s", address))
}

// EndpointCheck is NetworkCheck for a "host:port" address.
func EndpointCheck(ctx context.Context, address string) Status {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("invalid address %q", address),
			map[string]any{"error": err.Error()},
		)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Unhealthy(fmt.Sprintf("invalid port in %q", address), nil)
	}
	return NetworkCheck(ctx, host, port)
}

// RedisCheck dials the server named by a redis:// URL.
func RedisCheck(ctx context.Context, rawURL string) Status {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return Unhealthy("invalid redis url", map[string]any{"error": err.Error()})
	}
	status := EndpointCheck(ctx, opts.Addr)
	if status.IsHealthy() {
		return Healthy(fmt.Sprintf("redis at %s reachable", opts.Addr))
	}
	status.Message = "redis: " + status.Message
	return status
}

// EtcdCheck dials every etcd endpoint. Endpoints may carry an http or
// https scheme. The result is unhealthy when none answers and degraded when
// only some do.
func EtcdCheck(ctx context.Context, endpoints ...string) Status {
	if len(endpoints) == 0 {
		return Unhealthy("no etcd endpoints configured", nil)
	}

	var down []string
	for _, ep := range endpoints {
		addr := ep
		if u, err := url.Parse(ep); err == nil && u.Host != "" {
			addr = u.Host
		}
		if !EndpointCheck(ctx, addr).IsHealthy() {
			down = append(down, ep)
		}
	}

	switch {
	case len(down) == len(endpoints):
		return Unhealthy("etcd: no endpoint reachable", map[string]any{"unreachable": down})
	case len(down) > 0:
		return Degraded(
			fmt.Sprintf("etcd: %d of %d endpoint(s) unreachable", len(down), len(endpoints)),
			map[string]any{"unreachable": down},
		)
	}
	return Healthy(fmt.Sprintf("etcd: all %d endpoint(s) reachable", len(endpoints)))
}

// Optional caps s at degraded, for dependencies the process keeps serving
// without.
func Optional(s Status) Status {
	if s.IsUnhealthy() {
		return Degraded(s.Message, s.Details)
	}
	return s
}

// Combine aggregates multiple health checks into a single status.
// The result follows this priority:
//   - If any check is unhealthy, the result is unhealthy
//   - If any check is degraded (and none unhealthy), the result is degraded
//   - If all checks are healthy, the result is healthy
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks provided")
	}

	var unhealthyChecks []string
	var degradedChecks []string
	var healthyCount int

	for _, check := range checks {
		msg := check.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch check.Status {
		case StatusUnhealthy:
			unhealthyChecks = append(unhealthyChecks, msg)
		case StatusDegraded:
			degradedChecks = append(degradedChecks, msg)
		case StatusHealthy:
			healthyCount++
		}
	}

	if len(unhealthyChecks) > 0 {
		return Unhealthy(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	}

	if len(degradedChecks) > 0 {
		return Degraded(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	}

	return Healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
