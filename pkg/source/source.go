// Package source defines how desired hostnames are extracted from upstream
// reverse-proxy configuration: Docker container labels and static config
// files.
//
// Each Source understands one proxy's format (Traefik router rules, native
// trafego labels) and can produce hostnames from either channel:
//
//	registry := source.NewRegistry(logger)
//	registry.Register(traefik.New())
//
//	// on a container event
//	hostnames := registry.ExtractAll(ctx, container.Labels)
//
//	// from static config files
//	hostnames := registry.DiscoverAll(ctx)
package source

import "context"

// Source extracts hostnames from container labels and, optionally, from
// configuration files on disk.
//
// File discovery follows "presence implies intent": configuring file paths
// for a source enables it, with no separate toggle.
//
// Implementations must be stateless and safe for concurrent use, return an
// empty slice rather than an error when nothing is found, and reserve
// errors for genuinely malformed configuration.
type Source interface {
	// Name identifies the source ("traefik", "trafego") for logging and
	// metrics.
	Name() string

	// Extract parses a container's (or Swarm service's) label map and
	// returns the hostnames it declares. Labels the source does not
	// recognize are ignored, not errors.
	Extract(ctx context.Context, labels map[string]string) ([]Hostname, error)

	// Discover scans the source's configured file paths for hostnames.
	// Sources without file discovery configured return nil, nil. Missing
	// files are tolerated; unreadable or unparseable configured paths are
	// errors.
	Discover(ctx context.Context) ([]Hostname, error)

	// SupportsDiscovery reports whether file paths are configured, letting
	// the reconciler skip Discover calls that would be no-ops.
	SupportsDiscovery() bool
}
