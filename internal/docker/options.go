package docker

import "log/slog"

// Option configures a Client.
type Option func(*Client)

// WithHost points the client at a specific daemon address:
// "unix:///var/run/docker.sock", "tcp://localhost:2375",
// "tcp://docker.example.com:2376". Unset falls back to DOCKER_HOST or the
// default socket.
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

// WithMode forces the operating mode instead of auto-detecting. ModeSwarm
// fails fast when no active swarm (or no manager role) is available;
// ModeStandalone sticks to containers even on a swarm node.
func WithMode(mode Mode) Option {
	return func(c *Client) { c.mode = mode }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCleanupOnStop decides when a container's records become orphans.
// True (default): stopping a container orphans its records. False: records
// survive stop/restart cycles and only removal orphans them, which suits
// maintenance windows.
func WithCleanupOnStop(cleanup bool) Option {
	return func(c *Client) { c.cleanupOnStop = cleanup }
}
