package source

import "time"

// FileDiscoveryConfig configures file-based hostname discovery for one
// source. Setting FilePaths is what enables it; there is no separate flag.
type FileDiscoveryConfig struct {
	// FilePaths lists files or directories to scan. Empty disables file
	// discovery.
	FilePaths []string

	// FilePattern is the glob applied inside directories. Empty picks the
	// source's own default (e.g. "*.yml" for Traefik).
	FilePattern string

	// PollInterval is the configured polling cadence. FileWatcher does not
	// read it; it polls at its own interval (60s unless WithPollInterval is
	// given).
	PollInterval time.Duration

	// WatchMethod records the configured change-detection setting: "auto",
	// "inotify", or "poll". FileWatcher does not consult it and always
	// polls; this package has no inotify watcher.
	WatchMethod string
}

// DefaultFileDiscoveryConfig returns the defaults: disabled, 60s polling
// cadence once enabled, auto watch method.
func DefaultFileDiscoveryConfig() FileDiscoveryConfig {
	return FileDiscoveryConfig{
		PollInterval: 60 * time.Second,
		WatchMethod:  "auto",
	}
}

// IsEnabled reports whether any file paths are configured.
func (c FileDiscoveryConfig) IsEnabled() bool {
	return len(c.FilePaths) > 0
}

// WatchMethodType is the parsed change-detection setting. FileWatcher does
// not branch on it: whatever the setting, discovery is polled.
type WatchMethodType string

const (
	// WatchMethodAuto is the default setting.
	WatchMethodAuto WatchMethodType = "auto"

	// WatchMethodInotify names inotify-based watching, which this package
	// does not implement.
	WatchMethodInotify WatchMethodType = "inotify"

	// WatchMethodPoll names timer-based polling, which is what FileWatcher
	// does: it re-runs discovery and compares the hostname sets.
	WatchMethodPoll WatchMethodType = "poll"
)

// ParseWatchMethod maps a config string onto a WatchMethodType, defaulting
// to auto.
func ParseWatchMethod(s string) WatchMethodType {
	switch s {
	case "inotify":
		return WatchMethodInotify
	case "poll":
		return WatchMethodPoll
	default:
		return WatchMethodAuto
	}
}
