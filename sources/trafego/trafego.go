// Package trafego is the native label source: hostnames declared directly
// on workloads with trafego.* labels rather than inferred from a proxy's
// router rules.
//
// Two label shapes are understood. The simple form rides the provider
// instance defaults:
//
//	trafego.hostname=app.example.com
//
// Named record blocks control each field explicitly:
//
//	trafego.records.myapp.hostname=app.example.com
//	trafego.records.myapp.type=A
//	trafego.records.myapp.target=192.0.2.100
//	trafego.records.myapp.provider=internal-dns
//	trafego.records.myapp.ttl=300
//
// SRV records add the port/priority/weight tuple:
//
//	trafego.records.mc.hostname=_minecraft._tcp.mc.example.com
//	trafego.records.mc.type=SRV
//	trafego.records.mc.target=mc-server.example.com
//	trafego.records.mc.port=25565
//	trafego.records.mc.priority=0
//	trafego.records.mc.weight=5
package trafego

import (
	"context"
	"log/slog"

	"github.com/trafegodns/trafego/internal/metrics"
	"github.com/trafegodns/trafego/pkg/source"
)

const sourceName = "trafego"

// Trafego implements source.Source over native trafego labels.
type Trafego struct {
	parser *Parser
	logger *slog.Logger
}

// Option configures a Trafego source.
type Option func(*Trafego)

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trafego) { t.logger = logger }
}

// New builds the source.
func New(opts ...Option) *Trafego {
	t := &Trafego{logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	t.parser = NewParser(WithParserLogger(t.logger))
	return t
}

// Name returns "trafego".
func (t *Trafego) Name() string {
	return sourceName
}

// Extract parses the label map for trafego.hostname and
// trafego.records.<name>.* declarations. Malformed declarations are logged
// and skipped; a workload without trafego labels yields an empty result.
func (t *Trafego) Extract(ctx context.Context, labels map[string]string) ([]source.Hostname, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	extractions := t.parser.ExtractHostnames(labels)

	hostnames := make([]source.Hostname, 0, len(extractions))
	for _, e := range extractions {
		h := source.Hostname{
			Name:   e.Hostname,
			Source: sourceName,
			Router: e.RecordName,
		}
		if e.HasHints() {
			h.RecordHints = &source.RecordHints{
				Type:     e.Type,
				Target:   e.Target,
				TTL:      e.TTL,
				Proxied:  e.Proxied,
				Provider: e.Provider,
			}
			if e.SRV != nil {
				h.RecordHints.SRV = &source.SRVHints{
					Port:     e.SRV.Port,
					Priority: e.SRV.Priority,
					Weight:   e.SRV.Weight,
				}
			}
		}
		hostnames = append(hostnames, h)
	}

	if len(hostnames) > 0 {
		metrics.HostnamesExtractedTotal.WithLabelValues(sourceName, "labels").Add(float64(len(hostnames)))
		t.logger.Debug("extracted hostnames from trafego labels",
			slog.Int("count", len(hostnames)),
		)
	}
	return hostnames, nil
}

// Discover is a no-op: native labels live on workloads, not in files.
func (t *Trafego) Discover(ctx context.Context) ([]source.Hostname, error) {
	return nil, nil
}

// SupportsDiscovery returns false; there is nothing on disk to scan.
func (t *Trafego) SupportsDiscovery() bool {
	return false
}

var _ source.Source = (*Trafego)(nil)
