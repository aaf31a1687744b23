package traefik

import (
	"log/slog"
	"regexp"
	"strings"
)

// hostCallRegex finds Host(...) matchers in a router rule; backtickArgRegex
// then pulls each backticked hostname out of the call, so both
// Host(`a.example`) and the multi-argument Host(`a.example`, `b.example`)
// form parse.
var (
	hostCallRegex   = regexp.MustCompile(`Host\(([^)]*)\)`)
	backtickArgRegex = regexp.MustCompile("`([^`]*)`")
)

// Router rule labels look like traefik.http.routers.<name>.rule.
const (
	routerLabelPrefix = "traefik.http.routers."
	routerRuleSuffix  = ".rule"
)

// HostnameExtraction is one hostname together with the router that
// declared it.
type HostnameExtraction struct {
	Hostname string
	Router   string
}

// Parser pulls hostnames out of Traefik router-rule labels.
type Parser struct {
	logger *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithParserLogger overrides the logger.
func WithParserLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) { p.logger = logger }
}

// NewParser builds a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExtractHostnames walks the label map, parses every router rule, and
// returns each distinct hostname with its router attribution. The first
// router to declare a hostname wins.
func (p *Parser) ExtractHostnames(labels map[string]string) []HostnameExtraction {
	seen := make(map[string]struct{})
	var extractions []HostnameExtraction

	for key, value := range labels {
		router := extractRouterName(key)
		if router == "" {
			continue
		}

		p.logger.Debug("parsing traefik rule",
			slog.String("router", router),
			slog.String("rule", value),
		)

		for _, hostname := range extractHostsFromRule(value) {
			if _, dup := seen[hostname]; dup {
				continue
			}
			seen[hostname] = struct{}{}
			extractions = append(extractions, HostnameExtraction{
				Hostname: hostname,
				Router:   router,
			})
			p.logger.Debug("extracted hostname",
				slog.String("hostname", hostname),
				slog.String("router", router),
			)
		}
	}

	p.logger.Debug("extraction complete", slog.Int("count", len(extractions)))
	return extractions
}

// ExtractHosts is ExtractHostnames without the router attribution.
func (p *Parser) ExtractHosts(labels map[string]string) []string {
	extractions := p.ExtractHostnames(labels)
	hosts := make([]string, len(extractions))
	for i, e := range extractions {
		hosts[i] = e.Hostname
	}
	return hosts
}

// extractRouterName returns the router name from a rule label key, or ""
// for any other label:
//
//	traefik.http.routers.myapp.rule        -> "myapp"
//	traefik.http.routers.myapp.entrypoints -> ""
//	traefik.enable                         -> ""
func extractRouterName(key string) string {
	if !strings.HasPrefix(key, routerLabelPrefix) || !strings.HasSuffix(key, routerRuleSuffix) {
		return ""
	}
	name := strings.TrimSuffix(strings.TrimPrefix(key, routerLabelPrefix), routerRuleSuffix)
	return name
}

// extractHostsFromRule collects every hostname a rule's Host() matchers
// name, deduplicated, in order of appearance. Composite rules work:
//
//	Host(`a.example`) || Host(`b.example`)
//	Host(`a.example`) && PathPrefix(`/api`)
//	Host(`a.example`, `b.example`)
func extractHostsFromRule(rule string) []string {
	seen := make(map[string]struct{})
	var hosts []string

	for _, call := range hostCallRegex.FindAllStringSubmatch(rule, -1) {
		if len(call) < 2 {
			continue
		}
		for _, arg := range backtickArgRegex.FindAllStringSubmatch(call[1], -1) {
			hostname := strings.TrimSpace(arg[1])
			if hostname == "" {
				continue
			}
			if _, dup := seen[hostname]; dup {
				continue
			}
			seen[hostname] = struct{}{}
			hosts = append(hosts, hostname)
		}
	}

	return hosts
}

// ExtractHostsFromRule parses one rule string without a Parser instance.
func ExtractHostsFromRule(rule string) []string {
	return extractHostsFromRule(rule)
}
