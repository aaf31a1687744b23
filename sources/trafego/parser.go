package trafego

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Native label names.
const (
	// SimpleHostnameLabel declares one hostname using the provider
	// instance defaults for everything else.
	SimpleHostnameLabel = "trafego.hostname"

	// EnabledLabel set to "false" opts a workload out entirely.
	EnabledLabel = "trafego.enabled"

	// TTLLabel overrides the TTL in simple hostname mode.
	TTLLabel = "trafego.ttl"

	// RecordsPrefix introduces named record blocks:
	// trafego.records.<name>.<field>.
	RecordsPrefix = "trafego.records."
)

// Fields accepted inside a named record block.
const (
	FieldHostname = "hostname"
	FieldType     = "type"
	FieldTarget   = "target"
	FieldProvider = "provider"
	FieldTTL      = "ttl"
	FieldProxied  = "proxied"
	FieldPort     = "port"
	FieldPriority = "priority"
	FieldWeight   = "weight"
	FieldEnabled  = "enabled"
)

// namedRecordRegex captures the record name and field from a
// trafego.records.<name>.<field> label.
var namedRecordRegex = regexp.MustCompile(`^trafego\.records\.([a-zA-Z0-9_-]+)\.([a-zA-Z0-9_]+)$`)

// SRVData carries the SRV priority/weight/port tuple.
type SRVData struct {
	Port     uint16
	Priority uint16
	Weight   uint16
}

// Extraction is one hostname pulled from native labels, plus any per-record
// overrides the labels declared.
type Extraction struct {
	// Hostname is the FQDN from the labels.
	Hostname string

	// RecordName identifies the named record block; empty in simple mode.
	RecordName string

	// Type overrides the record type; empty keeps the instance default.
	Type string

	// Target overrides the record value; empty keeps the instance default.
	Target string

	// Provider pins the record to a named provider instance; empty uses
	// domain matching.
	Provider string

	// TTL overrides the TTL; zero keeps the instance default.
	TTL int

	// Proxied overrides the proxying flag; nil keeps the provider default.
	Proxied *bool

	// SRV carries SRV fields when declared.
	SRV *SRVData
}

// HasHints reports whether any override is present.
func (e Extraction) HasHints() bool {
	return e.Type != "" || e.Target != "" || e.Provider != "" || e.TTL > 0 || e.Proxied != nil || e.SRV != nil
}

// Parser reads native trafego labels.
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

// ExtractHostnames parses a workload's labels into extractions. The simple
// hostname label and any number of named record blocks can coexist;
// trafego.enabled=false silences the whole workload.
func (p *Parser) ExtractHostnames(labels map[string]string) []Extraction {
	var extractions []Extraction

	if enabled, ok := labels[EnabledLabel]; ok {
		if strings.EqualFold(strings.TrimSpace(enabled), "false") {
			p.logger.Debug("trafego.enabled is false, skipping workload")
			return extractions
		}
	}

	if e, ok := p.parseSimpleHostname(labels); ok {
		extractions = append(extractions, e)
	}

	for name, fields := range collectNamedRecords(labels) {
		if e, ok := p.parseNamedRecord(name, fields); ok {
			extractions = append(extractions, e)
		}
	}

	return extractions
}

// parseSimpleHostname handles the trafego.hostname / trafego.ttl pair.
func (p *Parser) parseSimpleHostname(labels map[string]string) (Extraction, bool) {
	hostname, ok := labels[SimpleHostnameLabel]
	if !ok {
		return Extraction{}, false
	}
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return Extraction{}, false
	}

	extraction := Extraction{Hostname: hostname}

	if ttlStr, ok := labels[TTLLabel]; ok && ttlStr != "" {
		if ttl, err := strconv.Atoi(strings.TrimSpace(ttlStr)); err == nil && ttl > 0 {
			extraction.TTL = ttl
		} else {
			p.logger.Warn("invalid TTL value for simple hostname",
				slog.String("hostname", hostname),
				slog.String("ttl", ttlStr),
			)
		}
	}

	p.logger.Debug("found simple trafego hostname",
		slog.String("hostname", hostname),
		slog.Int("ttl", extraction.TTL),
	)
	return extraction, true
}

// collectNamedRecords groups trafego.records.* labels by record name.
func collectNamedRecords(labels map[string]string) map[string]map[string]string {
	records := make(map[string]map[string]string)
	for key, value := range labels {
		matches := namedRecordRegex.FindStringSubmatch(key)
		if matches == nil {
			continue
		}
		name, field := matches[1], strings.ToLower(matches[2])
		if records[name] == nil {
			records[name] = make(map[string]string)
		}
		records[name][field] = strings.TrimSpace(value)
	}
	return records
}

// parseNamedRecord validates one record block. Blocks without a hostname
// (or explicitly disabled ones) are dropped with a log line.
func (p *Parser) parseNamedRecord(name string, fields map[string]string) (Extraction, bool) {
	if enabled, ok := fields[FieldEnabled]; ok {
		if strings.EqualFold(enabled, "false") {
			p.logger.Debug("named record disabled", slog.String("record", name))
			return Extraction{}, false
		}
	}

	hostname := fields[FieldHostname]
	if hostname == "" {
		p.logger.Warn("named record missing hostname", slog.String("record", name))
		return Extraction{}, false
	}

	extraction := Extraction{
		Hostname:   hostname,
		RecordName: name,
		Type:       strings.ToUpper(fields[FieldType]),
		Target:     fields[FieldTarget],
		Provider:   fields[FieldProvider],
	}

	if ttlStr := fields[FieldTTL]; ttlStr != "" {
		if ttl, err := strconv.Atoi(ttlStr); err == nil && ttl > 0 {
			extraction.TTL = ttl
		} else {
			p.logger.Warn("invalid TTL value",
				slog.String("record", name),
				slog.String("ttl", ttlStr),
			)
		}
	}

	if proxiedStr := fields[FieldProxied]; proxiedStr != "" {
		if proxied, err := strconv.ParseBool(proxiedStr); err == nil {
			extraction.Proxied = &proxied
		} else {
			p.logger.Warn("invalid proxied value",
				slog.String("record", name),
				slog.String("proxied", proxiedStr),
			)
		}
	}

	// SRV fields apply when the type says SRV or a port shows up.
	if extraction.Type == "SRV" || fields[FieldPort] != "" {
		srv := &SRVData{}
		hasSRVData := false

		set := func(field string, dst *uint16) {
			value := fields[field]
			if value == "" {
				return
			}
			parsed, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				p.logger.Warn("invalid "+field+" value",
					slog.String("record", name),
					slog.String(field, value),
				)
				return
			}
			*dst = uint16(parsed)
			hasSRVData = true
		}

		set(FieldPort, &srv.Port)
		set(FieldPriority, &srv.Priority)
		set(FieldWeight, &srv.Weight)

		if hasSRVData {
			extraction.SRV = srv
		}
	}

	p.logger.Debug("found named trafego record",
		slog.String("name", name),
		slog.String("hostname", hostname),
		slog.String("type", extraction.Type),
		slog.String("target", extraction.Target),
		slog.String("provider", extraction.Provider),
	)
	return extraction, true
}
