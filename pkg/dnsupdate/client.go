package dnsupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Sentinel errors for RFC 2136 operations.
var (
	// ErrNotConfigured is returned when the client is not properly configured.
	ErrNotConfigured = errors.New("dnsupdate client is not configured")

	// ErrUpdateFailed is returned when the DNS UPDATE operation fails.
	ErrUpdateFailed = errors.New("dns update failed")

	// ErrRecordNotFound is returned when a record cannot be found for deletion/update.
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists is returned when trying to create a record that already exists.
	ErrRecordExists = errors.New("record already exists")

	// ErrAuthenticationFailed is returned when TSIG authentication fails.
	ErrAuthenticationFailed = errors.New("tsig authentication failed")

	// ErrConnectionFailed is returned when the connection to the DNS server fails.
	ErrConnectionFailed = errors.New("connection to dns server failed")

	// ErrZoneMismatch is returned when a record name doesn't match the configured zone.
	ErrZoneMismatch = errors.New("record name does not match configured zone")

	// ErrAXFRFailed is returned when a zone transfer (AXFR) fails, typically
	// because the server restricts transfers.
	ErrAXFRFailed = errors.New("zone transfer (AXFR) failed")
)

// Client speaks RFC 2136 dynamic updates (and plain queries) against one
// zone on one server, optionally TSIG-signed.
type Client struct {
	config *Config
	tsig   *TSIG
	logger *slog.Logger

	mu         sync.RWMutex
	dnsClient  *dns.Client
	lastUpdate time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the client's logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient validates the configuration, builds the TSIG key if one is
// configured, and prepares the underlying dns.Client.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tsig, err := TSIGFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid TSIG configuration: %w", err)
	}

	c := &Client{
		config: config,
		tsig:   tsig,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.dnsClient = &dns.Client{Timeout: config.GetTimeout()}
	if config.UseTCP {
		c.dnsClient.Net = "tcp"
	} else {
		c.dnsClient.Net = "udp"
	}
	tsig.ApplyToClient(c.dnsClient)

	c.logger.Debug("RFC 2136 client initialized",
		slog.String("server", config.GetServer()),
		slog.String("zone", config.Zone),
		slog.Bool("tsig", tsig != nil),
		slog.Bool("tcp", config.UseTCP),
	)

	return c, nil
}

// Ping checks reachability and authority by querying the zone's SOA.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msg := new(dns.Msg)
	msg.SetQuestion(c.config.Zone, dns.TypeSOA)
	msg.RecursionDesired = false

	resp, rtt, err := c.exchangeWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("%w: server returned %s", ErrConnectionFailed, dns.RcodeToString[resp.Rcode])
	}

	c.logger.Debug("DNS server ping successful",
		slog.Duration("rtt", rtt),
		slog.Int("answers", len(resp.Answer)),
	)
	return nil
}

// sendUpdate builds an UPDATE message for the zone, lets build populate it,
// signs it when TSIG is configured, and runs the exchange. Callers hold the
// write lock.
func (c *Client) sendUpdate(ctx context.Context, build func(*dns.Msg)) error {
	msg := new(dns.Msg)
	msg.SetUpdate(c.config.Zone)
	build(msg)
	c.tsig.ApplyToMessage(msg)

	resp, _, err := c.exchangeWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if err := c.checkResponse(resp); err != nil {
		return err
	}

	c.lastUpdate = time.Now()
	return nil
}

// Create adds a record to the zone.
func (c *Client) Create(ctx context.Context, record Record) error {
	if err := c.validateRecord(record); err != nil {
		return err
	}
	rr, err := record.ToRR()
	if err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("creating DNS record",
		slog.String("name", record.Name),
		slog.String("type", record.TypeString()),
		slog.String("rdata", record.RData),
		slog.Uint64("ttl", uint64(record.TTL)),
	)

	if err := c.sendUpdate(ctx, func(msg *dns.Msg) {
		msg.Insert([]dns.RR{rr})
	}); err != nil {
		return err
	}

	c.logger.Info("DNS record created",
		slog.String("name", record.Name),
		slog.String("type", record.TypeString()),
	)
	return nil
}

// Update replaces oldRecord with newRecord in a single UPDATE message, so
// there is no window where neither exists.
func (c *Client) Update(ctx context.Context, oldRecord, newRecord Record) error {
	if err := c.validateRecord(oldRecord); err != nil {
		return fmt.Errorf("invalid old record: %w", err)
	}
	if err := c.validateRecord(newRecord); err != nil {
		return fmt.Errorf("invalid new record: %w", err)
	}

	oldRR, err := oldRecord.ToRR()
	if err != nil {
		return fmt.Errorf("invalid old record: %w", err)
	}
	newRR, err := newRecord.ToRR()
	if err != nil {
		return fmt.Errorf("invalid new record: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("updating DNS record",
		slog.String("name", oldRecord.Name),
		slog.String("type", oldRecord.TypeString()),
		slog.String("old_rdata", oldRecord.RData),
		slog.String("new_rdata", newRecord.RData),
	)

	if err := c.sendUpdate(ctx, func(msg *dns.Msg) {
		msg.Remove([]dns.RR{oldRR})
		msg.Insert([]dns.RR{newRR})
	}); err != nil {
		return err
	}

	c.logger.Info("DNS record updated",
		slog.String("name", newRecord.Name),
		slog.String("type", newRecord.TypeString()),
	)
	return nil
}

// Delete removes one specific record (name, type, rdata).
func (c *Client) Delete(ctx context.Context, record Record) error {
	if err := c.validateRecord(record); err != nil {
		return err
	}
	rr, err := record.ToRR()
	if err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("deleting DNS record",
		slog.String("name", record.Name),
		slog.String("type", record.TypeString()),
		slog.String("rdata", record.RData),
	)

	if err := c.sendUpdate(ctx, func(msg *dns.Msg) {
		msg.Remove([]dns.RR{rr})
	}); err != nil {
		return err
	}

	c.logger.Info("DNS record deleted",
		slog.String("name", record.Name),
		slog.String("type", record.TypeString()),
	)
	return nil
}

// DeleteAll removes every record of the given type at a name, using the
// class-ANY form of RFC 2136 §2.5.2.
func (c *Client) DeleteAll(ctx context.Context, name string, recordType uint16) error {
	owner := fqdn(name)
	if !c.isInZone(owner) {
		return fmt.Errorf("%w: %s not in zone %s", ErrZoneMismatch, owner, c.config.Zone)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rr := &dns.ANY{
		Hdr: dns.RR_Header{
			Name:   owner,
			Rrtype: recordType,
			Class:  dns.ClassANY,
		},
	}

	c.logger.Debug("deleting all DNS records of type",
		slog.String("name", owner),
		slog.String("type", dns.TypeToString[recordType]),
	)

	if err := c.sendUpdate(ctx, func(msg *dns.Msg) {
		msg.Ns = append(msg.Ns, rr)
	}); err != nil {
		return err
	}

	c.logger.Info("DNS records deleted",
		slog.String("name", owner),
		slog.String("type", dns.TypeToString[recordType]),
	)
	return nil
}

// Query reads the current records of one type at a name with a plain
// (non-UPDATE) question. NXDOMAIN is an empty result, not an error.
func (c *Client) Query(ctx context.Context, name string, recordType uint16) ([]Record, error) {
	owner := fqdn(name)

	c.mu.RLock()
	defer c.mu.RUnlock()

	msg := new(dns.Msg)
	msg.SetQuestion(owner, recordType)
	msg.RecursionDesired = false

	resp, _, err := c.exchangeWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("dns query failed: %w", err)
	}

	if resp.Rcode == dns.RcodeNameError {
		return []Record{}, nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns query returned %s", dns.RcodeToString[resp.Rcode])
	}

	records := make([]Record, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		record, err := RecordFromRR(rr)
		if err != nil {
			c.logger.Warn("failed to parse DNS record",
				slog.String("error", err.Error()),
				slog.String("rr", rr.String()),
			)
			continue
		}
		records = append(records, record)
	}

	c.logger.Debug("DNS query complete",
		slog.String("name", owner),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// ListByAXFR pulls the whole zone via zone transfer. Most servers restrict
// AXFR by source address; ErrAXFRFailed is expected when this client is not
// on the allow list. SOA and NS records are zone plumbing and are skipped.
func (c *Client) ListByAXFR(ctx context.Context) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	transfer := &dns.Transfer{}
	if c.tsig != nil {
		transfer.TsigSecret = map[string]string{c.tsig.Name: c.tsig.Secret}
	}

	msg := new(dns.Msg)
	msg.SetAxfr(c.config.Zone)
	c.tsig.ApplyToMessage(msg)

	c.logger.Debug("initiating AXFR zone transfer",
		slog.String("server", c.config.GetServer()),
		slog.String("zone", c.config.Zone),
	)

	env, err := transfer.In(msg, c.config.GetServer())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAXFRFailed, err)
	}

	var records []Record
	for e := range env {
		if e.Error != nil {
			c.logger.Warn("AXFR envelope error", slog.String("error", e.Error.Error()))
			continue
		}
		for _, rr := range e.RR {
			header := rr.Header()
			if header.Rrtype == dns.TypeSOA || header.Rrtype == dns.TypeNS {
				continue
			}
			record, err := RecordFromRR(rr)
			if err != nil {
				c.logger.Debug("skipping unsupported record type",
					slog.String("type", dns.TypeToString[header.Rrtype]),
					slog.String("name", header.Name),
				)
				continue
			}
			records = append(records, record)
		}
	}

	c.logger.Debug("AXFR zone transfer complete",
		slog.String("zone", c.config.Zone),
		slog.Int("records", len(records)),
	)
	return records, nil
}

// Zone returns the configured zone name.
func (c *Client) Zone() string {
	return c.config.Zone
}

// Server returns the configured server address with port.
func (c *Client) Server() string {
	return c.config.GetServer()
}

// LastUpdate returns when the last update succeeded.
func (c *Client) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Close is a no-op; RFC 2136 exchanges do not hold connections open.
func (c *Client) Close() error {
	return nil
}

// exchangeWithContext runs one DNS exchange, honoring context cancellation.
func (c *Client) exchangeWithContext(ctx context.Context, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
	type result struct {
		resp *dns.Msg
		rtt  time.Duration
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		resp, rtt, err := c.dnsClient.Exchange(msg, c.config.GetServer())
		ch <- result{resp, rtt, err}
	}()

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case r := <-ch:
		return r.resp, r.rtt, r.err
	}
}

// checkResponse maps UPDATE rcodes onto the sentinel errors.
func (c *Client) checkResponse(resp *dns.Msg) error {
	if resp == nil {
		return fmt.Errorf("%w: no response from server", ErrUpdateFailed)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
		return nil
	case dns.RcodeYXRrset:
		return ErrRecordExists
	case dns.RcodeNXRrset:
		return ErrRecordNotFound
	case dns.RcodeNotAuth:
		if resp.IsTsig() != nil {
			return fmt.Errorf("%w: %s", ErrAuthenticationFailed, dns.RcodeToString[resp.Rcode])
		}
		return fmt.Errorf("%w: server not authoritative for zone", ErrUpdateFailed)
	case dns.RcodeRefused:
		return fmt.Errorf("%w: update refused (check server policy or TSIG configuration)", ErrUpdateFailed)
	case dns.RcodeNotZone:
		return ErrZoneMismatch
	default:
		return fmt.Errorf("%w: %s", ErrUpdateFailed, dns.RcodeToString[resp.Rcode])
	}
}

// validateRecord rejects records with no name or outside the zone before
// anything reaches the wire.
func (c *Client) validateRecord(record Record) error {
	if record.Name == "" {
		return errors.New("record name is required")
	}
	if owner := fqdn(record.Name); !c.isInZone(owner) {
		return fmt.Errorf("%w: %s not in zone %s", ErrZoneMismatch, owner, c.config.Zone)
	}
	return nil
}

// isInZone checks zone membership case-insensitively.
func (c *Client) isInZone(owner string) bool {
	return strings.HasSuffix(strings.ToLower(owner), strings.ToLower(fqdn(c.config.Zone)))
}

// RcodeToError maps a bare rcode onto the sentinel errors.
func RcodeToError(rcode int) error {
	switch rcode {
	case dns.RcodeSuccess:
		return nil
	case dns.RcodeYXRrset:
		return ErrRecordExists
	case dns.RcodeNXRrset:
		return ErrRecordNotFound
	case dns.RcodeNotAuth:
		return ErrAuthenticationFailed
	default:
		return fmt.Errorf("%w: %s", ErrUpdateFailed, dns.RcodeToString[rcode])
	}
}

// IsNetworkError reports whether err is transport-level.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsAuthError reports whether err is a TSIG authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}
