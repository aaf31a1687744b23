// Package dnsupdate provides RFC 2136 dynamic DNS update functionality.
package dnsupdate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

const (
	// CatalogPrefix names the catalog chunk records:
	// _trafego-catalog-N.<zone>.
	CatalogPrefix = "_trafego-catalog-"

	// CatalogMaxChunkBytes caps a chunk's payload. EDNS0 responses top out
	// around 4096 bytes; 3500 leaves headroom for headers and TSIG. This is
	// the primary packing limit.
	CatalogMaxChunkBytes = 3500

	// CatalogMaxHostnameLen mirrors the RFC 1035 FQDN cap, so no single
	// hostname can outgrow a chunk.
	CatalogMaxHostnameLen = 253

	// CatalogChunkSize caps hostnames per chunk. Secondary to the byte
	// limit; only pathologically short names would hit it first.
	CatalogChunkSize = 100

	// CatalogTTL is the TTL on catalog records.
	CatalogTTL = 300
)

// ErrHostnameTooLong rejects hostnames that cannot fit a chunk.
var ErrHostnameTooLong = fmt.Errorf("hostname exceeds maximum length of %d bytes", CatalogMaxHostnameLen)

// Catalog enumerates the hostnames this engine manages in an RFC 2136 zone
// without needing AXFR. The set is stored in chunked TXT records:
//
//	_trafego-catalog-0.<zone>  TXT "host1" "host2" ...
//	_trafego-catalog-1.<zone>  TXT "host101" ...
//
// Chunks are discovered by querying indices upward until the first missing
// record, so the catalog needs no separate manifest.
type Catalog struct {
	client *Client
	zone   string
	logger *slog.Logger

	// In-memory mirror, populated by Load.
	chunks    [][]string     // chunk index -> hostnames
	hostnames map[string]int // hostname -> chunk index
	loaded    bool
}

// NewCatalog builds a Catalog over an existing update client.
func NewCatalog(client *Client, zone string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		client:    client,
		zone:      zone,
		logger:    logger,
		hostnames: make(map[string]int),
	}
}

func (c *Catalog) chunkRecordName(chunkIndex int) string {
	return fmt.Sprintf("%s%d.%s", CatalogPrefix, chunkIndex, c.zone)
}

// Load reads every chunk from DNS, rebuilding the in-memory mirror. Safe to
// call repeatedly; each call is a full refresh.
func (c *Catalog) Load(ctx context.Context) error {
	c.chunks = nil
	c.hostnames = make(map[string]int)
	c.loaded = false

	c.logger.Debug("loading catalog from DNS", slog.String("zone", c.zone))

	for chunkIndex := 0; ; chunkIndex++ {
		name := c.chunkRecordName(chunkIndex)
		records, err := c.client.Query(ctx, name, dns.TypeTXT)
		if err != nil {
			return fmt.Errorf("querying catalog chunk %d: %w", chunkIndex, err)
		}
		if len(records) == 0 {
			// First missing index terminates the chunk walk.
			break
		}

		var chunkHostnames []string
		for _, r := range records {
			if r.Type == dns.TypeTXT {
				chunkHostnames = append(chunkHostnames, parseTXTHostnames(r.RData)...)
			}
		}

		c.chunks = append(c.chunks, chunkHostnames)
		for _, hostname := range chunkHostnames {
			c.hostnames[hostname] = chunkIndex
		}

		c.logger.Debug("loaded catalog chunk",
			slog.Int("chunk", chunkIndex),
			slog.Int("hostnames", len(chunkHostnames)),
		)
	}

	c.loaded = true
	c.logger.Debug("catalog load complete",
		slog.Int("chunks", len(c.chunks)),
		slog.Int("total_hostnames", len(c.hostnames)),
	)
	return nil
}

// ensureLoaded lazily loads the catalog for read operations.
func (c *Catalog) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	return c.Load(ctx)
}

// Hostnames returns every catalog hostname, sorted.
func (c *Catalog) Hostnames(ctx context.Context) ([]string, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(c.hostnames))
	for hostname := range c.hostnames {
		result = append(result, hostname)
	}
	sort.Strings(result)
	return result, nil
}

// Contains reports catalog membership, case- and trailing-dot-insensitive.
func (c *Catalog) Contains(ctx context.Context, hostname string) (bool, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return false, err
	}
	_, exists := c.hostnames[normalizeHostname(hostname)]
	return exists, nil
}

// chunkByteSize totals the TXT payload a chunk occupies: each hostname
// costs its length plus one length-prefix byte.
func chunkByteSize(chunk []string) int {
	total := 0
	for _, h := range chunk {
		total += len(h) + 1
	}
	return total
}

// canFitInChunk applies both the count cap and the byte cap.
func canFitInChunk(chunk []string, hostname string) bool {
	if len(chunk) >= CatalogChunkSize {
		return false
	}
	return chunkByteSize(chunk)+len(hostname)+1 <= CatalogMaxChunkBytes
}

// Add inserts a hostname into the first chunk with room, creating a new
// chunk when none fits, and writes that chunk back to DNS. Adding an
// already-present hostname is a no-op.
func (c *Catalog) Add(ctx context.Context, hostname string) error {
	hostname = normalizeHostname(hostname)

	if len(hostname) > CatalogMaxHostnameLen {
		c.logger.Error("hostname too long for catalog",
			slog.String("hostname", hostname),
			slog.Int("length", len(hostname)),
			slog.Int("max_length", CatalogMaxHostnameLen),
		)
		return ErrHostnameTooLong
	}

	if err := c.Load(ctx); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	if _, exists := c.hostnames[hostname]; exists {
		c.logger.Debug("hostname already in catalog", slog.String("hostname", hostname))
		return nil
	}

	targetChunk := -1
	for i, chunk := range c.chunks {
		if canFitInChunk(chunk, hostname) {
			targetChunk = i
			break
		}
	}
	if targetChunk == -1 {
		targetChunk = len(c.chunks)
		c.chunks = append(c.chunks, []string{})
		c.logger.Debug("creating new catalog chunk", slog.Int("chunk", targetChunk))
	}

	c.chunks[targetChunk] = append(c.chunks[targetChunk], hostname)
	c.hostnames[hostname] = targetChunk

	if err := c.writeChunk(ctx, targetChunk); err != nil {
		// Roll the local mirror back so it matches DNS.
		c.chunks[targetChunk] = c.chunks[targetChunk][:len(c.chunks[targetChunk])-1]
		delete(c.hostnames, hostname)
		return fmt.Errorf("writing catalog chunk %d: %w", targetChunk, err)
	}

	c.logger.Debug("added hostname to catalog",
		slog.String("hostname", hostname),
		slog.Int("chunk", targetChunk),
	)
	return nil
}

// Remove deletes a hostname from its chunk and writes the chunk back. A
// chunk emptied by the removal is deleted from DNS, except chunk 0, which
// stays as the catalog's existence marker. Removing an absent hostname is a
// no-op.
func (c *Catalog) Remove(ctx context.Context, hostname string) error {
	hostname = normalizeHostname(hostname)

	if err := c.Load(ctx); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	chunkIndex, exists := c.hostnames[hostname]
	if !exists {
		c.logger.Debug("hostname not in catalog", slog.String("hostname", hostname))
		return nil
	}

	chunk := c.chunks[chunkIndex]
	newChunk := make([]string, 0, len(chunk)-1)
	for _, h := range chunk {
		if h != hostname {
			newChunk = append(newChunk, h)
		}
	}
	c.chunks[chunkIndex] = newChunk
	delete(c.hostnames, hostname)

	if len(newChunk) == 0 && chunkIndex > 0 {
		if err := c.deleteChunk(ctx, chunkIndex); err != nil {
			c.chunks[chunkIndex] = chunk
			c.hostnames[hostname] = chunkIndex
			return fmt.Errorf("deleting empty catalog chunk %d: %w", chunkIndex, err)
		}
		c.reindexAfterDelete(chunkIndex)
	} else {
		if err := c.writeChunk(ctx, chunkIndex); err != nil {
			c.chunks[chunkIndex] = chunk
			c.hostnames[hostname] = chunkIndex
			return fmt.Errorf("writing catalog chunk %d: %w", chunkIndex, err)
		}
	}

	c.logger.Debug("removed hostname from catalog",
		slog.String("hostname", hostname),
		slog.Int("former_chunk", chunkIndex),
	)
	return nil
}

// chunkUpdate sends one UPDATE for a chunk record: wipe the existing TXT
// RRset, then optionally insert the replacement. Delete-then-insert in one
// message keeps the swap atomic on the server.
func (c *Catalog) chunkUpdate(ctx context.Context, name string, replacement *dns.TXT) error {
	msg := new(dns.Msg)
	msg.SetUpdate(c.zone)

	msg.Ns = append(msg.Ns, &dns.ANY{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeTXT,
			Class:  dns.ClassANY,
		},
	})
	if replacement != nil {
		msg.Insert([]dns.RR{replacement})
	}

	c.client.tsig.ApplyToMessage(msg)

	resp, _, err := c.client.exchangeWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("dns update failed: %w", err)
	}
	return c.client.checkResponse(resp)
}

// writeChunk replaces a chunk's TXT record with the current in-memory
// contents, sorted for stable output.
func (c *Catalog) writeChunk(ctx context.Context, chunkIndex int) error {
	name := c.chunkRecordName(chunkIndex)

	txtStrings := make([]string, len(c.chunks[chunkIndex]))
	copy(txtStrings, c.chunks[chunkIndex])
	sort.Strings(txtStrings)

	var replacement *dns.TXT
	if len(txtStrings) > 0 {
		replacement = &dns.TXT{
			Hdr: dns.RR_Header{
				Name:   name,
				Rrtype: dns.TypeTXT,
				Class:  dns.ClassINET,
				Ttl:    CatalogTTL,
			},
			Txt: txtStrings,
		}
	}
	return c.chunkUpdate(ctx, name, replacement)
}

// deleteChunk removes a chunk record from DNS.
func (c *Catalog) deleteChunk(ctx context.Context, chunkIndex int) error {
	return c.chunkUpdate(ctx, c.chunkRecordName(chunkIndex), nil)
}

// reindexAfterDelete compacts the local mirror after a chunk deletion. The
// DNS side now has an index gap, which Load would stop at; the next Add or
// an explicit Compact closes it.
func (c *Catalog) reindexAfterDelete(deletedIndex int) {
	c.chunks = append(c.chunks[:deletedIndex], c.chunks[deletedIndex+1:]...)

	c.hostnames = make(map[string]int)
	for i, chunk := range c.chunks {
		for _, hostname := range chunk {
			c.hostnames[hostname] = i
		}
	}
}

// Compact repacks every hostname into gap-free, byte-balanced chunks and
// rewrites them all. Expensive; use after bulk removals.
func (c *Catalog) Compact(ctx context.Context) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	allHostnames := make([]string, 0, len(c.hostnames))
	for hostname := range c.hostnames {
		allHostnames = append(allHostnames, hostname)
	}
	sort.Strings(allHostnames)

	oldChunkCount := len(c.chunks)

	var newChunks [][]string
	var currentChunk []string
	for _, hostname := range allHostnames {
		if len(currentChunk) > 0 && !canFitInChunk(currentChunk, hostname) {
			newChunks = append(newChunks, currentChunk)
			currentChunk = nil
		}
		currentChunk = append(currentChunk, hostname)
	}
	if len(currentChunk) > 0 {
		newChunks = append(newChunks, currentChunk)
	}
	// Chunk 0 always exists, even empty, as the catalog marker.
	if len(newChunks) == 0 {
		newChunks = [][]string{{}}
	}

	newHostnames := make(map[string]int)
	for i, chunk := range newChunks {
		for _, hostname := range chunk {
			newHostnames[hostname] = i
		}
	}

	c.chunks = newChunks
	for i := range newChunks {
		if err := c.writeChunk(ctx, i); err != nil {
			return fmt.Errorf("writing compacted chunk %d: %w", i, err)
		}
	}

	// Old tail chunks beyond the new count are garbage; failures here leave
	// harmless orphans.
	for i := len(newChunks); i < oldChunkCount; i++ {
		if err := c.deleteChunk(ctx, i); err != nil {
			c.logger.Warn("failed to delete old chunk during compaction",
				slog.Int("chunk", i),
				slog.String("error", err.Error()),
			)
		}
	}

	c.hostnames = newHostnames

	c.logger.Info("catalog compacted",
		slog.Int("hostnames", len(allHostnames)),
		slog.Int("chunks", len(newChunks)),
		slog.Int("old_chunks", oldChunkCount),
	)
	return nil
}

// Clear deletes every catalog record from DNS and resets the mirror.
func (c *Catalog) Clear(ctx context.Context) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	for i := range c.chunks {
		if err := c.deleteChunk(ctx, i); err != nil {
			return fmt.Errorf("deleting chunk %d: %w", i, err)
		}
	}

	c.chunks = nil
	c.hostnames = make(map[string]int)
	c.loaded = false

	c.logger.Info("catalog cleared")
	return nil
}

// CatalogStats snapshots catalog occupancy.
type CatalogStats struct {
	Loaded             bool
	ChunkCount         int
	TotalHostnames     int
	TotalBytesUsed     int
	MaxChunkBytes      int
	MaxChunkCount      int
	MaxHostnameLen     int
	ChunkBytesUsed     []int
	ChunkHostnameCount []int
}

// Stats reports per-chunk byte and hostname usage.
func (c *Catalog) Stats() CatalogStats {
	stats := CatalogStats{
		Loaded:             c.loaded,
		ChunkCount:         len(c.chunks),
		TotalHostnames:     len(c.hostnames),
		MaxChunkBytes:      CatalogMaxChunkBytes,
		MaxChunkCount:      CatalogChunkSize,
		MaxHostnameLen:     CatalogMaxHostnameLen,
		ChunkBytesUsed:     make([]int, len(c.chunks)),
		ChunkHostnameCount: make([]int, len(c.chunks)),
	}
	for i, chunk := range c.chunks {
		stats.ChunkBytesUsed[i] = chunkByteSize(chunk)
		stats.ChunkHostnameCount[i] = len(chunk)
		stats.TotalBytesUsed += stats.ChunkBytesUsed[i]
	}
	return stats
}

// parseTXTHostnames splits the space-joined TXT strings Query produces back
// into hostnames.
func parseTXTHostnames(rdata string) []string {
	if rdata == "" {
		return nil
	}
	parts := strings.Fields(rdata)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// normalizeHostname lowercases and strips the trailing dot for catalog
// storage.
func normalizeHostname(hostname string) string {
	return strings.ToLower(strings.TrimSuffix(hostname, "."))
}
