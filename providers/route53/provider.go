// Package route53 implements the Trafego provider interface for AWS Route53
// using the aws-sdk-go-v2 service client.
//
// Route53 groups values for the same (name, type) into a single resource
// record set, so the engine's one-record-per-target model is mapped onto
// per-value edits: creating a record appends a value to the set (UPSERT),
// deleting removes one value and deletes the set only when it empties.
package route53

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsroute53 "github.com/aws/aws-sdk-go-v2/service/route53"
	route53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/smithy-go"

	"github.com/trafegodns/trafego/pkg/provider"
)

// DefaultRegion is used when no region is configured. Route53 is a global
// service; the region only scopes the API endpoint signature.
const DefaultRegion = "us-east-1"

// listPageSize bounds each ListResourceRecordSets page.
const listPageSize = int32(300)

// route53API is the slice of the route53 client the provider uses.
// Declared locally so tests can substitute a fake without AWS credentials.
type route53API interface {
	ListResourceRecordSets(ctx context.Context, params *awsroute53.ListResourceRecordSetsInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *awsroute53.ChangeResourceRecordSetsInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ChangeResourceRecordSetsOutput, error)
	GetHostedZone(ctx context.Context, params *awsroute53.GetHostedZoneInput, optFns ...func(*awsroute53.Options)) (*awsroute53.GetHostedZoneOutput, error)
	ListHostedZonesByName(ctx context.Context, params *awsroute53.ListHostedZonesByNameInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ListHostedZonesByNameOutput, error)
}

// Provider implements provider.Provider for AWS Route53.
type Provider struct {
	name   string
	zone   string // Zone name (for display/lookup)
	zoneID string // Resolved hosted zone ID
	ttl    int
	client route53API
	logger *slog.Logger

	// zoneIDOnce ensures hosted zone lookup happens only once
	zoneIDOnce sync.Once
	zoneIDErr  error
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// withClient substitutes the route53 API client. Used by tests.
func withClient(client route53API) ProviderOption {
	return func(p *Provider) {
		p.client = client
	}
}

// New creates a new Route53 provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:   name,
		zone:   strings.TrimSuffix(strings.ToLower(config.Zone), "."),
		zoneID: normalizeZoneID(config.HostedZoneID),
		ttl:    config.TTL,
		logger: slog.Default(),
	}
	if p.ttl <= 0 {
		p.ttl = DefaultTTL
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		region := config.Region
		if region == "" {
			region = DefaultRegion
		}

		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(region),
		}
		if config.AccessKeyID != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws configuration: %w", err)
		}
		p.client = awsroute53.NewFromConfig(awsCfg)
	}

	return p, nil
}

// NewFromEnv creates a new Route53 provider from environment variables.
func NewFromEnv(instanceName string, opts ...ProviderOption) (*Provider, error) {
	config, err := LoadConfig(instanceName)
	if err != nil {
		return nil, err
	}

	return New(instanceName, config, opts...)
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "route53".
func (p *Provider) Type() string {
	return "route53"
}

// Capabilities returns the provider's feature support. Route53 has no record
// comments and no proxying; multi-value record sets are native.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsOwnershipTXT: true,
		SupportsNativeUpdate: true,
		SupportedRecordTypes: []provider.RecordType{
			provider.RecordTypeA,
			provider.RecordTypeAAAA,
			provider.RecordTypeCNAME,
			provider.RecordTypeTXT,
			provider.RecordTypeSRV,
			provider.RecordTypeMX,
			provider.RecordTypeCAA,
			provider.RecordTypeNS,
		},
		SupportsProxying:    false,
		SupportsMultiValueA: true,
		SupportsComments:    false,
	}
}

// OwnershipMarker returns the default ownership token.
func (p *Provider) OwnershipMarker() string {
	return provider.OwnershipMarker
}

// ZoneID returns the resolved hosted zone ID, looking it up by zone name if
// it was not configured directly.
func (p *Provider) ZoneID(ctx context.Context) (string, error) {
	if p.zoneID != "" {
		return p.zoneID, nil
	}

	p.zoneIDOnce.Do(func() {
		out, err := p.client.ListHostedZonesByName(ctx, &awsroute53.ListHostedZonesByNameInput{
			DNSName: aws.String(p.zone + "."),
		})
		if err != nil {
			p.zoneIDErr = mapError("looking up hosted zone", err)
			return
		}
		for _, hz := range out.HostedZones {
			if strings.TrimSuffix(aws.ToString(hz.Name), ".") == p.zone {
				p.zoneID = normalizeZoneID(aws.ToString(hz.Id))
				return
			}
		}
		p.zoneIDErr = fmt.Errorf("hosted zone %q not found: %w", p.zone, provider.ErrNotFound)
	})

	if p.zoneIDErr != nil {
		return "", p.zoneIDErr
	}
	return p.zoneID, nil
}

// Ping checks connectivity and credentials by fetching the hosted zone.
func (p *Provider) Ping(ctx context.Context) error {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return err
	}
	_, err = p.client.GetHostedZone(ctx, &awsroute53.GetHostedZoneInput{
		Id: aws.String(zoneID),
	})
	if err != nil {
		return mapError("ping", err)
	}
	return nil
}

// List returns all records in the hosted zone, one canonical record per
// value in each resource record set.
func (p *Provider) List(ctx context.Context) ([]provider.Record, error) {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return nil, err
	}

	var records []provider.Record

	input := &awsroute53.ListResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		MaxItems:     aws.Int32(listPageSize),
	}
	for {
		out, err := p.client.ListResourceRecordSets(ctx, input)
		if err != nil {
			return nil, mapError("listing record sets", err)
		}

		for _, rrset := range out.ResourceRecordSets {
			records = append(records, p.toRecords(rrset)...)
		}

		if !out.IsTruncated {
			break
		}
		input.StartRecordName = out.NextRecordName
		input.StartRecordType = out.NextRecordType
	}

	p.logger.Debug("listed records",
		slog.String("provider", p.name),
		slog.String("zone_id", zoneID),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// Create adds a value to the (name, type) record set, creating the set if it
// does not exist. A value already present in the set is a conflict.
func (p *Provider) Create(ctx context.Context, record provider.Record) error {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return err
	}

	rrset, err := p.lookupRecordSet(ctx, zoneID, record.Type, record.Hostname)
	if err != nil {
		return err
	}

	value, err := toValue(record)
	if err != nil {
		return err
	}

	ttl := int64(record.TTL)
	if record.TTL <= 0 || record.TTL == provider.AutoTTL {
		ttl = int64(p.ttl)
	}

	if rrset == nil {
		rrset = &route53types.ResourceRecordSet{
			Name: aws.String(qualifiedName(record.Hostname)),
			Type: route53types.RRType(record.Type),
			TTL:  aws.Int64(ttl),
		}
	} else {
		for _, rr := range rrset.ResourceRecords {
			if valuesEqual(aws.ToString(rr.Value), value, record.Type) {
				return fmt.Errorf("creating %s record for %s: %w", record.Type, record.Hostname, provider.ErrConflict)
			}
		}
		rrset.TTL = aws.Int64(ttl)
	}
	rrset.ResourceRecords = append(rrset.ResourceRecords, route53types.ResourceRecord{
		Value: aws.String(value),
	})

	if err := p.change(ctx, zoneID, route53types.ChangeActionUpsert, rrset); err != nil {
		return mapError(fmt.Sprintf("creating %s record", record.Type), err)
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
		slog.Int64("ttl", ttl),
	)

	return nil
}

// Delete removes one value from the (name, type) record set, deleting the
// whole set when the last value goes. Deleting a value that is not present
// is not an error.
func (p *Provider) Delete(ctx context.Context, record provider.Record) error {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return err
	}

	rrset, err := p.lookupRecordSet(ctx, zoneID, record.Type, record.Hostname)
	if err != nil {
		return err
	}
	if rrset == nil {
		p.logger.Warn("record not found for deletion",
			slog.String("hostname", record.Hostname),
			slog.String("type", string(record.Type)),
		)
		return nil
	}

	value, err := toValue(record)
	if err != nil {
		return err
	}

	remaining := rrset.ResourceRecords[:0]
	removed := false
	for _, rr := range rrset.ResourceRecords {
		if !removed && valuesEqual(aws.ToString(rr.Value), value, record.Type) {
			removed = true
			continue
		}
		remaining = append(remaining, rr)
	}
	if !removed {
		return nil
	}

	var action route53types.ChangeAction
	if len(remaining) == 0 {
		// Last value: delete the set. Route53 requires the DELETE change to
		// match the stored set exactly, so put the removed value back.
		action = route53types.ChangeActionDelete
		rrset.ResourceRecords = append(remaining, route53types.ResourceRecord{Value: aws.String(value)})
	} else {
		action = route53types.ChangeActionUpsert
		rrset.ResourceRecords = remaining
	}

	if err := p.change(ctx, zoneID, action, rrset); err != nil {
		return mapError(fmt.Sprintf("deleting %s record", record.Type), err)
	}

	p.logger.Info("deleted record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
	)

	return nil
}

// Update replaces one value in the (name, type) record set.
// This implements the provider.Updater interface.
func (p *Provider) Update(ctx context.Context, existing, desired provider.Record) error {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return err
	}

	rrset, err := p.lookupRecordSet(ctx, zoneID, existing.Type, existing.Hostname)
	if err != nil {
		return err
	}
	if rrset == nil {
		return provider.ErrNotFound
	}

	oldValue, err := toValue(existing)
	if err != nil {
		return err
	}
	newValue, err := toValue(desired)
	if err != nil {
		return err
	}

	replaced := false
	for i, rr := range rrset.ResourceRecords {
		if valuesEqual(aws.ToString(rr.Value), oldValue, existing.Type) {
			rrset.ResourceRecords[i].Value = aws.String(newValue)
			replaced = true
			break
		}
	}
	if !replaced {
		return provider.ErrNotFound
	}

	if desired.TTL > 0 && desired.TTL != provider.AutoTTL {
		rrset.TTL = aws.Int64(int64(desired.TTL))
	}

	if err := p.change(ctx, zoneID, route53types.ChangeActionUpsert, rrset); err != nil {
		return mapError(fmt.Sprintf("updating %s record", desired.Type), err)
	}

	p.logger.Info("updated record",
		slog.String("provider", p.name),
		slog.String("hostname", desired.Hostname),
		slog.String("type", string(desired.Type)),
		slog.String("target", desired.Target),
	)

	return nil
}

// change submits a single-change batch against the hosted zone.
func (p *Provider) change(ctx context.Context, zoneID string, action route53types.ChangeAction, rrset *route53types.ResourceRecordSet) error {
	_, err := p.client.ChangeResourceRecordSets(ctx, &awsroute53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &route53types.ChangeBatch{
			Changes: []route53types.Change{
				{Action: action, ResourceRecordSet: rrset},
			},
		},
	})
	return err
}

// lookupRecordSet fetches the record set for (type, hostname), or nil if no
// such set exists. StartRecordName scopes the listing so a zone with many
// records does not require a full scan.
func (p *Provider) lookupRecordSet(ctx context.Context, zoneID string, rt provider.RecordType, hostname string) (*route53types.ResourceRecordSet, error) {
	qualified := qualifiedName(hostname)

	out, err := p.client.ListResourceRecordSets(ctx, &awsroute53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(qualified),
		StartRecordType: route53types.RRType(rt),
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return nil, mapError("finding record set", err)
	}

	for _, rrset := range out.ResourceRecordSets {
		if unescapeName(aws.ToString(rrset.Name)) == strings.TrimSuffix(strings.ToLower(hostname), ".") &&
			string(rrset.Type) == string(rt) {
			match := rrset
			return &match, nil
		}
	}
	return nil, nil
}

// toRecords expands a resource record set into canonical records, one per
// value. Unsupported types (SOA, alias sets without values) yield nothing.
func (p *Provider) toRecords(rrset route53types.ResourceRecordSet) []provider.Record {
	rt := provider.RecordType(rrset.Type)
	switch rt {
	case provider.RecordTypeA, provider.RecordTypeAAAA, provider.RecordTypeCNAME,
		provider.RecordTypeTXT, provider.RecordTypeSRV, provider.RecordTypeMX,
		provider.RecordTypeCAA, provider.RecordTypeNS:
	default:
		return nil
	}

	hostname := unescapeName(aws.ToString(rrset.Name))
	ttl := int(aws.ToInt64(rrset.TTL))

	var records []provider.Record
	for _, rr := range rrset.ResourceRecords {
		rec := provider.Record{
			Hostname: hostname,
			Type:     rt,
			TTL:      ttl,
			// Route53 has no per-record ID; the set (name, type) plus the
			// value is the identity.
			ProviderID: string(rt) + "|" + hostname,
		}
		if !parseValue(&rec, aws.ToString(rr.Value)) {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// toValue renders a canonical record as a Route53 resource record value.
func toValue(record provider.Record) (string, error) {
	switch record.Type {
	case provider.RecordTypeTXT:
		return quoteTXT(record.Target), nil
	case provider.RecordTypeSRV:
		if record.SRV == nil {
			return "", fmt.Errorf("creating SRV record: SRV data is required")
		}
		return fmt.Sprintf("%d %d %d %s", record.SRV.Priority, record.SRV.Weight, record.SRV.Port, qualifiedName(record.Target)), nil
	case provider.RecordTypeMX:
		if record.MXPriority == nil {
			return "", fmt.Errorf("creating MX record: priority is required")
		}
		return fmt.Sprintf("%d %s", *record.MXPriority, qualifiedName(record.Target)), nil
	case provider.RecordTypeCAA:
		if record.CAA == nil {
			return "", fmt.Errorf("creating CAA record: flags and tag are required")
		}
		return fmt.Sprintf("%d %s %q", record.CAA.Flags, record.CAA.Tag, record.Target), nil
	default:
		return record.Target, nil
	}
}

// parseValue fills a record's target and type-conditional fields from a
// Route53 resource record value. Returns false for malformed values.
func parseValue(rec *provider.Record, value string) bool {
	switch rec.Type {
	case provider.RecordTypeTXT:
		rec.Target = unquoteTXT(value)
	case provider.RecordTypeSRV:
		var prio, weight, port uint16
		var target string
		if _, err := fmt.Sscanf(value, "%d %d %d %s", &prio, &weight, &port, &target); err != nil {
			return false
		}
		rec.SRV = &provider.SRVData{Priority: prio, Weight: weight, Port: port}
		rec.Target = strings.TrimSuffix(target, ".")
	case provider.RecordTypeMX:
		var prio uint16
		var target string
		if _, err := fmt.Sscanf(value, "%d %s", &prio, &target); err != nil {
			return false
		}
		rec.MXPriority = &prio
		rec.Target = strings.TrimSuffix(target, ".")
	case provider.RecordTypeCAA:
		var flags uint8
		var tag, target string
		if _, err := fmt.Sscanf(value, "%d %s %q", &flags, &tag, &target); err != nil {
			return false
		}
		rec.CAA = &provider.CAAData{Flags: flags, Tag: tag}
		rec.Target = target
	default:
		rec.Target = strings.TrimSuffix(value, ".")
	}
	return true
}

// qualifiedName appends the trailing dot Route53 stores names with.
func qualifiedName(name string) string {
	n := strings.ToLower(name)
	if !strings.HasSuffix(n, ".") {
		n += "."
	}
	return n
}

// unescapeName normalizes a Route53-stored name: lowercase, no trailing
// dot, and the octal wildcard escape folded back to "*".
func unescapeName(name string) string {
	n := strings.TrimSuffix(strings.ToLower(name), ".")
	return strings.ReplaceAll(n, `\052`, "*")
}

// quoteTXT wraps a TXT value in the quotes Route53 requires.
func quoteTXT(value string) string {
	if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value
	}
	return `"` + value + `"`
}

// unquoteTXT strips the surrounding quotes from a stored TXT value.
func unquoteTXT(value string) string {
	return strings.TrimSuffix(strings.TrimPrefix(value, `"`), `"`)
}

// valuesEqual compares rendered values, ignoring trailing-dot differences
// for hostname-valued types.
func valuesEqual(a, b string, rt provider.RecordType) bool {
	switch rt {
	case provider.RecordTypeCNAME, provider.RecordTypeNS, provider.RecordTypeMX, provider.RecordTypeSRV:
		return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
	default:
		return a == b
	}
}

// normalizeZoneID strips the "/hostedzone/" prefix the API sometimes
// returns in zone IDs.
func normalizeZoneID(id string) string {
	return strings.TrimPrefix(id, "/hostedzone/")
}

// mapError translates AWS SDK errors into the provider error taxonomy.
func mapError(operation string, err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "Throttling", "ThrottlingException", "PriorRequestNotComplete":
			return fmt.Errorf("%s: %w", operation, &provider.RateLimitedError{})
		case "AccessDenied", "AccessDeniedException", "UnrecognizedClientException",
			"InvalidClientTokenId", "SignatureDoesNotMatch":
			return fmt.Errorf("%s: %w: %s", operation, provider.ErrUnauthorized, ae.ErrorMessage())
		case "NoSuchHostedZone":
			return fmt.Errorf("%s: %w: %s", operation, provider.ErrNotFound, ae.ErrorMessage())
		case "InvalidChangeBatch":
			if strings.Contains(ae.ErrorMessage(), "already exists") {
				return fmt.Errorf("%s: %w: %s", operation, provider.ErrConflict, ae.ErrorMessage())
			}
			return fmt.Errorf("%s: %s: %w", operation, ae.ErrorMessage(), err)
		case "ServiceUnavailable", "InternalError", "InternalFailure":
			return fmt.Errorf("%s: %w: %s", operation, provider.ErrProviderUnavailable, ae.ErrorMessage())
		}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", operation, provider.ErrCancelled)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// Ensure Provider implements the provider interfaces at compile time.
var _ provider.Provider = (*Provider)(nil)
var _ provider.Updater = (*Provider)(nil)
