package dnsupdate

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Record is the flat representation of a DNS record used for RFC 2136
// operations, convertible to and from miekg/dns resource records.
type Record struct {
	// Name is the owner name, with or without the trailing dot; ToRR
	// normalizes to FQDN form.
	Name string

	// Type is the numeric record type (dns.TypeA, dns.TypeCNAME, ...).
	Type uint16

	// TTL in seconds.
	TTL uint32

	// RData carries the record value: an IP for A/AAAA, a target name for
	// CNAME/MX/SRV/PTR/NS, text for TXT, "flag tag value" for CAA.
	RData string

	// Priority applies to MX and SRV records.
	Priority uint16

	// Weight applies to SRV records.
	Weight uint16

	// Port applies to SRV records.
	Port uint16
}

// TypeString renders the record type mnemonic, falling back to TYPEn for
// unknown codes.
func (r Record) TypeString() string {
	if name, ok := dns.TypeToString[r.Type]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", r.Type)
}

// fqdn appends the trailing dot when absent.
func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// ToRR builds the miekg/dns resource record for this Record, validating
// the RData against the record type.
func (r Record) ToRR() (dns.RR, error) {
	header := dns.RR_Header{
		Name:   fqdn(r.Name),
		Rrtype: r.Type,
		Class:  dns.ClassINET,
		Ttl:    r.TTL,
	}

	switch r.Type {
	case dns.TypeA:
		ip := net.ParseIP(r.RData)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("invalid IPv4 address: %s", r.RData)
		}
		return &dns.A{Hdr: header, A: ip.To4()}, nil

	case dns.TypeAAAA:
		ip := net.ParseIP(r.RData)
		if ip == nil || ip.To16() == nil || ip.To4() != nil {
			return nil, fmt.Errorf("invalid IPv6 address: %s", r.RData)
		}
		return &dns.AAAA{Hdr: header, AAAA: ip.To16()}, nil

	case dns.TypeCNAME:
		return &dns.CNAME{Hdr: header, Target: fqdn(r.RData)}, nil

	case dns.TypeTXT:
		return &dns.TXT{Hdr: header, Txt: []string{r.RData}}, nil

	case dns.TypeMX:
		return &dns.MX{Hdr: header, Preference: r.Priority, Mx: fqdn(r.RData)}, nil

	case dns.TypeSRV:
		return &dns.SRV{
			Hdr:      header,
			Priority: r.Priority,
			Weight:   r.Weight,
			Port:     r.Port,
			Target:   fqdn(r.RData),
		}, nil

	case dns.TypePTR:
		return &dns.PTR{Hdr: header, Ptr: fqdn(r.RData)}, nil

	case dns.TypeNS:
		return &dns.NS{Hdr: header, Ns: fqdn(r.RData)}, nil

	case dns.TypeCAA:
		parts := strings.SplitN(r.RData, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid CAA format: expected 'flag tag value', got: %s", r.RData)
		}
		flag, err := strconv.ParseUint(parts[0], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid CAA flag: %w", err)
		}
		return &dns.CAA{Hdr: header, Flag: uint8(flag), Tag: parts[1], Value: parts[2]}, nil

	default:
		return nil, fmt.Errorf("unsupported record type: %s", r.TypeString())
	}
}

// RecordFromRR flattens a miekg/dns resource record into a Record.
func RecordFromRR(rr dns.RR) (Record, error) {
	header := rr.Header()
	record := Record{
		Name: header.Name,
		Type: header.Rrtype,
		TTL:  header.Ttl,
	}

	switch v := rr.(type) {
	case *dns.A:
		record.RData = v.A.String()
	case *dns.AAAA:
		record.RData = v.AAAA.String()
	case *dns.CNAME:
		record.RData = v.Target
	case *dns.TXT:
		record.RData = strings.Join(v.Txt, " ")
	case *dns.MX:
		record.RData = v.Mx
		record.Priority = v.Preference
	case *dns.SRV:
		record.RData = v.Target
		record.Priority = v.Priority
		record.Weight = v.Weight
		record.Port = v.Port
	case *dns.PTR:
		record.RData = v.Ptr
	case *dns.NS:
		record.RData = v.Ns
	case *dns.CAA:
		record.RData = fmt.Sprintf("%d %s %s", v.Flag, v.Tag, v.Value)
	default:
		return record, fmt.Errorf("unsupported record type: %s", dns.TypeToString[header.Rrtype])
	}

	return record, nil
}

// StringToType resolves a record type mnemonic to its numeric code,
// case-insensitively.
func StringToType(s string) (uint16, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if t, ok := dns.StringToType[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown record type: %s", s)
}

// supportedTypes lists the record types ToRR can render.
var supportedTypes = []uint16{
	dns.TypeA,
	dns.TypeAAAA,
	dns.TypeCNAME,
	dns.TypeTXT,
	dns.TypeMX,
	dns.TypeSRV,
	dns.TypePTR,
	dns.TypeNS,
	dns.TypeCAA,
}

// IsTypeSupported reports whether ToRR understands the record type.
func IsTypeSupported(recordType uint16) bool {
	for _, t := range supportedTypes {
		if t == recordType {
			return true
		}
	}
	return false
}
