// Package rfc2136 adapts any RFC 2136-capable DNS server — BIND, Windows
// DNS, PowerDNS, Knot, NSD — to the Trafego provider interface.
//
// Updates go over native DNS UPDATE messages, optionally TSIG-signed
// (HMAC-SHA256/SHA512/MD5), over UDP or TCP. Record types A, AAAA, CNAME,
// TXT, SRV, MX, NS, and CAA are supported. Because most servers restrict
// AXFR, record enumeration uses the dnsupdate.Catalog: managed hostnames
// live in chunked TXT records inside the zone itself, and List reassembles
// the record set by querying each cataloged name. Ownership is tracked with
// the engine's TXT marker records.
//
// Configuration comes from the instance's environment block:
//
//	# Required
//	TRAFEGO_BIND_TYPE=rfc2136
//	TRAFEGO_BIND_SERVER=ns1.example.com:53
//	TRAFEGO_BIND_ZONE=example.com.
//	TRAFEGO_BIND_DOMAINS=*.example.com
//
//	# TSIG (recommended)
//	TRAFEGO_BIND_TSIG_KEY_NAME=trafego.
//	TRAFEGO_BIND_TSIG_SECRET=base64-encoded-secret
//	TRAFEGO_BIND_TSIG_SECRET_FILE=/run/secrets/tsig-key
//	TRAFEGO_BIND_TSIG_ALGORITHM=hmac-sha256
//
//	# Optional
//	TRAFEGO_BIND_TTL=300
//	TRAFEGO_BIND_TIMEOUT=10
//	TRAFEGO_BIND_USE_TCP=false
//
// Register it with the provider registry:
//
//	registry.RegisterFactory("rfc2136", rfc2136.Factory())
//
// Reach for this provider when the server speaks the standard protocol and
// has no dedicated adapter; reach for an API adapter when the service only
// offers REST or has features the DNS protocol cannot express (Cloudflare
// proxying, provider-side comments).
package rfc2136
