// Package dnsupdate implements an RFC 2136 dynamic-update client, the
// transport behind the rfc2136 provider. It works against any compliant
// server: BIND, Windows DNS, PowerDNS, Knot.
//
// The package covers signed updates (TSIG per RFC 2845, HMAC-MD5/SHA256/
// SHA512), plain queries, optional AXFR listing, and a chunked-TXT Catalog
// that enumerates engine-managed hostnames on servers where AXFR is
// restricted. UDP and TCP transports are both supported; secrets can come
// from the environment or Docker-secret files via the _FILE suffix.
//
// Typical wiring:
//
//	config, err := dnsupdate.LoadConfig("TRAFEGO_BIND_DNS_")
//	if err != nil {
//	    return err
//	}
//	client, err := dnsupdate.NewClient(config)
//	if err != nil {
//	    return err
//	}
//	err = client.Create(ctx, dnsupdate.Record{
//	    Name:  "myhost.example.com.",
//	    Type:  dns.TypeA,
//	    TTL:   300,
//	    RData: "192.168.1.100",
//	})
//
// Keys for TSIG come from the server side, e.g. BIND's
//
//	tsig-keygen -a hmac-sha256 trafego > trafego.key
//
// with the resulting name and base64 secret handed to the configuration
// (SERVER, ZONE, TSIG_KEY_NAME, TSIG_SECRET[_FILE], TSIG_ALGORITHM,
// TIMEOUT, USE_TCP, each under the caller's prefix).
package dnsupdate
