// Package transport sends SOAP request documents to a Debbugs server over
// HTTP.
//
// # Protocol Overview
//
// Every SOAP call is a single POST of a complete envelope. The request
// carries two headers:
//
//	Content-Type: text/xml; charset="utf-8"
//	SOAPAction: ""
//
// The response body is another envelope. Debbugs usually reports SOAP
// faults with status 200, but some server setups answer them with a 5xx
// status and an XML body. Post therefore classifies responses as:
//
//	2xx                    Response returned
//	non-2xx, XML body      Response returned, the caller looks for a fault
//	non-2xx, other body    *TransportError
//	connection failure     *TransportError
//
// # Configuration
//
// A Transport is built from a Config snapshot and never changes afterwards.
// Callers that need to switch endpoint or proxy build a new Transport; calls
// already in flight keep using the old one, so no request ever observes a
// half-applied configuration.
//
// Example:
//
//	cfg := transport.DefaultConfig()
//	cfg.Proxy = "http://proxy.example.org:3128"
//
//	tr, err := transport.New(cfg, transport.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	resp, err := tr.Post(ctx, "newest_bugs", body)
//
// # Certificates
//
// Debian hosts ship the Debian infrastructure CA bundle in
// /etc/ssl/ca-debian. DefaultConfig trusts it in addition to the system
// roots when the directory exists.
package transport
