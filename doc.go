// Package debbugs is a client for the SOAP interface of the Debian Bug
// Tracking System.
//
// The package turns typed Go calls into SOAP-encoded requests, posts them to
// the Debbugs server and turns the loosely typed answers into Go values. It
// does not scrape the web interface and it does not submit or modify bugs.
//
// # Architecture
//
// The client is split into layers, each in its own package:
//
//   - soapenc: SOAP section 5 value encoding and decoding
//   - envelope: request envelopes and response/fault extraction
//   - transport: HTTP exchange, timeouts, proxies and metrics
//   - bug: bug report and bug log models
//   - batch: splitting large id lists into bounded requests
//
// Client ties these together and exposes one method per server operation.
//
// # Basic Usage
//
//	c, err := debbugs.New()
//	if err != nil {
//	    return err
//	}
//
//	ids, err := c.GetBugs(ctx, debbugs.Criteria{
//	    "package": "python-debianbts",
//	    "status":  "open",
//	})
//	if err != nil {
//	    return err
//	}
//
//	reports, err := c.GetStatus(ctx, ids...)
//	if err != nil {
//	    return err
//	}
//	slices.SortFunc(reports, bug.CompareUrgency)
//
// # Configuration
//
// The endpoint and proxy can be changed at any time with SetURL and SetProxy.
// Each call reads the configuration once when it starts, so a change only
// affects calls started afterwards. A Client is safe for concurrent use.
//
// # Errors
//
// Errors can be inspected with errors.As:
//
//   - *transport.TransportError: the HTTP exchange failed
//   - *envelope.Fault: the server answered with a SOAP fault
//   - *soapenc.DecodingError: the answer could not be understood, including
//     a successful HTTP response whose body is not a SOAP envelope
//   - *bug.MalformedRecordError: a status record lacks a required field
package debbugs

// Version is the library version.
const Version = "0.1.0-dev"
