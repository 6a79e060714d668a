// Package tlsroots builds the TLS configuration of the admin endpoint.
//
// The server side serves a key pair that is reloaded when its files change
// and may require client certificates signed by a configured CA. The
// client side trusts the system roots plus an optional CA bundle.
package tlsroots
