// Package connection talks to the admin endpoint of a running
// chunkmeta-server.
//
// Responses use the server's JSON envelope; ParseResponse unwraps the data
// member on success and turns error envelopes into *APIError.
package connection
