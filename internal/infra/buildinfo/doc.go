// Package buildinfo provides build information for chunkmeta binaries.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/chunkmeta-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When ldflags are absent the VCS revision recorded by the Go toolchain is
// used.
package buildinfo
