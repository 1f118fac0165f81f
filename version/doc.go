// Package version reports fifokit build metadata.
//
// Release builds stamp it via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/fifokit/version.Version=v0.3.0 \
//	    -X github.com/kbukum/fifokit/version.Commit=$(git rev-parse --short HEAD)" ./cmd/fifokit
//
// Otherwise the VCS settings recorded by the Go toolchain are used.
package version
