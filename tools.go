//go:build tools

package tools

// This file tracks CLI tools used during development.
// It is not compiled into the binary.
//
// - github.com/matryer/moq: test doubles, see the //go:generate lines in *_test.go
// - github.com/pressly/goose/v3/cmd/goose: ad hoc migration runs; zenginctl migrate covers the usual case
