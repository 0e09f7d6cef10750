// Package httpserver defines the lifecycle shared by HTTP server providers.
package httpserver

import "io"

// Provider serves until closed. Start blocks.
type Provider interface {
	Start() error
	io.Closer
}

// Runner starts serving in the background.
type Runner interface {
	Run()
}

type RunableProvider interface {
	Provider
	Runner
}
