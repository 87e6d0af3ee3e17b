package app

import (
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/compiler"
)

// ContainerOption configures Container creation. Used for testing and customization.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	// Optional: inject a custom compiler instead of the configured toolchain.
	compiler compiler.Compiler
}

// WithCompiler injects a compiler implementation. Tests use this to avoid
// spawning a real toolchain process.
func WithCompiler(c compiler.Compiler) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.compiler = c
	}
}
