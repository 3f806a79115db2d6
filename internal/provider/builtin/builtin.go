// Package builtin assembles the provider registry shipped with the binary.
package builtin

import (
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/provider/file"
	"github.com/Thox33/sync-tool/internal/provider/memory"
	"github.com/Thox33/sync-tool/internal/provider/sqlite"
)

// Registry returns a registry with every built-in provider kind.
func Registry() *provider.Registry {
	r := provider.NewRegistry()
	r.MustRegister(memory.Kind, memory.Factory)
	r.MustRegister(sqlite.Kind, sqlite.Factory)
	r.MustRegister(file.Kind, file.Factory)
	return r
}
