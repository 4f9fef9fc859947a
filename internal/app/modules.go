package app

import (
	"io"

	"github.com/vk/actiongraph/internal/registry"
	"github.com/vk/actiongraph/modules/env_vars"
	"github.com/vk/actiongraph/modules/http_client"
	"github.com/vk/actiongraph/modules/print"
)

// coreModules is the definitive list of all modules that are compiled into
// the actiongraph binary. The printer writes to outW.
func coreModules(outW io.Writer) []registry.Module {
	return []registry.Module{
		&env_vars.Module{},
		&print.Module{Out: outW},
		&http_client.Module{},
	}
}
