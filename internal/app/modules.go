package app

import (
	"github.com/vk/promptgridgo/internal/registry"
	"github.com/vk/promptgridgo/modules/apicall"
	"github.com/vk/promptgridgo/modules/constant"
	"github.com/vk/promptgridgo/modules/env"
	"github.com/vk/promptgridgo/modules/httpsession"
	"github.com/vk/promptgridgo/modules/passthrough"
	"github.com/vk/promptgridgo/modules/print"
	"github.com/vk/promptgridgo/modules/seq"
	"github.com/vk/promptgridgo/modules/stats"
)

// coreModules is the definitive list of all node modules that are compiled
// into the promptgridgo binary.
var coreModules = []registry.Module{
	&constant.Module{},
	&seq.Module{},
	&stats.Module{},
	&passthrough.Module{},
	&print.Module{},
	&env.Module{},
	&apicall.Module{},
	&httpsession.Module{},
}
