// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/weftlabs/weft/pkg/nodes/executeworkflow"
	"github.com/weftlabs/weft/pkg/nodes/httprequest"
	"github.com/weftlabs/weft/pkg/nodes/ifnode"
	"github.com/weftlabs/weft/pkg/nodes/merge"
	"github.com/weftlabs/weft/pkg/nodes/noop"
	"github.com/weftlabs/weft/pkg/nodes/set"
	"github.com/weftlabs/weft/pkg/nodes/switchnode"
	"github.com/weftlabs/weft/pkg/nodes/trigger"
	"github.com/weftlabs/weft/pkg/nodes/wait"
	"github.com/weftlabs/weft/pkg/registry"
)

func registerNativeNodes(reg *registry.Registry) {
	reg.Register(noop.NewFactory())
	reg.Register(set.NewFactory())
	reg.Register(ifnode.NewFactory())
	reg.Register(switchnode.NewFactory())
	reg.Register(merge.NewFactory())
	reg.Register(wait.NewFactory())
	reg.Register(httprequest.NewFactory())
	reg.Register(executeworkflow.NewFactory())
	reg.Register(trigger.NewScheduleFactory())
	reg.Register(trigger.NewWebhookFactory())
}

// NewRegistry builds the node registry every binary shares.
func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeNodes(reg)

	return reg
}
