package app

import (
	"context"

	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
	"github.com/felixgeelhaar/hangar/internal/domain/sandbox"
)

// hookDispatch runs a plugin's hook through both runners: handlers the
// host registered in-process, then the exported function of the
// plugin's WASM entry point when one is loaded. The first failure wins.
type hookDispatch struct {
	host *lifecycle.GoHookRunner
	wasm *sandbox.HookRunner
}

func (d hookDispatch) Run(ctx context.Context, pluginID, hook string) error {
	if err := d.host.Run(ctx, pluginID, hook); err != nil {
		return err
	}
	if d.wasm != nil {
		return d.wasm.Run(ctx, pluginID, hook)
	}
	return nil
}
