package tools

import (
	"context"
	"fmt"

	"github.com/askyhq/asky/internal/providers"
	"github.com/askyhq/asky/internal/push"
)

// RegisterPushTools exposes each enabled [push_data.*] endpoint as a
// tool named push_<endpoint>. Dynamic ${param} placeholders in the
// endpoint's fields become string parameters the model fills in; the
// query and model specials come from the tool context.
func RegisterPushTools(r *Registry, pusher *push.Pusher) {
	for name, target := range pusher.Enabled() {
		desc := target.Description
		if desc == "" {
			desc = fmt.Sprintf("Push data to the %s endpoint.", name)
		}
		params := target.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		endpoint := name
		r.Register(providers.FunctionSchema{
			Name:        "push_" + name,
			Description: desc,
			Parameters:  params,
		}, func(ctx context.Context, args map[string]interface{}, tctx ToolContext) (map[string]interface{}, error) {
			dynamic := make(map[string]string, len(args))
			for k, v := range args {
				dynamic[k] = argString(v)
			}
			return pusher.Push(ctx, endpoint, dynamic, push.Special{
				Query: tctx.Query,
				Model: tctx.Model,
			}), nil
		})
	}
}
