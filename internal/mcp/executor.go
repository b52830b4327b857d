package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"assistant-service/internal/util"
)

// ExecuteTool dispatches a named tool call with raw model-supplied
// arguments. It always returns a result envelope: unknown tools and
// malformed argument payloads become failed results the model can
// recover from, never errors that abort the conversation.
func (e *Executor) ExecuteTool(ctx context.Context, name string, rawArgs json.RawMessage, tc ToolContext) Result {
	ctx, span := util.StartSpan(ctx, "Executor.ExecuteTool")
	defer span.End()

	util.ToolCallsTotal.WithLabelValues(name).Inc()

	result := e.dispatch(ctx, name, rawArgs, tc)
	if !result.Success {
		util.ToolErrorsTotal.WithLabelValues(name).Inc()
	}
	return result
}

func (e *Executor) dispatch(ctx context.Context, name string, rawArgs json.RawMessage, tc ToolContext) Result {
	switch name {
	case ToolFilterProducts:
		var args filterProductsArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return failure("Invalid arguments for %s: %v", name, err)
		}
		return e.filterProducts(ctx, args, tc)

	case ToolShowProductDetails:
		var args productIDArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return failure("Invalid arguments for %s: %v", name, err)
		}
		return e.showProductDetails(ctx, args, tc)

	case ToolAddToCart:
		var args productIDArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return failure("Invalid arguments for %s: %v", name, err)
		}
		return e.addToCart(ctx, args, tc)

	case ToolRemoveFromCart:
		var args productIDArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return failure("Invalid arguments for %s: %v", name, err)
		}
		return e.removeFromCart(ctx, args, tc)

	case ToolGetCartSummary:
		return e.getCartSummary()

	case ToolSaveAIQuery:
		var args saveAIQueryArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return failure("Invalid arguments for %s: %v", name, err)
		}
		return e.saveAIQuery(ctx, args)

	default:
		return Result{Success: false, Error: fmt.Sprintf("Unknown tool: %s", name)}
	}
}
