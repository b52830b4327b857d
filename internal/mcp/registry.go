// Package mcp holds the assistant's tool surface: the fixed registry of
// schema-described operations offered to the model, and the executor
// that dispatches model-issued tool calls against the catalog.
package mcp

import "assistant-service/internal/llm"

// Tool names. These appear verbatim in model requests and replies.
const (
	ToolFilterProducts     = "filter_products"
	ToolShowProductDetails = "show_product_details"
	ToolAddToCart          = "add_to_cart"
	ToolRemoveFromCart     = "remove_from_cart"
	ToolGetCartSummary     = "get_cart_summary"
	ToolSaveAIQuery        = "save_ai_query"
)

// Registry returns the fixed tool catalog offered to the model on every
// orchestration call. Descriptions are part of the protocol contract:
// the model plans around them, so changing one changes behavior.
func Registry() []llm.Tool {
	return []llm.Tool{
		{
			Type: "function",
			Function: llm.Function{
				Name:        ToolFilterProducts,
				Description: "Filter and search products in the current store based on user criteria like brand, category, price range, color, or general search terms. Returns matching products with details.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"search":        {Type: "string", Description: "General search term to match against product name or description"},
						"brand":         {Type: "string", Description: "Filter by brand name"},
						"category":      {Type: "string", Description: "Filter by product category"},
						"color":         {Type: "string", Description: "Filter by color"},
						"price_min":     {Type: "number", Description: "Minimum price filter in dollars"},
						"price_max":     {Type: "number", Description: "Maximum price filter in dollars"},
						"in_stock_only": {Type: "boolean", Description: "Only return products that are in stock", Default: true},
					},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        ToolShowProductDetails,
				Description: "Get detailed information about a specific product including name, description, price, stock, images, and tags",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"product_id": {Type: "string", Description: "The unique ID of the product to retrieve"},
					},
					Required: []string{"product_id"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        ToolAddToCart,
				Description: "Add a product to the user's shopping cart. This is a conceptual operation that confirms the intent - the actual cart is managed by the UI.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"product_id": {Type: "string", Description: "The ID of the product to add to cart"},
						"quantity":   {Type: "number", Description: "Quantity to add (default: 1)", Default: 1},
					},
					Required: []string{"product_id"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        ToolRemoveFromCart,
				Description: "Remove a product from the user's shopping cart",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"product_id": {Type: "string", Description: "The ID of the product to remove"},
					},
					Required: []string{"product_id"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        ToolGetCartSummary,
				Description: "Get a summary of the current cart contents",
				Parameters: llm.Schema{
					Type:       "object",
					Properties: map[string]llm.Property{},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        ToolSaveAIQuery,
				Description: "Internal tool to log AI queries and responses for analytics",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"user_id":    {Type: "string", Description: "User ID"},
						"question":   {Type: "string", Description: "User question"},
						"answer":     {Type: "string", Description: "AI response"},
						"product_id": {Type: "string", Description: "Related product ID (optional)"},
					},
					Required: []string{"user_id", "question", "answer"},
				},
			},
		},
	}
}
