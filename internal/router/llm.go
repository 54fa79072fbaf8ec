package router

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// routerSystemPrompt is the fixed prompt the LLM strategy sends alongside
// route_decision — fixed meaning never assembled from the caller's own
// system prompt, so a request can't influence how it gets routed.
const routerSystemPrompt = "You route requests. Use 'rlm' for questions about code structure, " +
	"implementation, architecture, or anything requiring reading source files. Use 'passthrough' " +
	"for commands, log analysis, or tasks that don't need source code exploration."

// routeDecisionTool is built once as a wire.ToolDefinition literal and
// forced on the router backend via tool_choice so its reply is always a
// parseable route_decision call rather than free text.
var routeDecisionTool = wire.ToolDefinition{
	Name:        "route_decision",
	Description: "Make a routing decision for the user's request.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"route": map[string]any{
				"type":        "string",
				"enum":        []string{"rlm", "passthrough"},
				"description": "Use 'rlm' for source code exploration, 'passthrough' for everything else.",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "Brief explanation (1-2 sentences).",
			},
		},
		"required": []string{"route", "reason"},
	},
}

type routeDecisionInput struct {
	Route  string `json:"route"`
	Reason string `json:"reason"`
}

// routeViaLlm calls the configured router backend with a single forced
// tool call. Any failure — no backend configured, network error,
// malformed tool input, or exceeding router_timeout — falls back to
// Passthrough rather than failing the caller's request.
func (r *Router) routeViaLlm(ctx context.Context, userMessage string) (Route, []string, float64) {
	if r.routerBE == nil {
		return Passthrough, []string{"no router backend configured"}, 0.0
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.RouterTimeout)
	defer cancel()

	model := r.config.RouterModel
	if model == "" {
		model = "router"
	}

	req := wire.CompletionRequest{
		Model:      model,
		Messages:   []wire.Message{wire.UserMessage(buildRouterUserMessage(userMessage))},
		System:     routerSystemPrompt,
		MaxTokens:  256,
		Temperature: floatPtr(0.0),
		Tools:      []wire.ToolDefinition{routeDecisionTool},
		ToolChoice: wire.ForceTool("route_decision"),
	}

	resp, err := r.routerBE.Complete(ctx, req)
	if err != nil {
		return Passthrough, []string{"router backend error: " + err.Error()}, 0.0
	}
	return parseRouteResponse(resp)
}

func parseRouteResponse(resp *wire.CompletionResponse) (Route, []string, float64) {
	for _, use := range resp.ToolUses() {
		if use.Name != "route_decision" {
			continue
		}
		var decision routeDecisionInput
		if err := json.Unmarshal(use.Input, &decision); err != nil {
			return Passthrough, []string{"malformed route_decision input: " + err.Error()}, 0.0
		}
		route := strings.ToLower(decision.Route)
		if route == "rlm" || route == "explore" {
			return Rlm, []string{"router LLM: " + decision.Reason}, 0.9
		}
		return Passthrough, []string{"router LLM: " + decision.Reason}, 0.9
	}

	// No tool call came back at all despite tool_choice forcing one —
	// fall back to scanning the response text for a hint rather than
	// failing the request.
	text := strings.ToLower(resp.ToText())
	if strings.Contains(text, "rlm") || strings.Contains(text, "explore") {
		return Rlm, []string{"router LLM fallback: text contained rlm/explore"}, 0.3
	}
	return Passthrough, []string{"router LLM returned no route_decision tool call"}, 0.3
}

func buildRouterUserMessage(userRequest string) string {
	var b strings.Builder
	b.WriteString("Analyze this user request and decide how it should be routed.\n\nUSER REQUEST:\n")
	b.WriteString(userRequest)
	b.WriteString("\n\nROUTING RULES:\n\n")
	b.WriteString("Use \"rlm\" for questions about source code, implementation, or architecture:\n")
	b.WriteString("- \"How does authentication work in this app?\"\n")
	b.WriteString("- \"Explain the implementation of X\"\n")
	b.WriteString("- \"Where is the router implemented?\"\n")
	b.WriteString("- \"Find the function that handles X\"\n")
	b.WriteString("- \"Show me the codebase structure\"\n\n")
	b.WriteString("Use \"passthrough\" for operational tasks that don't need code exploration:\n")
	b.WriteString("- Running commands (\"run tests\", \"build\", \"grep for X\")\n")
	b.WriteString("- Checking logs/output (\"check the logs\", \"what errors occurred?\")\n")
	b.WriteString("- Writing/editing code when context is already provided\n")
	b.WriteString("- Follow-up clarifying questions about previous answers\n")
	b.WriteString("- General conversation (\"ping\", \"what happened?\")\n")
	return b.String()
}

func floatPtr(f float64) *float64 { return &f }
