package api

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mattjoyce/notifyd/internal/notification"
	"github.com/mattjoyce/notifyd/internal/plugin"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the notify endpoints.
// Each operation lists the plugins currently subscribed to its kind.
func buildOpenAPIDoc(plugins []*plugin.Plugin) map[string]any {
	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "notifyd",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/notify/agent": map[string]any{
				"post": notifyOperation(notification.AgentStatusChanged, "Agent", plugins),
			},
			"/notify/stage": map[string]any{
				"post": notifyOperation(notification.StageStatusChanged, "Stage", plugins),
			},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func notifyOperation(kind notification.Kind, subject string, plugins []*plugin.Plugin) map[string]any {
	subscribers := make([]string, 0, len(plugins))
	for _, p := range plugins {
		if p.InterestedIn(string(kind)) {
			subscribers = append(subscribers, p.ID)
		}
	}
	slices.Sort(subscribers)

	description := "No plugins are subscribed."
	if len(subscribers) > 0 {
		description = "Subscribed plugins: " + strings.Join(subscribers, ", ") + "."
	}

	return map[string]any{
		"operationId":   strings.ReplaceAll(string(kind), "-", "_"),
		"summary":       fmt.Sprintf("Dispatch a %s status change", strings.ToLower(subject)),
		"description":   description,
		"tags":          []string{string(kind)},
		"x-subscribers": subscribers,
		"responses": map[string]any{
			"202": map[string]any{"description": "Messages posted"},
			"400": map[string]any{"description": "Bad request"},
			"401": map[string]any{"description": "Missing or invalid API key"},
			"502": map[string]any{"description": "Build cause or pipeline group lookup failed"},
		},
		"security": []any{map[string]any{"BearerAuth": []string{}}},
	}
}
