package model

import (
	"context"
	"strings"
)

type contextKey string

const (
	ContextAppName    contextKey = "appName"
	ContextAppVersion contextKey = "appVersion"
	ContextJobID      contextKey = "jobID"
	ContextSource     contextKey = "source"
)

// JobID returns the print job id stored in ctx, or "".
func JobID(ctx context.Context) string {
	v, _ := ctx.Value(ContextJobID).(string)
	return v
}

// SourceFrom returns the trigger source stored in ctx, or "".
func SourceFrom(ctx context.Context) string {
	v, _ := ctx.Value(ContextSource).(string)
	return v
}

// UserAgent identifies the agent as "name/version" from the values main puts
// in ctx, or "" when neither is set.
func UserAgent(ctx context.Context) string {
	name, _ := ctx.Value(ContextAppName).(string)
	version, _ := ctx.Value(ContextAppVersion).(string)
	if name == "" && version == "" {
		return ""
	}
	ua := strings.ReplaceAll(name, " ", "-")
	if version != "" {
		ua += "/" + version
	}
	return ua
}
