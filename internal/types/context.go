package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID     ContextKey = "ctx_request_id"
	CtxDBTransaction ContextKey = "ctx_db_transaction"
	CtxEventID       ContextKey = "ctx_event_id"
	CtxAPIKeyName    ContextKey = "ctx_api_key_name"

	HeaderRequestID = "X-Request-ID"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// GetEventID returns the processor event id being applied, if any
func GetEventID(ctx context.Context) string {
	if eventID, ok := ctx.Value(CtxEventID).(string); ok {
		return eventID
	}
	return ""
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, CtxEventID, eventID)
}

// GetAPIKeyName returns the name of the admin api key that authenticated the request
func GetAPIKeyName(ctx context.Context) string {
	if name, ok := ctx.Value(CtxAPIKeyName).(string); ok {
		return name
	}
	return ""
}

func WithAPIKeyName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, CtxAPIKeyName, name)
}
