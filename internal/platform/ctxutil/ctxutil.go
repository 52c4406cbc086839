package ctxutil

import "context"

type requestDataKey struct{}
type traceDataKey struct{}

// RequestData carries the verified caller identity for one request.
// Service is set for trusted service-to-service tokens issued by the gateway.
type RequestData struct {
	UserID  string
	Role    string
	Email   string
	Apps    []string
	Service bool
}

const (
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPERADMIN"
	RoleManager    = "MANAGER"
	RoleUser       = "USER"
)

func (rd *RequestData) IsAdmin() bool {
	if rd == nil {
		return false
	}
	return rd.Role == RoleAdmin || rd.Role == RoleSuperAdmin
}

// Elevated reports whether the caller may use cross-service sort keys.
func (rd *RequestData) Elevated() bool {
	if rd == nil {
		return false
	}
	return rd.Service || rd.IsAdmin()
}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}
