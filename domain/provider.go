package domain

import "fmt"

// Provider identifies an external ad platform a user can connect.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderMeta   Provider = "meta"
)

// ParseProvider validates a raw provider name from a request path or stored
// document. Unknown providers are rejected up front so they never reach the
// adapters.
func ParseProvider(raw string) (Provider, error) {
	switch Provider(raw) {
	case ProviderGoogle, ProviderMeta:
		return Provider(raw), nil
	default:
		return "", fmt.Errorf("unknown provider %q", raw)
	}
}

func (p Provider) String() string { return string(p) }

// FlowStatus names the stages of an OAuth connection attempt. Google goes
// straight from authorizing to authenticated; Meta passes through a
// short-lived token that must be extended first.
type FlowStatus string

const (
	FlowUnauthenticated FlowStatus = "unauthenticated"
	FlowAuthorizing     FlowStatus = "authorizing"
	FlowShortLived      FlowStatus = "short_lived"
	FlowAuthenticated   FlowStatus = "authenticated"
)
