package transport

import "net/http"

// Authenticator puts an API key on an outgoing request. The client only
// calls it when a key is configured.
type Authenticator interface {
	Apply(req *http.Request, apiKey string)
}

// APIKeyHeader is where stash-box servers and Stash itself read the key.
const APIKeyHeader = "ApiKey"

// HeaderAuth sends the key verbatim in the named header.
type HeaderAuth string

func (h HeaderAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set(string(h), apiKey)
}

// BearerAuth sends "Authorization: Bearer <key>", as ThePornDB's REST API expects.
type BearerAuth struct{}

func (BearerAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

// StashAuth authenticates against stash-box registries and the Stash host.
func StashAuth() Authenticator {
	return HeaderAuth(APIKeyHeader)
}
