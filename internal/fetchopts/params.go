package fetchopts

// DefaultURL is the relative endpoint used when no override changes it.
// Server and client must agree on it for hydrated fingerprints to match.
const DefaultURL = "/graphql"

// Header holds request headers. Keys are case-preserving and insertion order
// is irrelevant to every consumer.
type Header map[string]string

// Clone returns a copy of h.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Body is a request body: JSONBody or *MultipartForm.
type Body interface {
	body()
}

// JSONBody is a serialized JSON request body.
type JSONBody string

func (JSONBody) body() {}

// Params are the transport-ready request parameters for one operation.
type Params struct {
	URL         string `json:"url"`
	Method      string `json:"method"`
	Credentials string `json:"credentials,omitempty"`
	Headers     Header `json:"headers"`
	Body        Body   `json:"-"`
}

// Override may mutate the built parameters in place, typically to change the
// URL, add authorization headers or set credentials.
type Override func(*Params)
