package mid

import (
	"context"
	"net/http"
	"slices"

	"github.com/blastnetwork/blast/foundation/web"
)

// Cors sets the response headers browser wallets and explorers need to call
// the node from another origin. An empty list or a "*" entry allows any
// origin. Otherwise the request origin is echoed back only when listed.
func Cors(origins ...string) web.Middleware {
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")

	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			switch origin := r.Header.Get("Origin"); {
			case anyOrigin:
				w.Header().Set("Access-Control-Allow-Origin", "*")

			case origin != "" && slices.Contains(origins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			// The node only serves reads, submissions and preflights.
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding")

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
