package mid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blastnetwork/blast/business/web/mid"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Cors(t *testing.T) {
	type table struct {
		name    string
		origins []string
		origin  string
		allow   string
	}

	tt := []table{
		{name: "default", origins: nil, origin: "https://explorer.blast", allow: "*"},
		{name: "star", origins: []string{"*"}, origin: "https://explorer.blast", allow: "*"},
		{name: "listed", origins: []string{"https://explorer.blast"}, origin: "https://explorer.blast", allow: "https://explorer.blast"},
		{name: "unlisted", origins: []string{"https://explorer.blast"}, origin: "https://evil.example", allow: ""},
	}

	t.Log("Given the need to answer cross origin requests.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				next := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
					return nil
				}
				h := mid.Cors(tst.origins...)(next)

				r := httptest.NewRequest(http.MethodOptions, "/v1/genesis/list", nil)
				r.Header.Set("Origin", tst.origin)
				w := httptest.NewRecorder()

				if err := h(context.Background(), w, r); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould run the next handler : %s", failed, testID, err)
				}

				if got := w.Header().Get("Access-Control-Allow-Origin"); got != tst.allow {
					t.Fatalf("\t%s\tTest %d:\tShould allow origin %q : got %q", failed, testID, tst.allow, got)
				}
				t.Logf("\t%s\tTest %d:\tShould allow origin %q.", success, testID, tst.allow)
			}

			t.Run(tst.name, f)
		}
	}
}
