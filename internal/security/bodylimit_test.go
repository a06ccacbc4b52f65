package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoBody(t *testing.T, captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		*captured = string(data)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestBodyLimit(t *testing.T) {
	cases := []struct {
		name          string
		body          string
		contentLength int64
		wantStatus    int
	}{
		{name: "within limit", body: `{"a":1}`, wantStatus: http.StatusNoContent},
		{name: "exactly at limit", body: `{"ab":12}`, wantStatus: http.StatusNoContent},
		{name: "streamed oversized", body: `{"abc":123}`, contentLength: -1, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "declared oversized", body: `{}`, contentLength: 100, wantStatus: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var captured string
			handler := BodyLimit{Max: 9}.Middleware(echoBody(t, &captured))

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/deal-drafts/1", strings.NewReader(tc.body))
			if tc.contentLength != 0 {
				req.ContentLength = tc.contentLength
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			require.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus == http.StatusNoContent {
				require.Equal(t, tc.body, captured)
				return
			}
			require.Contains(t, rr.Body.String(), `"PAYLOAD_TOO_LARGE"`)
			require.Contains(t, rr.Body.String(), `"maxBytes":9`)
		})
	}
}

func TestBodyLimitDisabled(t *testing.T) {
	var captured string
	handler := BodyLimit{}.Middleware(echoBody(t, &captured))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deals/preview", strings.NewReader(strings.Repeat("x", 4096)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, captured, 4096)
}
