package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

func TestIsAuthorized(t *testing.T) {
	called := false
	next := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		called = true
	}
	handler := IsAuthorized("secret-token", next)

	testCases := []struct {
		name           string
		header         string
		expectedStatus int
		expectCalled   bool
	}{
		{name: "no header", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer wrong", expectedStatus: http.StatusUnauthorized},
		{name: "valid bearer token", header: "Bearer secret-token", expectedStatus: http.StatusOK, expectCalled: true},
		{name: "bare token", header: "secret-token", expectedStatus: http.StatusOK, expectCalled: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			req, _ := http.NewRequest("GET", "/api/render", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler(rr, req, nil)

			require.Equal(t, tc.expectedStatus, rr.Result().StatusCode)
			require.Equal(t, tc.expectCalled, called)
		})
	}
}
