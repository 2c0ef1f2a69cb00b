package mpesa

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"go.uber.org/zap"
)

var testCreds = Credentials{
	Environment:    EnvironmentSandbox,
	ConsumerKey:    "consumer-key",
	ConsumerSecret: "consumer-secret",
}

// fakeGateway emulates the OAuth and STK push endpoints.
type fakeGateway struct {
	tokenCalls atomic.Int32
	stkCalls   atomic.Int32

	tokenHandler func(w http.ResponseWriter, r *http.Request)
	stkHandler   func(w http.ResponseWriter, r *http.Request)

	mu      sync.Mutex
	lastSTK stkPushPayload
	lastAuth string
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	t.Helper()
	g := &fakeGateway{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		n := g.tokenCalls.Add(1)
		if g.tokenHandler != nil {
			g.tokenHandler(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != testCreds.ConsumerKey || pass != testCreds.ConsumerSecret {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":"3599"}`, n)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		g.stkCalls.Add(1)
		var payload stkPushPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		g.mu.Lock()
		g.lastSTK = payload
		g.lastAuth = r.Header.Get("Authorization")
		g.mu.Unlock()
		if g.stkHandler != nil {
			g.stkHandler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_05012026123456789","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return g, srv
}

func newTestClient(srv *httptest.Server, clk clock.Clock, requestTimeout time.Duration) *Client {
	if requestTimeout == 0 {
		requestTimeout = 2 * time.Second
	}
	return NewClient(Params{
		Cfg: Config{
			SandboxBaseURL:    srv.URL,
			ProductionBaseURL: srv.URL,
			TokenTimeout:      2 * time.Second,
			RequestTimeout:    requestTimeout,
			Location:          time.FixedZone("EAT", 3*60*60),
		},
		Log:   zap.NewNop(),
		Clock: clk,
	})
}
