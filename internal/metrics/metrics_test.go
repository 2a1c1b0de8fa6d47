package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/":                "root",
		"":                 "root",
		"/quotes":          "quotes",
		"/quotes/12/items": "quotes",
		"sales/3":          "sales",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	before := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodPatch, "sales", "409"))

	req := httptest.NewRequest(http.MethodPatch, "/sales/7/status", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodPatch, "sales", "409"))
	if after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
}

func TestObserveUnits(t *testing.T) {
	out := testutil.ToFloat64(StockUnitsMoved.WithLabelValues("out"))
	in := testutil.ToFloat64(StockUnitsMoved.WithLabelValues("in"))

	ObserveTransition("sale", "pending", "approved", 3)
	ObserveUnits(-2)
	ObserveUnits(0)

	if got := testutil.ToFloat64(StockUnitsMoved.WithLabelValues("out")) - out; got != 3 {
		t.Fatalf("out = %v, want 3", got)
	}
	if got := testutil.ToFloat64(StockUnitsMoved.WithLabelValues("in")) - in; got != 2 {
		t.Fatalf("in = %v, want 2", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	StockRejections.WithLabelValues("quote").Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "stock_rejections_total") {
		t.Fatalf("metrics output misses stock_rejections_total")
	}
}
