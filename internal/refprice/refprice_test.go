package refprice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chartBody(closes string, timestamps string) string {
	return `{"chart":{"result":[{"timestamp":[` + timestamps + `],` +
		`"indicators":{"quote":[{"close":[` + closes + `]}]}}],"error":null}}`
}

func TestPreviousClose_LatestNonNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Write([]byte(chartBody("57100.25,57250.00,null", "1756252800,1756339200,1756425600")))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithSymbol("^NSEBANK"))
	paise, sessionDate, err := c.PreviousClose(context.Background())
	if err != nil {
		t.Fatalf("PreviousClose: %v", err)
	}
	// The trailing null (holiday row) must be skipped.
	if paise != 5725000 {
		t.Errorf("expected 5725000 paise, got %d", paise)
	}
	if sessionDate.Unix() != 1756339200 {
		t.Errorf("expected session ts 1756339200, got %d", sessionDate.Unix())
	}
}

func TestPreviousClose_AllNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody("null,null", "1756252800,1756339200")))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, _, err := c.PreviousClose(context.Background()); !errors.Is(err, ErrNoClose) {
		t.Errorf("expected ErrNoClose, got %v", err)
	}
}

func TestPreviousClose_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, _, err := c.PreviousClose(context.Background()); err == nil {
		t.Fatal("expected error for api error payload")
	}
}

func TestPreviousClose_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, _, err := c.PreviousClose(context.Background()); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
