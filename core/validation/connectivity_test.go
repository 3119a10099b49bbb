package validation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storybook/core"
)

func TestConnectivityChecker_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "yes" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := NewConnectivityChecker().Check(context.Background(), srv.URL, http.Header{"X-Probe": {"yes"}})
	if !r.Reachable || r.StatusCode != http.StatusNoContent {
		t.Errorf("Check() = %+v", r)
	}
}

func TestConnectivityChecker_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r := NewConnectivityChecker().WithTimeout(50*time.Millisecond).Check(context.Background(), srv.URL, nil)
	if r.Reachable {
		t.Fatal("Check() reachable despite timeout")
	}
	if r.Message != "Connection timed out" {
		t.Errorf("Message = %q", r.Message)
	}
	if core.GetErrorCode(r.Error) != core.ErrCodeUnreachable {
		t.Errorf("Error = %v", r.Error)
	}
}

func TestConnectivityChecker_BadURL(t *testing.T) {
	r := NewConnectivityChecker().Check(context.Background(), "http://[::1", nil)
	if r.Reachable || core.GetErrorCode(r.Error) != core.ErrCodeInvalidURL {
		t.Errorf("Check(bad url) = %+v", r)
	}
}
