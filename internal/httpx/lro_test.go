package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LukaszStem/azure-cli/internal/backend"
)

func TestOperationFollowsAsyncOperationHeader(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/rg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.Header().Set("Azure-AsyncOperation", srvURL+"/status")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"name":"rg","properties":{"provisioningState":"Accepted"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"rg","properties":{"provisioningState":"Succeeded"}}`))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 2 {
			_, _ = w.Write([]byte(`{"status":"InProgress","properties":{"correlationId":"c-1"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"Succeeded"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c := New(2*time.Second, 0, WithBaseURL(srv.URL))
	ctx := context.Background()
	initial, err := c.Do(ctx, http.MethodPut, "/rg", nil, map[string]string{"location": "westus"})
	if err != nil {
		t.Fatalf("initial: %v", err)
	}
	if !IsLongRunning(initial) {
		t.Fatal("expected long running response")
	}
	op := StartOperation(c, http.MethodPut, "/rg", initial)

	done, err := op.Done(ctx)
	if err != nil || done {
		t.Fatalf("expected in progress, got done=%v err=%v", done, err)
	}
	if string(op.LastResponse()) == "" {
		t.Fatal("expected last response to be kept")
	}
	done, err = op.Done(ctx)
	if err != nil || !done {
		t.Fatalf("expected done, got done=%v err=%v", done, err)
	}
	result, err := op.Result(ctx)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	props := result.(map[string]any)["properties"].(map[string]any)
	if props["provisioningState"] != "Succeeded" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestOperationLocationDelete(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/rg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", srvURL+"/poll")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c := New(2*time.Second, 0, WithBaseURL(srv.URL))
	ctx := context.Background()
	initial, err := c.Do(ctx, http.MethodDelete, "/rg", nil, nil)
	if err != nil {
		t.Fatalf("initial: %v", err)
	}
	op := StartOperation(c, http.MethodDelete, "/rg", initial)
	checks := 0
	for {
		checks++
		done, err := op.Done(ctx)
		if err != nil {
			t.Fatalf("done: %v", err)
		}
		if done {
			break
		}
	}
	if checks != 3 {
		t.Fatalf("expected 3 checks, got %d", checks)
	}
	result, err := op.Result(ctx)
	if err != nil || result != nil {
		t.Fatalf("expected empty delete result, got %#v err=%v", result, err)
	}
}

func TestOperationFailureSurfacesBackendError(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/rg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Azure-AsyncOperation", srvURL+"/status")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"Failed","error":{"code":"Conflict","message":"in use"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c := New(2*time.Second, 0, WithBaseURL(srv.URL))
	ctx := context.Background()
	initial, err := c.Do(ctx, http.MethodPut, "/rg", nil, nil)
	if err != nil {
		t.Fatalf("initial: %v", err)
	}
	op := StartOperation(c, http.MethodPut, "/rg", initial)
	if done, err := op.Done(ctx); err != nil || !done {
		t.Fatalf("expected done, got %v %v", done, err)
	}
	_, err = op.Result(ctx)
	var be *backend.Error
	if !errors.As(err, &be) || be.Code != "Conflict" || be.Message != "in use" {
		t.Fatalf("expected Conflict backend error, got %v", err)
	}
}

func TestStartOperationCompletedImmediately(t *testing.T) {
	op := StartOperation(nil, http.MethodPut, "/rg", &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(`{"name":"rg"}`)})
	done, err := op.Done(context.Background())
	if err != nil || !done {
		t.Fatalf("expected done immediately, got %v %v", done, err)
	}
	result, err := op.Result(context.Background())
	if err != nil || result.(map[string]any)["name"] != "rg" {
		t.Fatalf("unexpected result %#v %v", result, err)
	}
}

func TestPagerFollowsNextLink(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/groups", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"value":[{"name":"c"}]}`))
			return
		}
		if r.URL.Query().Get("api-version") != "2017-05-10" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"value":[{"name":"a"},{"name":"b"}],"nextLink":"` + srvURL + `/groups?page=2"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c := New(2*time.Second, 0, WithBaseURL(srv.URL))
	items, err := backend.Drain(context.Background(), NewPager(c, "/groups", map[string][]string{"api-version": {"2017-05-10"}}))
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(items) != 3 || items[2].(map[string]any)["name"] != "c" {
		t.Fatalf("unexpected items %#v", items)
	}
}
