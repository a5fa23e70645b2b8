package routific

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/field-scheduler/internal/dispatch"
)

func testPayload() (map[string]dispatch.Visit, map[string]dispatch.FleetMember) {
	visits := map[string]dispatch.Visit{
		"order_42": {
			Location: dispatch.Location{Name: "order_42", Lat: 40.71, Lng: -74.0},
			Start:    "09:00",
			End:      "10:00",
			Duration: 60,
		},
	}
	fleet := map[string]dispatch.FleetMember{
		"tech@example.com|North": {
			StartLocation: dispatch.Location{Name: "Depot"},
			EndLocation:   dispatch.Location{Name: "Depot"},
			ShiftStart:    "09:00",
			ShiftEnd:      "17:00",
		},
	}
	return visits, fleet
}

func TestCheckFeasible(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Visits map[string]dispatch.Visit       `json:"visits"`
		Fleet  map[string]dispatch.FleetMember `json:"fleet"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"num_unserved":0,"unserved":null}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok123", time.Second)
	visits, fleet := testPayload()
	v, err := c.Check(context.Background(), visits, fleet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Feasible {
		t.Fatalf("expected feasible verdict")
	}
	if gotAuth != "bearer tok123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if _, ok := gotBody.Visits["order_42"]; !ok {
		t.Fatalf("request visits = %v", gotBody.Visits)
	}
	if _, ok := gotBody.Fleet["tech@example.com|North"]; !ok {
		t.Fatalf("request fleet = %v", gotBody.Fleet)
	}
}

func TestCheckUnserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"num_unserved":1,"unserved":["order_42"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	visits, fleet := testPayload()
	v, err := c.Check(context.Background(), visits, fleet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Feasible {
		t.Fatalf("expected infeasible verdict")
	}
	if len(v.Unserved) != 1 || v.Unserved[0] != "order_42" {
		t.Fatalf("unserved = %v", v.Unserved)
	}
}

func TestCheckErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "bad", time.Second)
	visits, fleet := testPayload()
	_, err := c.Check(context.Background(), visits, fleet)

	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Status != http.StatusUnauthorized || se.Message != "invalid token" {
		t.Fatalf("ServiceError = %+v", se)
	}
}

func TestCheckErrorStatusFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	visits, fleet := testPayload()
	_, err := c.Check(context.Background(), visits, fleet)

	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Message != "request failed" {
		t.Fatalf("message = %q, want the generic fallback", se.Message)
	}
}

func TestCheckMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	visits, fleet := testPayload()
	v, err := c.Check(context.Background(), visits, fleet)

	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError for an unreadable 200 body, got verdict %+v err %v", v, err)
	}
	if se.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", se.Status)
	}
	if v.Feasible {
		t.Fatalf("an unintelligible answer must never read as feasible")
	}
}

func TestCheckTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", 50*time.Millisecond)
	visits, fleet := testPayload()
	_, err := c.Check(context.Background(), visits, fleet)

	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError on timeout, got %v", err)
	}
	if se.Status != 0 {
		t.Fatalf("status = %d, want 0 when no response was received", se.Status)
	}
}
