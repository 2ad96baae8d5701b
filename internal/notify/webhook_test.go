package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketwatch/internal/dedup"
)

func TestSendProfitAlert(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	defer srv.Close()

	obs := dedup.Observation{Good: "Iron Ore", Region: "wuling", LocalPrice: 100, FriendPrice: 2400}
	if err := SendProfitAlert(srv.URL, obs); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Profit != 2300 || got.Good != "Iron Ore" {
		t.Fatalf("alert = %+v", got)
	}
}

func TestSendProfitAlertDisabled(t *testing.T) {
	if err := SendProfitAlert("", dedup.Observation{}); err != nil {
		t.Fatalf("blank URL must be a no-op, got %v", err)
	}
}

func TestSendProfitAlertBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := SendProfitAlert(srv.URL, dedup.Observation{Good: "Iron Ore"}); err == nil {
		t.Fatalf("expected error on 502")
	}
}
