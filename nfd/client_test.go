package nfd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	x402 "github.com/a2apay/x402-go"
)

const depositAddress = "GD64YIY3TWGDMCNPP553DZPPR6LDUSFQOIJVFDPPXWEG3FVOJCCDBBHU5A"

func testClient(server *httptest.Server) *Client {
	return NewClient(WithBaseURL("algorand-testnet", server.URL))
}

func TestResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nfd/merchant.algo" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("view") != "tiny" {
			t.Errorf("view = %s", r.URL.Query().Get("view"))
		}
		json.NewEncoder(w).Encode(map[string]string{
			"name":           "merchant.algo",
			"owner":          depositAddress,
			"depositAccount": depositAddress,
		})
	}))
	defer server.Close()

	address, err := testClient(server).Resolve(context.Background(), "Merchant.ALGO", "algorand-testnet")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if address != depositAddress {
		t.Errorf("address = %s", address)
	}
}

func TestResolveNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := testClient(server).Resolve(context.Background(), "missing.algo", "algorand-testnet")
	if !errors.Is(err, ErrNameNotFound) {
		t.Errorf("error = %v, want ErrNameNotFound", err)
	}
}

func TestResolveNoDepositAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "parked.algo", "owner": depositAddress})
	}))
	defer server.Close()

	_, err := testClient(server).Resolve(context.Background(), "parked.algo", "algorand-testnet")
	if !errors.Is(err, ErrNoDepositAccount) {
		t.Errorf("error = %v, want ErrNoDepositAccount", err)
	}
}

func TestResolveUnknownNetwork(t *testing.T) {
	client := NewClient()
	_, err := client.Resolve(context.Background(), "merchant.algo", "base")
	if !errors.Is(err, x402.ErrUnsupportedNetwork) {
		t.Errorf("error = %v, want ErrUnsupportedNetwork", err)
	}
}

func TestReverseResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nfd/lookup" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("address") != depositAddress {
			t.Errorf("address = %s", r.URL.Query().Get("address"))
		}
		json.NewEncoder(w).Encode(map[string]map[string]string{
			depositAddress: {"name": "merchant.algo"},
		})
	}))
	defer server.Close()

	name, err := testClient(server).ReverseResolve(context.Background(), depositAddress, "algorand-testnet")
	if err != nil {
		t.Fatalf("ReverseResolve: %v", err)
	}
	if name != "merchant.algo" {
		t.Errorf("name = %s", name)
	}
}

func TestReverseResolveNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]map[string]string{})
	}))
	defer server.Close()

	_, err := testClient(server).ReverseResolve(context.Background(), depositAddress, "algorand-testnet")
	if !errors.Is(err, ErrNameNotFound) {
		t.Errorf("error = %v, want ErrNameNotFound", err)
	}
}
