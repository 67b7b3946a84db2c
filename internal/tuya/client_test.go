package tuya

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		Name:     "openapi",
		BaseURL:  srv.URL,
		ClientID: "client-1",
		Secret:   "secret-1",
		Timeout:  5 * time.Second,
	})
	return srv, c
}

func writeResult(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	json.NewEncoder(w).Encode(apiResponse{
		Success: true,
		Result:  raw,
		T:       time.Now().UnixMilli(),
	})
}

func TestClientSignsRequests(t *testing.T) {
	var seen *http.Request
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1.0/token") {
			writeResult(w, tokenResult{AccessToken: "tok-1", ExpireTime: 7200})
			return
		}
		seen = r.Clone(context.Background())
		writeResult(w, deviceListResult{})
	})

	if _, err := c.Devices(context.Background()); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if seen == nil {
		t.Fatal("business request never reached the server")
	}

	for _, header := range []string{"client_id", "sign", "t", "nonce", "access_token"} {
		if seen.Header.Get(header) == "" {
			t.Errorf("missing header %q", header)
		}
	}
	if got := seen.Header.Get("sign_method"); got != "HMAC-SHA256" {
		t.Errorf("sign_method = %q", got)
	}
	if got := seen.Header.Get("access_token"); got != "tok-1" {
		t.Errorf("access_token = %q", got)
	}

	// Recompute the signature the way the cloud would.
	canonical := stringToSign(http.MethodGet, seen.URL.Path, seen.URL.RawQuery, nil)
	want := sign("client-1", "secret-1", "tok-1",
		seen.Header.Get("t"), seen.Header.Get("nonce"), canonical)
	if got := seen.Header.Get("sign"); got != want {
		t.Errorf("sign = %q, want %q", got, want)
	}
}

func TestClientReusesToken(t *testing.T) {
	tokenCalls := 0
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1.0/token") {
			tokenCalls++
			writeResult(w, tokenResult{AccessToken: "tok-1", ExpireTime: 7200})
			return
		}
		writeResult(w, deviceListResult{})
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Devices(context.Background()); err != nil {
			t.Fatalf("Devices: %v", err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token acquired %d times, want 1", tokenCalls)
	}
}

func TestClientDevicesPaging(t *testing.T) {
	page := 0
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1.0/token") {
			writeResult(w, tokenResult{AccessToken: "tok-1", ExpireTime: 7200})
			return
		}
		page++
		switch page {
		case 1:
			if r.URL.Query().Get("last_id") != "" {
				t.Errorf("first page carried last_id=%q", r.URL.Query().Get("last_id"))
			}
			writeResult(w, deviceListResult{
				List:    []DeviceModel{{ID: "d1"}, {ID: "d2"}},
				HasMore: true,
			})
		default:
			if got := r.URL.Query().Get("last_id"); got != "d2" {
				t.Errorf("second page last_id = %q, want d2", got)
			}
			writeResult(w, deviceListResult{List: []DeviceModel{{ID: "d3"}}})
		}
	})

	devices, err := c.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 3 {
		t.Errorf("got %d devices, want 3", len(devices))
	}
}

func TestClientRequestFailure(t *testing.T) {
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1.0/token") {
			writeResult(w, tokenResult{AccessToken: "tok-1", ExpireTime: 7200})
			return
		}
		json.NewEncoder(w).Encode(apiResponse{Success: false, Code: 1010, Msg: "permission denied"})
	})

	_, err := c.Devices(context.Background())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("err = %v, want ErrRequestFailed", err)
	}
}

func TestClientAuthFailure(t *testing.T) {
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Success: false, Code: 1004, Msg: "sign invalid"})
	})

	_, err := c.Devices(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestClientFetchAllSkipsFailedSpecs(t *testing.T) {
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1.0/token"):
			writeResult(w, tokenResult{AccessToken: "tok-1", ExpireTime: 7200})
		case strings.HasPrefix(r.URL.Path, "/v1.3/iot-03/devices"):
			writeResult(w, deviceListResult{List: []DeviceModel{
				{ID: "good", Category: "cz"},
				{ID: "bad", Category: "cz"},
			}})
		case strings.Contains(r.URL.Path, "/bad/"):
			json.NewEncoder(w).Encode(apiResponse{Success: false, Code: 1106, Msg: "permission"})
		default:
			writeResult(w, SpecificationResult{
				Category: "cz",
				Status: []SpecEntry{
					{Code: "switch_1", Type: "Boolean", Values: "{}", DPID: 1},
				},
			})
		}
	})

	devices, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want only the good one", len(devices))
	}
	if devices[0].ID != "good" {
		t.Errorf("kept device %q, want good", devices[0].ID)
	}
	if _, ok := devices[0].StatusRange["switch_1"]; !ok {
		t.Error("status_range not populated from specification")
	}
}

func TestStringToSign(t *testing.T) {
	emptySum := sha256.Sum256(nil)
	got := stringToSign(http.MethodGet, "/v1.0/token", "grant_type=1", nil)
	want := "GET\n" + hex.EncodeToString(emptySum[:]) + "\n\n/v1.0/token?grant_type=1"
	if got != want {
		t.Errorf("stringToSign = %q, want %q", got, want)
	}
}

func TestSignMatchesReference(t *testing.T) {
	// Independently computed digest over the concatenated parts.
	canonical := stringToSign(http.MethodGet, "/v1.0/devices", "", nil)
	mac := hmac.New(sha256.New, []byte("s"))
	mac.Write([]byte("c" + "tok" + "1700000000000" + "n" + canonical))
	want := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))

	if got := sign("c", "s", "tok", "1700000000000", "n", canonical); got != want {
		t.Errorf("sign = %q, want %q", got, want)
	}
}
