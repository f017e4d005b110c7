package nxapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testConfig() Config {
	return Config{
		Host:       "switch01",
		Username:   "admin",
		Password:   "secret",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
}

// fakeDevice is an httptest handler speaking the JSON-RPC batch dialect.
// respond maps a command to its response; commands after the first error
// in a batch are silently dropped, mirroring real configure behavior.
func fakeDevice(t *testing.T, respond func(cmd string, id int) rpcResponse) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("device saw method %s, want POST", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json-rpc" {
			t.Errorf("Content-Type = %q, want application/json-rpc", got)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "nxqos/") {
			t.Errorf("User-Agent = %q, want nxqos/ prefix", ua)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var batch []rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("device could not decode request: %v", err)
			return
		}

		var responses []rpcResponse
		for _, req := range batch {
			resp := respond(req.Params.Cmd, req.ID)
			responses = append(responses, resp)
			if resp.Error != nil {
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(responses) == 1 {
			_ = json.NewEncoder(w).Encode(responses[0])
			return
		}
		_ = json.NewEncoder(w).Encode(responses)
	}
}

func okResponse(id int) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", Result: json.RawMessage(`{}`), ID: id}
}

func TestRun_AllExecuted(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fakeDevice(t, func(cmd string, id int) rpcResponse {
			return okResponse(id)
		})(w, r)
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())
	cmds := []string{"ip access-list ACL_A", "  10 permit tcp any any eq 443"}

	results, err := client.Run(context.Background(), cmds)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("device saw %d requests, want 1", requests.Load())
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, res := range results {
		if !res.Executed {
			t.Errorf("result %d (%q) not marked executed", i, res.Command)
		}
	}
	// Indentation is a preview artifact; the wire carries trimmed commands.
	if results[1].Command != "10 permit tcp any any eq 443" {
		t.Errorf("command not trimmed: %q", results[1].Command)
	}
}

func TestRun_TruncatedAcknowledgementIsProtocolError(t *testing.T) {
	// Fewer result objects than commands, none carrying an error member.
	// The missing acknowledgements must surface as a failure, not as a
	// silently successful batch.
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var batch []rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("device could not decode request: %v", err)
			return
		}
		responses := make([]rpcResponse, 0, len(batch)-1)
		for _, req := range batch[:len(batch)-1] {
			responses = append(responses, okResponse(req.ID))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(responses)
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())
	cmds := []string{"ip access-list ACL_A", "10 permit tcp any any", "20 deny ip any any"}

	results, err := client.Run(context.Background(), cmds)
	if err == nil {
		t.Fatal("Run() should fail when the device acknowledges fewer commands than it was sent")
	}
	if !IsProtocolError(err) {
		t.Errorf("error should be a protocol failure, got %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("device saw %d requests, want 1 (protocol failures never retry)", requests.Load())
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].Executed || !results[1].Executed {
		t.Error("acknowledged commands should be marked executed")
	}
	if results[2].Executed {
		t.Error("unacknowledged command must not be marked executed")
	}
	if results[2].Err == nil {
		t.Error("unacknowledged command should carry the failure")
	}
}

func TestRun_RejectionHaltsBatch(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fakeDevice(t, func(cmd string, id int) rpcResponse {
			if cmd == "bogus command" {
				return rpcResponse{
					JSONRPC: "2.0",
					Error:   &rpcError{Code: -32602, Message: "Invalid params", Data: json.RawMessage(`{"msg":"% Invalid command"}`)},
					ID:      id,
				}
			}
			return okResponse(id)
		})(w, r)
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())
	cmds := []string{"class-map type qos match-any C1", "bogus command", "policy-map type qos PM1"}

	results, err := client.Run(context.Background(), cmds)
	if err == nil {
		t.Fatal("Run() should fail on a rejected command")
	}
	if !IsRejectionError(err) {
		t.Errorf("error should classify as rejection, got %v", err)
	}
	// Rejections must never be retried.
	if requests.Load() != 1 {
		t.Errorf("device saw %d requests, want 1", requests.Load())
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].Executed {
		t.Error("command before the rejection must be marked executed")
	}
	if results[1].Executed || results[1].Err == nil {
		t.Errorf("rejected command state wrong: %+v", results[1])
	}
	if results[1].Err.Command != "bogus command" || results[1].Err.Code != -32602 {
		t.Errorf("rejection detail wrong: %+v", results[1].Err)
	}
	if results[2].Executed || results[2].Err != nil {
		t.Errorf("command after the rejection must be untouched: %+v", results[2])
	}
}

func TestRun_BatchSizeSplitsRequests(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fakeDevice(t, func(cmd string, id int) rpcResponse {
			return okResponse(id)
		})(w, r)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BatchSize = 2
	client := NewClientWithURL(srv.URL, cfg)

	results, err := client.Run(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if requests.Load() != 3 {
		t.Errorf("device saw %d requests, want 3", requests.Load())
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}
}

func TestShow_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		fakeDevice(t, func(cmd string, id int) rpcResponse {
			return rpcResponse{JSONRPC: "2.0", Result: json.RawMessage(`{"sys_ver_str":"10.2(3)"}`), ID: id}
		})(w, r)
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())

	result, err := client.Show(context.Background(), "show version")
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if requests.Load() != 3 {
		t.Errorf("device saw %d requests, want 3 (two retries)", requests.Load())
	}
	var payload struct {
		Version string `json:"sys_ver_str"`
	}
	if err := json.Unmarshal(result, &payload); err != nil || payload.Version != "10.2(3)" {
		t.Errorf("result payload wrong: %s", result)
	}
}

func TestShow_AuthFailureNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())

	_, err := client.Show(context.Background(), "show version")
	if !IsAuthError(err) {
		t.Fatalf("error should classify as auth failure, got %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("device saw %d requests, want 1", requests.Load())
	}
}

func TestShow_MalformedResponseNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance page</html>"))
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())

	_, err := client.Show(context.Background(), "show version")
	if !IsProtocolError(err) {
		t.Fatalf("error should classify as protocol failure, got %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("device saw %d requests, want 1 (protocol errors never retry)", requests.Load())
	}
}

// An HTTP 200 carrying an error member is a rejection, not a success.
func TestShow_ErrorMemberAuthoritativeOn200(t *testing.T) {
	srv := httptest.NewServer(fakeDevice(t, func(cmd string, id int) rpcResponse {
		return rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32602, Message: "Invalid params"},
			ID:      id,
		}
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())

	_, err := client.Show(context.Background(), "show qos nonsense")
	if !IsRejectionError(err) {
		t.Fatalf("error should classify as rejection, got %v", err)
	}
}

func TestRun_TimeoutNotRetriedOnConfigure(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	client := NewClientWithURL(srv.URL, cfg)

	results, err := client.Run(context.Background(), []string{"interface Ethernet1/1"})
	if err == nil {
		t.Fatal("Run() should fail on timeout")
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) || !devErr.Timeout {
		t.Fatalf("error should carry the timeout flag, got %v", err)
	}
	// The request may have reached the device, so configure must not retry.
	if requests.Load() != 1 {
		t.Errorf("device saw %d requests, want 1", requests.Load())
	}
	if len(results) != 1 || results[0].Executed {
		t.Errorf("timed-out command must not be marked executed: %+v", results)
	}
}

func TestShowText_ExtractsPlainOutput(t *testing.T) {
	srv := httptest.NewServer(fakeDevice(t, func(cmd string, id int) rpcResponse {
		if cmd != "show running-config ipqos" {
			t.Errorf("device saw command %q", cmd)
		}
		return rpcResponse{
			JSONRPC: "2.0",
			Result:  json.RawMessage(`{"msg": "policy-map type qos PM1\n  class C1\n    set dscp ef\n"}`),
			ID:      id,
		}
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())

	text, err := client.RunningConfig(context.Background(), "ipqos")
	if err != nil {
		t.Fatalf("RunningConfig() error = %v", err)
	}
	want := "policy-map type qos PM1\n  class C1\n    set dscp ef\n"
	if diff := cmp.Diff(want, text); diff != "" {
		t.Errorf("RunningConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(fakeDevice(t, func(cmd string, id int) rpcResponse {
		if cmd != "show version" {
			t.Errorf("Ping sent %q, want show version", cmd)
		}
		return okResponse(id)
	}))
	defer srv.Close()

	if err := NewClientWithURL(srv.URL, testConfig()).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestRun_StripsPreviewComments(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(fakeDevice(t, func(cmd string, id int) rpcResponse {
		seen = append(seen, cmd)
		return okResponse(id)
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, testConfig())
	input := []string{
		"# Policy: scenario",
		"",
		"ip access-list ACL_A",
		"  10 permit tcp any any eq 443",
	}

	if _, err := client.Run(context.Background(), input); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"ip access-list ACL_A", "10 permit tcp any any eq 443"}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("device saw wrong commands (-want +got):\n%s", diff)
	}
}
