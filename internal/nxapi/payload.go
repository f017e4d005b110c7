package nxapi

import (
	"encoding/json"
	"strings"
)

// Method is the JSON-RPC method discriminator for a request.
type Method string

const (
	// MethodShow executes a read-only command with structured output.
	MethodShow Method = "cli"
	// MethodShowASCII executes a read-only command with plain-text output.
	MethodShowASCII Method = "cli_ascii"
	// MethodConfigure executes a command in configuration mode.
	MethodConfigure Method = "cli_conf"
)

// protocolVersion is the NX-API params version marker.
const protocolVersion = 1

type rpcParams struct {
	Cmd     string `json:"cmd"`
	Version int    `json:"version"`
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  Method    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int       `json:"id"`
}

// rpcError is the device's error member. Its presence is authoritative:
// the command was rejected regardless of the HTTP status.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// detail extracts the human-readable message the device tucks into the
// error data, if any.
func (e *rpcError) detail() string {
	if len(e.Data) == 0 {
		return e.Message
	}
	var data struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(e.Data, &data); err == nil && data.Msg != "" {
		return e.Message + ": " + strings.TrimSpace(data.Msg)
	}
	return e.Message
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

// buildBatch assembles one JSON-RPC request per command, ids starting at 1
// so responses correlate back to their position in the batch.
func buildBatch(method Method, commands []string) []rpcRequest {
	batch := make([]rpcRequest, len(commands))
	for i, cmd := range commands {
		batch[i] = rpcRequest{
			JSONRPC: "2.0",
			Method:  method,
			Params:  rpcParams{Cmd: cmd, Version: protocolVersion},
			ID:      i + 1,
		}
	}
	return batch
}

// decodeResponses parses a response body that is either a single response
// object (one command) or an array (batch). Responses are returned in
// batch order using the correlation id when present.
func decodeResponses(body []byte, n int) ([]rpcResponse, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errEmptyBody
	}

	var list []rpcResponse
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
	} else {
		var single rpcResponse
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, err
		}
		list = []rpcResponse{single}
	}

	// Re-order by correlation id when the device supplied them.
	ordered := make([]rpcResponse, len(list))
	copy(ordered, list)
	usable := true
	for _, r := range list {
		if r.ID < 1 || r.ID > n {
			usable = false
			break
		}
	}
	if usable && n == len(list) {
		for _, r := range list {
			ordered[r.ID-1] = r
		}
	}

	return ordered, nil
}

// StripNonCommands drops blank lines and comment lines from a command
// sequence before transmission. Preview output is directly deployable
// because of this.
func StripNonCommands(commands []string) []string {
	out := make([]string, 0, len(commands))
	for _, cmd := range commands {
		trimmed := strings.TrimSpace(cmd)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
