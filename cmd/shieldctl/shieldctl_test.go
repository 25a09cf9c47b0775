package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"5", "nf1", `{"amount":5}`, "-",
		"true", "-"}, strings.NewReader("0a0b\n[1,2]"))
	require.NoError(t, err)

	got := make([]string, 0, len(params))
	for _, p := range params {
		got = append(got, string(p))
	}
	require.Equal(t, []string{`5`, `"nf1"`, `{"amount":5}`, `"0a0b"`,
		`true`, `[1,2]`}, got)

	_, err = parseParams([]string{"-", "-"}, strings.NewReader("one\n"))
	require.Error(t, err)
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		result string
		want   string
	}{
		{`{"a":1}`, "{\n  \"a\": 1\n}"},
		{`"ptestsapling1x"`, "ptestsapling1x"},
		{`null`, ""},
		{`700`, "700"},
		{`true`, "true"},
	}
	for _, test := range tests {
		got, err := formatResult(json.RawMessage(test.result))
		require.NoError(t, err)
		require.Equal(t, test.want, got, test.result)
	}
}

func TestSendPostRequest(t *testing.T) {
	var gotReq rpcRequest
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "user" || pass != "pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if gotReq.Method == "fail" {
				w.Write([]byte(`{"result":null,"error":` +
					`{"code":-4,"message":"boom"},"id":1}`))
				return
			}
			w.Write([]byte(`{"result":700,"error":null,"id":1}`))
		}))
	defer server.Close()

	cfg := &config{
		RPCServer:   strings.TrimPrefix(server.URL, "http://"),
		RPCUser:     "user",
		RPCPassword: "pass",
	}
	_, _, err := net.SplitHostPort(cfg.RPCServer)
	require.NoError(t, err)

	body, err := json.Marshal(&rpcRequest{Jsonrpc: "1.0",
		Method: "getbalance", ID: 1})
	require.NoError(t, err)
	result, err := sendPostRequest(body, cfg)
	require.NoError(t, err)
	require.JSONEq(t, "700", string(result))
	require.Equal(t, "getbalance", gotReq.Method)

	body, err = json.Marshal(&rpcRequest{Jsonrpc: "1.0", Method: "fail",
		ID: 1})
	require.NoError(t, err)
	_, err = sendPostRequest(body, cfg)
	require.ErrorContains(t, err, "boom")

	cfg.RPCPassword = "wrong"
	_, err = sendPostRequest(body, cfg)
	require.ErrorContains(t, err, "401")
}
