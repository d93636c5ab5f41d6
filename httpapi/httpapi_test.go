package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/intro/address"
	"xdao.co/intro/keys"
	"xdao.co/intro/ledger"
	"xdao.co/intro/processor"
	"xdao.co/intro/record"
	"xdao.co/intro/recordtx"
)

var program = address.Address{0x42}

func newServer(t *testing.T) (*httptest.Server, *ledger.Bank, keys.Keypair) {
	t.Helper()
	bank := ledger.NewBank(ledger.NewMemStore(), ledger.WithProgram(program, processor.Entrypoint))
	alice, err := keys.FromSeed(bytes.Repeat([]byte{1}, keys.SeedSize))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = bank.Airdrop(ctx, alice.Address(), 1_000_000_000)
	require.NoError(t, err)
	tx, err := recordtx.Add(program, alice, "Alice", "Hello")
	require.NoError(t, err)
	_, err = bank.Execute(ctx, tx)
	require.NoError(t, err)

	srv := httptest.NewServer((&API{Bank: bank, ProgramID: program}).Routes())
	t.Cleanup(srv.Close)
	return srv, bank, alice
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newServer(t)
	resp := getJSON(t, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestGetRecord(t *testing.T) {
	srv, _, alice := newServer(t)

	var view RecordView
	resp := getJSON(t, srv.URL+"/v1/records/"+alice.Address().String()+"/Alice", &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, view.Initialized)
	assert.Equal(t, "Alice", view.Name)
	assert.Equal(t, "Hello", view.Message)

	want, bump, err := processor.RecordAddress(program, alice.Address(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, want.String(), view.Address)
	assert.Equal(t, bump, view.Bump)
}

func TestGetRecordEscapedName(t *testing.T) {
	srv, bank, alice := newServer(t)
	ctx := context.Background()

	for _, name := range []string{"a/b", "50%", "x?y", "a/50%"} {
		t.Run(name, func(t *testing.T) {
			tx, err := recordtx.Add(program, alice, name, "msg "+name)
			require.NoError(t, err)
			_, err = bank.Execute(ctx, tx)
			require.NoError(t, err)

			var view RecordView
			resp := getJSON(t, srv.URL+"/v1/records/"+alice.Address().String()+"/"+url.PathEscape(name), &view)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, name, view.Name)
			assert.Equal(t, "msg "+name, view.Message)

			want, _, err := processor.RecordAddress(program, alice.Address(), name)
			require.NoError(t, err)
			assert.Equal(t, want.String(), view.Address)
		})
	}
}

func TestGetRecordBadEscape(t *testing.T) {
	_, bank, alice := newServer(t)
	handler := (&API{Bank: bank, ProgramID: program}).Routes()

	req := httptest.NewRequest(http.MethodGet, "/v1/records/"+alice.Address().String()+"/x", nil)
	req.URL.RawPath = "/v1/records/" + alice.Address().String() + "/a%2F%zz"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_NAME")
}

func TestGetAccount(t *testing.T) {
	srv, bank, alice := newServer(t)
	at, _, err := processor.RecordAddress(program, alice.Address(), "Alice")
	require.NoError(t, err)

	var view AccountView
	resp := getJSON(t, srv.URL+"/v1/accounts/"+at.String(), &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, program.String(), view.Owner)
	assert.Equal(t, record.Capacity, view.Size)
	assert.Equal(t, bank.Rent().MinimumBalance(record.Capacity), view.Lamports)
	assert.True(t, strings.HasPrefix(view.DataHex, "0105000000416c696365"))
}

func TestErrors(t *testing.T) {
	srv, _, alice := newServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"bad address", "/v1/accounts/0OIl", http.StatusBadRequest, "BAD_ADDRESS"},
		{"missing account", "/v1/accounts/" + address.Address{9}.String(), http.StatusNotFound, "NOT_FOUND"},
		{"missing record", "/v1/records/" + alice.Address().String() + "/Bob", http.StatusNotFound, "NOT_FOUND"},
		{"long name", "/v1/records/" + alice.Address().String() + "/" + strings.Repeat("n", 33), http.StatusBadRequest, "BAD_NAME"},
		{"unknown route", "/v1/records/" + alice.Address().String() + "/Alice/extra", http.StatusNotFound, ""},
		{"bad rent size", "/v1/rent/-1", http.StatusBadRequest, "BAD_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			var target any = &body
			if tt.code == "" {
				target = nil
			}
			resp := getJSON(t, srv.URL+tt.path, target)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				assert.Equal(t, tt.code, body.Code)
				assert.Equal(t, resp.Header.Get(requestIDHeader), body.RequestID)
			}
		})
	}
}

func TestRent(t *testing.T) {
	srv, _, _ := newServer(t)
	var out map[string]uint64
	resp := getJSON(t, srv.URL+"/v1/rent/1000", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(7_850_880), out["lamports"])
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _, _ := newServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc", resp.Header.Get(requestIDHeader))
}
