// Package httpapi serves read-only JSON views of ledger accounts and records.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"xdao.co/intro/address"
	"xdao.co/intro/ledger"
	"xdao.co/intro/logs"
	"xdao.co/intro/processor"
	"xdao.co/intro/record"
)

const requestIDHeader = "X-Request-ID"

type API struct {
	Bank      *ledger.Bank
	ProgramID address.Address
	Logger    *slog.Logger
}

type AccountView struct {
	Address  string `json:"address"`
	Owner    string `json:"owner"`
	Lamports uint64 `json:"lamports"`
	Size     int    `json:"size"`
	DataHex  string `json:"data_hex,omitempty"`
}

type RecordView struct {
	Address     string `json:"address"`
	Bump        uint8  `json:"bump"`
	Authority   string `json:"authority"`
	Initialized bool   `json:"initialized"`
	Name        string `json:"name"`
	Message     string `json:"message"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(a.requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(api chi.Router) {
		api.Get("/accounts/{address}", a.getAccount)
		api.Get("/records/{authority}/{name}", a.getRecord)
		api.Get("/rent/{size}", a.getRent)
	})
	return r
}

func (a *API) logger() *slog.Logger {
	if a.Logger == nil {
		return logs.Discard()
	}
	return a.Logger
}

func (a *API) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logs.WithRequestID(r.Context(), id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		a.logger().DebugContext(ctx, "http", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := address.Parse(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_ADDRESS", err.Error())
		return
	}
	acct, err := a.Bank.Account(r.Context(), addr)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountView{
		Address:  acct.Address.String(),
		Owner:    acct.Owner.String(),
		Lamports: acct.Lamports,
		Size:     len(acct.Data),
		DataHex:  hex.EncodeToString(acct.Data),
	})
}

// pathParam returns the decoded route parameter key. chi matches on the raw
// path when the request carries escapes such as %2F, leaving them in the
// parameter.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request) {
	authority, err := address.Parse(chi.URLParam(r, "authority"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_ADDRESS", err.Error())
		return
	}
	name, err := pathParam(r, "name")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_NAME", err.Error())
		return
	}
	at, bump, err := processor.RecordAddress(a.ProgramID, authority, name)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_NAME", err.Error())
		return
	}
	acct, err := a.Bank.Account(r.Context(), at)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	if acct.Owner != a.ProgramID {
		writeError(w, r, http.StatusConflict, "NOT_A_RECORD", "account is not owned by the record program")
		return
	}
	rec, err := record.Decode(acct.Data)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "BAD_RECORD", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RecordView{
		Address:     at.String(),
		Bump:        bump,
		Authority:   authority.String(),
		Initialized: rec.Initialized,
		Name:        rec.Name,
		Message:     rec.Message,
	})
}

func (a *API) getRent(w http.ResponseWriter, r *http.Request) {
	size, err := strconv.Atoi(chi.URLParam(r, "size"))
	if err != nil || size < 0 || size > ledger.MaxAccountSize {
		writeError(w, r, http.StatusBadRequest, "BAD_SIZE", "size must be an integer in [0, "+strconv.Itoa(ledger.MaxAccountSize)+"]")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"size": uint64(size), "lamports": a.Bank.Rent().MinimumBalance(size)})
}

func (a *API) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ledger.ErrAccountNotFound) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	a.logger().ErrorContext(r.Context(), "account lookup failed", "err", err)
	writeError(w, r, http.StatusInternalServerError, "STORE_ERROR", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	id, _ := logs.RequestID(r.Context())
	writeJSON(w, status, errorBody{Code: code, Message: msg, RequestID: id})
}
