package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"budgetpipe/internal/core"
	"budgetpipe/internal/ledger"
	"budgetpipe/internal/rules"
)

// runRequest is the body of POST /api/v1/runs. A JSON body carries the
// transactions and optional inline rules; a text/csv body carries only
// transactions.
type runRequest struct {
	Transactions core.Table
	Rules        *rules.Config
}

type runRequestJSON struct {
	Transactions core.Table      `json:"transactions"`
	Rules        json.RawMessage `json:"rules"`
}

func parseRunRequest(r *http.Request, maxBody int64) (runRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return runRequest{}, fmt.Errorf("request body exceeds %d bytes", tooBig.Limit)
		}
		return runRequest{}, fmt.Errorf("read body: %w", err)
	}

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = mt
		}
	}

	switch mediaType {
	case "text/csv":
		t, err := ledger.ReadCSV(bytes.NewReader(body))
		if err != nil {
			return runRequest{}, err
		}
		return runRequest{Transactions: t}, nil
	case "application/json":
		var raw runRequestJSON
		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&raw); err != nil {
			return runRequest{}, fmt.Errorf("decode request: %w", err)
		}
		if raw.Transactions == nil {
			return runRequest{}, errors.New("missing transactions")
		}
		req := runRequest{Transactions: raw.Transactions}
		if len(raw.Rules) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Rules), []byte("null")) {
			cfg, err := rules.Parse(raw.Rules, rules.FormatJSON)
			if err != nil {
				return runRequest{}, err
			}
			req.Rules = cfg
		}
		return req, nil
	}
	return runRequest{}, fmt.Errorf("unsupported content type %q", mediaType)
}
