package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/core"
	"github.com/arthur-debert/kitman/pkg/errors"
)

// FailureView is a failed tool as JSON.
type FailureView struct {
	Name    string `json:"name"`
	Error   string `json:"error"`
	Skipped bool   `json:"skipped,omitempty"`
}

// ResultView is a core.Result as JSON.
type ResultView struct {
	Operation      string             `json:"operation"`
	OperationID    string             `json:"operation_id,omitempty"`
	Kind           core.OperationKind `json:"kind,omitempty"`
	Succeeded      []string           `json:"succeeded"`
	Removed        []string           `json:"removed,omitempty"`
	Failed         []FailureView      `json:"failed,omitempty"`
	ToolchainError string             `json:"toolchain_error,omitempty"`
	Resumed        string             `json:"resumed,omitempty"`
	// Error is set when the operation was rejected or aborted.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

func newResultView(op string, res *core.Result, err error) *ResultView {
	v := &ResultView{Operation: op, Succeeded: []string{}}
	if err != nil {
		v.Error = err.Error()
		v.Code = string(errors.GetErrorCode(err))
	}
	if res == nil {
		return v
	}
	v.OperationID = res.OperationID
	v.Kind = res.Kind
	v.Succeeded = append(v.Succeeded, res.Succeeded...)
	v.Removed = res.Removed
	v.Resumed = res.Resumed
	for _, f := range res.Failed {
		fv := FailureView{Name: f.Name, Skipped: f.Skipped}
		if f.Err != nil {
			fv.Error = f.Err.Error()
		}
		v.Failed = append(v.Failed, fv)
	}
	if res.ToolchainErr != nil {
		v.ToolchainError = res.ToolchainErr.Error()
	}
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsErrorCode(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.KindOf(err) == errors.KindConfiguration:
		status = http.StatusBadRequest
	case errors.KindOf(err) == errors.KindStateInconsistency:
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: string(errors.GetErrorCode(err))})
}

func (s *Server) listComponents(w http.ResponseWriter, r *http.Request) {
	m, err := s.manifest()
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.engine.Record()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, components.FromManifest(m, rec))
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.Record()
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeError(w, errors.New(errors.ErrNotFound, "nothing is installed"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type operationStatus struct {
	Running string      `json:"running,omitempty"`
	Last    *ResultView `json:"last,omitempty"`
}

func (s *Server) getOperation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := operationStatus{Running: s.running, Last: s.last}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) cancelOperation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	running, cancel := s.running, s.cancel
	s.mu.Unlock()
	if cancel == nil {
		writeError(w, errors.New(errors.ErrNotFound, "no operation is running"))
		return
	}
	cancel()
	writeJSON(w, http.StatusAccepted, operationStatus{Running: running})
}

func decodeRequest(r *http.Request) (core.Request, error) {
	var req core.Request
	if r.ContentLength == 0 {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return req, errors.Wrap(err, errors.ErrInvalidInput, "decode request body")
	}
	return req, nil
}

func (s *Server) startManifestOp(w http.ResponseWriter, r *http.Request, op string,
	run func(ctx context.Context, req core.Request) (*core.Result, error)) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.start(op, func(ctx context.Context) (*core.Result, error) {
		return run(ctx, req)
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, operationStatus{Running: op})
}

func (s *Server) startInstall(w http.ResponseWriter, r *http.Request) {
	s.startManifestOp(w, r, "install", func(ctx context.Context, req core.Request) (*core.Result, error) {
		m, err := s.manifest()
		if err != nil {
			return nil, err
		}
		return s.engine.Install(ctx, m, req)
	})
}

func (s *Server) startUpdate(w http.ResponseWriter, r *http.Request) {
	s.startManifestOp(w, r, "update", func(ctx context.Context, req core.Request) (*core.Result, error) {
		m, err := s.manifest()
		if err != nil {
			return nil, err
		}
		return s.engine.Update(ctx, m, req)
	})
}

type uninstallBody struct {
	KeepSelf bool `json:"keep_self"`
}

func (s *Server) startUninstall(w http.ResponseWriter, r *http.Request) {
	var body uninstallBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errors.Wrap(err, errors.ErrInvalidInput, "decode request body"))
			return
		}
	}
	if err := s.start("uninstall", func(ctx context.Context) (*core.Result, error) {
		return s.engine.Uninstall(ctx, body.KeepSelf)
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, operationStatus{Running: "uninstall"})
}

var _ Engine = (*core.Engine)(nil)
