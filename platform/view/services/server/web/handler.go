/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

const (
	apiVersion     = "/v1"
	maxRequestSize = 1 << 20
	contentType    = "application/json"
)

// ResponseErr is the body of every non 2xx response
type ResponseErr struct {
	Reason string
}

type logger interface {
	Debugf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// ReqContext is what a RequestHandler gets to serve a request.
// Query holds the result of ParsePayload.
type ReqContext struct {
	Req   *http.Request
	Vars  map[string]string
	Query interface{}
}

type RequestHandler interface {
	// ParsePayload turns the request body into the query of the handler
	ParsePayload([]byte) (interface{}, error)

	// HandleRequest returns the response body and the status code.
	// A non 2xx response is either a *ResponseErr, an error or nil.
	HandleRequest(*ReqContext) (response interface{}, statusCode int)
}

// HttpHandler routes the JSON API of a node
type HttpHandler struct {
	r          *mux.Router
	maxReqSize int64
	Logger     logger
}

func NewHttpHandler(l logger) *HttpHandler {
	return &HttpHandler{r: mux.NewRouter(), maxReqSize: maxRequestSize, Logger: l}
}

func (h *HttpHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// RegisterURI binds rh to method and uri under the API version prefix
func (h *HttpHandler) RegisterURI(uri string, method string, rh RequestHandler) {
	h.r.HandleFunc(apiVersion+uri, func(w http.ResponseWriter, req *http.Request) {
		h.serve(w, req, rh)
	}).Methods(method)
}

func (h *HttpHandler) serve(w http.ResponseWriter, req *http.Request, rh RequestHandler) {
	if !acceptsJSON(req.Header.Get("Accept")) {
		h.fail(w, http.StatusBadRequest, "response Content-Type is application/json only", nil)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(req.Body, h.maxReqSize))
	if err != nil {
		h.fail(w, http.StatusBadRequest, "failed reading request", err)
		return
	}
	query, err := rh.ParsePayload(payload)
	if err != nil {
		h.fail(w, http.StatusBadRequest, "failed parsing request: "+err.Error(), err)
		return
	}

	res, code := rh.HandleRequest(&ReqContext{Req: req, Vars: mux.Vars(req), Query: query})
	if code < 200 || code > 299 {
		h.fail(w, code, reasonOf(res, code), nil)
		return
	}
	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(res); err != nil {
		h.fail(w, http.StatusInternalServerError, "failed encoding response", err)
		return
	}
	h.write(w, code, body.Bytes())
}

func (h *HttpHandler) fail(w http.ResponseWriter, code int, reason string, cause error) {
	if cause != nil {
		h.Logger.Warnf("failed serving request: %v", cause)
	}
	raw, err := json.Marshal(&ResponseErr{Reason: reason})
	if err != nil {
		h.Logger.Errorf("failed encoding error response: %v", err)
		return
	}
	h.write(w, code, append(raw, '\n'))
}

func (h *HttpHandler) write(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		h.Logger.Warnf("failed writing response: %v", err)
	}
}

func reasonOf(res interface{}, code int) string {
	switch r := res.(type) {
	case *ResponseErr:
		return r.Reason
	case error:
		return r.Error()
	}
	return http.StatusText(code)
}

// acceptsJSON tells whether an Accept header admits a JSON response; an empty header does
func acceptsJSON(accept string) bool {
	if len(accept) == 0 {
		return true
	}
	for _, opt := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(opt, ";", 2)[0])
		switch mediaType {
		case contentType, "application/*", "*/*":
			return true
		}
	}
	return false
}
