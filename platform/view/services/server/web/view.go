/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// ViewManager instantiates views from their registered factories and runs them as initiators
type ViewManager interface {
	NewView(id string, in []byte) (view.View, error)
	InitiateView(v view.View, ctx context.Context) (interface{}, error)
}

var errNoViewManager = errors.New("view manager not set")

// CallViewResponse carries the JSON encoded result of a view
type CallViewResponse struct {
	Result json.RawMessage `json:"result"`
}

// viewDispatcher runs the view named in the URI with the request body as factory input
type viewDispatcher struct {
	logger
	viewManager ViewManager
}

// InstallViewHandler exposes every registered view factory under PUT /v1/Views/{View}
func InstallViewHandler(l logger, viewManager ViewManager, h *HttpHandler) {
	h.RegisterURI("/Views/{View}", http.MethodPut, &viewDispatcher{logger: l, viewManager: viewManager})
}

func (d *viewDispatcher) ParsePayload(raw []byte) (interface{}, error) {
	return raw, nil
}

func (d *viewDispatcher) HandleRequest(ctx *ReqContext) (interface{}, int) {
	if d.viewManager == nil {
		d.Errorf("cannot serve [%s]: %s", ctx.Req.URL.Path, errNoViewManager)
		return &ResponseErr{Reason: "internal error"}, http.StatusInternalServerError
	}
	vid := strings.NewReplacer("\n", "", "\r", "").Replace(ctx.Vars["View"])
	res, err := d.callView(ctx.Req.Context(), vid, ctx.Query.([]byte))
	if err != nil {
		return &ResponseErr{Reason: err.Error()}, http.StatusInternalServerError
	}
	return res, http.StatusOK
}

func (d *viewDispatcher) callView(ctx context.Context, vid string, input []byte) (*CallViewResponse, error) {
	d.Debugf("call view [%s] on input [%s]", vid, input)
	v, err := d.viewManager.NewView(vid, input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed instantiating view [%s]", vid)
	}
	result, err := d.viewManager.InitiateView(v, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed running view [%s]", vid)
	}
	raw, ok := result.([]byte)
	if !ok || !json.Valid(raw) {
		if ok {
			result = string(raw)
		}
		if raw, err = json.Marshal(result); err != nil {
			return nil, errors.Wrapf(err, "failed marshalling result of view [%s]", vid)
		}
	}
	return &CallViewResponse{Result: raw}, nil
}
