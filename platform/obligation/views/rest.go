/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package views

import (
	"context"
	"net/http"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/builder"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/contract"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/endorser"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/notary"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/vault"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/server/web"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
)

type ViewManager interface {
	InitiateView(v view.View, ctx context.Context) (interface{}, error)
}

// InstallHandlers exposes the intents and the queries of this node under /v1
func InstallHandlers(h *web.HttpHandler, viewManager ViewManager) {
	factories := Factories()
	for _, q := range []string{"me", "peers", "obligations", "cash", "cash-balances", "owed-per-currency"} {
		h.RegisterURI("/"+q, http.MethodGet, &viewHandler{viewManager: viewManager, factory: factories[q], status: http.StatusOK})
	}
	for uri, intent := range map[string]string{
		"/self-issue-cash":     SelfIssueCashIntent,
		"/issue-obligation":    IssueIntent,
		"/transfer-obligation": TransferIntent,
		"/settle-obligation":   SettleIntent,
	} {
		h.RegisterURI(uri, http.MethodPost, &viewHandler{viewManager: viewManager, factory: factories[intent], status: http.StatusCreated})
	}
}

type viewHandler struct {
	viewManager ViewManager
	factory     view.Factory
	status      int
}

func (h *viewHandler) ParsePayload(raw []byte) (interface{}, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return h.factory.NewView(raw)
}

func (h *viewHandler) HandleRequest(ctx *web.ReqContext) (interface{}, int) {
	res, err := h.viewManager.InitiateView(ctx.Query.(view.View), ctx.Req.Context())
	if err != nil {
		logger.Debugf("request [%s] failed: %s", ctx.Req.URL.Path, err)
		return &web.ResponseErr{Reason: err.Error()}, StatusOf(err)
	}
	return res, h.status
}

// StatusOf maps the failure of an intent to an HTTP status
func StatusOf(err error) int {
	switch {
	case errors.HasCause(err, vault.ErrNotFound):
		return http.StatusNotFound
	case errors.HasCause(err, notary.ErrConflict):
		return http.StatusConflict
	case errors.HasType(err, &builder.PreconditionError{}),
		errors.HasType(err, &contract.Rejection{}),
		errors.HasType(err, &endorser.CounterpartyRejection{}):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
