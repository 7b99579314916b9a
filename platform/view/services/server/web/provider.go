/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package web

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var webLogger = logging.MustGetLogger("view.server.web")

const addressKey = "iou.web.address"

type ConfigProvider interface {
	GetString(key string) string
}

// New returns a server listening on iou.web.address with the API handler and the view handler installed
func New(cp ConfigProvider, viewManager ViewManager) (*Server, *HttpHandler) {
	webServer := NewServer(Options{
		ListenAddress: cp.GetString(addressKey),
		Logger:        webLogger,
	})
	h := NewHttpHandler(webLogger)
	webServer.RegisterHandler(apiVersion+"/", h)
	InstallViewHandler(webLogger, viewManager, h)
	return webServer, h
}

var webServiceLookUp = &Server{}

func GetService(sp view.ServiceProvider) (*Server, error) {
	s, err := sp.GetService(webServiceLookUp)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get web service from registry")
	}
	return s.(*Server), nil
}
