/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package middleware_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/server/web/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// tag writes name around the call of the next handler
func tag(name string) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "<%s>", name)
			next.ServeHTTP(w, r)
			fmt.Fprintf(w, "</%s>", name)
		})
	}
}

var _ = Describe("Chain", func() {
	var (
		obligations http.Handler
		req         *http.Request
		resp        *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		obligations = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "[]")
		})
		req = httptest.NewRequest(http.MethodGet, "/v1/obligations", nil)
		resp = httptest.NewRecorder()
	})

	It("wraps the handler in the order the middleware were passed", func() {
		middleware.NewChain(tag("auth"), tag("log"), tag("trace")).Handler(obligations).ServeHTTP(resp, req)
		Expect(resp.Body.String()).To(Equal("<auth><log><trace>[]</trace></log></auth>"))
	})

	It("is not affected by later changes to the passed slice", func() {
		mws := []middleware.Middleware{tag("a")}
		chain := middleware.NewChain(mws...)
		mws[0] = tag("b")
		chain.Handler(obligations).ServeHTTP(resp, req)
		Expect(resp.Body.String()).To(Equal("<a>[]</a>"))
	})

	It("calls the handler directly when empty", func() {
		middleware.NewChain().Handler(obligations).ServeHTTP(resp, req)
		Expect(resp.Body.String()).To(Equal("[]"))
	})

	It("falls back to the default mux without a handler", func() {
		middleware.NewChain(tag("log")).Handler(nil).ServeHTTP(resp, req)
		Expect(resp.Body.String()).To(ContainSubstring("404 page not found"))
	})

	It("logs method, path and status of every request", func() {
		l := &recordingLogger{}
		middleware.NewChain(middleware.WithRequestLogging(l)).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})).ServeHTTP(resp, req)
		Expect(resp.Code).To(Equal(http.StatusConflict))
		Expect(l.lines).To(HaveLen(1))
		Expect(l.lines[0]).To(HavePrefix("GET /v1/obligations -> 409"))
	})
})

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debugf(template string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(template, args...))
}
