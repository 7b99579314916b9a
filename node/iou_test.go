/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/node"
	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/builder"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/contract"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/endorser"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/notary"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/vault"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/views"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/config"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracker"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	perrors "github.com/pkg/errors"
)

func nodeConfig(name string, notary bool, web bool) *config.Provider {
	iou := map[string]interface{}{"name": name, "notary": notary, "logging": map[string]interface{}{"spec": "warning"}}
	if web {
		iou["web"] = map[string]interface{}{"address": "127.0.0.1:0"}
	}
	cp, err := config.NewProviderFromMap(map[string]interface{}{"iou": iou})
	Expect(err).NotTo(HaveOccurred())
	return cp
}

func gbp(s string) states.Amount {
	a, err := states.ParseAmount(s + " GBP")
	Expect(err).NotTo(HaveOccurred())
	return a
}

func yes() *bool {
	b := true
	return &b
}

type party struct {
	*node.Node
}

func (p party) issue(amount, lender string, anonymous *bool) (*views.Result, error) {
	res, err := p.InitiateView(views.NewIssueView(&views.Issue{Amount: amount, Lender: lender, Anonymous: anonymous}))
	if err != nil {
		return nil, err
	}
	return res.(*views.Result), nil
}

func (p party) transfer(linearID, newLender string, anonymous *bool) (*views.Result, error) {
	res, err := p.InitiateView(views.NewTransferView(&views.Transfer{LinearID: linearID, NewLender: newLender, Anonymous: anonymous}))
	if err != nil {
		return nil, err
	}
	return res.(*views.Result), nil
}

func (p party) settle(linearID, amount string, anonymous *bool) (*views.Result, error) {
	res, err := p.InitiateView(views.NewSettleView(&views.Settle{LinearID: linearID, Amount: amount, Anonymous: anonymous}))
	if err != nil {
		return nil, err
	}
	return res.(*views.Result), nil
}

func (p party) selfIssueCash(amount string) {
	_, err := p.InitiateView(views.NewSelfIssueCashView(&views.SelfIssueCash{Amount: amount}))
	Expect(err).NotTo(HaveOccurred())
}

func (p party) obligations() []*views.ObligationInfo {
	res, err := p.InitiateView(&views.ObligationsView{})
	Expect(err).NotTo(HaveOccurred())
	return res.([]*views.ObligationInfo)
}

func (p party) obligation(linearID string) *views.ObligationInfo {
	for _, o := range p.obligations() {
		if o.Obligation.LinearID == linearID {
			return o
		}
	}
	return nil
}

func (p party) balances() []states.Amount {
	res, err := p.InitiateView(&views.CashBalancesView{})
	Expect(err).NotTo(HaveOccurred())
	return res.([]states.Amount)
}

func (p party) owed() []states.Amount {
	res, err := p.InitiateView(&views.OwedPerCurrencyView{})
	Expect(err).NotTo(HaveOccurred())
	return res.([]states.Amount)
}

// recorded tells whether the vault of p holds the transaction txID
func (p party) recorded(txID string) bool {
	s, err := p.GetService(&vault.Vault{})
	Expect(err).NotTo(HaveOccurred())
	_, err = s.(*vault.Vault).Transaction(context.Background(), txID)
	if errors.HasCause(err, vault.ErrNotFound) {
		return false
	}
	Expect(err).NotTo(HaveOccurred())
	return true
}

// progress returns the checkpoints of the flows of intent on linearID
func (p party) progress(intent, linearID string, role tracker.Role) []*tracker.Progress {
	s, err := p.GetService(&tracker.Service{})
	Expect(err).NotTo(HaveOccurred())
	all, err := s.(*tracker.Service).All()
	Expect(err).NotTo(HaveOccurred())
	var res []*tracker.Progress
	for _, pr := range all {
		if pr.Intent == intent && pr.LinearID == linearID && pr.Role == role {
			res = append(res, pr)
		}
	}
	return res
}

var _ = Describe("IOU network", func() {
	var (
		network                    *node.Network
		alice, bob, charlie, dave party
	)

	BeforeEach(func() {
		var err error
		network, err = node.NewNetwork(
			nodeConfig("notary", true, false),
			nodeConfig("alice", false, true),
			nodeConfig("bob", false, false),
			nodeConfig("charlie", false, false),
			nodeConfig("dave", false, false),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(network.Start()).To(Succeed())
		alice, bob, charlie, dave = party{network.Node("alice")}, party{network.Node("bob")}, party{network.Node("charlie")}, party{network.Node("dave")}
	})

	AfterEach(func() {
		network.Stop()
	})

	It("issues an obligation", func() {
		res, err := alice.issue("10.00 GBP", "bob", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.LinearID).NotTo(BeEmpty())
		Expect(res.TxID).NotTo(BeEmpty())
		Expect(res.Obligation.Amount).To(Equal(gbp("10")))
		Expect(res.Obligation.Lender).To(Equal(bob.Party()))
		Expect(res.Obligation.Borrower).To(Equal(alice.Party()))

		for _, p := range []party{alice, bob} {
			o := p.obligation(res.LinearID)
			Expect(o).NotTo(BeNil(), "%s must know the obligation", p.Name())
			Expect(o.Lender).To(Equal("bob"))
			Expect(o.Borrower).To(Equal("alice"))
			Expect(o.Obligation.Paid).To(Equal(states.ZeroOf("GBP")))
		}
		Expect(charlie.obligation(res.LinearID)).To(BeNil())
		Expect(alice.owed()).To(Equal([]states.Amount{gbp("10")}))
		Expect(bob.owed()).To(BeEmpty())

		initiator := alice.progress(views.IssueIntent, res.LinearID, tracker.Initiator)
		Expect(initiator).To(HaveLen(1))
		Expect(initiator[0].Step).To(Equal(tracker.Committed))
		Expect(initiator[0].TxID).To(Equal(res.TxID))
		Expect(initiator[0].History).To(Equal([]tracker.Step{
			endorser.Preparing, endorser.Building, endorser.Signing, endorser.Collecting, endorser.Finalizing, tracker.Committed,
		}))
		responder := bob.progress(views.IssueIntent, res.LinearID, tracker.Responder)
		Expect(responder).To(HaveLen(1))
		Expect(responder[0].Step).To(Equal(tracker.Committed))
		Expect(responder[0].History).To(ContainElements(endorser.Review, endorser.Endorse, endorser.AwaitCommit))
	})

	It("issues an obligation between anonymous parties", func() {
		res, err := alice.issue("10.00 GBP", "bob", yes())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Obligation.Lender.IsAnonymous()).To(BeTrue())
		Expect(res.Obligation.Borrower.IsAnonymous()).To(BeTrue())
		Expect(res.Obligation.Lender.Identity).NotTo(Equal(bob.Party().Identity))

		o := bob.obligation(res.LinearID)
		Expect(o).NotTo(BeNil())
		Expect(o.Lender).To(Equal("bob"))
		Expect(o.Borrower).To(Equal("alice"))

		By("refusing a transfer to the well-known identity behind the current lender")
		_, err = bob.transfer(res.LinearID, "bob", nil)
		Expect(errors.HasCause(err, contract.ErrTransferLenderUnchanged)).To(BeTrue(), "unexpected failure: %s", err)
		Expect(views.StatusOf(err)).To(Equal(http.StatusBadRequest))
		Expect(bob.obligation(res.LinearID).Obligation.Lender).To(Equal(res.Obligation.Lender))
	})

	It("rejects invalid issuances", func() {
		_, err := alice.issue("10.00 GBP", "alice", nil)
		Expect(err).To(HaveOccurred())
		Expect(views.StatusOf(err)).To(Equal(http.StatusBadRequest))

		_, err = alice.issue("10.00 GBP", "mallory", nil)
		Expect(errors.HasType(err, &builder.PreconditionError{})).To(BeTrue())

		_, err = alice.issue("ten GBP", "bob", nil)
		Expect(errors.HasType(err, &builder.PreconditionError{})).To(BeTrue())

		_, err = alice.issue("0 GBP", "bob", nil)
		Expect(views.StatusOf(err)).To(Equal(http.StatusBadRequest))
		Expect(alice.obligations()).To(BeEmpty())
	})

	It("transfers an obligation", func() {
		issued, err := alice.issue("10.00 GBP", "bob", nil)
		Expect(err).NotTo(HaveOccurred())

		res, err := bob.transfer(issued.LinearID, "charlie", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.LinearID).To(Equal(issued.LinearID))
		Expect(res.Obligation.Lender).To(Equal(charlie.Party()))

		for _, p := range []party{alice, charlie} {
			o := p.obligation(issued.LinearID)
			Expect(o).NotTo(BeNil(), "%s must know the obligation", p.Name())
			Expect(o.Lender).To(Equal("charlie"))
		}
		Expect(bob.obligation(issued.LinearID)).To(BeNil())

		By("refusing a transfer started by anyone but the lender")
		_, err = alice.transfer(issued.LinearID, "dave", nil)
		Expect(errors.HasType(err, &builder.PreconditionError{})).To(BeTrue())
		_, err = bob.transfer(issued.LinearID, "dave", nil)
		Expect(views.StatusOf(err)).To(Equal(http.StatusBadRequest))

		By("moving it again to an anonymous lender")
		res, err = charlie.transfer(issued.LinearID, "dave", yes())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Obligation.Lender.IsAnonymous()).To(BeTrue())
		o := dave.obligation(issued.LinearID)
		Expect(o).NotTo(BeNil())
		Expect(o.Lender).To(Equal("dave"))
		Expect(alice.obligation(issued.LinearID).Lender).To(Equal("dave"))
	})

	It("settles an obligation in two payments", func() {
		issued, err := alice.issue("10.00 GBP", "bob", nil)
		Expect(err).NotTo(HaveOccurred())

		By("refusing to settle without cash")
		_, err = alice.settle(issued.LinearID, "5 GBP", nil)
		Expect(errors.HasType(err, &builder.PreconditionError{})).To(BeTrue())

		alice.selfIssueCash("20 GBP")
		Expect(alice.balances()).To(Equal([]states.Amount{gbp("20")}))

		By("refusing to settle more than outstanding, in another token, or by the lender")
		_, err = alice.settle(issued.LinearID, "15 GBP", nil)
		Expect(views.StatusOf(err)).To(Equal(http.StatusBadRequest))
		_, err = alice.settle(issued.LinearID, "5 USD", nil)
		Expect(views.StatusOf(err)).To(Equal(http.StatusBadRequest))
		_, err = bob.settle(issued.LinearID, "5 GBP", nil)
		Expect(views.StatusOf(err)).To(Equal(http.StatusBadRequest))

		res, err := alice.settle(issued.LinearID, "5 GBP", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Obligation).NotTo(BeNil())
		Expect(res.Obligation.Paid).To(Equal(gbp("5")))
		Expect(bob.obligation(issued.LinearID).Obligation.Paid).To(Equal(gbp("5")))
		Expect(alice.balances()).To(Equal([]states.Amount{gbp("15")}))
		Expect(bob.balances()).To(Equal([]states.Amount{gbp("5")}))

		res, err = alice.settle(issued.LinearID, "5 GBP", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Obligation).To(BeNil())
		Expect(alice.obligation(issued.LinearID)).To(BeNil())
		Expect(bob.obligation(issued.LinearID)).To(BeNil())
		Expect(alice.balances()).To(Equal([]states.Amount{gbp("10")}))
		Expect(bob.balances()).To(Equal([]states.Amount{gbp("10")}))
		Expect(alice.owed()).To(BeEmpty())

		_, err = alice.settle(issued.LinearID, "1 GBP", nil)
		Expect(errors.HasCause(err, vault.ErrNotFound)).To(BeTrue())
	})

	It("settles an anonymous obligation paying a fresh key of the lender", func() {
		issued, err := alice.issue("10.00 GBP", "bob", yes())
		Expect(err).NotTo(HaveOccurred())
		alice.selfIssueCash("10 GBP")

		res, err := alice.settle(issued.LinearID, "10 GBP", yes())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Obligation).To(BeNil())
		Expect(bob.balances()).To(Equal([]states.Amount{gbp("10")}))
		Expect(alice.balances()).To(BeEmpty())
	})

	It("commits exactly one of two conflicting transfers", func() {
		issued, err := alice.issue("10.00 GBP", "bob", nil)
		Expect(err).NotTo(HaveOccurred())

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, lender := range []string{"charlie", "dave"} {
			wg.Add(1)
			go func(i int, lender string) {
				defer GinkgoRecover()
				defer wg.Done()
				_, errs[i] = bob.transfer(issued.LinearID, lender, nil)
			}(i, lender)
		}
		wg.Wait()

		var failed []error
		for _, err := range errs {
			if err != nil {
				failed = append(failed, err)
			}
		}
		Expect(failed).To(HaveLen(1))
		// the loser is either refused by the notary or by alice, depending on who saw the winner first
		Expect(errors.HasCause(failed[0], notary.ErrConflict) ||
			errors.HasType(failed[0], &endorser.CounterpartyRejection{})).To(BeTrue(), "unexpected failure: %s", failed[0])

		o := alice.obligation(issued.LinearID)
		Expect(o).NotTo(BeNil())
		Expect(o.Lender).To(BeElementOf("charlie", "dave"))

		aborted := 0
		for _, p := range bob.progress(views.TransferIntent, issued.LinearID, tracker.Initiator) {
			if p.Step == tracker.Aborted {
				aborted++
				Expect(p.Reason).NotTo(BeEmpty())
			}
		}
		Expect(aborted).To(Equal(1))
	})

	It("serves the REST API", func() {
		url := "http://" + alice.WebAddress() + "/v1"
		Expect(alice.WebAddress()).NotTo(BeEmpty())

		resp, err := http.Get(url + "/me")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		me := map[string]string{}
		Expect(json.NewDecoder(resp.Body).Decode(&me)).To(Succeed())
		Expect(resp.Body.Close()).To(Succeed())
		Expect(me).To(HaveKeyWithValue("me", "alice"))

		post := func(uri, body string) (*http.Response, map[string]interface{}) {
			resp, err := http.Post(url+uri, "application/json", bytes.NewBufferString(body))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			out := map[string]interface{}{}
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			return resp, out
		}

		resp, out := post("/issue-obligation", `{"amount":"3.50 GBP","lender":"bob"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(out).To(HaveKey("linear_id"))

		resp, out = post("/settle-obligation", `{"linear_id":"`+out["linear_id"].(string)+`","amount":"1 GBP"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(out).To(HaveKey("Reason"))

		resp, _ = post("/transfer-obligation", `{"linear_id":"unknown","new_lender":"bob"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

		resp, _ = post("/self-issue-cash", `{"amount":"1 GBP"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(alice.balances()).To(Equal([]states.Amount{gbp("1")}))
	})
})

var _ = Describe("IOU network with business checks", func() {
	var (
		network             *node.Network
		alice, bob, charlie party
	)

	BeforeEach(func() {
		// charlie takes over obligations of at most 5 GBP, and reviews slowly
		most := gbp("5")
		limit := func(_ view.Context, stx *ledger.SignedTransaction) error {
			time.Sleep(100 * time.Millisecond)
			for _, o := range stx.Tx.OutputObligations() {
				if o.Amount.Quantity > most.Quantity {
					return perrors.Errorf("[%s] is over the limit", o.Amount)
				}
			}
			return nil
		}
		var err error
		network, err = node.NewCustomNetwork(
			[]*config.Provider{
				nodeConfig("notary", true, false),
				nodeConfig("alice", false, false),
				nodeConfig("bob", false, false),
				nodeConfig("charlie", false, false),
			},
			map[string][]node.Option{
				"charlie": {node.WithResponderOptions(views.WithAdditionalChecks(views.TransferIntent, limit))},
			},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(network.Start()).To(Succeed())
		alice, bob, charlie = party{network.Node("alice")}, party{network.Node("bob")}, party{network.Node("charlie")}
	})

	AfterEach(func() {
		network.Stop()
	})

	It("fails the transfer and aborts the signers that already endorsed", func() {
		issued, err := alice.issue("10.00 GBP", "bob", nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = bob.transfer(issued.LinearID, "charlie", nil)
		Expect(errors.HasType(err, &endorser.CounterpartyRejection{})).To(BeTrue(), "unexpected failure: %s", err)
		Expect(err.Error()).To(ContainSubstring("over the limit"))
		Expect(views.StatusOf(err)).To(Equal(http.StatusBadRequest))

		initiator := bob.progress(views.TransferIntent, issued.LinearID, tracker.Initiator)
		Expect(initiator).To(HaveLen(1))
		Expect(initiator[0].Step).To(Equal(tracker.Aborted))

		By("releasing alice well before the finality timeout")
		var responder *tracker.Progress
		Eventually(func() tracker.Step {
			pr := alice.progress(views.TransferIntent, issued.LinearID, tracker.Responder)
			if len(pr) != 1 {
				return ""
			}
			responder = pr[0]
			return responder.Step
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(tracker.Aborted))
		Expect(responder.Reason).To(ContainSubstring(endorser.ErrAborted.Error()))
		Expect(responder.TxID).NotTo(BeEmpty())

		By("recording the transaction nowhere")
		for _, p := range []party{alice, bob, charlie} {
			Expect(p.recorded(responder.TxID)).To(BeFalse(), "%s recorded [%s]", p.Name(), responder.TxID)
		}
		Expect(alice.obligation(issued.LinearID).Lender).To(Equal("bob"))
		Expect(charlie.obligation(issued.LinearID)).To(BeNil())
	})

	It("lets the transfers within the limit through", func() {
		issued, err := alice.issue("5.00 GBP", "bob", nil)
		Expect(err).NotTo(HaveOccurred())

		res, err := bob.transfer(issued.LinearID, "charlie", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Obligation.Lender).To(Equal(charlie.Party()))
		Expect(charlie.obligation(issued.LinearID).Lender).To(Equal("charlie"))
	})
})
