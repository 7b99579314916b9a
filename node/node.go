/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"context"
	"os"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/views"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/comm/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/config"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/server/web"
	view2 "github.com/hyperledger-labs/iou-smart-client/platform/view/services/view"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"go.uber.org/dig"
)

var logger = logging.MustGetLogger("iou.node")

// Node is a party, or a notary, of an in-process network.
// Its services are assembled in a dig container and exposed to the views through a service provider.
type Node struct {
	name      string
	notary    bool
	network   *memory.Network
	container *dig.Container

	me          states.Party
	networkMap  *identity.NetworkMap
	sp          *view2.ServiceProvider
	manager     *view2.Manager
	web         *web.Server
	persistence driver.Persistence

	mutex   sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// Option customises the assembly of a node
type Option func(*options)

type options struct {
	responders []views.ResponderOption
}

// WithResponderOptions customises the responders the node registers for the obligation intents
func WithResponderOptions(opts ...views.ResponderOption) Option {
	return func(o *options) {
		o.responders = append(o.responders, opts...)
	}
}

// New assembles the node configured in cp and joins it to network
func New(cp *config.Provider, network *memory.Network, opts ...Option) (*Node, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	n := &Node{
		name:      cp.ID(),
		notary:    cp.GetBool(config.NotaryKey),
		network:   network,
		container: dig.New(),
	}
	if len(n.name) == 0 {
		return nil, errors.Errorf("node name not set, use %s", config.NameKey)
	}
	if err := n.install(cp, o); err != nil {
		return nil, errors.WithMessagef(err, "failed assembling node [%s]", n.name)
	}
	return n, nil
}

func (n *Node) install(cp *config.Provider, o *options) error {
	if err := provide(n.container, cp, n.network); err != nil {
		return err
	}
	if err := n.container.Provide(func() []views.ResponderOption { return o.responders }); err != nil {
		return errors.Wrap(err, "failed providing responder options")
	}
	if err := register(n.container, n.notary); err != nil {
		return err
	}
	return n.container.Invoke(func(in struct {
		dig.In
		Me          states.Party
		NetworkMap  *identity.NetworkMap
		SP          *view2.ServiceProvider
		Manager     *view2.Manager
		Web         *web.Server
		Persistence driver.Persistence
	}) error {
		n.me, n.networkMap, n.sp, n.manager, n.web, n.persistence = in.Me, in.NetworkMap, in.SP, in.Manager, in.Web, in.Persistence
		return n.Meet(n)
	})
}

func (n *Node) Name() string {
	return n.name
}

// Party returns the well-known party of the node
func (n *Node) Party() states.Party {
	return n.me
}

func (n *Node) IsNotary() bool {
	return n.notary
}

// Meet adds the passed nodes to the network map of n
func (n *Node) Meet(others ...*Node) error {
	for _, o := range others {
		var err error
		if o.notary {
			err = n.networkMap.AddNotary(o.me)
		} else {
			err = n.networkMap.AddParty(o.me)
		}
		if err != nil {
			return errors.WithMessagef(err, "[%s] cannot meet [%s]", n.name, o.name)
		}
	}
	return nil
}

// Start serves the sessions opened by remote parties and, when configured, the REST API
func (n *Node) Start() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.stopped {
		return errors.Errorf("node [%s] stopped", n.name)
	}
	if n.cancel != nil {
		return errors.Errorf("node [%s] already started", n.name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go n.manager.Start(ctx)
	if n.web != nil {
		if err := n.web.Start(); err != nil {
			cancel()
			return err
		}
	}
	n.cancel = cancel
	logger.Infof("node [%s] started, notary [%v]", n.name, n.notary)
	return nil
}

// Stop releases the resources of the node, started or not. It is safe to call it more than once.
func (n *Node) Stop() {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.stopped {
		return
	}
	n.stopped = true
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
		if n.web != nil {
			if err := n.web.Stop(); err != nil {
				logger.Warnf("failed stopping web server of [%s]: %s", n.name, err)
			}
		}
	}
	n.network.Leave(n.name)
	if err := n.persistence.Close(); err != nil {
		logger.Warnf("failed closing persistence of [%s]: %s", n.name, err)
	}
	logger.Infof("node [%s] stopped", n.name)
}

// Run lets the node be grouped with other ifrit processes
func (n *Node) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	if err := n.Start(); err != nil {
		return err
	}
	close(ready)
	<-signals
	n.Stop()
	return nil
}

// InitiateView runs v as the initiator of a new protocol instance
func (n *Node) InitiateView(v view.View) (interface{}, error) {
	return n.manager.InitiateView(v, context.Background())
}

// CallView instantiates the view registered under id with the passed input and runs it
func (n *Node) CallView(id string, in []byte) (interface{}, error) {
	v, err := n.manager.NewView(id, in)
	if err != nil {
		return nil, err
	}
	return n.InitiateView(v)
}

func (n *Node) GetService(v interface{}) (interface{}, error) {
	return n.sp.GetService(v)
}

// WebAddress returns the address the REST API listens on, empty if the API is disabled or not started
func (n *Node) WebAddress() string {
	if n.web == nil {
		return ""
	}
	return n.web.Addr()
}
