/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("view.comm.memory")

// ErrUnknownParty is returned when an identity is not bound to any endpoint of the network
var ErrUnknownParty = errors.New("party not bound to any endpoint")

// Network connects in-process nodes.
// Each node joins with an endpoint name and the identities it answers for.
type Network struct {
	mutex      sync.RWMutex
	nodes      map[string]*Node
	byIdentity map[string]string
}

func NewNetwork() *Network {
	return &Network{
		nodes:      map[string]*Node{},
		byIdentity: map[string]string{},
	}
}

// Join adds a node to the network under the passed endpoint name
func (n *Network) Join(endpoint string, me view.Identity) (*Node, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if _, ok := n.nodes[endpoint]; ok {
		return nil, errors.Errorf("endpoint [%s] already joined", endpoint)
	}
	node := &Node{
		network:  n,
		endpoint: endpoint,
		me:       me,
		master:   newSession(nil, masterSessionID, "", "", nil, ""),
		sessions: map[string]*session{},
	}
	n.nodes[endpoint] = node
	n.byIdentity[me.UniqueID()] = endpoint
	logger.Debugf("endpoint [%s] joined as [%s]", endpoint, me)
	return node, nil
}

// Leave removes the node from the network and closes all its sessions
func (n *Network) Leave(endpoint string) {
	n.mutex.Lock()
	node, ok := n.nodes[endpoint]
	delete(n.nodes, endpoint)
	for id, ep := range n.byIdentity {
		if ep == endpoint {
			delete(n.byIdentity, id)
		}
	}
	n.mutex.Unlock()

	if ok {
		node.closeAll()
	}
}

// Bind makes an additional identity reachable at the passed endpoint
func (n *Network) Bind(endpoint string, id view.Identity) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if _, ok := n.nodes[endpoint]; !ok {
		return errors.Errorf("endpoint [%s] not found", endpoint)
	}
	n.byIdentity[id.UniqueID()] = endpoint
	return nil
}

// Resolve returns the endpoint the passed identity is bound to
func (n *Network) Resolve(id view.Identity) (string, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	ep, ok := n.byIdentity[id.UniqueID()]
	if !ok {
		return "", errors.Wrapf(ErrUnknownParty, "identity [%s]", id)
	}
	return ep, nil
}

func (n *Network) node(endpoint string) (*Node, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	node, ok := n.nodes[endpoint]
	if !ok {
		return nil, errors.Errorf("endpoint [%s] not reachable", endpoint)
	}
	return node, nil
}

func (n *Network) deliver(to string, msg *view.Message) error {
	node, err := n.node(to)
	if err != nil {
		return err
	}
	node.dispatch(msg)
	return nil
}
