/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/comm/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/config"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/tedsuo/ifrit/grouper"
)

// Network is a set of nodes sharing an in-process transport.
// Every node knows every other node.
type Network struct {
	transport *memory.Network
	nodes     []*Node
}

func NewNetwork(configs ...*config.Provider) (*Network, error) {
	return NewCustomNetwork(configs, nil)
}

// NewCustomNetwork assembles every node with the options listed under its name
func NewCustomNetwork(configs []*config.Provider, opts map[string][]Option) (*Network, error) {
	n := &Network{transport: memory.NewNetwork()}
	for _, cp := range configs {
		node, err := New(cp, n.transport, opts[cp.ID()]...)
		if err != nil {
			n.Stop()
			return nil, err
		}
		n.nodes = append(n.nodes, node)
	}
	for _, node := range n.nodes {
		if err := node.Meet(n.nodes...); err != nil {
			n.Stop()
			return nil, err
		}
	}
	return n, nil
}

// LoadConfigs reads a network file: a YAML document with one node configuration per entry of `nodes`
func LoadConfigs(path string) ([]*config.Provider, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed reading network file [%s]", path)
	}
	entries, ok := v.Get("nodes").([]interface{})
	if !ok || len(entries) == 0 {
		return nil, errors.Errorf("no nodes in network file [%s]", path)
	}
	var configs []*config.Provider
	for i, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("node %d of [%s] is not a map", i, path)
		}
		cp, err := config.NewProviderFromMap(m)
		if err != nil {
			return nil, errors.WithMessagef(err, "node %d of [%s]", i, path)
		}
		configs = append(configs, cp)
	}
	return configs, nil
}

func (n *Network) Nodes() []*Node {
	return n.nodes
}

// Node returns the node with the passed name, nil if there is none
func (n *Network) Node(name string) *Node {
	for _, node := range n.nodes {
		if node.Name() == name {
			return node
		}
	}
	return nil
}

func (n *Network) Start() error {
	for _, node := range n.nodes {
		if err := node.Start(); err != nil {
			n.Stop()
			return err
		}
	}
	return nil
}

func (n *Network) Stop() {
	for _, node := range n.nodes {
		node.Stop()
	}
}

// Members returns the nodes as members of an ifrit group, notaries first
func (n *Network) Members() grouper.Members {
	var notaries, parties grouper.Members
	for _, node := range n.nodes {
		m := grouper.Member{Name: node.Name(), Runner: node}
		if node.IsNotary() {
			notaries = append(notaries, m)
		} else {
			parties = append(parties, m)
		}
	}
	return append(notaries, parties...)
}
