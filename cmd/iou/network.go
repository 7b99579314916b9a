/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"os"
	"syscall"

	"github.com/hyperledger-labs/iou-smart-client/node"
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grouper"
	"github.com/tedsuo/ifrit/sigmon"
)

var logger = logging.MustGetLogger("iou.cmd")

const (
	configFlag    = "config"
	logSpecFlag   = "log-spec"
	logFormatFlag = "log-format"
)

func networkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Runs all the nodes of a network file in this process.",
		Long: `Runs all the nodes of a network file in this process, notaries first.
The nodes talk over an in-process transport and, when configured, expose their REST API.
The network stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runNetwork(viper.GetString(configFlag))
		},
	}
	flags := cmd.Flags()
	flags.String(configFlag, "", "path of the network file")
	flags.String(logSpecFlag, "", "logging spec, overrides the one of the first node")
	flags.String(logFormatFlag, "", "logging format: console, json or logfmt")
	for _, name := range []string{configFlag, logSpecFlag, logFormatFlag} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func runNetwork(path string) error {
	if len(path) == 0 {
		return errors.Errorf("network file not set, use --%s", configFlag)
	}
	configs, err := node.LoadConfigs(path)
	if err != nil {
		return err
	}
	if err := initLogging(configs[0]); err != nil {
		return err
	}

	network, err := node.NewNetwork(configs...)
	if err != nil {
		return err
	}
	for _, n := range network.Nodes() {
		logger.Infof("node [%s], notary [%v], party [%s]", n.Name(), n.IsNotary(), n.Party())
	}

	process := ifrit.Invoke(sigmon.New(grouper.NewOrdered(syscall.SIGTERM, network.Members()), os.Interrupt, syscall.SIGTERM))
	select {
	case <-process.Ready():
		logger.Infof("network of [%d] nodes is up", len(network.Nodes()))
	case err := <-process.Wait():
		return errors.WithMessage(err, "failed starting network")
	}
	if err := <-process.Wait(); err != nil {
		return err
	}
	logger.Infof("network stopped")
	return nil
}

func initLogging(cp *config.Provider) error {
	c := logging.Config{
		Format:  cp.GetString(config.LoggingFormatKey),
		LogSpec: cp.GetString(config.LoggingSpecKey),
	}
	if spec := viper.GetString(logSpecFlag); len(spec) != 0 {
		c.LogSpec = spec
	}
	if format := viper.GetString(logFormatFlag); len(format) != 0 {
		c.Format = format
	}
	return logging.Init(c)
}
