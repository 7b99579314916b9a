/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"errors"
	"os"

	digutils "github.com/hyperledger-labs/iou-smart-client/platform/common/utils/dig"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/cash"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/endorser"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/notary"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/vault"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/views"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/comm/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/config"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver/badger"
	mem "github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver/sqlite"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/events"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/events/simple"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/id/ecdsa"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics/disabled"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics/prometheus"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/server/web"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracing"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracker"
	view2 "github.com/hyperledger-labs/iou-smart-client/platform/view/services/view"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	perrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/dig"
)

const kvsNamespace = "iou"

func provide(c *dig.Container, cp *config.Provider, network *memory.Network) error {
	err := errors.Join(
		c.Provide(func() *config.Provider { return cp }),
		c.Provide(func() *memory.Network { return network }),
		c.Provide(view2.NewServiceProvider),
		c.Provide(digutils.Identity[*view2.ServiceProvider](), dig.As(new(digutils.Registry))),

		c.Provide(newMetricsProvider),
		c.Provide(func(cp *config.Provider, mp metrics.Provider) trace.TracerProvider {
			return tracing.NewTracerProvider(tracing.BackingProvider(cp.GetString(config.TracingProviderKey)), mp)
		}),

		c.Provide(newDriverOpts),
		c.Provide(mem.NewNamedDriver, dig.Group("db-drivers")),
		c.Provide(badger.NewNamedDriver, dig.Group("db-drivers")),
		c.Provide(sqlite.NewNamedDriver, dig.Group("db-drivers")),
		c.Provide(newPersistence),
		c.Provide(newKVS),

		c.Provide(simple.NewEventBus, dig.As(new(events.EventSystem))),
		c.Provide(events.NewService),

		c.Provide(func(store *kvs.KVS) *sig.Service {
			return sig.NewService(sig.NewMultiplexDeserializer(&ecdsa.Deserializer{}), store)
		}),
		c.Provide(newMe),
		c.Provide(identity.NewNetworkMap),
		c.Provide(func(me states.Party, nm *identity.NetworkMap, s *sig.Service, store *kvs.KVS) *identity.Service {
			return identity.NewService(me, nm, s, store)
		}),
		c.Provide(func(store *kvs.KVS, ids *identity.Service, es *events.Service) *vault.Vault {
			return vault.New(store, ids, es)
		}),
		c.Provide(func(s *sig.Service, cp *config.Provider) *notary.Client {
			return notary.NewClient(s, cp.GetDuration(config.FinalityTimeoutKey))
		}),
		c.Provide(newNotaryService),
		c.Provide(func(v *vault.Vault, ids *identity.Service) *cash.Wallet { return cash.NewWallet(v, ids) }),
		c.Provide(func(store *kvs.KVS, mp metrics.Provider) *tracker.Service { return tracker.NewService(store, mp) }),
		c.Provide(func(cp *config.Provider) *endorser.Config {
			return endorser.NewConfig(cp.GetDuration(config.SessionTimeoutKey), cp.GetDuration(config.FinalityTimeoutKey))
		}),
		c.Provide(func(cp *config.Provider) *views.Options {
			return &views.Options{Anonymous: cp.GetBool(config.IdentityAnonymousKey)}
		}),

		c.Provide(func(cp *config.Provider, network *memory.Network, me states.Party) (*memory.Node, error) {
			return network.Join(cp.ID(), me.Identity)
		}),
		c.Provide(newRegistry),
		c.Provide(func(sp *view2.ServiceProvider, comm *memory.Node, me states.Party, s *sig.Service, r *view2.Registry, tp trace.TracerProvider, mp metrics.Provider) *view2.Manager {
			return view2.NewManager(sp, comm, me.Identity, s, r, tp, mp)
		}),
		c.Provide(newWebServer),
	)
	if err != nil {
		return perrors.Wrap(err, "failed providing node services")
	}
	return nil
}

// register exposes the services of the container to the views
func register(c *dig.Container, isNotary bool) error {
	err := errors.Join(
		digutils.Register[*config.Provider](c),
		digutils.Register[*kvs.KVS](c),
		digutils.Register[*events.Service](c),
		digutils.Register[*sig.Service](c),
		digutils.Register[*identity.Service](c),
		digutils.Register[*vault.Vault](c),
		digutils.Register[*notary.Client](c),
		digutils.Register[*cash.Wallet](c),
		digutils.Register[*tracker.Service](c),
		digutils.Register[*endorser.Config](c),
		digutils.Register[*views.Options](c),
		digutils.Register[*view2.Manager](c),
		digutils.RegisterOptional[*web.Server](c),
	)
	if isNotary {
		err = errors.Join(err, digutils.Register[*notary.Service](c))
	}
	if err != nil {
		return perrors.Wrap(err, "failed registering node services")
	}
	return nil
}

// newMetricsProvider returns a prometheus provider with its own registry when metrics are enabled
func newMetricsProvider(cp *config.Provider) metrics.Provider {
	if !cp.GetBool(config.MetricsEnabledKey) {
		return disabled.New()
	}
	return prometheus.NewProvider(kvsNamespace)
}

func newDriverOpts(cp *config.Provider) (driver.Opts, error) {
	return db.LoadOpts(cp, config.PersistenceOptsKey)
}

func newPersistence(in struct {
	dig.In
	Config  *config.Provider
	Drivers []driver.NamedDriver `group:"db-drivers"`
}) (driver.Persistence, error) {
	persistenceType := driver.PersistenceType(in.Config.GetString(config.PersistenceTypeKey))
	return db.NewDrivers(in.Drivers...).Open(persistenceType, in.Config.ID())
}

func newKVS(cp *config.Provider, persistence driver.Persistence) (*kvs.KVS, error) {
	cacheSize, err := kvs.CacheSizeFromConfig(cp)
	if err != nil {
		return nil, err
	}
	return kvs.New(persistence, kvsNamespace, cacheSize)
}

// newMe loads the key of the node from iou.identity.key.file, or generates a fresh one,
// and registers its signer
func newMe(cp *config.Provider, s *sig.Service) (states.Party, error) {
	id, signer, verifier, err := loadKey(cp)
	if err != nil {
		return states.Party{}, perrors.WithMessagef(err, "failed loading key of [%s]", cp.ID())
	}
	if err := s.RegisterSigner(id, signer, verifier); err != nil {
		return states.Party{}, err
	}
	return states.Party{Name: cp.ID(), Identity: id}, nil
}

func loadKey(cp *config.Provider) (view.Identity, sig.Signer, sig.Verifier, error) {
	keyFile := cp.GetPath(config.IdentityKeyFileKey)
	if len(keyFile) == 0 {
		id, signer, verifier, err := ecdsa.NewSigner()
		if err != nil {
			return nil, nil, nil, err
		}
		return id, signer, verifier, nil
	}
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, nil, nil, perrors.Wrapf(err, "failed reading [%s]", keyFile)
	}
	id, signer, err := ecdsa.NewSignerFromPEM(raw)
	if err != nil {
		return nil, nil, nil, err
	}
	return id, signer, nil, nil
}

// newNotaryService returns nil on nodes that do not run the notary
func newNotaryService(cp *config.Provider, me states.Party, store *kvs.KVS, s *sig.Service, mp metrics.Provider) *notary.Service {
	if !cp.GetBool(config.NotaryKey) {
		return nil
	}
	return notary.NewService(me, store, s, mp)
}

// newRegistry binds the intent views to their factories and responders
func newRegistry(cp *config.Provider, opts []views.ResponderOption) (*view2.Registry, error) {
	r := view2.NewRegistry()
	for id, factory := range views.Factories() {
		if err := r.RegisterFactory(id, factory); err != nil {
			return nil, err
		}
	}
	bindings := views.Responders(opts...)
	if cp.GetBool(config.NotaryKey) {
		bindings = append(bindings, views.NotaryResponders()...)
	}
	if err := r.RegisterResponders(bindings...); err != nil {
		return nil, err
	}
	return r, nil
}

// newWebServer returns nil when iou.web.address is not set
func newWebServer(cp *config.Provider, manager *view2.Manager, mp metrics.Provider) *web.Server {
	if len(cp.GetString(config.WebAddressKey)) == 0 {
		return nil
	}
	server, h := web.New(cp, manager)
	views.InstallHandlers(h, manager)
	if p, ok := mp.(*prometheus.Provider); ok {
		server.RegisterHandler("/metrics", p.Handler())
	}
	return server
}
