/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// cityd is the node process: it loads the map data and node config,
// binds the shard router, event journal, snapshot store, time
// broadcaster, metrics and visualization endpoints, and hosts every
// entity instance assigned to this node.
package main

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/cityflow/actorcity/entity"
	"github.com/cityflow/actorcity/internal/config"
	"github.com/cityflow/actorcity/internal/delivery"
	"github.com/cityflow/actorcity/internal/immovable"
	"github.com/cityflow/actorcity/internal/journal"
	"github.com/cityflow/actorcity/internal/mapdata"
	"github.com/cityflow/actorcity/internal/metrics"
	"github.com/cityflow/actorcity/internal/mobile"
	"github.com/cityflow/actorcity/internal/shard"
	"github.com/cityflow/actorcity/internal/snapshot"
	"github.com/cityflow/actorcity/internal/timebus"
	"github.com/cityflow/actorcity/internal/visws"
)

// node bundles every process-wide collaborator and the live runtime
// registry, hosting many entity runtimes per process.
type node struct {
	cfg    config.Config
	logger *zap.SugaredLogger

	mapData  *mapdata.Map
	journal  journal.Journal
	snapshot snapshot.Store
	promReg  *prometheus.Registry
	metrics  *metrics.Registry
	vis      *visws.Hub

	router   *shard.Router
	registry *shard.Registry

	// runtimesMu guards runtimes: spawn (triggered by inbound routing),
	// the snapshot ticker and the time tick subscription each run on
	// their own goroutine and all walk or mutate this map.
	runtimesMu sync.Mutex
	runtimes   map[string]*entity.Runtime
}

func newNode(cfg config.Config, logger *zap.SugaredLogger) (*node, error) {
	m, err := mapdata.Load(cfg.MapDataPath)
	if err != nil {
		return nil, errors.WithMessage(err, "could not load map data")
	}

	j, err := journal.NewFile(fmt.Sprintf("%s-journal", cfg.NodeID))
	if err != nil {
		return nil, errors.WithMessage(err, "could not open journal")
	}

	promReg := prometheus.NewRegistry()
	n := &node{
		cfg:      cfg,
		logger:   logger,
		mapData:  m,
		journal:  j,
		snapshot: snapshot.NewMemory(),
		promReg:  promReg,
		metrics:  metrics.New(promReg),
		vis:      visws.NewHub(logger),
		runtimes: map[string]*entity.Runtime{},
	}

	assignment := shard.NewStatic(cfg.ShardCount, cfg.NodeID)
	n.registry = shard.NewRegistry(n.spawn)
	n.router = shard.New(cfg.ShardCount, cfg.NodeID, assignment, n.forward, n.registry.Resolve)

	return n, nil
}

// forward is the cross-node transport for envelopes whose shard is owned
// by a different node. A single-node deployment never shards across
// processes, so this simply reports the condition; a clustered
// deployment replaces it with a NATS request to the owning node's
// subject (grounded the same way timebus publishes ticks).
func (n *node) forward(remoteNode, entityID string, payload interface{}) error {
	return errors.Errorf("entity %q belongs to node %q, cross-node forwarding not configured", entityID, remoteNode)
}

// send implements delivery.Sender: route an outbound envelope through
// the shard router, whether its destination resolves locally or remotely.
func (n *node) send(destAddr string, payload interface{}) error {
	return n.router.Route(destAddr, payload)
}

// ack implements entity.Acker the same way.
func (n *node) ack(destAddr string, a entity.Ack) error {
	return n.router.Route(destAddr, a)
}

// spawn implements shard.Spawner: build a fresh Runtime for entityID,
// recover its persisted state, and return its dispatch function.
func (n *node) spawn(entityID string) (func(payload interface{}) error, error) {
	kind, ok := entity.KindOf(entityID)
	if !ok {
		return nil, errors.Errorf("entity id %q has no recognized kind tag", entityID)
	}

	outbox := immovable.NewOutbox(n.send)

	var handler entity.Handler
	switch kind {
	case entity.KindLane:
		handler = immovable.NewLane(immovable.NewBase(entityID, kind, n.mapData, outbox, n.spawnChild, n.resumeChild), outbox)
	case entity.KindCrossroad:
		handler = immovable.NewCrossroad(immovable.NewBase(entityID, kind, n.mapData, outbox, n.spawnChild, n.resumeChild), outbox)
	case entity.KindPedestrianCrossing:
		handler = immovable.NewPedestrianCrossroad(immovable.NewBase(entityID, kind, n.mapData, outbox, n.spawnChild, n.resumeChild), outbox)
	case entity.KindBusStop:
		handler = immovable.NewBusStop(immovable.NewBase(entityID, kind, n.mapData, outbox, n.spawnChild, n.resumeChild), outbox)
	case entity.KindTramStop:
		handler = immovable.NewTramStop(immovable.NewBase(entityID, kind, n.mapData, outbox, n.spawnChild, n.resumeChild), outbox)
	case entity.KindRoad, entity.KindZone:
		handler = immovable.NewRoadZone(immovable.NewBase(entityID, kind, n.mapData, outbox, n.spawnChild, n.resumeChild))
	case entity.KindMobile:
		handler = mobile.NewMobile(entityID, outbox)
	default:
		return nil, errors.Errorf("entity kind %v has no handler", kind)
	}

	rt := entity.New(entityID, kind, n.journal, n.snapshot, handler, n.ack, n.logger)
	outbox.Bind(rt.DeliveryTracker())

	if base, ok := handler.(interface{ ReCreateChildren() }); ok {
		rt.OnRecoveryCompleted(base.ReCreateChildren)
	}

	if err := rt.Recover(); err != nil {
		return nil, errors.WithMessagef(err, "could not recover entity %q", entityID)
	}

	n.runtimesMu.Lock()
	n.runtimes[entityID] = rt
	n.runtimesMu.Unlock()

	dispatch := func(payload interface{}) error {
		switch v := payload.(type) {
		case entity.Request:
			return rt.HandleEnvelope(v.SenderID, v)
		case entity.Ack:
			return rt.HandleEnvelope("", v)
		default:
			return errors.Errorf("unsupported envelope %T for entity %q", payload, entityID)
		}
	}
	return dispatch, nil
}

// spawnChild/resumeChild are the callbacks handed to immovable.Base for
// its mobile children: both simply resolve (find-or-spawn) through the
// same node-local registry, since a freshly created mobile is always
// hosted on the same node as its parent immovable in this deployment.
func (n *node) spawnChild(id string) error {
	_, err := n.registry.Resolve(id)
	return err
}

func (n *node) resumeChild(id string) error {
	outbox := immovable.NewOutbox(n.send)
	outbox.Request(id, n.cfg.NodeID, immovable.ResumeExecution{})
	return nil
}

// snapshotSweep triggers TakeSnapshot on every resident entity; called
// from the periodic snapshot timer, every ~10s.
func (n *node) snapshotSweep() {
	n.runtimesMu.Lock()
	runtimes := make([]*entity.Runtime, 0, len(n.runtimes))
	for _, rt := range n.runtimes {
		runtimes = append(runtimes, rt)
	}
	n.runtimesMu.Unlock()

	for _, rt := range runtimes {
		rt.TakeSnapshot()
	}
}

// sleeperWaker is implemented by every immovable.Base-embedding handler.
type sleeperWaker interface {
	ActorsToWakeUp(t uint64) []string
	SpawnAndResume(mobileID string) error
}

// onTick drives the time broadcast's receiving side for every resident
// immovable: compute which of its sleeping mobiles are due, journal
// MobileEntityWakingUp for each, and respawn/resume. Ticks are idempotent: a
// sleeper already woken by an earlier delivery of the same tick is no
// longer in the sleepers map, so a repeat delivery wakes nobody new.
func (n *node) onTick(t timebus.TimeValue) {
	n.runtimesMu.Lock()
	runtimes := make(map[string]*entity.Runtime, len(n.runtimes))
	for id, rt := range n.runtimes {
		runtimes[id] = rt
	}
	n.runtimesMu.Unlock()

	for id, rt := range runtimes {
		kind, ok := entity.KindOf(id)
		if !ok || kind == entity.KindMobile {
			continue
		}
		waker, ok := rt.Handler().(sleeperWaker)
		if !ok {
			continue
		}
		for _, mobileID := range waker.ActorsToWakeUp(t.Value) {
			if err := rt.InjectEvent(entity.MobileEntityWakingUp{ID: mobileID}); err != nil {
				n.logger.Errorw("could not journal mobile wakeup", "entity", id, "mobile", mobileID, "err", err)
				continue
			}
			if err := waker.SpawnAndResume(mobileID); err != nil {
				n.logger.Warnw("could not respawn woken mobile", "mobile", mobileID, "err", err)
			}
			n.metrics.MobileWakeupsTotal.Inc()
		}
	}
}

func run() error {
	app := kingpin.New("cityd", "City traffic simulation node.")
	configPath := app.Flag("config", "Path to the node's YAML configuration file.").Default("cityd.yaml").String()
	if _, err := app.Parse(os.Args[1:]); err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return errors.WithMessage(err, "could not construct logger")
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		sugar.Warnw("could not load config file, using defaults", "path", *configPath, "err", err)
		cfg = config.Default()
	}

	n, err := newNode(cfg, sugar)
	if err != nil {
		return errors.WithMessage(err, "could not initialize node")
	}

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		sugar.Warnw("could not connect to nats, time ticks disabled", "url", cfg.NatsURL, "err", err)
	} else {
		defer nc.Close()
		bus := timebus.New(nc)
		if _, err := bus.Subscribe(n.onTick); err != nil {
			sugar.Warnw("could not subscribe to time ticks", "err", err)
		}
	}

	snapTicker := time.NewTicker(cfg.SnapshotEvery)
	defer snapTicker.Stop()
	go func() {
		for range snapTicker.C {
			n.snapshotSweep()
		}
	}()

	// Re-send every unacknowledged outbound Request whose backoff has elapsed.
	retryTicker := time.NewTicker(delivery.DefaultConfig().BaseBackoff)
	defer retryTicker.Stop()
	go func() {
		for now := range retryTicker.C {
			n.runtimesMu.Lock()
			trackers := make([]*delivery.Tracker, 0, len(n.runtimes))
			for _, rt := range n.runtimes {
				trackers = append(trackers, rt.DeliveryTracker())
			}
			n.runtimesMu.Unlock()
			for _, tr := range trackers {
				tr.RetryDue(now, n.send)
			}
		}
	}()

	visMux := http.NewServeMux()
	visMux.HandleFunc(cfg.Visualization.Path, n.vis.ServeHTTP)
	go func() {
		if err := http.ListenAndServe(cfg.Visualization.Addr, visMux); err != nil {
			sugar.Errorw("visualization server stopped", "addr", cfg.Visualization.Addr, "err", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(n.promReg))

	sugar.Infow("cityd started", "node", cfg.NodeID, "shards", cfg.ShardCount, "mapEntities", n.mapData.Len())
	return http.ListenAndServe(cfg.Metrics.Addr, mux)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
