// Package server wires config, transport, directory, bus, and modules into
// a single running snekcloud node.
package server

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Trivernis/snekcloud-go/config"
	"github.com/Trivernis/snekcloud-go/internal/bus"
	"github.com/Trivernis/snekcloud-go/internal/directory"
	"github.com/Trivernis/snekcloud-go/internal/heartbeat"
	"github.com/Trivernis/snekcloud-go/internal/keys"
	"github.com/Trivernis/snekcloud-go/internal/log"
	"github.com/Trivernis/snekcloud-go/internal/module"
	"github.com/Trivernis/snekcloud-go/internal/topology"
	"github.com/Trivernis/snekcloud-go/internal/transport"
)

// Server is a fully-initialized snekcloud node: its transport, directory,
// bus, dispatcher, and the set of registered modules.
type Server struct {
	settings   config.Settings
	transport  transport.Transport
	directory  *directory.Directory
	bus        *bus.Bus
	dispatcher *bus.Dispatcher
	host       *module.Host

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Server from settings: it loads the node's private key, opens
// the address cache, constructs the libp2p transport, seeds the directory
// from node_data_dir, registers every loaded peer's addresses with the
// transport, and
// registers HeartbeatModule and TopologyRefreshModule. It does not start
// any goroutines; call Run for that.
func New(settings config.Settings) (*Server, error) {
	if err := config.Validate(&settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := os.MkdirAll(settings.NodeDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create node_data_dir: %w", err)
	}

	privKey, err := loadPrivateKey(settings.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	pubKey, err := privKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	cache, err := transport.OpenBadgerAddressCache(settings.NodeDataDir + "/addresses")
	if err != nil {
		return nil, fmt.Errorf("open address cache: %w", err)
	}

	tr, err := transport.NewLibP2PTransport(settings.NodeID, cache)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	for _, addr := range settings.ListenAddresses {
		if err := tr.Listen(addr); err != nil {
			return nil, fmt.Errorf("listen on %s: %w", addr, err)
		}
	}

	dir := directory.New()
	dir.InsertIfAbsent(directory.PeerRecord{
		ID:        settings.NodeID,
		PublicKey: [32]byte(pubKey),
		Addresses: settings.ListenAddresses,
		Trusted:   true,
		Liveness:  directory.NewLiveness(false),
	})

	seed, err := directory.LoadSeed(settings.NodeDataDir, settings.TrustedNodes, settings.NodeID)
	if err != nil {
		return nil, fmt.Errorf("load directory seed: %w", err)
	}
	for _, rec := range seed {
		dir.InsertIfAbsent(rec)
		if err := tr.Connect(rec.ID, rec.Addresses); err != nil {
			log.Node.Warn().Err(err).Str("peer_id", rec.ID).Msg("failed to register known peer address")
		}
	}

	b := bus.New(bus.DefaultCapacity)
	sendTimeout := time.Duration(settings.SendTimeoutSecs) * time.Second
	dispatcher := bus.NewDispatcher(b, tr, dir, sendTimeout)
	rc := module.NewRunContext(settings.NodeID, b, dir)
	host := module.NewHost(tr, rc)

	hbSettings := heartbeat.Settings{
		Interval:         time.Duration(settings.Modules.Heartbeat.IntervalMS) * time.Millisecond,
		MaxRecordHistory: settings.Modules.Heartbeat.MaxRecordHistory,
		OutputFile:       settings.Modules.Heartbeat.OutputFile,
	}
	if err := host.Register(heartbeat.New(hbSettings)); err != nil {
		return nil, fmt.Errorf("register heartbeat module: %w", err)
	}

	topoSettings := topology.Settings{
		UpdateInterval: time.Duration(settings.Modules.NodesRefresh.UpdateIntervalMS) * time.Millisecond,
	}
	if err := host.Register(topology.New(topoSettings, settings.NodeDataDir)); err != nil {
		return nil, fmt.Errorf("register nodes_refresh module: %w", err)
	}

	return &Server{
		settings:   settings,
		transport:  tr,
		directory:  dir,
		bus:        b,
		dispatcher: dispatcher,
		host:       host,
	}, nil
}

// Run starts the dispatcher and every registered module, blocking until ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatcher.Run(s.ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.host.Run(s.ctx)
	}()

	log.Node.Info().Str("node_id", s.settings.NodeID).Msg("snekcloud node running")
	<-s.ctx.Done()
	s.wg.Wait()
}

// Stop cancels the server's context and waits for its goroutines to exit.
// Safe to call only after Run has been started.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Directory exposes the node's NodeDirectory.
func (s *Server) Directory() *directory.Directory { return s.directory }

// loadPrivateKey reads and unarmors the node's private key file. A missing
// private key is a fatal startup error — use the generate-key CLI
// subcommand to create one first.
func loadPrivateKey(path string) (keys.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return keys.PrivateKey{}, fmt.Errorf("private key %s: %w", path, err)
	}
	return keys.UnarmorPrivateKey(string(data))
}
