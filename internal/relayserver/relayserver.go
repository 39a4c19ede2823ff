// Package relayserver hosts the UDP relay: it validates every inbound frame
// structurally before decoding it, keeps the joined-client table and the
// shared world state, and fans server messages back out. A frame that fails
// validation is a protocol violation and drops its sender; the client is the
// unit of failure isolation, one bad frame never takes the relay down.
package relayserver

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vheck/emberwire/internal/debug"
	"github.com/vheck/emberwire/internal/proto"
	"github.com/vheck/emberwire/internal/ptr"
	"github.com/vheck/emberwire/internal/schema"
	"github.com/vheck/emberwire/internal/wire"
)

const (
	motd = "welcome to emberwire"

	clientTimeout = 10 * time.Second
)

type addrKey uint64

func makeAddrKey(addr *net.UDPAddr) addrKey {
	return addrKey(xxhash.Sum64String(addr.String()))
}

type client struct {
	addr     *net.UDPAddr
	playerID uint64
	lastSeen time.Time
}

type blockKey struct {
	x, y, z int32
}

type blockState struct {
	block uint8
	flags uint32
}

type RelayServer struct {
	conn *net.UDPConn
	buf  []byte

	logger *log.Logger

	registry *schema.Registry

	promReg *prometheus.Registry
	metrics *metrics

	mu      sync.Mutex
	clients map[addrKey]*client
	world   map[blockKey]blockState
	seed    int32
}

func NewRelayServer(network, address string, logger *log.Logger) (*RelayServer, error) {
	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve udp addr: %w", err)
	}

	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen udp: %w", err)
	}

	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	promReg := prometheus.NewRegistry()

	rs := &RelayServer{
		conn: conn,
		buf:  make([]byte, proto.CmdMaxSize),

		logger: logger,

		registry: proto.NewRegistry(),

		promReg: promReg,
		metrics: newMetrics(promReg),

		clients: make(map[addrKey]*client),
		world:   make(map[blockKey]blockState),
	}

	return rs, nil
}

// Addr can be useful to retrieve the server's address when it was constructed
// with ":0".
func (rs *RelayServer) Addr() *net.UDPAddr {
	return rs.conn.LocalAddr().(*net.UDPAddr)
}

// MetricsRegistry exposes the server's prometheus registry for an HTTP
// scrape endpoint.
func (rs *RelayServer) MetricsRegistry() *prometheus.Registry {
	return rs.promReg
}

func (rs *RelayServer) Run(ctx context.Context) error {
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		rs.runRecv(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		rs.runClientEvictor(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return rs.conn.Close()
}

func (rs *RelayServer) runRecv(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := rs.conn.SetReadDeadline(time.Now().Add(time.Second))
			debug.Assert(err == nil)

			n, addr, err := rs.conn.ReadFromUDP(rs.buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}

				rs.logger.Error().
					Msgf("could not read from udp: %v", err)
				continue
			}

			rs.handleFrame(rs.buf[:n], addr)
		}
	}
}

// handleFrame walks the full inbound path: header, structural validation of
// the body against the registry schema, then typed decode and dispatch.
func (rs *RelayServer) handleFrame(frame []byte, addr *net.UDPAddr) {
	if len(frame) < proto.CmdHeaderSize {
		rs.violation(addr, fmt.Errorf("frame is %d bytes, header needs %d", len(frame), proto.CmdHeaderSize))
		return
	}

	header := &proto.CmdHeader{}
	err := header.UnmarshalBinary(frame)
	debug.Assert(err == nil)

	rs.metrics.cmdsReceived.WithLabelValues(proto.CmdName(header.Cmd)).Inc()

	// only client-originated ids are acceptable inbound; anything else,
	// server ids included, is unknown as far as dispatch is concerned
	if header.Cmd == 0 || header.Cmd >= proto.CCmdMax {
		rs.violation(addr, fmt.Errorf("%w: %d", schema.ErrUnknownPacket, header.Cmd))
		return
	}

	payload := frame[proto.CmdHeaderSize:]
	if int(header.Size) > len(payload) {
		rs.violation(addr, fmt.Errorf("header declares %d body bytes, have %d", header.Size, len(payload)))
		return
	}
	payload = payload[:header.Size]

	// bodiless commands have no registry entry; everything else gets the
	// allocation-free structural check before any decoding touches it
	var body proto.Body
	if s, ok := rs.registry.Lookup(header.Cmd); ok {
		if err := wire.Validate(s, payload); err != nil {
			rs.violation(addr, err)
			return
		}
		body = proto.NewBody(header.Cmd)
		if err := body.UnmarshalBinary(payload); err != nil {
			// validation passed, a decode failure here is a bug,
			// not bad input
			debug.Assert(false, err.Error())
		}
	}

	rs.touchClient(addr)

	rs.logger.Debug().
		Str("cmd", proto.CmdName(header.Cmd)).
		Any("addr", addr).
		Msg("recv")

	if err := rs.handleCmd(header.Cmd, body, addr); err != nil {
		rs.logger.Error().
			Msgf("error handling %s from %s: %v", proto.CmdName(header.Cmd), addr.String(), err)
	}
}

func (rs *RelayServer) touchClient(addr *net.UDPAddr) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	// the client entry itself is created on join
	if c, ok := rs.clients[makeAddrKey(addr)]; ok {
		c.lastSeen = time.Now()
	}
}

// violation drops the offending frame and the peer that sent it.
func (rs *RelayServer) violation(addr *net.UDPAddr, err error) {
	rs.metrics.violations.Inc()
	rs.logger.Error().
		Str("addr", addr.String()).
		Msgf("protocol violation, dropping client: %v", err)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.clients[makeAddrKey(addr)]; ok {
		delete(rs.clients, makeAddrKey(addr))
		rs.metrics.clients.Set(float64(len(rs.clients)))
	}
}

func (rs *RelayServer) runClientEvictor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
			now := time.Now()
			rs.mu.Lock()
			for key, c := range rs.clients {
				if now.Sub(c.lastSeen) > clientTimeout {
					delete(rs.clients, key)
					rs.logger.Debug().
						Str("addr", c.addr.String()).
						Uint64("player_id", c.playerID).
						Msg("evicted client")
				}
			}
			rs.metrics.clients.Set(float64(len(rs.clients)))
			rs.mu.Unlock()
		}
	}
}

func (rs *RelayServer) handleCmd(cmd uint16, body proto.Body, addr *net.UDPAddr) error {
	switch cmd {
	case proto.CCmdPing:
		return rs.sendCmd(proto.Cmd{Header: &proto.CmdHeader{Cmd: proto.SCmdPong}}, addr)
	case proto.CCmdJoin:
		return rs.handleJoin(body.(*proto.Join), addr)
	case proto.CCmdMove:
		return rs.handleMove(body.(*proto.Move), addr)
	case proto.CCmdChat:
		return rs.handleChat(body.(*proto.Chat), addr)
	case proto.CCmdSetBlock:
		return rs.handleSetBlock(body.(*proto.BlockChange), addr)
	case proto.CCmdKeepAlive:
		// lastSeen is already maintained on every frame
		return nil
	}
	debug.Assert(false, fmt.Sprintf("unhandled cmd: %d", cmd))
	return nil
}

func (rs *RelayServer) handleJoin(join *proto.Join, addr *net.UDPAddr) error {
	rs.mu.Lock()
	// the seed lives as long as anyone is on it; with the world empty a
	// fresh one is rolled for the next arrival
	if len(rs.clients) == 0 {
		rs.seed = rand.Int31()
	}
	rs.clients[makeAddrKey(addr)] = &client{
		addr:     addr,
		playerID: join.PlayerID,
		lastSeen: time.Now(),
	}
	rs.metrics.clients.Set(float64(len(rs.clients)))
	seed := rs.seed
	world := make(map[blockKey]blockState, len(rs.world))
	for k, v := range rs.world {
		world[k] = v
	}
	rs.mu.Unlock()

	err := rs.sendCmd(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.SCmdWelcome},
		Body: &proto.Welcome{
			Seed:     seed,
			PlayerID: join.PlayerID,
			MOTD:     ptr.To(motd),
		},
	}, addr)
	if err != nil {
		return err
	}

	// fresh joiners spawn protected for a few seconds
	err = rs.sendCmd(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.SCmdEntityStats},
		Body: &proto.EntityStats{
			EntityID: join.PlayerID,
			Health:   100,
			Mana:     100,
			Modifiers: []proto.StaticModifier{
				{Kind: proto.StatHealth, Amount: 50, Duration: 5},
			},
		},
	}, addr)
	if err != nil {
		return err
	}

	// replay the current world so the joiner catches up
	var errs error
	for k, v := range world {
		err := rs.sendCmd(proto.Cmd{
			Header: &proto.CmdHeader{Cmd: proto.SCmdBlockChanged},
			Body:   &proto.BlockChange{X: k.x, Y: k.y, Z: k.z, Block: v.block, Flags: v.flags},
		}, addr)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (rs *RelayServer) handleMove(move *proto.Move, addr *net.UDPAddr) error {
	return rs.broadcast(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.SCmdPlayerMoved},
		Body:   move,
	}, ptr.To(makeAddrKey(addr)))
}

func (rs *RelayServer) handleChat(chat *proto.Chat, addr *net.UDPAddr) error {
	return rs.broadcast(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.SCmdChat},
		Body:   chat,
	}, ptr.To(makeAddrKey(addr)))
}

func (rs *RelayServer) handleSetBlock(change *proto.BlockChange, addr *net.UDPAddr) error {
	rs.mu.Lock()
	rs.world[blockKey{change.X, change.Y, change.Z}] = blockState{change.Block, change.Flags}
	rs.mu.Unlock()

	// everyone sees the change, the sender's copy doubles as the ack
	return rs.broadcast(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.SCmdBlockChanged},
		Body:   change,
	}, nil)
}

// broadcast sends cmd to every joined client, except the one keyed by skip
// when it is non-nil.
func (rs *RelayServer) broadcast(cmd proto.Cmd, skip *addrKey) error {
	bytes, err := cmd.MarshalBinary()
	debug.Assert(err == nil)

	rs.mu.Lock()
	addrs := make([]*net.UDPAddr, 0, len(rs.clients))
	for key, c := range rs.clients {
		if skip != nil && key == *skip {
			continue
		}
		addrs = append(addrs, c.addr)
	}
	rs.mu.Unlock()

	var errs error
	for _, addr := range addrs {
		if err := rs.sendBytes(bytes, addr); err != nil {
			rs.logger.Error().
				Msgf("could not send %s to %s: %v", proto.CmdName(cmd.Header.Cmd), addr.String(), err)

			errs = multierror.Append(errs, err)
			continue
		}
		rs.metrics.cmdsSent.WithLabelValues(proto.CmdName(cmd.Header.Cmd)).Inc()
	}
	return errs
}

func (rs *RelayServer) sendCmd(cmd proto.Cmd, addr *net.UDPAddr) error {
	rs.logger.Debug().
		Str("cmd", proto.CmdName(cmd.Header.Cmd)).
		Any("addr", addr).
		Msg("sendCmd")

	bytes, err := cmd.MarshalBinary()
	debug.Assert(err == nil)

	if err := rs.sendBytes(bytes, addr); err != nil {
		return err
	}
	rs.metrics.cmdsSent.WithLabelValues(proto.CmdName(cmd.Header.Cmd)).Inc()
	return nil
}

func (rs *RelayServer) sendBytes(bytes []byte, addr *net.UDPAddr) error {
	_, err := rs.conn.WriteToUDP(bytes, addr)
	return err
}
