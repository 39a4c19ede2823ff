// Package relayclient is the game-side peer of the relay. Broadcast traffic
// (peer movement, entity stats, block changes, chat) is intercepted into
// local caches on the recv goroutine; request/response exchanges go through
// recvCh and block their caller.
package relayclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/vheck/emberwire/internal/debug"
	"github.com/vheck/emberwire/internal/proto"
	"github.com/vheck/emberwire/internal/ptr"
)

type sendChPayload struct {
	cmd   proto.Cmd
	errCh chan error
}

type RelayClient struct {
	conn    *net.UDPConn
	readBuf []byte

	logger *log.Logger

	sendCh chan sendChPayload
	recvCh chan proto.Cmd

	sendTimeout time.Duration
	recvTimeout time.Duration

	mu sync.Mutex
	// key is player's id
	peers  map[uint64]*proto.Move
	stats  map[uint64]*proto.EntityStats
	blocks map[[3]int32]*proto.BlockChange
	chat   []*proto.Chat
}

func NewRelayClient(network, address string, logger *log.Logger) (*RelayClient, error) {
	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve udp addr: %w", err)
	}

	conn, err := net.DialUDP(network, nil, addr)
	if err != nil {
		return nil, fmt.Errorf("could not dial udp: %w", err)
	}

	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	rc := &RelayClient{
		conn:    conn,
		readBuf: make([]byte, proto.CmdMaxSize),

		logger: logger,

		sendCh: make(chan sendChPayload),
		recvCh: make(chan proto.Cmd),

		sendTimeout: time.Second,
		recvTimeout: time.Second,

		peers:  make(map[uint64]*proto.Move),
		stats:  make(map[uint64]*proto.EntityStats),
		blocks: make(map[[3]int32]*proto.BlockChange),
	}

	return rc, nil
}

func (rc *RelayClient) runSendCh(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-rc.sendCh:
			rc.logger.Debug().
				Str("cmd", proto.CmdName(payload.cmd.Header.Cmd)).
				Msg("sendCmd")

			cmdBytes, err := payload.cmd.MarshalBinary()
			debug.Assert(err == nil)

			err = rc.conn.SetWriteDeadline(time.Now().Add(rc.sendTimeout))
			debug.Assert(err == nil)

			_, err = rc.conn.Write(cmdBytes)
			if err != nil {
				rc.logger.Error().
					Msgf("could not write: %v", err)

				payload.errCh <- err
				continue
			}

			payload.errCh <- nil
			close(payload.errCh)
		}
	}
}

func (rc *RelayClient) runRecvCh(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := rc.conn.SetReadDeadline(time.Now().Add(rc.recvTimeout))
			debug.Assert(err == nil)

			n, _, err := rc.conn.ReadFromUDP(rc.readBuf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}

				rc.logger.Error().
					Msgf("could not read: %v", err)
				continue
			}
			if n < proto.CmdHeaderSize {
				rc.logger.Error().
					Msgf("invalid msg size (got %d; want >= %d)", n, proto.CmdHeaderSize)
				continue
			}

			cmd := proto.Cmd{}
			if err := cmd.UnmarshalBinary(rc.readBuf[0:n]); err != nil {
				rc.logger.Error().
					Str("bytes", fmt.Sprintf("%v", rc.readBuf[0:n])).
					Msgf("could not unmarshal cmd: %v", err)
				continue
			}

			rc.logger.Debug().
				Str("cmd", proto.CmdName(cmd.Header.Cmd)).
				Msg("recv")

			if !rc.intercept(&cmd) {
				rc.recvCh <- cmd
			}
		}
	}
}

// intercept files broadcast traffic into the local caches; commands someone
// is waiting on return false and flow to recvCh instead.
func (rc *RelayClient) intercept(cmd *proto.Cmd) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	switch cmd.Header.Cmd {
	case proto.SCmdPlayerMoved:
		move, ok := cmd.Body.(*proto.Move)
		debug.Assert(ok)
		rc.peers[move.PlayerID] = move
	case proto.SCmdEntityStats:
		stats, ok := cmd.Body.(*proto.EntityStats)
		debug.Assert(ok)
		rc.stats[stats.EntityID] = stats
	case proto.SCmdBlockChanged:
		change, ok := cmd.Body.(*proto.BlockChange)
		debug.Assert(ok)
		rc.blocks[[3]int32{change.X, change.Y, change.Z}] = change
	case proto.SCmdChat:
		chat, ok := cmd.Body.(*proto.Chat)
		debug.Assert(ok)
		rc.chat = append(rc.chat, chat)
	default:
		return false
	}
	return true
}

func (rc *RelayClient) runKeepAlive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		// send keep alive messages periodically if no other messages
		// are being sent
		case <-time.After(time.Second * 5):
			rc.sendCmd(proto.Cmd{
				Header: &proto.CmdHeader{Cmd: proto.CCmdKeepAlive},
			})
		}
	}
}

func (rc *RelayClient) Run(ctx context.Context) error {
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		rc.runSendCh(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		rc.runRecvCh(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		rc.runKeepAlive(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return rc.conn.Close()
}

func (rc *RelayClient) sendCmd(cmd proto.Cmd) <-chan error {
	errChan := make(chan error, 1)
	rc.sendCh <- sendChPayload{
		cmd:   cmd,
		errCh: errChan,
	}
	return errChan
}

func (rc *RelayClient) recvCmd() (*proto.Cmd, error) {
	select {
	case <-time.After(rc.recvTimeout):
		return nil, fmt.Errorf("timeout reached")
	case cmd := <-rc.recvCh:
		return &cmd, nil
	}
}

// SendPing is blocking.
func (rc *RelayClient) SendPing() error {
	err := <-rc.sendCmd(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.CCmdPing},
	})
	if err != nil {
		return fmt.Errorf("could not send: %w", err)
	}

	pong, err := rc.recvCmd()
	if err != nil {
		return fmt.Errorf("could not recv: %w", err)
	}
	if pong.Header.Cmd != proto.SCmdPong {
		return fmt.Errorf(
			"received unexpected cmd back (got %d; want %d)",
			pong.Header.Cmd,
			proto.SCmdPong,
		)
	}

	return nil
}

// Join is blocking; it returns the server's welcome. Entity stats and the
// world replay that follow arrive on the recv goroutine and land in the
// caches.
func (rc *RelayClient) Join(id uint64, name string) (*proto.Welcome, error) {
	join := &proto.Join{PlayerID: id}
	if name != "" {
		join.Name = ptr.To(name)
	}

	err := <-rc.sendCmd(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.CCmdJoin},
		Body:   join,
	})
	if err != nil {
		return nil, fmt.Errorf("could not send: %w", err)
	}

	recvCmd, err := rc.recvCmd()
	if err != nil {
		return nil, fmt.Errorf("could not recv: %w", err)
	}
	if recvCmd.Header.Cmd != proto.SCmdWelcome {
		return nil, fmt.Errorf(
			"received unexpected cmd back (got %d; want %d)",
			recvCmd.Header.Cmd,
			proto.SCmdWelcome,
		)
	}

	welcome, ok := recvCmd.Body.(*proto.Welcome)
	debug.Assert(ok)

	return welcome, nil
}

// SendMove is non-blocking, potential err is ignored.
func (rc *RelayClient) SendMove(id uint64, x int32, y int32) {
	rc.sendCmd(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.CCmdMove},
		Body:   &proto.Move{PlayerID: id, X: x, Y: y},
	})
}

// SendChat is non-blocking, potential err is ignored.
func (rc *RelayClient) SendChat(id uint64, text string, channel *string) {
	rc.sendCmd(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.CCmdChat},
		Body:   &proto.Chat{PlayerID: id, Text: text, Channel: channel},
	})
}

// SendSetBlock is non-blocking, potential err is ignored.
func (rc *RelayClient) SendSetBlock(x, y, z int32, block uint8, flags uint32) {
	rc.sendCmd(proto.Cmd{
		Header: &proto.CmdHeader{Cmd: proto.CCmdSetBlock},
		Body:   &proto.BlockChange{X: x, Y: y, Z: z, Block: block, Flags: flags},
	})
}

func (rc *RelayClient) GetPeers() []*proto.Move {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	peers := make([]*proto.Move, 0, len(rc.peers))
	for _, peer := range rc.peers {
		peers = append(peers, peer)
	}
	return peers
}

func (rc *RelayClient) GetStats(id uint64) *proto.EntityStats {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return rc.stats[id]
}

func (rc *RelayClient) GetBlock(x, y, z int32) *proto.BlockChange {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return rc.blocks[[3]int32{x, y, z}]
}

func (rc *RelayClient) GetChat() []*proto.Chat {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	chat := make([]*proto.Chat, len(rc.chat))
	copy(chat, rc.chat)
	return chat
}
