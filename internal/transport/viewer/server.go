package viewer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelreplay.ai/internal/sim/encoding"
	"voxelreplay.ai/internal/sim/layer"
	"voxelreplay.ai/internal/sim/palette"
	"voxelreplay.ai/internal/sim/playback"
	"voxelreplay.ai/internal/sim/timeline"
	"voxelreplay.ai/internal/sim/tuning"
	"voxelreplay.ai/internal/sim/voxel"
	"voxelreplay.ai/internal/viewerproto"
)

// Metrics receives session and delivery counts. *metrics.Metrics
// satisfies it.
type Metrics interface {
	SessionOpened()
	SessionClosed()
	FrameDropped()
}

type Options struct {
	Title  string
	Tuning tuning.Tuning
	// Clock handles PLAY and PAUSE and queues SEEK requests. Without one,
	// SEEK runs synchronously and PLAY/PAUSE are rejected.
	Clock   *playback.Clock
	Metrics Metrics
	Logger  *log.Logger
}

// Server streams a Simulation to renderer clients.
type Server struct {
	sim   *playback.Simulation
	clock *playback.Clock
	opts  Options
	log   *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	seq      atomic.Uint64
}

type session struct {
	id  string
	out chan []byte
}

func NewServer(sim *playback.Simulation, opts Options) *Server {
	if opts.Tuning.Viewer.MaxQueue <= 0 {
		opts.Tuning.Viewer.MaxQueue = 64
	}
	s := &Server{
		sim:      sim,
		clock:    opts.Clock,
		opts:     opts,
		log:      opts.Logger,
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	sim.OnSeek(s.broadcast)
	return s
}

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) allowed(r *http.Request) bool {
	return !s.opts.Tuning.Viewer.LoopbackOnly || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.bootstrap())
	}
}

func (s *Server) bootstrap() viewerproto.BootstrapResponse {
	span := s.sim.Span()
	resp := viewerproto.BootstrapResponse{
		ProtocolVersion: viewerproto.Version,
		Title:           s.opts.Title,
		Timespan:        [2]string{span.Start.String(), span.End.String()},
		Cursor:          s.sim.Cursor().String(),
		Appearances:     map[string]viewerproto.Appearance{},
	}
	for _, name := range s.sim.LayerNames() {
		l, _ := s.sim.Layer(name)
		resp.Layers = append(resp.Layers, viewerproto.LayerInfo{Name: name, Type: l.Type()})
	}
	for name, a := range s.opts.Tuning.Appearance {
		resp.Appearances[name] = viewerproto.Appearance{Color: a.Color, Transparent: a.Transparent, Opacity: a.Opacity}
	}
	if t, ok := s.sim.Terrain(); ok {
		w := t.World()
		pal := w.Palette()
		resp.Palette = pal.Materials()
		resp.Classes = make([]string, pal.Len())
		for i := range resp.Classes {
			resp.Classes[i] = pal.Class(palette.ID(i)).String()
		}
		bb, cs := w.BBox(), w.ChunkSize()
		resp.BoundingBox = [3][2]int{{bb.Min.X, bb.Max.X}, {bb.Min.Y, bb.Max.Y}, {bb.Min.Z, bb.Max.Z}}
		resp.Center = [3]float64{
			float64(bb.Min.X+bb.Max.X) / 2,
			float64(bb.Min.Y+bb.Max.Y) / 2,
			float64(bb.Min.Z+bb.Max.Z) / 2,
		}
		resp.ChunkSize = [3]int{cs.X, cs.Y, cs.Z}
	}
	return resp
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		first, err := viewerproto.DecodeClient(msg)
		if _, ok := first.(*viewerproto.SubscribeMsg); err != nil || !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sess := &session{id: uuid.NewString(), out: make(chan []byte, s.opts.Tuning.Viewer.MaxQueue)}
		s.join(sess)
		defer s.leave(sess)

		done := make(chan struct{})
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-done:
					writeErr <- nil
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handle(sess, msg)
		}

		close(done)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// join registers sess and queues its SCENE in one step under the
// simulation lock, so no frame can fall between the two.
func (s *Server) join(sess *session) {
	s.sim.View(func(cursor timeline.Stamp, rs []layer.Renderable) {
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		s.sendScene(sess, cursor, rs)
	})
	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionOpened()
	}
	if s.log != nil {
		s.log.Printf("viewer %s joined", sess.id)
	}
}

func (s *Server) leave(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionClosed()
	}
	if s.log != nil {
		s.log.Printf("viewer %s left", sess.id)
	}
}

func (s *Server) sendScene(sess *session, cursor timeline.Stamp, rs []layer.Renderable) {
	playing := false
	if s.clock != nil {
		playing, _ = s.clock.State()
	}
	s.send(sess, viewerproto.SceneMsg{
		Type:            viewerproto.TypeScene,
		ProtocolVersion: viewerproto.Version,
		Seq:             s.seq.Load(),
		Cursor:          cursor.String(),
		Playing:         playing,
		Objects:         objectsFor(rs),
	})
}

func (s *Server) handle(sess *session, b []byte) {
	msg, err := viewerproto.DecodeClient(b)
	if err != nil {
		s.sendError(sess, "bad_request", err.Error())
		return
	}
	switch m := msg.(type) {
	case *viewerproto.SubscribeMsg:
		s.sim.View(func(cursor timeline.Stamp, rs []layer.Renderable) { s.sendScene(sess, cursor, rs) })
	case *viewerproto.SeekMsg:
		ts, err := timeline.ParseStamp(m.TS)
		if err != nil {
			s.sendError(sess, "bad_request", err.Error())
			return
		}
		if s.clock != nil {
			s.clock.Request(ts)
		} else {
			s.sim.Seek(ts)
		}
	case *viewerproto.PlayMsg:
		if s.clock == nil {
			s.sendError(sess, "unsupported", "playback clock disabled")
			return
		}
		s.clock.Play(m.Speed)
	case *viewerproto.PauseMsg:
		if s.clock == nil {
			s.sendError(sess, "unsupported", "playback clock disabled")
			return
		}
		s.clock.Pause()
	case *viewerproto.VoxelsReq:
		s.sendVoxels(sess, voxel.ChunkKey{CX: m.Chunk[0], CY: m.Chunk[1], CZ: m.Chunk[2]})
	}
}

func (s *Server) sendVoxels(sess *session, k voxel.ChunkKey) {
	t, ok := s.sim.Terrain()
	if !ok {
		s.sendError(sess, "not_found", "no terrain layer")
		return
	}
	ids, ok := s.sim.ChunkVoxels(k)
	if !ok {
		s.sendError(sess, "not_found", "chunk "+k.String()+" not loaded")
		return
	}
	cs := t.World().ChunkSize()
	o := cs.Origin(k)
	data, err := encoding.EncodeChunk(encoding.Dims{cs.X, cs.Y, cs.Z}, ids)
	if err != nil {
		s.sendError(sess, "internal", err.Error())
		return
	}
	s.send(sess, viewerproto.VoxelsMsg{
		Type:            viewerproto.TypeVoxels,
		ProtocolVersion: viewerproto.Version,
		Chunk:           [3]int{k.CX, k.CY, k.CZ},
		Origin:          [3]int{o.X, o.Y, o.Z},
		Size:            [3]int{cs.X, cs.Y, cs.Z},
		Encoding:        encoding.RLE,
		Data:            data,
	})
}

func (s *Server) sendError(sess *session, code, message string) {
	s.send(sess, viewerproto.ErrorMsg{
		Type:            viewerproto.TypeError,
		ProtocolVersion: viewerproto.Version,
		Code:            code,
		Message:         message,
	})
}

func (s *Server) send(sess *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.deliver(sess, b)
}

// deliver never blocks: a viewer that falls behind loses frames.
func (s *Server) deliver(sess *session, b []byte) {
	select {
	case sess.out <- b:
	default:
		if s.opts.Metrics != nil {
			s.opts.Metrics.FrameDropped()
		}
	}
}

// broadcast runs inside Simulation.Seek, so layer renderables are stable.
func (s *Server) broadcast(f playback.Frame) {
	s.seq.Store(f.Seq)

	s.mu.Lock()
	if len(s.sessions) == 0 {
		s.mu.Unlock()
		return
	}
	targets := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	changed := make(map[string]struct{}, len(f.Changed))
	for _, id := range f.Changed {
		changed[id] = struct{}{}
	}
	msg := viewerproto.FrameMsg{
		Type:            viewerproto.TypeFrame,
		ProtocolVersion: viewerproto.Version,
		Seq:             f.Seq,
		From:            f.From.String(),
		To:              f.To.String(),
		Ops:             f.Ops,
		Chunks:          f.Chunks,
		Objects:         []viewerproto.Object{},
	}
	for _, name := range s.sim.LayerNames() {
		l, _ := s.sim.Layer(name)
		for _, r := range l.Renderables() {
			if _, ok := changed[r.ID]; ok {
				msg.Objects = append(msg.Objects, objectFor(r))
			}
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, sess := range targets {
		s.deliver(sess, b)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
