package webrtc

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/loopcast/loopcast/pkg/logger"
)

// signalServer exchanges base64-encoded SDP with a single viewer over
// a websocket. The publisher sends the offer, the viewer answers.
type signalServer struct {
	server   *http.Server
	pc       *webrtc.PeerConnection
	log      *logger.Logger
	upgrader websocket.Upgrader
	busy     atomic.Bool
}

func newSignalServer(addr string, pc *webrtc.PeerConnection, log *logger.Logger) *signalServer {
	s := &signalServer{
		pc:  pc,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	h := http.NewServeMux()
	h.HandleFunc("/signal", s.handleSignal)
	s.server = &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *signalServer) run() {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error().Err(err).Msg("signal server failed")
	}
}

func (s *signalServer) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *signalServer) handleSignal(w http.ResponseWriter, r *http.Request) {
	if !s.busy.CompareAndSwap(false, true) {
		http.Error(w, "another viewer is connected", http.StatusConflict)
		return
	}
	defer s.busy.Store(false)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	if err := s.negotiate(conn); err != nil {
		s.log.Error().Err(err).Msg("signaling failed")
		return
	}
	// keep the socket up so the viewer notices publisher shutdown
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *signalServer) negotiate(conn *websocket.Conn) error {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	gathered := webrtc.GatheringCompletePromise(s.pc)
	if err = s.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	// no trickle, the offer ships with all candidates
	<-gathered

	sdp, err := Encode(s.pc.LocalDescription())
	if err != nil {
		return err
	}
	if err = conn.WriteMessage(websocket.TextMessage, []byte(sdp)); err != nil {
		return err
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	var answer webrtc.SessionDescription
	if err = Decode(string(msg), &answer); err != nil {
		return err
	}
	if err = s.pc.SetRemoteDescription(answer); err != nil {
		return err
	}
	s.log.Info().Msg("viewer connected")
	return nil
}
