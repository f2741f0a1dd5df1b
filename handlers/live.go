// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/clubvote/election"
	"github.com/danielhkuo/clubvote/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// liveStream pushes tally snapshots to one websocket client. Clients only
// listen; anything they send is discarded.
type liveStream struct {
	conn       *websocket.Conn
	updates    <-chan *models.Tally
	closing    <-chan struct{}
	controller *election.Controller
	electionID string
	admin      bool
	// owned by writePump
	election *models.Election
}

// readPump drains the connection so pongs and close frames are processed,
// and cancels the stream when the client goes away
func (s *liveStream) readPump(cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("live results read error", "election_id", s.electionID, "error", err)
			}
			return
		}
	}
}

func (s *liveStream) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			s.close(websocket.CloseNormalClosure, "")
			return
		case <-s.closing:
			s.close(websocket.CloseGoingAway, "server shutting down")
			return
		case snap, ok := <-s.updates:
			if !ok {
				s.close(websocket.CloseNormalClosure, "")
				return
			}
			// Status and visibility may have changed since the stream opened
			if e, err := s.controller.GetElection(ctx, s.electionID); err == nil {
				s.election = e
			}
			if !s.admin && !s.election.ResultsPublic {
				slog.Info("live results hidden, closing stream", "election_id", s.electionID)
				s.close(websocket.ClosePolicyViolation, "results are not public")
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(models.PresentTally(snap, s.election)); err != nil {
				slog.Debug("live results write failed", "election_id", s.electionID, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *liveStream) close(code int, text string) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}
