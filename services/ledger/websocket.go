// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package ledger

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleWatchEpochs handles GET /v1/epochs/watch.
//
// Description:
//
//	Upgrades the connection to a WebSocket and streams every epoch the
//	service records from then on, whether created locally or imported.
//	The first message is a watch_started envelope carrying the newest
//	epoch number at connect time, so a client can fetch anything it
//	missed. Subsequent messages are epoch_recorded envelopes with the
//	full epoch.
//
//	A watcher that cannot keep up misses epochs rather than slowing the
//	service down; the watch_started number plus GET /v1/epochs lets it
//	resynchronize.
func (h *Handlers) HandleWatchEpochs(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWatchEpochs")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	epochs, cancel := h.svc.Watch()
	defer cancel()

	logger.Info("Epoch watcher connected")

	if err := sendJSON(ws, map[string]any{
		"action":            "watch_started",
		"last_epoch_number": h.svc.Metrics().LastEpochNumber,
	}); err != nil {
		return
	}

	// Reader loop: the client sends nothing meaningful, but reading is
	// what surfaces its disconnect.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case epoch, ok := <-epochs:
			if !ok {
				return
			}
			if err := sendJSON(ws, map[string]any{
				"action": "epoch_recorded",
				"epoch":  epoch,
			}); err != nil {
				return
			}
		case <-disconnected:
			logger.Info("Epoch watcher disconnected")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
