package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// eventsHandler upgrades the connection and streams instance lifecycle
// events as JSON text frames until the client disconnects or the hub
// shuts down.
func eventsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		sub := svc.Events().Subscribe()
		slog.Info("event stream opened", "remote", r.RemoteAddr)

		// Drain client frames so pings and close frames are honored; a
		// read error means the client is gone.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, err := wsutil.ReadClientText(conn); err != nil {
					if err != io.EOF {
						slog.Debug("event stream read exit", "error", err)
					}
					return
				}
			}
		}()

		defer func() {
			sub.Close()
			conn.Close()
			slog.Info("event stream closed", "remote", r.RemoteAddr)
		}()

		for {
			select {
			case <-done:
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					slog.Debug("event encode failed", "error", err)
					continue
				}
				if err := wsutil.WriteServerText(conn, data); err != nil {
					slog.Debug("event stream write exit", "error", err)
					return
				}
			}
		}
	}
}
