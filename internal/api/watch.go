package api

import (
	"context"
	"net/url"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/watch"
)

// originPatterns turns CORS origins into the host patterns the websocket
// origin check matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}

	return out
}

// watchHandler upgrades GET /api/v1/cache/watch to a websocket that streams
// cache change notices until the client leaves or the app shuts down.
func watchHandler(appCtx context.Context, log *logrus.Logger, hub *watch.Hub, corsOrigins []string) gin.HandlerFunc {
	patterns := originPatterns(corsOrigins)

	return func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns:       patterns,
			CompressionMode:      websocket.CompressionContextTakeover,
			CompressionThreshold: 128,
		})
		if err != nil {
			log.WithError(err).Warn("watch accept failed")
			return
		}

		client := watch.NewClient(hub, conn)
		hub.Register(client)

		// Cancel when either the app shuts down or the request ends.
		wsCtx, wsCancel := context.WithCancel(appCtx)
		go func() {
			select {
			case <-c.Request.Context().Done():
				wsCancel()
			case <-wsCtx.Done():
			}
		}()

		go client.WritePump(wsCtx)
		client.ReadPump(wsCtx)
		wsCancel()
	}
}
