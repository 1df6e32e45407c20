package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
	// The engine serves a local authoring host; there is no cross-origin
	// story to enforce here.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Serve exposes the rebuild domain at ws://<addr>/ws. Each connection gets
// its own host, mirror and kernel session; the JSON envelopes are the same
// ones the in-process transport speaks.
func Serve(ctx context.Context, addr string, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		logger.Info("authoring client connected", zap.String("remote", r.RemoteAddr))
		serveConn(ctx, conn, opts, logger)
		logger.Info("authoring client disconnected", zap.String("remote", r.RemoteAddr))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("serving rebuild domain", zap.String("addr", addr))
	return g.Wait()
}

func serveConn(ctx context.Context, conn *websocket.Conn, opts Options, logger *zap.Logger) {
	defer conn.Close()

	hostSide, clientSide := NewChannelPair(256)
	opts.Transport = hostSide
	opts.Logger = logger
	h := NewHost(opts)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(cctx)

	g.Go(func() error { return h.Run(gctx) })

	// Read pump: websocket frames become control messages. A disconnect
	// tears the whole session down.
	g.Go(func() error {
		defer cancel()
		defer clientSide.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return nil // disconnect ends the session, not an error
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				logger.Warn("malformed frame", zap.Error(err))
				continue
			}
			if err := clientSide.Send(msg); err != nil {
				return nil
			}
		}
	})

	// Write pump: result messages become websocket frames.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-clientSide.Recv():
				if err := conn.WriteJSON(msg); err != nil {
					return nil
				}
			}
		}
	})

	// Unblock the read pump when the context ends.
	g.Go(func() error {
		<-gctx.Done()
		conn.SetReadDeadline(time.Now())
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Warn("session ended", zap.Error(err))
	}
}
