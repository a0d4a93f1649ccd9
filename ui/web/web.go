// Package web relays the frames of the scanner to web clients and accepts their commands.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core/app"
)

// ServiceType is used to announce the relay in the local network.
const ServiceType = "_rtlscan._tcp"

const (
	writeTimeout   = 5 * time.Second
	maxCommandSize = 4096
	clientBuffer   = 8
)

// Server is the web relay.
type Server struct {
	controller Controller
	upgrader   websocket.Upgrader

	clientsLock sync.Mutex
	clients     map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer returns a new web relay for the given controller.
func NewServer(controller Controller) *Server {
	return &Server{
		controller: controller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]bool),
	}
}

// Handler returns the HTTP handler of the relay.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/api/status", s.serveStatus)
	mux.HandleFunc("/ws", s.serveWebsocket)
	return mux
}

// Serve the relay on the given address until the context is done. The frames are broadcast to all
// connected clients. If announce is set, the relay is announced via zeroconf.
func (s *Server) Serve(ctx context.Context, address string, announce bool, frames <-chan app.Frame) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on %s", address)
	}
	log.Printf("web relay listening on %s", listener.Addr())

	if announce {
		port := listener.Addr().(*net.TCPAddr).Port
		announcement, err := zeroconf.Register("rtlscan", ServiceType, "local.", port, []string{"session=" + s.controller.ID()}, nil)
		if err != nil {
			log.Print("cannot announce web relay: ", err)
		} else {
			defer announcement.Shutdown()
		}
	}

	server := &http.Server{Handler: s.Handler()}
	go s.broadcastFrames(ctx, frames)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	err = server.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) broadcastFrames(ctx context.Context, frames <-chan app.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			s.Broadcast(frame)
		}
	}
}

// Broadcast the frame to all connected clients. Clients that do not keep up miss the frame.
func (s *Server) Broadcast(frame app.Frame) {
	message, err := json.Marshal(NewStatus(frame, true))
	if err != nil {
		log.Print("cannot encode frame: ", err)
		return
	}

	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	for c := range s.clients {
		select {
		case c.send <- message:
		default:
			log.Print("web client hangs")
		}
	}
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NewStatus(s.controller.Frame(), false)); err != nil {
		log.Print("cannot encode status: ", err)
	}
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("websocket upgrade failed: ", err)
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	s.addClient(c)

	go c.writePump()
	s.readPump(c)
}

func (s *Server) addClient(c *client) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	s.clients[c] = true
}

func (s *Server) removeClient(c *client) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeClients() {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	return len(s.clients)
}

// readPump applies the commands of the client until the connection is closed.
func (s *Server) readPump(c *client) {
	defer func() {
		s.removeClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxCommandSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Print("websocket read failed: ", err)
			}
			return
		}

		command, err := ParseCommand(data)
		if err == nil {
			err = command.Apply(s.controller)
		}
		if err != nil {
			s.reply(c, newErrorMessage(err))
			continue
		}
		s.reply(c, NewStatus(s.controller.Frame(), false))
	}
}

func (s *Server) reply(c *client, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Print("cannot encode reply: ", err)
		return
	}
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	if !s.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Print("web client hangs")
	}
}

// writePump pumps messages to the websocket connection.
func (c *client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Print("websocket write failed: ", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>rtlscan</title></head>
<body style="font-family: monospace; background: #111; color: #ddd">
<h1 id="frequency">-</h1>
<p id="status"></p>
<canvas id="spectrum" width="1024" height="256"></canvas>
<script>
const socket = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
const keys = {ArrowUp: "up", ArrowDown: "down", ArrowLeft: "left", ArrowRight: "right", m: "menu", Enter: "select", " ": "select", Escape: "cancel"};
document.addEventListener("keydown", e => {
  const key = keys[e.key];
  if (key) { socket.send(JSON.stringify({type: "key", key: key})); e.preventDefault(); }
});
socket.onmessage = e => {
  const msg = JSON.parse(e.data);
  if (msg.type === "error") { console.log(msg.error); return; }
  document.getElementById("frequency").textContent = (msg.frequency / 1e6).toFixed(6) + " MHz";
  document.getElementById("status").textContent = [msg.band, "Step " + msg.step, "Gain " + msg.gain, msg.width, msg.mode, msg.device_lost ? "DEVICE LOST" : ""].join("  ");
  if (!msg.power_db) return;
  const canvas = document.getElementById("spectrum"), ctx = canvas.getContext("2d");
  const min = Math.min(...msg.power_db), max = Math.max(...msg.power_db), range = (max - min) || 1;
  ctx.fillStyle = "#111"; ctx.fillRect(0, 0, canvas.width, canvas.height);
  ctx.strokeStyle = "#0c0"; ctx.beginPath();
  msg.power_db.forEach((v, i) => {
    const x = i * canvas.width / msg.power_db.length, y = canvas.height - (v - min) / range * canvas.height;
    if (i === 0) ctx.moveTo(x, y); else ctx.lineTo(x, y);
  });
  ctx.stroke();
};
</script>
</body>
</html>
`
