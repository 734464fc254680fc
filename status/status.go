// Package status broadcasts loading and export progress to websocket
// clients of the browser.
package status

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

const (
	writeWait  = 40 * time.Second
	pingPeriod = 30 * time.Second
)

type status struct {
	Message  string
	Time     time.Time
	Type     int
	Progress float32
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		unregisterClient(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump drains client messages so control frames are processed and
// closes client when connection is gone.
func (c *client) readPump() {
	defer unregisterClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func NewClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 32)}
	globalLock.Lock()
	broadcastList[c] = true
	if lastMessage != nil {
		c.send <- lastMessage
	}
	globalLock.Unlock()
	go c.writePump()
	go c.readPump()
	return c
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWs upgrades request to websocket receiving status messages.
func ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[status] ws upgrade error: %v", err)
		return
	}
	NewClient(conn)
}

var statusBroadcast chan *status
var broadcastList map[*client]bool
var globalLock sync.Mutex
var lastMessage []byte = nil

func unregisterClient(c *client) {
	globalLock.Lock()
	defer globalLock.Unlock()
	if broadcastList[c] {
		delete(broadcastList, c)
		close(c.send)
	}
}

func init() {
	statusBroadcast = make(chan *status, 16)
	broadcastList = make(map[*client]bool)
	go func() {
		for s := range statusBroadcast {
			data, err := json.Marshal(s)
			if err != nil {
				panic(err)
			}
			globalLock.Lock()
			lastMessage = data
			for c := range broadcastList {
				select {
				case c.send <- data:
				default:
					// slow client misses message
				}
			}
			globalLock.Unlock()
		}
	}()
}

func Status(msg string, _type int, progress float32) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	statusBroadcast <- &status{
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress}
}

func Info(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), INFO, 0.0)
}

func Error(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), ERROR, 0.0)
}

func Progress(progress float32, format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), PROGRESS, progress)
}
