package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard runs on a different origin in dev
	},
}

// Hub maintains the set of active websocket clients and pushes analysis
// alerts to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	log       *logrus.Entry
}

// AnalysisAlert is pushed to every subscriber when an upload finishes.
type AnalysisAlert struct {
	Type              string  `json:"type"`
	Filename          string  `json:"filename"`
	SuspiciousFlagged int     `json:"suspicious_flagged"`
	RingsDetected     int     `json:"rings_detected"`
	TopRiskScore      float64 `json:"top_risk_score"`
}

func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		log:       log.WithField("subsystem", "ws"),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Write deadline keeps a blocked client from hanging the hub.
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.WithError(err).Debug("websocket write failed, dropping client")
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe handles incoming websocket connections.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mutex.Unlock()

	h.log.WithField("clients", total).Info("websocket client connected")

	// Push-only stream, but reads must drain to notice disconnects.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			h.log.Debug("websocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.WithError(err).Debug("websocket read error")
				}
				break
			}
		}
	}()
}

// Broadcast sends raw JSON to all connected clients.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// RingAlert is pushed per ring when a detected ring's risk score crosses
// the alert threshold.
type RingAlert struct {
	Type        string  `json:"type"`
	RingID      string  `json:"ring_id"`
	PatternType string  `json:"pattern_type"`
	MemberCount int     `json:"member_count"`
	RiskScore   float64 `json:"risk_score"`
}

// BroadcastRingAlert marshals and broadcasts a high-risk ring alert.
func (h *Hub) BroadcastRingAlert(alert RingAlert) {
	if alert.Type == "" {
		alert.Type = "high_risk_ring"
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		h.log.WithError(err).Warn("failed to marshal ring alert")
		return
	}
	h.Broadcast(payload)
}

// BroadcastAlert marshals and broadcasts an analysis-complete alert.
func (h *Hub) BroadcastAlert(alert AnalysisAlert) {
	if alert.Type == "" {
		alert.Type = "analysis_complete"
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		h.log.WithError(err).Warn("failed to marshal alert")
		return
	}
	h.Broadcast(payload)
}
