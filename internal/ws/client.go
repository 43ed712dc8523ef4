package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/squadup/squadup/internal/services"
	"github.com/squadup/squadup/internal/state"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 挂到会话状态上的消息类型
const (
	FrameGroupUpdate   = "group_update"
	FramePush          = "push"
	FrameGroupInvite   = "group_invite"
	FramePartyPrompt   = "party_prompt"
	FrameFriendRequest = "friend_request"
)

// Client 代表一个 WebSocket 连接客户端
type Client struct {
	hub *Hub

	// WebSocket 连接
	conn *websocket.Conn

	// 缓冲通道，用于发送消息
	send chan *DirectMessage

	// 用户 UID
	uid string

	// 会话级群组状态
	store *state.GroupStore

	// 取消本连接启动的协程
	cancel context.CancelFunc
}

// readPump 泵送来自 WebSocket 连接的消息到会话状态
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		// 客户端指令: {"action": "subscribe", "group_id": "..."} / {"action": "unsubscribe"}
		var req struct {
			Action  string `json:"action"`
			GroupID string `json:"group_id"`
		}
		if err := json.Unmarshal(message, &req); err != nil {
			log.Printf("json unmarshal error: %v", err)
			continue
		}

		switch req.Action {
		case "subscribe":
			if err := c.store.Subscribe(context.Background(), req.GroupID); err != nil {
				log.Printf("subscribe group %s error: %v", req.GroupID, err)
			}
		case "unsubscribe":
			c.store.Unsubscribe()
		}
	}
}

// pumpUpdates 把会话状态的更新流转成发往本用户的帧
func (c *Client) pumpUpdates(ctx context.Context) {
	for {
		select {
		case u, ok := <-c.store.Updates():
			if !ok {
				return
			}
			c.hub.SendToUser(c.uid, FrameGroupUpdate, u)
		case <-ctx.Done():
			return
		}
	}
}

// pumpInvites 把三路实时邀请流转成发往本用户的帧
func (c *Client) pumpInvites(ctx context.Context, sess *services.Session) {
	defer sess.Close()
	for {
		select {
		case inv, ok := <-sess.GroupInvites:
			if !ok {
				return
			}
			c.hub.SendToUser(c.uid, FrameGroupInvite, inv)
		case inv, ok := <-sess.PartyPrompts:
			if !ok {
				return
			}
			c.hub.SendToUser(c.uid, FramePartyPrompt, inv)
		case inv, ok := <-sess.FriendRequests:
			if !ok {
				return
			}
			c.hub.SendToUser(c.uid, FrameFriendRequest, inv)
		case <-ctx.Done():
			return
		}
	}
}

// writePump 泵送来自 Hub 的消息到 WebSocket 连接
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			json.NewEncoder(w).Encode(msg)

			// 添加队列中的其他消息（如果有）
			n := len(c.send)
			for range n {
				json.NewEncoder(w).Encode(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs 处理 WebSocket 请求
func ServeWs(hub *Hub, sessions *state.Manager, invites *services.InvitationCoordinator, c *gin.Context) {
	uid, exists := c.Get("uid")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	// 升级连接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	userUID := uid.(string)
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *DirectMessage, 256),
		uid:    userUID,
		store:  sessions.Get(userUID),
		cancel: cancel,
	}

	// 注册到 Hub
	client.hub.register <- client

	// 启动读写协程
	go client.writePump()
	go client.pumpUpdates(ctx)
	go client.readPump()

	// 邀请流：组队邀请串行弹、搭子邀请限时弹、好友请求直接推
	if invites != nil {
		sess, err := invites.OpenSession(ctx, userUID)
		if err != nil {
			log.Printf("open invitation session for %s error: %v", userUID, err)
			return
		}
		go client.pumpInvites(ctx, sess)
	}
}
