package ws

import (
	"sync"
)

// Hub 维护活跃的客户端连接并按用户投递消息
type Hub struct {
	// 注册的客户端
	clients map[*Client]bool

	// 用户对应的客户端集合 UID -> Client -> bool
	// 同一用户允许多个连接（多端在线）
	users map[string]map[*Client]bool

	// 互斥锁，保护 map 的并发读写
	mu sync.RWMutex

	// 注册请求通道
	register chan *Client

	// 注销请求通道
	unregister chan *Client

	// 定向消息通道 (内部使用)
	direct chan *DirectMessage
}

// DirectMessage 定向到某个用户的消息帧
type DirectMessage struct {
	TargetUID string `json:"-"`
	Type      string `json:"type"` // group_update / notification / push
	Payload   any    `json:"payload"`
}

func NewHub() *Hub {
	return &Hub{
		direct:     make(chan *DirectMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		users:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if _, ok := h.users[client.uid]; !ok {
				h.users[client.uid] = make(map[*Client]bool)
			}
			h.users[client.uid][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case msg := <-h.direct:
			h.mu.Lock()
			var stalled []*Client
			for client := range h.users[msg.TargetUID] {
				select {
				case client.send <- msg:
				default:
					// 发送缓冲区满，连接视为失活，稍后统一移除
					stalled = append(stalled, client)
				}
			}
			for _, client := range stalled {
				h.dropLocked(client)
			}
			h.mu.Unlock()
		}
	}
}

// dropLocked 把客户端从两张索引里一并移除并关闭发送通道。
// 幂等：重复移除同一客户端是无操作，send 只会关闭一次。
// 调用方必须持有写锁。
func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if room, ok := h.users[client.uid]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.users, client.uid)
		}
	}
	close(client.send)
}

// SendToUser 把一帧消息投递给某个用户的所有在线连接
func (h *Hub) SendToUser(uid string, msgType string, payload any) {
	h.direct <- &DirectMessage{
		TargetUID: uid,
		Type:      msgType,
		Payload:   payload,
	}
}

// Online 用户是否有在线连接
func (h *Hub) Online(uid string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[uid]) > 0
}
