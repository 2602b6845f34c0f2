package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/service"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/jwt"
	"github.com/mbeoliero/ringlink/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Ledger is the part of the conversation ledger reachable over the socket
type Ledger interface {
	UnreadContactCount(ctx context.Context, ownerId string) (int64, error)
	OpenConversation(ctx context.Context, ownerId, peerId string) (*entity.Contact, error)
}

// WsServer is the WebSocket push server
type WsServer struct {
	upgrader       *websocket.Upgrader
	cfg            *config.Config
	userMap        *UserMap
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChan       chan *PushTask
	ledger         Ledger
	onlineUserNum  atomic.Int64
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

var _ service.Notifier = (*WsServer)(nil)

// PushTask represents an event push task
type PushTask struct {
	Event     int
	Data      []byte
	TargetIds []string
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, rdb *redis.Client, ledger Ledger) *WsServer {
	server := &WsServer{
		cfg:            cfg,
		userMap:        NewUserMap(rdb),
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		pushChan:       make(chan *PushTask, max(cfg.WebSocket.PushChannelSize, 1)),
		ledger:         ledger,
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	server.upgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r.Header.Get("Origin"), allowedOrigins)
		},
	}

	return server
}

// checkOrigin validates the Origin header against allowed origins
func checkOrigin(origin string, allowedOrigins []string) bool {
	// Same-origin request or non-browser client
	if origin == "" {
		return true
	}

	if len(allowedOrigins) == 0 {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}

	return false
}

// Run starts the event loop, the push workers and the presence refresher
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}

	go s.presenceLoop(ctx)
	log.Info("started %d push workers", workerNum)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async event pushing
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// presenceLoop keeps the redis presence of local users alive between
// client heartbeats
func (s *WsServer) presenceLoop(ctx context.Context) {
	ticker := time.NewTicker(PresenceTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userId := range s.userMap.OnlineUserIds() {
				s.userMap.RefreshOnlineStatus(ctx, userId)
			}
		}
	}
}

// processPushTask delivers one event to every connection of its targets
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	for _, userId := range task.TargetIds {
		clients, ok := s.userMap.GetAll(userId)
		if !ok {
			continue
		}

		for _, client := range clients {
			if err := client.PushEvent(ctx, task.Data); err != nil {
				log.CtxDebug(ctx, "push to client failed: user_id=%s, conn_id=%s, event=%d, error=%v", userId, client.ConnId, task.Event, err)
			}
		}
	}
}

// registerClient registers a client. A newer connection on the same platform
// replaces the older one.
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	if stale, ok := s.userMap.GetByPlatform(client.UserId, client.PlatformId); ok {
		for _, c := range stale {
			log.CtxInfo(ctx, "kick stale connection: user_id=%s, platform_id=%d, conn_id=%s", c.UserId, c.PlatformId, c.ConnId)
			_ = c.KickOnline()
		}
	}

	if !s.userMap.HasConnection(client.UserId) {
		s.onlineUserNum.Add(1)
	}

	s.userMap.Register(ctx, client)
	s.onlineConnNum.Add(1)
	metrics.PushConnectionsActive.Inc()

	log.CtxInfo(ctx, "client registered: user_id=%s, platform_id=%d, conn_id=%s, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	isUserOffline := s.userMap.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)
	metrics.PushConnectionsActive.Dec()

	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, platform_id=%d, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// Handler returns the push endpoint mux, serving /ws and /metrics
func (s *WsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.HandleConnection(r.Context(), w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// HandleConnection authenticates and upgrades a new WebSocket connection
func (s *WsServer) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if s.maxConnNum > 0 && s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, errcode.ErrConnOverLimit.Msg, http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	token := query.Get(QueryToken)
	sendId := query.Get(QuerySendId)
	sdkType := query.Get(QuerySDKType)

	if token == "" || sendId == "" {
		http.Error(w, "missing required parameters", http.StatusBadRequest)
		return
	}

	platformId := 0
	if v := query.Get(QueryPlatformId); v != "" {
		platformId, _ = strconv.Atoi(v)
	}

	claims, err := jwt.ValidateToken(token, s.cfg.JWT.Secret, sendId, platformId)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: send_id=%s, error=%v", sendId, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	connId := uuid.New().String()
	wsConn := NewWebSocketClientConn(conn, s.cfg.WebSocket)
	client := NewClient(wsConn, claims.UserId, claims.PlatformId, sdkType, connId, s)

	s.registerChan <- client
	client.Start()
}

// Push queues an event for the given users. The payload is encoded once and
// the event is dropped when the queue is full.
func (s *WsServer) Push(ctx context.Context, event int, payload any, userIds []string) {
	if len(userIds) == 0 {
		return
	}

	data, err := encodePushEvent(event, payload)
	if err != nil {
		log.CtxError(ctx, "encode push event failed: event=%d, error=%v", event, err)
		return
	}

	task := &PushTask{Event: event, Data: data, TargetIds: userIds}
	select {
	case s.pushChan <- task:
	default:
		metrics.PushDroppedTotal.Inc()
		log.CtxWarn(ctx, "push channel full, event dropped: event=%d, targets=%v", event, userIds)
	}
}

func encodePushEvent(event int, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(PushEventData{Event: event, Payload: raw})
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// IsOnline reports whether the user holds a push connection on any instance
func (s *WsServer) IsOnline(ctx context.Context, userId string) bool {
	return s.userMap.IsOnline(ctx, userId)
}

// ========== Request Handlers ==========

// HandleUnreadCount returns how many contacts hold unread messages
func (s *WsServer) HandleUnreadCount(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	count, err := s.ledger.UnreadContactCount(ctx, client.UserId)
	if err != nil {
		return nil, err
	}
	return json.Marshal(UnreadCountResp{Count: count})
}

// HandleOpenConv marks the conversation with a peer as read
func (s *WsServer) HandleOpenConv(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var openReq OpenConvReq
	if err := json.Unmarshal(req.Data, &openReq); err != nil || openReq.PeerId == "" {
		return nil, errcode.ErrInvalidParam
	}

	contact, err := s.ledger.OpenConversation(ctx, client.UserId, openReq.PeerId)
	if err != nil {
		return nil, err
	}

	return json.Marshal(OpenConvResp{
		ConversationId: contact.ConversationId,
		Unread:         contact.Unread,
		ReadAt:         contact.ReadAt,
	})
}
