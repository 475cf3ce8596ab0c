package tetris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket" // WebSocketライブラリのインポート

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
)

var (
	// ErrSessionNotFound は指定されたIDのゲームセッションが存在しないことを表します。
	ErrSessionNotFound = errors.New("game session not found")
	// ErrNoSnapshot は再開できるセーブデータがないことを表します。
	ErrNoSnapshot = errors.New("no saved game")
)

// 終了したセッションをマップから取り除くまでの猶予
const finishedSessionRetention = time.Minute

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	ID     string          // 接続ごとのID
	GameID string          // このクライアントが見ているゲームのID
	Conn   *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send   chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	closed bool            // チャネルが閉じられたかどうかのフラグ
	mu     sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false // 既に閉じられている
	}

	select {
	case c.Send <- message:
		return true // 送信成功
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// LightweightGameState はWebSocket / HTTP 送信用のゲーム状態です。
// 内部のスケジューリング情報を含まず、描画に必要な情報だけを持ちます。
type LightweightGameState struct {
	ID             string        `json:"id"`
	Board          tetris.Board  `json:"board"`
	CurrentPiece   *tetris.Piece `json:"current_piece"`
	NextPiece      *tetris.Piece `json:"next_piece"`
	GhostY         int           `json:"ghost_y"`
	Score          int           `json:"score"`
	LinesCleared   int           `json:"lines_cleared"`
	Level          int           `json:"level"`
	DropIntervalMs int           `json:"drop_interval_ms"`
	Difficulty     Difficulty    `json:"difficulty"`
	State          State         `json:"state"`
	ClearingRows   []int         `json:"clearing_rows,omitempty"`
}

// ToLightweight はGameSessionを送信用の構造体に変換します。ピースは複製されます。
func (s *GameSession) ToLightweight() *LightweightGameState {
	return &LightweightGameState{
		ID:             s.ID,
		Board:          s.Board,
		CurrentPiece:   s.CurrentPiece.Clone(),
		NextPiece:      s.NextPiece.Clone(),
		GhostY:         s.GhostY(),
		Score:          s.Score,
		LinesCleared:   s.LinesCleared,
		Level:          s.Level,
		DropIntervalMs: s.DropIntervalMs,
		Difficulty:     s.Difficulty,
		State:          s.State,
		ClearingRows:   s.ClearingRows(),
	}
}

// ServerMessage はサーバーからクライアントへ送るメッセージです。
type ServerMessage struct {
	Type   string                `json:"type"` // "state" または "events"
	GameID string                `json:"game_id"`
	State  *LightweightGameState `json:"state,omitempty"`
	Events []Event               `json:"events,omitempty"`
}

// ManagerConfig は SessionManager のタイミング設定です。
type ManagerConfig struct {
	TickInterval        time.Duration              // 自動落下を判定する間隔
	ClearDuration       time.Duration              // ライン消去演出の長さ
	TetrisClearDuration time.Duration              // 4ライン消去時の演出の長さ
	AutosaveInterval    time.Duration              // 自動保存の間隔
	NewProvider         func() tetris.KindProvider // セッションごとのピース生成器（nilなら一様ランダム）
}

// DefaultManagerConfig は既定のタイミング設定を返します。
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TickInterval:        16 * time.Millisecond,
		ClearDuration:       400 * time.Millisecond,
		TetrisClearDuration: 480 * time.Millisecond,
		AutosaveInterval:    2 * time.Second,
	}
}

// managedSession はSessionManagerが保持するセッションとそのスケジューリング情報です。
// game へのアクセスはすべて mu を保持した状態で行います。
type managedSession struct {
	mu          sync.Mutex
	game        *GameSession
	saveKey     string
	active      bool      // クライアントが接続するか操作するまでは自動落下させない
	clearAt     time.Time // ライン消去演出の終了予定時刻（ゼロ値なら未予定）
	lastSave    time.Time
	lastWritten time.Time // このセッションが最後に書き込んだセーブデータの時刻
	endedAt     time.Time
}

// SessionManager はゲームセッションとWebSocketクライアント接続の全体を管理します。
// これはアプリケーション内でシングルトンとして動作することが想定されます。
type SessionManager struct {
	sessions    map[string]*managedSession      // gameID -> セッション
	clients     map[string]map[*Client]struct{} // gameID -> 接続中のクライアント
	register    chan *Client                    // 新しいクライアント接続の登録リクエスト用チャネル
	unregister  chan *Client                    // クライアント切断の登録解除リクエスト用チャネル
	inputEvents chan PlayerInputEvent           // クライアントからのプレイヤー操作入力を受け取るチャネル
	quit        chan struct{}                   // シャットダウン用チャネル
	quitOnce    sync.Once
	mu          sync.RWMutex // sessions と clients マップへのアクセスを保護するためのRWMutex
	snapshots   database.SnapshotRepository
	cfg         ManagerConfig
	now         func() time.Time
}

// NewSessionManager は新しい SessionManager インスタンスを作成し、そのメインイベントループをバックグラウンドで開始します。
//
// Parameters:
//
//	snapshots : セーブデータの保存先
//	cfg       : タイミング設定
//
// Returns:
//
//	*SessionManager: 初期化されたセッションマネージャーのポインタ
func NewSessionManager(snapshots database.SnapshotRepository, cfg ManagerConfig) *SessionManager {
	sm := newSessionManager(snapshots, cfg)
	go sm.Run() // SessionManager のメインイベントループをゴルーチンで開始
	return sm
}

func newSessionManager(snapshots database.SnapshotRepository, cfg ManagerConfig) *SessionManager {
	def := DefaultManagerConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.ClearDuration <= 0 {
		cfg.ClearDuration = def.ClearDuration
	}
	if cfg.TetrisClearDuration <= 0 {
		cfg.TetrisClearDuration = def.TetrisClearDuration
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = def.AutosaveInterval
	}
	return &SessionManager{
		sessions:    make(map[string]*managedSession),
		clients:     make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inputEvents: make(chan PlayerInputEvent, 512), // プレイヤー操作のキューイング用
		quit:        make(chan struct{}),
		snapshots:   snapshots,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run は SessionManager のメインイベントループです。
// クライアントの登録/解除、プレイヤー入力の処理、自動落下とライン消去のスケジューリング、
// 自動保存を処理します。
func (sm *SessionManager) Run() {
	ticker := time.NewTicker(sm.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-sm.register:
			sm.addClient(client)
			log.Printf("[SessionManager] Client registered: %s (Game: %s)", client.ID, client.GameID)

			// 接続直後に現在の状態を送る
			if state, err := sm.GetGameState(client.GameID); err == nil {
				sm.sendTo(client, ServerMessage{Type: "state", GameID: client.GameID, State: state})
			}

		case client := <-sm.unregister:
			sm.detachClient(client)

		case event := <-sm.inputEvents:
			if _, err := sm.ApplyInput(event.GameID, event.Action); err != nil {
				log.Printf("[SessionManager] Input %q for game %s rejected: %v", event.Action, event.GameID, err)
			}

		case <-ticker.C:
			sm.tickAll(sm.now())

		case <-sm.quit:
			log.Printf("[SessionManager] シャットダウンシグナルを受信、メインループを終了します")
			return
		}
	}
}

// CreateSession は新しいゲームセッションを作成し、すぐに開始します。
// 自動落下は最初のクライアントが接続するか操作が届いてから始まります。
//
// Parameters:
//
//	ctx        : セーブデータ削除に使うコンテキスト
//	difficulty : 難易度
//	saveKey    : 自動保存に使うキー（空ならゲームID）。同じキーの古いセーブデータは削除されます
//
// Returns:
//
//	string: 作成されたゲームのID
//	error : エラーが発生した場合
func (sm *SessionManager) CreateSession(ctx context.Context, difficulty Difficulty, saveKey string) (string, error) {
	gameID := uuid.New().String()
	if saveKey == "" {
		saveKey = gameID
	} else if err := sm.snapshots.DeleteSnapshot(ctx, saveKey); err != nil {
		// 新しいゲームを始めたら古いセーブデータは捨てる
		return "", fmt.Errorf("古いセーブデータの削除に失敗しました: %w", err)
	}

	game := NewGameSession(gameID, sm.newProvider())
	game.Start(difficulty)

	ms := &managedSession{game: game, saveKey: saveKey, lastSave: sm.now()}
	sm.mu.Lock()
	sm.sessions[gameID] = ms
	sm.mu.Unlock()

	log.Printf("[SessionManager] Game %s started (difficulty=%s, save_key=%s)", gameID, game.Difficulty, saveKey)
	return gameID, nil
}

// ResumeSession はセーブデータからゲームを再開します。再開したセーブデータは削除されます。
// セーブデータがない・期限切れ・壊れている場合は ErrNoSnapshot を返します。
func (sm *SessionManager) ResumeSession(ctx context.Context, saveKey string) (string, error) {
	if saveKey == "" {
		return "", ErrNoSnapshot
	}

	snap, err := sm.snapshots.LoadSnapshot(ctx, saveKey)
	if err != nil {
		return "", fmt.Errorf("セーブデータの読み込みに失敗しました: %w", err)
	}
	if snap == nil {
		return "", ErrNoSnapshot
	}

	gameID := uuid.New().String()
	game := NewGameSession(gameID, sm.newProvider())
	if err := game.Restore(snap); err != nil {
		log.Printf("[SessionManager] Discarding unusable save %s: %v", saveKey, err)
		if delErr := sm.snapshots.DeleteSnapshot(ctx, saveKey); delErr != nil {
			log.Printf("[SessionManager] Failed to delete save %s: %v", saveKey, delErr)
		}
		return "", ErrNoSnapshot
	}

	if err := sm.snapshots.DeleteSnapshot(ctx, saveKey); err != nil {
		log.Printf("[SessionManager] Failed to delete resumed save %s: %v", saveKey, err)
	}

	ms := &managedSession{game: game, saveKey: saveKey, lastSave: sm.now()}
	sm.mu.Lock()
	sm.sessions[gameID] = ms
	sm.mu.Unlock()

	log.Printf("[SessionManager] Game %s resumed from %s (score=%d level=%d)", gameID, saveKey, game.Score, game.Level)
	return gameID, nil
}

// ApplyInput はゲームにプレイヤー操作を適用し、状態が変わればクライアントに通知します。
func (sm *SessionManager) ApplyInput(gameID, action string) (bool, error) {
	ms, ok := sm.lookup(gameID)
	if !ok {
		return false, ErrSessionNotFound
	}

	now := sm.now()
	ms.mu.Lock()
	ms.active = true
	changed, events := ms.game.ApplyInput(action)
	sm.handleEvents(ms, events, now)

	// 一時停止したタイミングで保存しておく
	if changed && action == ActionPause && ms.game.IsPaused() {
		sm.saveLocked(ms, now)
	}
	var state *LightweightGameState
	if changed {
		state = ms.game.ToLightweight()
	}
	ms.mu.Unlock()

	if changed {
		sm.broadcast(gameID, state, events)
	}
	return changed, nil
}

// SaveSummary は再開前に確認するためのセーブデータの概要です。
type SaveSummary struct {
	SaveKey    string     `json:"save_key"`
	Score      int        `json:"score"`
	Level      int        `json:"level"`
	Lines      int        `json:"lines"`
	Difficulty Difficulty `json:"difficulty"`
	SavedAt    time.Time  `json:"saved_at"`
}

// PeekSave はセーブデータを消費せずに概要を返します。無ければ ErrNoSnapshot を返します。
func (sm *SessionManager) PeekSave(ctx context.Context, saveKey string) (*SaveSummary, error) {
	if saveKey == "" {
		return nil, ErrNoSnapshot
	}
	snap, err := sm.snapshots.LoadSnapshot(ctx, saveKey)
	if err != nil {
		return nil, fmt.Errorf("セーブデータの読み込みに失敗しました: %w", err)
	}
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	d, _ := ParseDifficulty(snap.Difficulty)
	return &SaveSummary{
		SaveKey:    saveKey,
		Score:      snap.Score,
		Level:      snap.Level,
		Lines:      snap.Lines,
		Difficulty: d,
		SavedAt:    snap.Timestamp,
	}, nil
}

// GetSaveKey はゲームが自動保存に使うキーを返します。
func (sm *SessionManager) GetSaveKey(gameID string) (string, error) {
	ms, ok := sm.lookup(gameID)
	if !ok {
		return "", ErrSessionNotFound
	}
	return ms.saveKey, nil
}

// GetGameState は指定されたゲームの現在の状態を返します。
func (sm *SessionManager) GetGameState(gameID string) (*LightweightGameState, error) {
	ms, ok := sm.lookup(gameID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.game.ToLightweight(), nil
}

// SessionCount は管理中のセッション数を返します。
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// tickAll は全セッションについてライン消去の完了・自動落下・自動保存を処理します。
func (sm *SessionManager) tickAll(now time.Time) {
	sm.mu.RLock()
	sessions := make([]*managedSession, 0, len(sm.sessions))
	for _, ms := range sm.sessions {
		sessions = append(sessions, ms)
	}
	sm.mu.RUnlock()

	var finished []string
	for _, ms := range sessions {
		ms.mu.Lock()
		game := ms.game

		if !ms.endedAt.IsZero() {
			if now.Sub(ms.endedAt) > finishedSessionRetention {
				finished = append(finished, game.ID)
			}
			ms.mu.Unlock()
			continue
		}
		if !ms.active {
			ms.mu.Unlock()
			continue
		}

		var events []Event
		if game.IsClearing() && !ms.clearAt.IsZero() && !now.Before(ms.clearAt) {
			ms.clearAt = time.Time{}
			events = append(events, game.FinishClearLines()...)
		}

		var beforeX, beforeY int
		if game.CurrentPiece != nil {
			beforeX, beforeY = game.CurrentPiece.X, game.CurrentPiece.Y
		}
		events = append(events, game.Tick(now)...)
		moved := game.CurrentPiece != nil && (game.CurrentPiece.X != beforeX || game.CurrentPiece.Y != beforeY)

		sm.handleEvents(ms, events, now)

		if game.IsRunning() && now.Sub(ms.lastSave) >= sm.cfg.AutosaveInterval {
			sm.saveLocked(ms, now)
		}

		var state *LightweightGameState
		if moved || len(events) > 0 {
			state = game.ToLightweight()
		}
		ms.mu.Unlock()

		if state != nil {
			sm.broadcast(game.ID, state, events)
		}
	}

	for _, gameID := range finished {
		sm.EndGameSession(gameID)
	}
}

// handleEvents はイベントに応じてライン消去の完了予定やセーブデータの削除を行います。ms.mu を保持して呼び出します。
func (sm *SessionManager) handleEvents(ms *managedSession, events []Event, now time.Time) {
	for _, e := range events {
		switch e.Kind {
		case EventLineCleared:
			d := sm.cfg.ClearDuration
			if p, ok := e.Payload.(LineClearedPayload); ok && p.WasTetris {
				d = sm.cfg.TetrisClearDuration
			}
			ms.clearAt = now.Add(d)
		case EventGameOver:
			ms.endedAt = now
			ms.clearAt = time.Time{}
			sm.deleteOwnSaveLocked(ms)
		}
	}
}

// deleteOwnSaveLocked はこのセッションが書き込んだセーブデータがまだ残っていれば削除します。
// 同じキーを別のセッションが上書きしている場合は何もしません。ms.mu を保持して呼び出します。
func (sm *SessionManager) deleteOwnSaveLocked(ms *managedSession) {
	if ms.lastWritten.IsZero() {
		return
	}
	ctx := context.Background()
	snap, err := sm.snapshots.LoadSnapshot(ctx, ms.saveKey)
	if err != nil {
		log.Printf("[SessionManager] Failed to load save %s after game over: %v", ms.saveKey, err)
		return
	}
	if snap == nil || !snap.Timestamp.Equal(ms.lastWritten) {
		return
	}
	if err := sm.snapshots.DeleteSnapshot(ctx, ms.saveKey); err != nil {
		log.Printf("[SessionManager] Failed to delete save %s after game over: %v", ms.saveKey, err)
		return
	}
	ms.lastWritten = time.Time{}
}

// saveLocked は現在の状態を保存します。ms.mu を保持して呼び出します。
func (sm *SessionManager) saveLocked(ms *managedSession, now time.Time) {
	snap, ok := ms.game.Snapshot(now)
	if !ok {
		return
	}
	ms.lastSave = now
	if err := sm.snapshots.SaveSnapshot(context.Background(), ms.saveKey, snap); err != nil {
		log.Printf("[SessionManager] Autosave for game %s failed: %v", ms.game.ID, err)
		return
	}
	ms.lastWritten = snap.Timestamp
}

// addClient はクライアントを登録し、そのゲームの自動落下を有効にします。
func (sm *SessionManager) addClient(client *Client) {
	sm.mu.Lock()
	if sm.clients[client.GameID] == nil {
		sm.clients[client.GameID] = make(map[*Client]struct{})
	}
	sm.clients[client.GameID][client] = struct{}{}
	ms, ok := sm.sessions[client.GameID]
	sm.mu.Unlock()

	if ok {
		ms.mu.Lock()
		ms.active = true
		ms.mu.Unlock()
	}
}

// removeClient はクライアントの登録を解除します。そのゲームのクライアントがいなくなった場合に true を返します。
func (sm *SessionManager) removeClient(client *Client) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	set, ok := sm.clients[client.GameID]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	client.SafeClose()
	delete(set, client)
	log.Printf("[SessionManager] Client unregistered: %s (Game: %s)", client.ID, client.GameID)
	if len(set) > 0 {
		return false
	}
	delete(sm.clients, client.GameID)
	return true
}

// detachClient はクライアントの登録を解除し、最後のクライアントだった場合はゲームを一時停止して保存します。
func (sm *SessionManager) detachClient(client *Client) {
	if sm.removeClient(client) {
		sm.suspendAbandoned(client.GameID)
	}
}

// suspendAbandoned は接続が無くなったゲームを一時停止して保存します。
// ライン消去の途中であれば先に消去を終わらせます。
func (sm *SessionManager) suspendAbandoned(gameID string) {
	ms, ok := sm.lookup(gameID)
	if !ok {
		return
	}
	now := sm.now()
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.active = false
	if !ms.endedAt.IsZero() {
		return
	}
	if ms.game.IsClearing() {
		ms.clearAt = time.Time{}
		sm.handleEvents(ms, ms.game.FinishClearLines(), now)
	}
	if ms.game.IsRunning() {
		ms.game.TogglePause()
	}
	if ms.game.IsPaused() {
		sm.saveLocked(ms, now)
		log.Printf("[SessionManager] Game %s paused and saved after its last client left", gameID)
	}
}

// RegisterClient は新しいWebSocketクライアントをSessionManagerに登録します。
//
// Parameters:
//
//	gameID : クライアントが接続するゲームのID
//	conn   : WebSocketコネクション
//
// Returns:
//
//	error: ゲームが存在しない場合は ErrSessionNotFound
func (sm *SessionManager) RegisterClient(gameID string, conn *websocket.Conn) error {
	if _, ok := sm.lookup(gameID); !ok {
		return ErrSessionNotFound
	}

	client := &Client{
		ID:     uuid.New().String(),
		GameID: gameID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(300 * time.Second)) // 5分のタイムアウト
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(300 * time.Second)) // Pong受信時にタイムアウトリセット
		return nil
	})

	// readPump と writePump を別々のゴルーチンで開始
	go sm.readPump(client)
	go client.writePump()

	select {
	case sm.register <- client:
	case <-sm.quit:
		client.SafeClose()
		return errors.New("session manager is shut down")
	}
	return nil
}

// readPump はクライアントからのWebSocketメッセージを読み込み、 inputEvents チャネルに送信します。
func (sm *SessionManager) readPump(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SessionManager] Panic in readPump for client %s: %v", client.ID, r)
		}
		select {
		case sm.unregister <- client: // クライアントが切断されたら登録解除を通知
		case <-sm.quit:
		}
		if err := client.Conn.Close(); err != nil {
			log.Printf("[SessionManager] Error closing WebSocket connection for client %s: %v", client.ID, err)
		}
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[SessionManager] WebSocket unexpected close error for client %s: %v", client.ID, err)
			}
			return
		}
		if len(message) == 0 {
			continue
		}

		var inputEvent PlayerInputEvent
		if err := json.Unmarshal(message, &inputEvent); err != nil {
			log.Printf("[SessionManager] Failed to unmarshal input message from %s: %v, message: %s", client.ID, err, message)
			continue // パース失敗時はこのメッセージをスキップ
		}
		inputEvent.GameID = client.GameID // 接続先のゲーム以外は操作させない

		select {
		case sm.inputEvents <- inputEvent:
		default:
			log.Printf("[SessionManager] Input events channel is full, dropping message from client %s", client.ID)
		}
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
// クライアントごとにこのゴルーチンが動作します。
func (c *Client) writePump() {
	ticker := time.NewTicker(60 * time.Second) // ピング送信の間隔
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// マネージャーがチャネルを閉じた場合 (クライアントの登録解除時など)
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client] Error writing message for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[Client] Error sending ping for client %s: %v", c.ID, err)
				return
			}
		}
	}
}

// broadcast はイベントと最新の状態をゲームに接続している全クライアントに送信します。
func (sm *SessionManager) broadcast(gameID string, state *LightweightGameState, events []Event) {
	var messages [][]byte
	if len(events) > 0 {
		if b, err := json.Marshal(ServerMessage{Type: "events", GameID: gameID, Events: events}); err == nil {
			messages = append(messages, b)
		} else {
			log.Printf("[SessionManager] Error marshaling events for game %s: %v", gameID, err)
		}
	}
	if state != nil {
		if b, err := json.Marshal(ServerMessage{Type: "state", GameID: gameID, State: state}); err == nil {
			messages = append(messages, b)
		} else {
			log.Printf("[SessionManager] Error marshaling state for game %s: %v", gameID, err)
		}
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for client := range sm.clients[gameID] {
		for _, msg := range messages {
			if !client.SafeSend(msg) {
				log.Printf("[SessionManager] Failed to send to client %s (channel closed or full)", client.ID)
			}
		}
	}
}

func (sm *SessionManager) sendTo(client *Client, msg ServerMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[SessionManager] Error marshaling message for client %s: %v", client.ID, err)
		return
	}
	client.SafeSend(b)
}

// EndGameSession はゲームセッションを破棄し、接続中のクライアントを切断します。
func (sm *SessionManager) EndGameSession(gameID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.sessions[gameID]; !ok {
		return
	}
	delete(sm.sessions, gameID)
	for client := range sm.clients[gameID] {
		client.SafeClose()
	}
	delete(sm.clients, gameID)
	log.Printf("[SessionManager] Removed session %s from sessions map", gameID)
}

func (sm *SessionManager) lookup(gameID string) (*managedSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	ms, ok := sm.sessions[gameID]
	return ms, ok
}

func (sm *SessionManager) newProvider() tetris.KindProvider {
	if sm.cfg.NewProvider == nil {
		return nil
	}
	return sm.cfg.NewProvider()
}

// Shutdown はSessionManagerを安全にシャットダウンします。
// プレイ中のセッションは終了前に保存されます。
func (sm *SessionManager) Shutdown() {
	log.Printf("[SessionManager] シャットダウン開始...")
	sm.quitOnce.Do(func() { close(sm.quit) })

	now := sm.now()
	sm.mu.Lock()
	for _, ms := range sm.sessions {
		ms.mu.Lock()
		if ms.endedAt.IsZero() {
			sm.saveLocked(ms, now)
		}
		ms.mu.Unlock()
	}
	for _, set := range sm.clients {
		for client := range set {
			client.SafeClose()
		}
	}
	sm.clients = make(map[string]map[*Client]struct{})
	sm.sessions = make(map[string]*managedSession)
	sm.mu.Unlock()

	log.Printf("[SessionManager] シャットダウン完了")
}
