package models

import (
	"strings"
	"time"
)

const (
	LeaderboardSize   = 10    // ランキングに残す最大件数
	MaxNameLength     = 10    // プレイヤー名の最大文字数
	DefaultPlayerName = "AAA" // 名前が空の場合に使う名前
)

// LeaderboardEntry はleaderboard_entriesテーブルのレコードに対応する構造体です。
type LeaderboardEntry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`  // 大文字・最大10文字
	Score     int       `json:"score"`
	Level     int       `json:"level"`
	Lines     int       `json:"lines"`
	CreatedAt time.Time `json:"date"`
}

// LeaderboardEntryResponse はAPI レスポンス用の構造体です。
type LeaderboardEntryResponse struct {
	LeaderboardEntry
	Rank int `json:"rank"` // ランキング順位（1始まり）
}

// LeaderboardEntryRequest はスコア登録リクエスト用の構造体です。
type LeaderboardEntryRequest struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Level int    `json:"level"`
	Lines int    `json:"lines"`
}

// AddScoreResponse はスコア登録の結果です。Rank が 0 の場合はランキング外です。
type AddScoreResponse struct {
	Rank    int                `json:"rank"`
	Entries []LeaderboardEntry `json:"entries"`
}

// HighScoreCheckResponse はハイスコア判定の結果です。
type HighScoreCheckResponse struct {
	Score       int  `json:"score"`
	IsHighScore bool `json:"is_high_score"`
}

// NormalizePlayerName はプレイヤー名を登録用の形式に揃えます。
// 前後の空白を除いて空なら "AAA"、それ以外は先頭10文字を大文字にします。
func NormalizePlayerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultPlayerName
	}
	runes := []rune(name)
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	return strings.ToUpper(string(runes))
}
