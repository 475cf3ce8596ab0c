package tetris

import (
	"strings"
	"time"
)

// Difficulty はゲームの難易度タグです。落下速度とスコア倍率の両方に影響します。
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ゲーム全体に影響する定数
const (
	LevelUpLines      = 5  // レベルアップに必要なライン数（5ラインごとにレベルアップ）
	MinDropIntervalMs = 30 // 落下間隔の下限
	HardDropBonus     = 2  // ハードドロップ1行あたりのボーナス
	SoftDropBonus     = 1  // ソフトドロップ1行あたりのボーナス
	TetrisLines       = 4  // 一度に4ライン消すと「テトリス」
)

// speedTable はレベルごとの基本落下間隔(ms)です。レベル13以降は最後の値を使います。
var speedTable = [...]int{
	1000, // Level 1
	800,  // Level 2
	650,  // Level 3
	500,  // Level 4
	400,  // Level 5
	300,  // Level 6
	250,  // Level 7
	200,  // Level 8
	150,  // Level 9
	100,  // Level 10
	80,   // Level 11
	60,   // Level 12
	50,   // Level 13+
}

// 倍率は浮動小数点の誤差で floor がずれないよう、整数（百分率・10分率）で持ちます。
var (
	difficultySpeedPercent = map[Difficulty]int{
		DifficultyEasy:   100,
		DifficultyMedium: 70,
		DifficultyHard:   50,
	}
	difficultyScoreTenths = map[Difficulty]int{
		DifficultyEasy:   10,
		DifficultyMedium: 15,
		DifficultyHard:   25,
	}
	lineBonusTenths = map[int]int{
		1: 10,  // Single
		2: 25,  // Double
		3: 50,  // Triple
		4: 100, // Tetris
	}
)

// ParseDifficulty は文字列を難易度に変換します。大文字小文字と前後の空白は無視します。
func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := difficultySpeedPercent[d]; !ok {
		return DifficultyEasy, false
	}
	return d, true
}

// normalizeDifficulty は未知の難易度を easy として扱います。
func normalizeDifficulty(d Difficulty) Difficulty {
	if _, ok := difficultySpeedPercent[d]; !ok {
		return DifficultyEasy
	}
	return d
}

// ComputeDropInterval はレベルと難易度から自動落下の間隔(ms)を計算します。
// 基本値 speedTable[min(level-1, 12)] に難易度係数を掛けて切り捨て、30ms を下限とします。
func ComputeDropInterval(level int, d Difficulty) int {
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(speedTable)-1 {
		idx = len(speedTable) - 1
	}

	ms := speedTable[idx] * difficultySpeedPercent[normalizeDifficulty(d)] / 100
	if ms < MinDropIntervalMs {
		ms = MinDropIntervalMs
	}
	return ms
}

// GetFallInterval は ComputeDropInterval の結果を time.Duration で返します。
func GetFallInterval(level int, d Difficulty) time.Duration {
	return time.Duration(ComputeDropInterval(level, d)) * time.Millisecond
}

// LineBonus は同時に消したライン数に対するボーナス倍率です。1〜4 以外は 1.0 を返します。
func LineBonus(lines int) float64 {
	return float64(lineBonusTenthsFor(lines)) / 10
}

// DifficultyScoreMultiplier は難易度ごとのスコア倍率です。未知の難易度は 1.0 を返します。
func DifficultyScoreMultiplier(d Difficulty) float64 {
	return float64(difficultyScoreTenthsFor(d)) / 10
}

func lineBonusTenthsFor(lines int) int {
	if b, ok := lineBonusTenths[lines]; ok {
		return b
	}
	return 10
}

func difficultyScoreTenthsFor(d Difficulty) int {
	if m, ok := difficultyScoreTenths[d]; ok {
		return m
	}
	return 10
}

// CalculateScore はラインクリアで獲得するスコアを計算します。
//
//	points = floor(100 * lines * (1 + level*0.5) * LineBonus(lines) * DifficultyScoreMultiplier(d))
//
// (1 + level*0.5) = (2+level)/2、各倍率は10分率なので、整数のまま計算して最後に切り捨てます。
//
// Parameters:
//
//	clearedLines : 同時にクリアしたライン数 (1-4)
//	level        : クリア時点のレベル
//	d            : 難易度
//
// Returns:
//
//	int: 獲得スコア（clearedLines <= 0 の場合は 0）
func CalculateScore(clearedLines int, level int, d Difficulty) int {
	if clearedLines <= 0 {
		return 0
	}
	bonus := lineBonusTenthsFor(clearedLines)
	mult := difficultyScoreTenthsFor(d)
	return clearedLines * (2 + level) * bonus * mult / 2
}

// LevelForLines は累計ライン数から到達レベルを計算します。
func LevelForLines(totalLines int) int {
	if totalLines < 0 {
		totalLines = 0
	}
	return totalLines/LevelUpLines + 1
}
