package scenario

import "time"

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	c := DefaultConfig()
	c.Name = "quick"
	c.Description = "Quick run for verification"
	c.KeyCount = 10000
	c.HitPercent = 50
	c.Readers = 2
	c.Writers = 2
	c.TotalDuration = 6 * time.Second
	c.HeartbeatInterval = time.Second
	c.ValidateBudget = 10 * time.Second
	return c
}

// StandardScenario は標準的なシナリオを返す
func StandardScenario() Config {
	c := DefaultConfig()
	c.Name = "standard"
	c.Description = "Standard load and validation run"
	return c
}

// ReadHeavyScenario は読み込み中心のシナリオを返す
func ReadHeavyScenario() Config {
	c := DefaultConfig()
	c.Name = "read-heavy"
	c.Description = "Many readers on a small hot set"
	c.HitPercent = 5
	c.Readers = 16
	c.Writers = 1
	c.TotalDuration = 60 * time.Second
	return c
}

// WriteHeavyScenario は書き込み中心のシナリオを返す
// Writer は全キーを順に巡回する
func WriteHeavyScenario() Config {
	c := DefaultConfig()
	c.Name = "write-heavy"
	c.Description = "Many writers cycling the whole key space"
	c.HitPercent = 100
	c.Readers = 2
	c.Writers = 8
	c.TotalDuration = 60 * time.Second
	c.WriteMode = WriteModeSequential
	return c
}

// SoakScenario は長時間シナリオを返す
func SoakScenario() Config {
	c := DefaultConfig()
	c.Name = "soak"
	c.Description = "Long run over a large key space"
	c.KeyCount = 1000000
	c.HitPercent = 10
	c.Readers = 4
	c.Writers = 4
	c.TotalDuration = 30 * time.Minute
	return c
}

var presets = map[string]func() Config{
	"quick":       QuickScenario,
	"standard":    StandardScenario,
	"read-heavy":  ReadHeavyScenario,
	"write-heavy": WriteHeavyScenario,
	"soak":        SoakScenario,
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"quick", "standard", "read-heavy", "write-heavy", "soak"}
}
