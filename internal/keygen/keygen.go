// Package keygen はインデックスを決定的なキー/値のペアに対応付ける。
//
// L 行のコーパスに対し、値は i mod L 行目、キーはその値の先頭 PrefixLen バイトと
// i の10進表記を連結したもの。populate、validate、全ワーカーが同じ対応を使う。
package keygen

import (
	"math"
	"strconv"

	"kvstress/internal/corpus"
)

// PrefixLen はキーにコピーする値の先頭バイト数
const PrefixLen = 30

// Generator はコーパスからキー/値を生成する
type Generator struct {
	corpus *corpus.Corpus
}

// New は c を元にした Generator を返す
func New(c *corpus.Corpus) *Generator {
	return &Generator{corpus: c}
}

// Pair はインデックス i のキーと値を返す
func (g *Generator) Pair(i uint64) (key, value string) {
	value = g.corpus.Line(i)
	return Key(value, i), value
}

// Key は値とインデックスからキーを組み立てる
func Key(value string, i uint64) string {
	prefix := value
	if len(prefix) > PrefixLen {
		prefix = prefix[:PrefixLen]
	}
	buf := make([]byte, 0, len(prefix)+20)
	buf = append(buf, prefix...)
	buf = strconv.AppendUint(buf, i, 10)
	return string(buf)
}

// Generate は行スライスを直接受け取る Pair。lines が空なら corpus.ErrEmpty
func Generate(i uint64, lines []string) (key, value string, err error) {
	if len(lines) == 0 {
		return "", "", corpus.ErrEmpty
	}
	value = lines[i%uint64(len(lines))]
	return Key(value, i), value, nil
}

// HitKeyCount は round(keyCount * hitPercent / 100) を返す。
// 0.5 は切り上げ、結果は [0, keyCount] に収める。
func HitKeyCount(keyCount, hitPercent int) int {
	if keyCount <= 0 || hitPercent <= 0 {
		return 0
	}
	n := int(math.Floor(float64(keyCount)*float64(hitPercent)/100 + 0.5))
	return min(n, keyCount)
}
