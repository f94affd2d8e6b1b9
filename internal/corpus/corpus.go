package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrEmpty は行が1つもないコーパスを作ろうとしたときに返る
var ErrEmpty = errors.New("corpus: no seed lines")

// maxLineSize はファイルから読む1行の上限
const maxLineSize = 1 << 20

// Corpus は順序付きの読み取り専用 seed 行
type Corpus struct {
	lines []string
}

// New は lines をコピーして Corpus を作る
func New(lines []string) (*Corpus, error) {
	if len(lines) == 0 {
		return nil, ErrEmpty
	}
	c := &Corpus{lines: make([]string, len(lines))}
	copy(c.lines, lines)
	return c, nil
}

// Len は行数を返す
func (c *Corpus) Len() int {
	return len(c.lines)
}

// Line は lines[i mod Len()] を返す
func (c *Corpus) Line(i uint64) string {
	return c.lines[i%uint64(len(c.lines))]
}

// Lines は seed 行のコピーを返す
func (c *Corpus) Lines() []string {
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Load はコーパスファイルを1行1 seed として読む。空行は読み飛ばす。
// .gz と .zst は展開して読む。
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip corpus: %w", err)
		}
		defer gz.Close()
		r = gz
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd corpus: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	c, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Read は r から1行1 seed でコーパスを作る
func Read(r io.Reader) (*Corpus, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return New(lines)
}

// Synthetic は seed から lineLen バイトの行を n 本生成する。
// シード付きの乱数源から UUID を作るので、同じ引数なら同じコーパスになる。
func Synthetic(n, lineLen int, seed int64) (*Corpus, error) {
	if n <= 0 {
		return nil, ErrEmpty
	}
	if lineLen <= 0 {
		return nil, fmt.Errorf("corpus: line length must be positive, got %d", lineLen)
	}

	rg := rand.New(rand.NewSource(seed))
	lines := make([]string, n)
	var sb strings.Builder
	for i := range n {
		sb.Reset()
		for sb.Len() < lineLen {
			id, err := uuid.NewRandomFromReader(rg)
			if err != nil {
				return nil, fmt.Errorf("corpus: generate line %d: %w", i, err)
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(id.String())
		}
		lines[i] = sb.String()[:lineLen]
	}
	return &Corpus{lines: lines}, nil
}
