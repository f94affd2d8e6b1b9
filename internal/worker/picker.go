package worker

import "math/rand"

// Picker は次に操作するインデックスを選ぶ。ワーカーごとに1つ持つ。
type Picker interface {
	Next() uint64
}

// HotPicker はホットキー集合 [0, hot) から一様に選ぶ
type HotPicker struct {
	rg  *rand.Rand
	hot int
}

// NewHotPicker は新しい HotPicker を作成する。hot が 0 以下なら 1 とみなす。
func NewHotPicker(hot int, seed int64) *HotPicker {
	return &HotPicker{
		rg:  rand.New(rand.NewSource(seed)),
		hot: max(hot, 1),
	}
}

// Next は次のインデックスを返す
func (p *HotPicker) Next() uint64 {
	return uint64(p.rg.Intn(p.hot))
}

// SequentialPicker は start から keyCount までを順に巡回する
type SequentialPicker struct {
	next     uint64
	keyCount uint64
}

// NewSequentialPicker は新しい SequentialPicker を作成する
func NewSequentialPicker(start, keyCount int) *SequentialPicker {
	n := uint64(max(keyCount, 1))
	return &SequentialPicker{next: uint64(max(start, 0)) % n, keyCount: n}
}

// Next は次のインデックスを返す
func (p *SequentialPicker) Next() uint64 {
	i := p.next
	p.next = (p.next + 1) % p.keyCount
	return i
}
