// Package corpus はキーと値の生成元になる seed 行を保持する。
//
// Corpus はフェーズ開始前に一度だけ読み込まれ、以後は変更されない。
// インデックスは行数で剰余を取るので、無限のインデックス空間が有限の行に対応する。
package corpus
