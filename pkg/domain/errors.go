package domain

import "errors"

// ErrImageRead は元画像のバイト列を読み込めなかったことを示します。
var ErrImageRead = errors.New("画像データの読み込みに失敗しました")

// ErrImageDecode はバイト列をラスター画像としてデコードできなかったことを示します。
var ErrImageDecode = errors.New("画像としてデコードできませんでした")

// GenerationError は生成コラボレーターの失敗を表します。
// Message はユーザーにそのまま提示できる説明文で、空の場合は
// 呼び出し側が固定のフォールバック文言に置き換えます。
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return "画像生成に失敗しました: " + e.Err.Error()
	}
	if e.Message != "" {
		return "画像生成に失敗しました: " + e.Message
	}
	return "画像生成に失敗しました"
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
