package imgutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/shouni/younger-self-kit/pkg/domain"
)

const (
	// DefaultMaxWidth / DefaultMaxHeight は正規化後の各軸の上限ピクセル数です。
	DefaultMaxWidth  = 1024
	DefaultMaxHeight = 1024
	// DefaultQuality は JPEG 再エンコード時の品質係数 (0, 1] です。
	DefaultQuality = 0.8

	// 出力フォーマットは JPEG 固定です。
	outputMimeType = "image/jpeg"
)

// Normalizer は任意のラスター画像を送信可能なサイズに正規化するコンポーネントです。
// 各軸の上限を超える画像はアスペクト比を維持したまま縮小し、
// 上限以内の画像はそのままの寸法で再エンコードします（拡大は行いません）。
type Normalizer struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
}

// DefaultNormalizer は既定の設定（1024x1024、品質0.8）で Normalizer を返します。
func DefaultNormalizer() *Normalizer {
	return &Normalizer{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
	}
}

// Normalize は SourceImage を正規化し、Base64 エンコード済みのペイロードを返します。
// デコード不能な入力には domain.ErrImageDecode をラップしたエラーを返します。
func (n *Normalizer) Normalize(src domain.SourceImage) (domain.NormalizedPayload, error) {
	return n.normalize(src.Data)
}

// NormalizeReader はリーダーから画像を読み込んで正規化します。
// 読み込み自体の失敗は domain.ErrImageRead として区別されます。
func (n *Normalizer) NormalizeReader(r io.Reader) (domain.NormalizedPayload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.NormalizedPayload{}, fmt.Errorf("%w: %v", domain.ErrImageRead, err)
	}
	return n.normalize(data)
}

func (n *Normalizer) normalize(data []byte) (domain.NormalizedPayload, error) {
	if n.MaxWidth <= 0 || n.MaxHeight <= 0 {
		return domain.NormalizedPayload{}, fmt.Errorf("サイズ上限が不正です: %dx%d", n.MaxWidth, n.MaxHeight)
	}
	if n.Quality <= 0 || n.Quality > 1 {
		return domain.NormalizedPayload{}, fmt.Errorf("品質係数が不正です: %v", n.Quality)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.NormalizedPayload{}, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	targetW, targetH := boundedSize(width, height, n.MaxWidth, n.MaxHeight)

	if targetW != width || targetH != height {
		dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
	}

	buf := new(bytes.Buffer)
	quality := int(n.Quality * 100)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return domain.NormalizedPayload{}, fmt.Errorf("JPEGエンコードに失敗しました: %w", err)
	}

	return domain.NormalizedPayload{
		Base64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType: outputMimeType,
		Width:    targetW,
		Height:   targetH,
	}, nil
}

// boundedSize は上限を超える場合のみ、大きい方の超過率で両軸を縮小した寸法を返します。
func boundedSize(width, height, maxW, maxH int) (int, int) {
	if width <= maxW && height <= maxH {
		return width, height
	}

	ratioW := float64(width) / float64(maxW)
	ratioH := float64(height) / float64(maxH)
	ratio := ratioW
	if ratioH > ratio {
		ratio = ratioH
	}

	w := int(float64(width)/ratio + 0.5)
	h := int(float64(height)/ratio + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w > maxW {
		w = maxW
	}
	if h > maxH {
		h = maxH
	}
	return w, h
}
