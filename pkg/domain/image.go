package domain

// SourceImage はユーザーが提供した未加工の写真データです。
// アップロードまたはカメラキャプチャで生成され、セッションが排他的に所有します。
type SourceImage struct {
	Data     []byte
	MimeType string
}

// NormalizedPayload は送信用に正規化された画像ペイロードです。
// Base64 には data URL プレフィックスを含まない生のエンコード結果のみを保持します。
type NormalizedPayload struct {
	Base64   string
	MimeType string
	Width    int
	Height   int
}

// GenerationResult は生成コラボレーターが返した結果画像の参照です。
// ImageURL はそのまま表示・ダウンロードに利用できる data URL です。
type GenerationResult struct {
	ImageURL string
}

// PreviewRef は表示用プレビューの一時リソースへのハンドルです。
// 元画像が差し替えられた時、またはリセット時に必ず Revoke されます。
type PreviewRef interface {
	Revoke()
}
