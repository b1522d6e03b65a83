package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"

	"github.com/shouni/younger-self-kit/pkg/domain"
)

// GeminiGenerator は正規化済みペイロードとプロンプトから結果画像を生成するコラボレーターです。
// 1回の送信につき1回だけ Gemini を呼び出し、リトライは行いません。
type GeminiGenerator struct {
	aiClient gemini.GenerativeModel
	model    string
}

// NewGeminiGenerator は依存関係を注入して GeminiGenerator を初期化します。
func NewGeminiGenerator(aiClient gemini.GenerativeModel, model string) (*GeminiGenerator, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &GeminiGenerator{
		aiClient: aiClient,
		model:    model,
	}, nil
}

// Generate はプロンプトと画像を Gemini に送信し、結果画像の data URL を返します。
// 失敗はすべて *domain.GenerationError として返します。Message が空の場合、
// 呼び出し側はフォールバック文言に置き換えます。
func (g *GeminiGenerator) Generate(ctx context.Context, payload domain.NormalizedPayload, prompt string) (*domain.GenerationResult, error) {
	data, err := base64.StdEncoding.DecodeString(payload.Base64)
	if err != nil {
		return nil, &domain.GenerationError{Err: fmt.Errorf("ペイロードのデコードに失敗しました: %w", err)}
	}

	parts := []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{MIMEType: payload.MimeType, Data: data}},
	}

	slog.InfoContext(ctx, "Geminiに画像生成をリクエストします", "model", g.model, "payload_bytes", len(data))
	resp, err := g.aiClient.GenerateWithParts(ctx, g.model, parts, gemini.GenerateOptions{})
	if err != nil {
		// 通信・API層のエラーにはユーザー向け文言を付けない
		return nil, &domain.GenerationError{Err: fmt.Errorf("Gemini生成リクエストに失敗しました: %w", err)}
	}

	return parseToResult(resp)
}

// parseToResult は Gemini のレスポンスから最初の画像パーツを抽出します。
func parseToResult(resp *gemini.Response) (*domain.GenerationResult, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return nil, &domain.GenerationError{Message: "Geminiからの有効な応答がありませんでした"}
	}

	// 現在の仕様では、最初の候補 (Candidate) のみを利用する。
	candidate := resp.RawResponse.Candidates[0]

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				encoded := base64.StdEncoding.EncodeToString(part.InlineData.Data)
				return &domain.GenerationResult{
					ImageURL: "data:" + part.InlineData.MIMEType + ";base64," + encoded,
				}, nil
			}
		}
	}

	// 安全フィルター等によるブロックの確認
	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, &domain.GenerationError{
			Message: fmt.Sprintf("画像生成が異常終了しました (FinishReason: %s)", candidate.FinishReason),
		}
	}

	return nil, &domain.GenerationError{Message: "画像データが見つかりませんでした"}
}
