package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shouni/younger-self-kit/pkg/domain"
)

// State はセッションのライフサイクル状態です。
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateReviewing
	StateGenerating
	StateResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateReviewing:
		return "reviewing"
	case StateGenerating:
		return "generating"
	case StateResult:
		return "result"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// 送信失敗時にユーザーへ提示する固定文言。内部エラーの詳細はログにのみ残します。
const (
	msgProcessFailed  = "Failed to process image. Please try a different photo."
	msgGenerateFailed = "Failed to generate image. Please try again."
)

// ErrInvalidTransition は現在の状態で許可されていないイベントに対して返されます。
var ErrInvalidTransition = errors.New("現在の状態では許可されていない操作です")

// ErrNoSourceImage は元画像がない状態での送信に対して返されます。
var ErrNoSourceImage = errors.New("元画像が選択されていません")

// ErrEmptyPrompt はプロンプトが空（空白のみ）の状態での送信に対して返されます。
var ErrEmptyPrompt = errors.New("プロンプトが入力されていません")

// PayloadNormalizer は送信前の画像正規化を抽象化するインターフェースです。
type PayloadNormalizer interface {
	Normalize(src domain.SourceImage) (domain.NormalizedPayload, error)
}

// Generator は外部の生成コラボレーターを抽象化するインターフェースです。
// 1回の送信につき1回だけ呼び出されます。
type Generator interface {
	Generate(ctx context.Context, payload domain.NormalizedPayload, prompt string) (*domain.GenerationResult, error)
}

// Session は1ユーザーの対話を通じた可変状態の唯一の所有者です。
// すべての変更は定義済みの遷移を通じてのみ行われ、状態ガードにより
// 同時に複数の送信が進行することはありません。
type Session struct {
	normalizer PayloadNormalizer
	generator  Generator

	mu      sync.Mutex
	state   State
	source  *domain.SourceImage
	preview domain.PreviewRef
	prompt  string
	errMsg  string
	result  *domain.GenerationResult
}

// NewSession は依存関係を注入して初期状態 (Idle) の Session を返します。
func NewSession(normalizer PayloadNormalizer, generator Generator) (*Session, error) {
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	return &Session{
		normalizer: normalizer,
		generator:  generator,
		state:      StateIdle,
	}, nil
}

// SelectImage はアップロードされた画像を取り込み、Reviewing に遷移します。
// Reviewing からの再選択は初回選択と同じ扱いで、古い画像・プレビュー・
// エラー・生成結果をすべて破棄します。
func (s *Session) SelectImage(img domain.SourceImage, preview domain.PreviewRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle && s.state != StateReviewing {
		return ErrInvalidTransition
	}

	s.replaceImage(img, preview)
	s.state = StateReviewing
	return nil
}

// RequestCamera はカメラキャプチャの開始を記録し、Capturing に遷移します。
func (s *Session) RequestCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrInvalidTransition
	}
	s.state = StateCapturing
	return nil
}

// CaptureImage はキャプチャされた画像を取り込み、Reviewing に遷移します。
func (s *Session) CaptureImage(img domain.SourceImage, preview domain.PreviewRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return ErrInvalidTransition
	}

	s.replaceImage(img, preview)
	s.state = StateReviewing
	return nil
}

// CancelCapture はキャプチャを中止し、Idle に戻ります。
func (s *Session) CancelCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return ErrInvalidTransition
	}
	s.state = StateIdle
	return nil
}

// EditPrompt は Reviewing 中のプロンプト文字列のみを更新します。
func (s *Session) EditPrompt(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return ErrInvalidTransition
	}
	s.prompt = text
	return nil
}

// Submit は送信プロトコルを実行します: 正規化、続いて生成コラボレーター呼び出し。
// いずれかが失敗した場合は画像とプロンプトを保持したまま Reviewing に戻り、
// ユーザー向けのエラー文言を記録します。成功時は結果を保存して Result に遷移します。
// ガード条件（画像あり、かつトリム後プロンプトが非空）を満たさない場合、
// 状態は変化せずコラボレーターも呼び出されません。
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReviewing {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	if s.source == nil {
		s.mu.Unlock()
		return ErrNoSourceImage
	}
	if strings.TrimSpace(s.prompt) == "" {
		s.mu.Unlock()
		return ErrEmptyPrompt
	}

	src := *s.source
	prompt := s.prompt
	s.state = StateGenerating
	s.errMsg = ""
	s.mu.Unlock()

	// ペイロードは送信のたびに再計算し、保持しない
	payload, err := s.normalizer.Normalize(src)
	if err != nil {
		slog.WarnContext(ctx, "画像の正規化に失敗しました", "error", err)
		s.fail(msgProcessFailed)
		return err
	}

	result, err := s.generator.Generate(ctx, payload, prompt)
	if err != nil {
		slog.WarnContext(ctx, "画像の生成に失敗しました", "error", err)
		s.fail(generationMessage(err))
		return err
	}

	s.mu.Lock()
	s.result = result
	s.state = StateResult
	s.mu.Unlock()
	return nil
}

// Reset はセッションを初期状態に戻し、保持していたリソースをすべて破棄します。
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return nil
	case StateReviewing, StateResult:
	default:
		// Capturing は CancelCapture、Generating は完了待ちが正規の経路
		return ErrInvalidTransition
	}

	s.revokePreview()
	s.source = nil
	s.prompt = ""
	s.errMsg = ""
	s.result = nil
	s.state = StateIdle
	return nil
}

// State は現在のライフサイクル状態を返します。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Source は現在の元画像を返します。未選択の場合は nil です。
func (s *Session) Source() *domain.SourceImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Prompt は現在のプロンプト文字列を返します。
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// Err は直近の送信失敗のユーザー向け文言を返します。なければ空文字列です。
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Result は直近の生成結果を返します。なければ nil です。
func (s *Session) Result() *domain.GenerationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// replaceImage は元画像とプレビューを差し替え、古い画像に紐づく
// エラーと生成結果を破棄します。呼び出し側でロックを保持していること。
func (s *Session) replaceImage(img domain.SourceImage, preview domain.PreviewRef) {
	s.revokePreview()
	s.source = &img
	s.preview = preview
	s.errMsg = ""
	s.result = nil
}

func (s *Session) revokePreview() {
	if s.preview != nil {
		s.preview.Revoke()
		s.preview = nil
	}
}

// fail は送信失敗を Reviewing への復帰として適用します。画像とプロンプトは保持されます。
func (s *Session) fail(msg string) {
	s.mu.Lock()
	s.state = StateReviewing
	s.errMsg = msg
	s.mu.Unlock()
}

// generationMessage はコラボレーターの提供する文言を取り出します。
// 文言がない場合は固定のフォールバックに置き換えます。
func generationMessage(err error) string {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) && genErr.Message != "" {
		return genErr.Message
	}
	return msgGenerateFailed
}
