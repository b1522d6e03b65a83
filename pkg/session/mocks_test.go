package session

import (
	"context"

	"github.com/shouni/younger-self-kit/pkg/domain"
)

// --- Mocks ---

type mockNormalizer struct {
	payload domain.NormalizedPayload
	err     error
	calls   int
	lastSrc domain.SourceImage
}

func (m *mockNormalizer) Normalize(src domain.SourceImage) (domain.NormalizedPayload, error) {
	m.calls++
	m.lastSrc = src
	if m.err != nil {
		return domain.NormalizedPayload{}, m.err
	}
	return m.payload, nil
}

type mockGenerator struct {
	result      *domain.GenerationResult
	err         error
	calls       int
	lastPayload domain.NormalizedPayload
	lastPrompt  string
}

func (m *mockGenerator) Generate(ctx context.Context, payload domain.NormalizedPayload, prompt string) (*domain.GenerationResult, error) {
	m.calls++
	m.lastPayload = payload
	m.lastPrompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockPreview struct {
	revoked int
}

func (m *mockPreview) Revoke() {
	m.revoked++
}
