package settings

import (
	"context"
	"fmt"
	"strings"
)

// Content types accepted for the hospital logo.
var allowedLogoTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/svg+xml": true,
}

const maxLogoBytes = 2 << 20

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetAll(ctx context.Context) (map[string]string, error) {
	items, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		out[item.Key] = item.Value
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, key string) (*Setting, error) {
	return s.repo.Get(ctx, key)
}

func (s *Service) SetAll(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("setting key must not be empty")
		}
		if err := s.repo.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetLogo(ctx context.Context) (*Logo, error) {
	return s.repo.GetLogo(ctx)
}

func (s *Service) SetLogo(ctx context.Context, data []byte, contentType string) error {
	if len(data) == 0 {
		return fmt.Errorf("logo data is required")
	}
	if len(data) > maxLogoBytes {
		return fmt.Errorf("logo exceeds maximum size of %d bytes", maxLogoBytes)
	}
	if !allowedLogoTypes[contentType] {
		return fmt.Errorf("unsupported logo content type: %s", contentType)
	}
	return s.repo.SetLogo(ctx, &Logo{Data: data, ContentType: contentType})
}
