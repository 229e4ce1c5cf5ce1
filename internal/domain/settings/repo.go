package settings

import "context"

type Repository interface {
	GetAll(ctx context.Context) ([]*Setting, error)
	Get(ctx context.Context, key string) (*Setting, error)
	Set(ctx context.Context, key, value string) error
	GetLogo(ctx context.Context) (*Logo, error)
	SetLogo(ctx context.Context, logo *Logo) error
}
