package usecase

import (
	"github.com/secmon-lab/kioku/pkg/domain/interfaces"
	"github.com/secmon-lab/kioku/pkg/service/intervalcache"
)

type UseCases struct {
	cache   *intervalcache.Cache
	archive interfaces.MessageRepository
	Message *MessageUseCase
}

type Option func(*UseCases)

// WithArchive enables importing messages into the archive repository
func WithArchive(repo interfaces.MessageRepository) Option {
	return func(uc *UseCases) {
		uc.archive = repo
	}
}

func New(cache *intervalcache.Cache, opts ...Option) *UseCases {
	uc := &UseCases{
		cache: cache,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Message = NewMessageUseCase(cache, uc.archive)

	return uc
}
