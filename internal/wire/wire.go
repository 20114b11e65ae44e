//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"supportrelay/internal/chat"
	"supportrelay/internal/config"
	"supportrelay/internal/httpapi"
	"supportrelay/internal/provider"
)

func InitializeApplication(cfg *config.Config) (*Application, func(), error) {
	wire.Build(
		ProvideStores, // picks mongo or memory from cfg.Storage.Backend
		ProvideMessageStore,
		ProvideConversationStore,
		ProvideTranscriptArchive,
		ProvideTranscriptReader,
		provider.New,
		ProvideEventManager,
		ProvideEngine,
		ProvideGateway,
		chat.NewChatService,
		ProvideModerationService,
		ProvideTokenIssuer,
		httpapi.NewHandler,
		httpapi.NewRouter,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil, nil
}
