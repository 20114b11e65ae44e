package wire

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"supportrelay/internal/assign"
	"supportrelay/internal/chat"
	"supportrelay/internal/common"
	"supportrelay/internal/config"
	"supportrelay/internal/dbmongo"
	"supportrelay/internal/events"
	"supportrelay/internal/memstore"
	"supportrelay/internal/moderation"
	"supportrelay/internal/relay"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Application struct {
	Config  *config.Config
	Handler http.Handler
	Events  *events.Manager
}

// Stores groups whatever the selected backend provides. Archive and Transcripts are nil for memory.
type Stores struct {
	Messages      common.MessageStore
	Conversations common.ConversationStore
	Archive       common.TranscriptArchive
	Transcripts   common.TranscriptReader
}

func ProvideStores(cfg *config.Config) (*Stores, func(), error) {
	switch cfg.Storage.Backend {
	case BackendMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		db := memstore.New()
		return &Stores{
			Messages:      db.MessageStore(),
			Conversations: db.ConversationStore(),
		}, func() {}, nil
	case BackendMongo, "":
		mc, err := dbmongo.NewMongoConnection(cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mc.Close(ctx); err != nil {
				log.WithError(err).Warn("mongo disconnect failed")
			}
		}
		archive := dbmongo.NewTranscriptArchive(mc)
		return &Stores{
			Messages:      dbmongo.NewMessageStore(mc),
			Conversations: dbmongo.NewConversationStore(mc),
			Archive:       archive,
			Transcripts:   archive,
		}, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func ProvideMessageStore(s *Stores) common.MessageStore {
	return s.Messages
}

func ProvideConversationStore(s *Stores) common.ConversationStore {
	return s.Conversations
}

func ProvideTranscriptArchive(cfg *config.Config, s *Stores) common.TranscriptArchive {
	if s.Archive == nil {
		return nil
	}
	return chat.ArchiveFor(cfg, s.Archive)
}

func ProvideTranscriptReader(s *Stores) common.TranscriptReader {
	return s.Transcripts
}

func ProvideEventManager(cfg *config.Config) (*events.Manager, func()) {
	m := events.NewManagerFromConfig(cfg)
	return m, m.Shutdown
}

func ProvideEngine(cfg *config.Config, conversations common.ConversationStore, messages common.MessageStore, manager *events.Manager) *assign.Engine {
	log.WithField("roster", cfg.Moderation.Roster).Info("moderator roster loaded")
	return assign.NewEngine(conversations, messages, cfg.Moderation.Roster, manager)
}

func ProvideGateway(
	messages common.MessageStore,
	conversations common.ConversationStore,
	completer common.Completer,
	engine *assign.Engine,
	manager *events.Manager,
	cfg *config.Config,
) *relay.Gateway {
	return relay.NewGateway(messages, conversations, completer, engine, manager, cfg)
}

func ProvideModerationService(messages common.MessageStore, conversations common.ConversationStore, engine *assign.Engine, manager *events.Manager) *moderation.Service {
	return moderation.NewService(messages, conversations, engine, manager)
}

func ProvideTokenIssuer(cfg *config.Config) *common.TokenIssuer {
	if cfg.Auth.JWTSecret == "" {
		log.Info("JWT_SECRET not set, bearer tokens are not required")
	}
	return common.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Hour)
}
