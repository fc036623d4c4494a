package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"travel_agent/src"
	"travel_agent/src/channel"
	"travel_agent/src/conversation"
	"travel_agent/src/llm"
	"travel_agent/src/llm/extract"
	"travel_agent/src/llm/recommend"
	"travel_agent/src/logger"
	"travel_agent/src/model"
	"travel_agent/src/session"
	"travel_agent/src/storage"
)

type app struct {
	store      *storage.Store
	snapshots  session.SnapshotStore
	registry   *session.Registry
	controller *conversation.Controller
}

type startOptions struct {
	UserID    string
	NewUserID string
}

func openStore(config model.StoreConfig) (*storage.Store, error) {
	embed, err := storage.NewEmbeddingFunc(config)
	if err != nil {
		return nil, err
	}
	return storage.NewStore(config, embed)
}

func newApp(ctx context.Context, cfg *src.Config, store *storage.Store) (*app, error) {
	oracle, err := llm.NewOracle(ctx, cfg.LLMConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}

	var snapshots session.SnapshotStore = session.NewMemorySnapshots(cfg.RedisConfig.SnapshotTTL)
	if cfg.RedisConfig.URL != "" {
		redisSnapshots, err := session.NewRedisSnapshots(ctx, cfg.RedisConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, keeping session snapshots in memory")
		} else {
			snapshots = redisSnapshots
		}
	}

	extractor, err := extract.NewExtractor(ctx, oracle, cfg.DialogueConfig)
	if err != nil {
		return nil, err
	}
	generator := recommend.NewGenerator(oracle, store, cfg.DialogueConfig)
	controller := conversation.NewController(store, extractor, generator, oracle, cfg.DialogueConfig)

	return &app{
		store:      store,
		snapshots:  snapshots,
		registry:   session.NewRegistry(store, snapshots, controller.NewState),
		controller: controller,
	}, nil
}

func (a *app) Close() error {
	return a.snapshots.Close()
}

// open resolves which user the session belongs to
func (a *app) open(ctx context.Context, opts startOptions, notice io.Writer) (*session.Session, error) {
	switch {
	case opts.NewUserID != "":
		return a.registry.Create(ctx, opts.NewUserID)
	case opts.UserID != "" && !a.store.Exists(opts.UserID):
		logger.Warn().Str("user_id", opts.UserID).Msg("unknown user id, starting a new profile")
		fmt.Fprintf(notice, "No profile found for user %s, starting a new one.\n", opts.UserID)
		return a.registry.GetOrCreate(ctx, "")
	default:
		return a.registry.GetOrCreate(ctx, opts.UserID)
	}
}

func (a *app) chat(ctx context.Context, ch channel.Channel, notice io.Writer, opts startOptions) error {
	sess, err := a.open(ctx, opts, notice)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.registry.End(context.WithoutCancel(ctx), sess.UserID); err != nil {
			logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("session snapshot not saved")
		}
	}()

	return sess.Exec(ctx, func(ctx context.Context, st *conversation.DialogueState) error {
		return converse(ctx, a.controller, st, ch)
	})
}

// converse runs turns until the dialogue is done or the user goes away.
// Storage failures abort only the turn they happen in.
func converse(ctx context.Context, ctrl *conversation.Controller, st *conversation.DialogueState, ch channel.Channel) error {
	reply, err := ctrl.Start(ctx, st)
	if werr := ch.Write(ctx, reply.Text); werr != nil {
		if errors.Is(werr, context.Canceled) {
			return nil
		}
		return werr
	}
	if err != nil {
		return err
	}

	for !reply.Done {
		text, err := ch.Read(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			logger.Info().Str("user_id", st.UserID).Str("phase", string(st.Phase)).Msg("input closed")
			return nil
		}
		if err != nil {
			return err
		}

		reply, err = ctrl.HandleTurn(ctx, st, text)
		if werr := ch.Write(ctx, reply.Text); werr != nil {
			if errors.Is(werr, context.Canceled) {
				logger.Info().Str("user_id", st.UserID).Str("phase", string(st.Phase)).Msg("interrupted")
				return nil
			}
			return werr
		}
		var se *model.StorageError
		if err != nil && !errors.As(err, &se) {
			return err
		}
	}
	return nil
}
