// Package telegram adapts the MTProto user session (gotd/td) to the
// auto-comment engine: update routing, channel lookups, comment delivery,
// operator reports and command replies.
package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/updates"
	updhook "github.com/gotd/td/telegram/updates/hook"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// Config holds the session parameters.
type Config struct {
	AppID       int
	AppHash     string
	Phone       string
	Password    string // two-step verification password, if enabled
	SessionFile string

	// CodeInput supplies the login code on first run. Defaults to stdin.
	CodeInput io.Reader
}

// Client owns the MTProto connection and the update pipeline.
type Client struct {
	cfg        Config
	client     *telegram.Client
	gaps       *updates.Manager
	dispatcher tg.UpdateDispatcher
	backend    *Backend
	logger     logging.Logger
	connected  atomic.Bool
}

// NewClient prepares a client; nothing is dialled until Run.
func NewClient(cfg Config, logger logging.Logger, backendLog *zap.Logger) *Client {
	if cfg.CodeInput == nil {
		cfg.CodeInput = os.Stdin
	}
	dispatcher := tg.NewUpdateDispatcher()
	gaps := updates.New(updates.Config{
		Handler: dispatcher,
		Logger:  backendLog.Named("gaps"),
	})
	client := telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		Logger:         backendLog,
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		UpdateHandler:  gaps,
		Middlewares: []telegram.Middleware{
			updhook.UpdateHook(gaps.Handle),
		},
	})

	return &Client{
		cfg:        cfg,
		client:     client,
		gaps:       gaps,
		dispatcher: dispatcher,
		backend:    NewBackend(client.API(), NewPeerCache(), logger),
		logger:     logger,
	}
}

// Backend is the engine-facing side of the session.
func (c *Client) Backend() *Backend { return c.backend }

// Ping fails until the session is authorised and connected.
func (c *Client) Ping(ctx context.Context) error {
	if !c.connected.Load() {
		return errors.New("telegram session not connected")
	}
	return c.backend.Ping(ctx)
}

// Run connects, logs in if needed and streams updates into router until ctx ends.
func (c *Client) Run(ctx context.Context, router *Router) error {
	router.Register(c.dispatcher)

	return c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.authenticate(ctx); err != nil {
			return fmt.Errorf("telegram login: %w", err)
		}
		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("fetch self: %w", err)
		}
		router.SetSelf(self.ID)
		c.connected.Store(true)
		defer c.connected.Store(false)

		c.logger.WithFields(logging.Fields{
			"user_id":  self.ID,
			"username": self.Username,
		}).Info("Telegram session established")

		if err := c.backend.Warm(ctx); err != nil {
			c.logger.WithError(err).Warn("Could not preload chats; names resolve as updates arrive")
		}

		return c.gaps.Run(ctx, c.client.API(), self.ID, updates.AuthOptions{
			OnStart: func(context.Context) {
				c.logger.Info("Listening for channel posts")
			},
		})
	})
}

func (c *Client) authenticate(ctx context.Context) error {
	flow := auth.NewFlow(
		auth.Constant(c.cfg.Phone, c.cfg.Password, auth.CodeAuthenticatorFunc(c.readCode)),
		auth.SendCodeOptions{},
	)
	return c.client.Auth().IfNecessary(ctx, flow)
}

func (c *Client) readCode(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Fprint(os.Stderr, "Enter the login code sent to your Telegram app: ")

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(c.cfg.CodeInput).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			done <- result{err: fmt.Errorf("read login code: %w", err)}
			return
		}
		done <- result{code: strings.TrimSpace(line)}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.code, r.err
	}
}
