// Command zapflow runs the chat automation dispatcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/vfbarros/zapflow/internal/channels"
	"github.com/vfbarros/zapflow/internal/commands"
	"github.com/vfbarros/zapflow/internal/config"
	"github.com/vfbarros/zapflow/internal/plugins"
	"github.com/vfbarros/zapflow/internal/plugins/admin"
	"github.com/vfbarros/zapflow/internal/plugins/form"
	"github.com/vfbarros/zapflow/internal/plugins/menu"
	"github.com/vfbarros/zapflow/internal/router"
	"github.com/vfbarros/zapflow/internal/sendqueue"
	"github.com/vfbarros/zapflow/internal/state"
	"github.com/vfbarros/zapflow/internal/types"

	. "github.com/vfbarros/zapflow/internal/logging"

	"github.com/vfbarros/zapflow/internal/channels/whatsapp"
)

const version = "1.2.0"

type cli struct {
	Config string `help:"Path to the config file." type:"path"`

	Run     runCmd     `cmd:"" default:"withargs" help:"Run the bot."`
	Link    linkCmd    `cmd:"" help:"Pair a WhatsApp device via QR code."`
	Version versionCmd `cmd:"" help:"Print the version."`
}

type versionCmd struct{}

func (v *versionCmd) Run(root *cli) error {
	fmt.Printf("zapflow %s\n", version)
	return nil
}

type linkCmd struct{}

func (l *linkCmd) Run(root *cli) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	Init(&Config{Level: cfg.Log.Level, ShowCaller: cfg.Log.ShowCaller})
	return whatsapp.LinkDevice(cfg.Channels.WhatsApp.Database)
}

type runCmd struct{}

func (r *runCmd) Run(root *cli) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}

	Init(&Config{Level: cfg.Log.Level, ShowCaller: cfg.Log.ShowCaller})
	L_info("zapflow %s starting", version)

	// State store: load the snapshot, start persist/sweep timers.
	store := state.NewStore(cfg.State.File)
	store.Load()
	if err := store.StartTimers(state.TimerConfig{
		SaveIntervalMinutes: cfg.State.SaveIntervalMinutes,
		MaxAgeHours:         cfg.State.MaxAgeHours,
	}); err != nil {
		return err
	}

	// Channels and the outbound queue in front of them.
	manager := channels.NewManager()
	queue := sendqueue.New(manager.Transport(), sendqueue.Config{
		MinGap: time.Duration(cfg.SendQueue.MinGapMs) * time.Millisecond,
	})

	// Registry, router, plugins.
	registry := commands.New()
	commands.RegisterBuiltins(registry, cfg.Router.Prefix)

	dispatcher := router.New(router.Config{Prefix: cfg.Router.Prefix}, store, registry, queue)
	dispatcher.AddListener(func(ctx context.Context, msg *types.InboundMessage) {
		L_debug("router: plain message, no listener acted", "sender", msg.Sender)
	})

	host := plugins.NewHost(cfg.Plugins.Enabled, cfg.Plugins.Disabled)
	host.Load(form.New(), menu.New(), admin.New())
	host.InitializeAll(plugins.Deps{Outbox: queue, States: store})
	host.CollectCommands(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(ctx)
	go queue.Run(ctx)
	manager.StartAll(ctx, cfg.Channels, dispatcher)

	// Hot-reload the command prefix on config file changes.
	watcher, err := config.NewWatcher(root.Config, func(fresh *config.Config) {
		dispatcher.SetPrefix(fresh.Router.Prefix)
		SetLevel(fresh.Log.Level)
	})
	if err != nil {
		L_warn("config: watcher unavailable", "error", err)
	}

	L_info("zapflow ready", "prefix", cfg.Router.Prefix, "plugins", len(host.Plugins()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	L_info("zapflow shutting down")
	SetShuttingDown()

	manager.StopAll()
	cancel()
	dispatcher.Wait()
	queue.Wait()
	host.ShutdownAll()
	store.Shutdown()
	if watcher != nil {
		watcher.Stop()
	}

	L_info("zapflow stopped")
	return nil
}

func main() {
	var root cli
	ctx := kong.Parse(&root,
		kong.Name("zapflow"),
		kong.Description("Conversation dispatcher for WhatsApp and Telegram bots."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&root); err != nil {
		L_fatal("zapflow failed: %v", err)
	}
}
