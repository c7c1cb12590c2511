package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ThreadBot/core"
	"ThreadBot/core/database"
	"ThreadBot/core/dispatch"
	_ "ThreadBot/core/dispatch/handlers" // Load the handlers to let them self-register
	"ThreadBot/core/services"
)

const sweepInterval = time.Minute

func main() {
	if err := newCLIApp().Run(os.Args); err != nil {
		core.LogFatal("ThreadBot failed: ", err)
	}
}

func runBot(settingsFile string) error {
	// LoadSettings opens the log file when one is configured.
	core.LoadSettings(settingsFile)
	defer core.CloseLog()
	core.LogInfoF("Category cooldowns: %v", core.Settings.CategoryCooldowns())

	if err := database.InitializeDatabase(core.Settings.Database()); err != nil {
		return err
	}
	defer database.Close()

	// Stop on CTRL-C or other term signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, closeState, err := initState(ctx)
	if err != nil {
		return err
	}
	defer closeState()

	discord, err := services.NewDiscord(core.Settings.AuthToken(), core.Settings.SendRate())
	if err != nil {
		return err
	}

	config := dispatch.ConfigFromSettings(&core.Settings)
	config.PrefixFor = services.ThreadPrefix
	config.Admins = discord
	config.Log = dispatch.MultiLog{dispatch.LoggerSink{}, database.DispatchSink{}}

	dispatcher := dispatch.New(config, dispatch.Commands, state)
	dispatcher.AddListener(services.ActivityListener(nil))
	discord.OnMessage(func(e *dispatch.Event) {
		dispatcher.Dispatch(ctx, e)
	})

	// Open a websocket connection to Discord and begin listening.
	if err := discord.Open(); err != nil {
		return err
	}
	defer discord.Close()

	if addr := core.Settings.StatusAddr(); addr != "" {
		status := services.NewStatusServer(addr, dispatcher)
		status.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := status.Shutdown(shutdownCtx); err != nil {
				core.LogErrorF("Status server shutdown failed: %s", err)
			}
		}()
	}

	core.LogInfoF("Bot is now running with %d commands.  Press CTRL-C to exit.", dispatch.Commands.Len())
	<-ctx.Done()
	core.LogInfo("Shutting down")
	return nil
}

func initState(ctx context.Context) (dispatch.State, func(), error) {
	switch core.Settings.StateBackend() {
	case "redis":
		redisState, err := services.NewRedisState(services.RedisConfig{
			Addr:     core.Settings.RedisAddr(),
			Password: core.Settings.RedisPassword(),
			DB:       core.Settings.RedisDB(),
		})
		if err != nil {
			return dispatch.State{}, nil, err
		}
		core.LogInfoF("Using redis dispatch state at %s", core.Settings.RedisAddr())
		return redisState.State(), func() {
			if err := redisState.Close(); err != nil {
				core.LogErrorF("Failed to close redis state: %s", err)
			}
		}, nil
	default:
		memory := dispatch.NewMemoryState()
		memory.StartSweeper(ctx, sweepInterval)
		return memory.State(), func() {}, nil
	}
}
