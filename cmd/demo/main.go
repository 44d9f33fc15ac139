// Command demo signs in against a HostBridge deployment and lists a table,
// exercising the SDK end to end. Configuration comes from the environment:
// HOSTBRIDGE_BASE_URL, HOSTBRIDGE_APP_ID, HOSTBRIDGE_EMAIL,
// HOSTBRIDGE_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	hostbridge "github.com/hostbridge/hostbridge-go"
	"github.com/hostbridge/hostbridge-go/internal/config"
	"github.com/hostbridge/hostbridge-go/internal/utils"
	"github.com/hostbridge/hostbridge-go/session"
	"github.com/hostbridge/hostbridge-go/storage"
	"github.com/hostbridge/hostbridge-go/tables"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	store, err := storage.NewFile(c.GetDataFolder())
	if err != nil {
		return err
	}

	client, err := hostbridge.New(hostbridge.Config{
		BaseURL: c.GetBaseURL(),
		AppID:   c.GetAppID(),
	},
		hostbridge.WithLogger(logger),
		hostbridge.WithStorage(store),
	)
	if err != nil {
		return err
	}

	unsubscribe := client.Auth().Subscribe(func(user *session.User) {
		if user == nil {
			logger.Info().Msg("signed out")
			return
		}
		logger.Info().Str("user", user.ID).Str("email", user.Email).Msg("signed in")
	})
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !client.Auth().EnsureSession(ctx) {
		if _, err := client.Auth().SignIn(ctx, session.Credentials{
			Email:    c.GetEmail(),
			Password: c.GetPassword(),
		}); err != nil {
			return err
		}
	}

	records, err := client.Table("notes").List(ctx, tables.ListParams{Limit: utils.Ptr(10)})
	if err != nil {
		return err
	}
	for _, record := range records {
		logger.Info().Interface("record", record).Msg("note")
	}

	client.Auth().SignOut()
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
