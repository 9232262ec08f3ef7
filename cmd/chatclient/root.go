package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"roomchat/internal/presence"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	serverURLKey = "server"
	aliasKey     = "alias"
	verboseKey   = "verbose"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "chatclient <room-id>",
	Short: "Terminal client for roomchat rooms.",
	Long: `Joins a room over WebSocket and relays stdin lines as chat messages.

Commands typed on stdin:
  /nick <alias>   claim an alias (required before sending)
  /quit           leave the room`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool(verboseKey) {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()
			zap.ReplaceGlobals(logger)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		socket := presence.NewWSSocket(viper.GetString(serverURLKey))
		hook := presence.Mount(socket, presence.Options{RoomID: args[0]})
		defer hook.Unmount()

		return run(ctx, hook, viper.GetString(aliasKey), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.roomchat.yaml)")
	rootCmd.Flags().String("server", "ws://localhost:8085/ws", "WebSocket endpoint of the chat server")
	rootCmd.Flags().String("alias", "", "alias to claim on every (re)connect")
	rootCmd.Flags().BoolP("verbose", "v", false, "log transport activity to stderr")

	_ = viper.BindPFlag(serverURLKey, rootCmd.Flags().Lookup("server"))
	_ = viper.BindPFlag(aliasKey, rootCmd.Flags().Lookup("alias"))
	_ = viper.BindPFlag(verboseKey, rootCmd.Flags().Lookup("verbose"))
}

// initConfig reads in config file and ROOMCHAT_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".roomchat")
	}

	viper.SetEnvPrefix("ROOMCHAT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// run pumps stdin lines into the hook and prints room events until ctx ends,
// stdin closes or the user types /quit.
func run(ctx context.Context, hook *presence.Hook, alias string, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-hook.Events():
			if !ok {
				return nil
			}
			// Re-claim the alias after each (re)join.
			if _, joined := ev.(presence.Connected); joined && alias != "" {
				hook.SetAlias(alias)
			}
			if _, rejected := ev.(presence.AliasRejected); rejected {
				alias = ""
			}
			fmt.Fprintln(out, render(ev))

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == "/quit":
				return nil
			case strings.HasPrefix(line, "/nick "):
				alias = strings.TrimSpace(strings.TrimPrefix(line, "/nick "))
				if !hook.Connected() {
					fmt.Fprintln(out, "* offline, alias will be claimed on connect")
					continue
				}
				hook.SetAlias(alias)
			default:
				if !hook.Connected() {
					fmt.Fprintln(out, "* offline, message not sent")
					continue
				}
				hook.SendMessage(alias, line)
			}
		}
	}
}

func render(ev presence.Event) string {
	switch e := ev.(type) {
	case presence.Connected:
		return "* connected"
	case presence.Disconnected:
		return "* disconnected, reconnecting…"
	case presence.UsersUpdated:
		return "* in room: " + strings.Join(e.Aliases, ", ")
	case presence.AliasRejected:
		return "* alias rejected: " + e.Reason
	case presence.NewMessage:
		return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Local().Format("15:04"), e.Alias, e.Message)
	default:
		return fmt.Sprintf("* %T", ev)
	}
}
