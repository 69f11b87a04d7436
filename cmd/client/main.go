package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/domain"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects to the relay, joins one channel and renders its live state.
// Every line typed on stdin is sent as a typing:start for that channel.
func run() (int, error) {
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := client.NewStore(log, client.DefaultTypingTimeout)
	defer store.Close()
	conn := client.NewConn(log, client.DefaultConfig(config.URL, config.Token), store)
	if err := conn.Connect(ctx); err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- conn.Run(ctx) }()

	joinCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.JoinChannel(joinCtx, config.ChannelID); err != nil {
		return exitRuntime, fmt.Errorf("join %s: %w", config.ChannelID, err)
	}
	log.Info(fmt.Sprintf(">>> Connected to %s, watching channel %s (Ctrl+C to quit)", config.URL, config.ChannelID))

	go forwardTyping(conn, config)

	ticker := time.NewTicker(config.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-runErr:
			if err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		case <-ticker.C:
			render(store, config)
		}
	}
}

func forwardTyping(conn *client.Conn, config Config) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			_ = conn.StopTyping(config.ChannelID)
			continue
		}
		_ = conn.StartTyping(config.ChannelID, config.UserName)
	}
}

func render(store *client.Store, config Config) {
	header := fmt.Sprintf("  ====== #%s ======", config.ChannelID)
	if config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Id", "Author", "Presence", "At", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	for _, m := range store.Messages(config.ChannelID) {
		table.Append([]string{
			m.ID,
			string(m.UserID),
			presenceLabel(store.Presence(m.UserID), config.Colours),
			m.CreatedAt.Format("15:04:05"),
			m.Content,
		})
	}
	table.Render()

	if typing := store.Typing(config.ChannelID); len(typing) > 0 {
		line := strings.Join(typing, ", ") + " typing..."
		if config.Colours {
			line = color.FgGray.Render(line)
		}
		fmt.Println(line)
	}
}

func presenceLabel(status domain.PresenceStatus, colours bool) string {
	if !colours {
		return string(status)
	}
	switch status {
	case domain.Online:
		return color.FgGreen.Render(string(status))
	case domain.Away:
		return color.FgYellow.Render(string(status))
	default:
		return color.FgRed.Render(string(status))
	}
}
