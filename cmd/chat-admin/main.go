// ABOUTME: Admin CLI for inspecting and moderating marketplace conversations
// ABOUTME: Operates directly against the messaging database via the service layer

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/propstead/messaging/internal/access"
	"github.com/propstead/messaging/internal/attachment"
	"github.com/propstead/messaging/internal/config"
	"github.com/propstead/messaging/internal/conversation"
	"github.com/propstead/messaging/internal/identity"
	"github.com/propstead/messaging/internal/servicescope"
	"github.com/propstead/messaging/internal/store"
)

const banner = `
       _           _                 _           _
   ___| |__   __ _| |_      __ _  __| |_ __ ___ (_)_ __
  / __| '_ \ / _' | __|____/ _' |/ _' | '_ ' _ \| | '_ \
 | (__| | | | (_| | ||_____| (_| | (_| | | | | | | | | | |
  \___|_| |_|\__,_|\__|     \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "conversations":
		err = cmdConversations(args)
	case "messages":
		err = cmdMessages(args)
	case "send":
		err = cmdSend(args)
	case "close-listing":
		err = cmdCloseListing(args)
	case "status":
		err = cmdStatus()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: chat-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                          Show database status")
	fmt.Println("  conversations [--user <id>]     List conversations (all, or one user's)")
	fmt.Println("  messages <conv-id> --as <id>    Show a conversation's history as a viewer")
	fmt.Println("  send <conv-id> --as <id> <msg>  Append a message to a conversation")
	fmt.Println("  close-listing <id> [--reason r] Close every conversation for a listing")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  CHAT_CONFIG    Path to the service config YAML (default: ./config.yaml)")
	fmt.Println("  CHAT_DB_PATH   Database path override (skips config loading)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  chat-admin conversations --user ada@example.com")
	fmt.Println("  chat-admin messages 7f3a... --as admin-1")
	fmt.Println("  chat-admin close-listing L-2201 --reason sold")
	fmt.Println()
}

// openService wires the full service stack against the configured database.
// The CLI runs as a trusted operator, so the acting identity is registered
// as an admin before any guarded call.
func openService() (*conversation.Service, *store.Backend, error) {
	dbPath := os.Getenv("CHAT_DB_PATH")

	var cfg *config.Config
	if dbPath == "" {
		configPath := os.Getenv("CHAT_CONFIG")
		if configPath == "" {
			configPath = "config.yaml"
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config (set CHAT_DB_PATH to skip): %w", err)
		}
		cfg = loaded
		dbPath = cfg.Database.Path
	}

	// Without a config file the CLI stays quiet except for warnings.
	logCfg := config.LoggingConfig{Level: "warn"}
	if cfg != nil {
		logCfg = cfg.Logging
	}
	logger := setupLogger(logCfg)

	var previewer *attachment.Previewer
	if cfg != nil && cfg.Storage.Endpoint != "" {
		signer, err := attachment.NewMinioSigner(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to object storage: %w", err)
		}
		previewer = attachment.NewPreviewer(signer, cfg.Storage.PreviewTTL, logger)
	}

	backend := store.Open(dbPath, logger)

	roles := identity.NewRegistry(backend.Store, logger)
	guard := access.NewGuard(roles, logger)
	sync := servicescope.NewSynchronizer(backend.Services, logger)
	svc := conversation.New(backend.Store, guard, roles, previewer, sync, logger)

	return svc, backend, nil
}

// setupLogger builds the slog logger from the logging config. Logs go to
// stderr so table output on stdout stays pipeable.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// ensureAdmin registers the CLI operator's identity as an admin so guarded
// calls succeed. Returns the canonical id.
func ensureAdmin(ctx context.Context, backend *store.Backend, rawID string) (string, error) {
	id := identity.NormalizeUserID(rawID, "")
	roles := identity.NewRegistry(backend.Store, nil)
	if err := roles.EnsureUser(ctx, id, rawID, identity.RoleAdmin); err != nil {
		return "", fmt.Errorf("registering operator identity: %w", err)
	}
	return id, nil
}

func cmdStatus() error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	_, backend, err := openService()
	if err != nil {
		yellow.Printf("  Database:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	defer backend.Store.Close()

	green.Printf("  Database:  ")
	if backend.Fallback {
		yellow.Println("in-memory fallback (durable store unavailable)")
	} else {
		fmt.Println("sqlite, connected")
	}

	convs, err := backend.Store.ListConversations(context.Background(), 1000)
	if err != nil {
		return fmt.Errorf("counting conversations: %w", err)
	}
	open := 0
	for _, c := range convs {
		if c.Status == store.StatusOpen {
			open++
		}
	}
	fmt.Printf("  Conversations: %d (%d open)\n", len(convs), open)
	fmt.Println()

	return nil
}

func cmdConversations(args []string) error {
	var userID string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--user", "-u":
			if i+1 < len(args) {
				userID = args[i+1]
				i++
			}
		}
	}

	svc, backend, err := openService()
	if err != nil {
		return err
	}
	defer backend.Store.Close()

	ctx := context.Background()

	var views []*conversation.ConversationView
	if userID != "" {
		views, err = svc.ListForViewer(ctx, userID, false)
	} else {
		adminID, adminErr := ensureAdmin(ctx, backend, "chat-admin-cli")
		if adminErr != nil {
			return adminErr
		}
		views, err = svc.ListForViewer(ctx, adminID, true)
	}
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Conversations")
	cyan.Println("  -------------")

	if len(views) == 0 {
		fmt.Println("  (none)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tSCOPE\tSTATUS\tSUBJECT\tMEMBERS\tUPDATED")
	fmt.Fprintln(w, "  --\t-----\t------\t-------\t-------\t-------")

	for _, v := range views {
		names := make([]string, 0, len(v.Members))
		for _, m := range v.Members {
			names = append(names, m.DisplayName)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(v.ID, 12),
			v.Scope,
			v.Status,
			truncate(v.Subject, 28),
			truncate(strings.Join(names, ", "), 30),
			v.UpdatedAt.Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdMessages(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: messages <conversation-id> --as <viewer-id>")
	}
	convID := args[0]

	var viewerID string
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--as", "-a":
			if i+1 < len(args) {
				viewerID = args[i+1]
				i++
			}
		}
	}
	if viewerID == "" {
		return fmt.Errorf("usage: messages <conversation-id> --as <viewer-id>")
	}

	svc, backend, err := openService()
	if err != nil {
		return err
	}
	defer backend.Store.Close()

	ctx := context.Background()
	views, err := svc.Messages(ctx, convID, viewerID)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}

	dim := color.New(color.Faint, color.Italic)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	for _, m := range views {
		stamp := m.CreatedAt.Format("Jan 02 15:04")
		switch m.Sender {
		case "system":
			dim.Printf("  [%s] system: %s\n", stamp, m.Content)
		case "me":
			green.Printf("  [%s] me: ", stamp)
			fmt.Println(m.Content)
		default:
			fmt.Printf("  [%s] them: %s\n", stamp, m.Content)
		}
		if m.IssueCard != nil {
			yellow.Printf("      issue: %s [%s] (%s)\n", m.IssueCard.Title, m.IssueCard.ProblemTag, m.IssueCard.Status)
		}
		for _, att := range m.Attachments {
			fmt.Printf("      attachment: %s", att.FileName)
			if att.PreviewURL != "" {
				fmt.Printf("  %s", att.PreviewURL)
			}
			fmt.Println()
		}
	}
	fmt.Println()

	return nil
}

func cmdSend(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: send <conversation-id> --as <sender-id> <message>")
	}
	convID := args[0]

	var senderID string
	var words []string
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--as", "-a":
			if i+1 < len(args) {
				senderID = args[i+1]
				i++
			}
		default:
			words = append(words, args[i])
		}
	}
	if senderID == "" || len(words) == 0 {
		return fmt.Errorf("usage: send <conversation-id> --as <sender-id> <message>")
	}

	svc, backend, err := openService()
	if err != nil {
		return err
	}
	defer backend.Store.Close()

	ctx := context.Background()
	if _, err := ensureAdmin(ctx, backend, senderID); err != nil {
		return err
	}

	sent, err := svc.Append(ctx, conversation.AppendRequest{
		ConversationID: convID,
		SenderID:       senderID,
		SenderName:     senderID,
		SenderRole:     "admin",
		Content:        strings.Join(words, " "),
	})
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Sent message %s at %s\n", truncate(sent.ID, 12), sent.CreatedAt.Format(time.RFC3339))

	return nil
}

func cmdCloseListing(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: close-listing <listing-id> [--reason <reason>]")
	}
	listingID := args[0]

	reason := "listing closed"
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--reason", "-r":
			if i+1 < len(args) {
				reason = args[i+1]
				i++
			}
		}
	}

	svc, backend, err := openService()
	if err != nil {
		return err
	}
	defer backend.Store.Close()

	count, err := svc.CloseConversationsForListing(context.Background(), listingID, reason)
	if err != nil {
		return fmt.Errorf("closing conversations: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Closed %d conversation(s) for listing %s\n", count, listingID)

	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
