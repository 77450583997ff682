package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	findly "github.com/findly-app/findly/sdk/golang"
	"github.com/spf13/cobra"
)

var chatListJSON bool

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatWatchCmd)

	chatListCmd.Flags().BoolVar(&chatListJSON, "json", false, "raw JSON output")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Conversations and messages",
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, session := getSession()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		m := findly.NewMessenger(client.Messages, session)
		if err := m.Start(ctx); err != nil {
			return err
		}
		defer m.Close()

		convs := m.Conversations()
		if len(convs) == 0 {
			fmt.Println("No conversations yet. Use 'findly items contact' to start one.")
			return nil
		}

		for _, conv := range convs {
			who := "unknown"
			if other, ok := findly.Counterparty(conv.ParticipantIDs, session.CurrentUserID()); ok {
				who = "User " + shortID(other)
			}
			badge := ""
			if conv.UnreadCount > 0 {
				badge = fmt.Sprintf(" (%d unread)", conv.UnreadCount)
			}
			preview := conv.Preview()
			if preview == "" {
				preview = "No messages yet"
			}
			fmt.Printf("%-14s  %-16s  %s%s\n", conv.ConversationID, who, preview, badge)
		}
		return nil
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <conversation-id> <message>",
	Short: "Send one message to a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, session := getSession()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		m := findly.NewMessenger(client.Messages, session)
		if err := m.Start(ctx); err != nil {
			return err
		}
		defer m.Close()

		if err := m.SelectConversation(ctx, args[0]); err != nil {
			return err
		}
		if _, err := m.Send(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("Sent.")
		return nil
	},
}

var chatWatchCmd = &cobra.Command{
	Use:   "watch <conversation-id>",
	Short: "Watch a conversation and send replies",
	Long:  "Poll a conversation for new messages and print them as they arrive.\nLines typed on stdin are sent as replies; Ctrl-C exits.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, session := getSession()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := findly.NewMessenger(client.Messages, session)
		if err := m.Start(ctx); err != nil {
			return err
		}
		defer m.Close()

		if err := m.SelectConversation(ctx, args[0]); err != nil {
			return fmt.Errorf("cannot load conversation: %w", err)
		}

		who := "unknown"
		if other, ok := m.CounterpartyID(); ok {
			who = "User " + shortID(other)
		}
		fmt.Printf("Watching conversation with %s. Type to reply, Ctrl-C to exit.\n", who)

		// Opening the thread counts as reading it.
		if _, err := client.Messages.MarkConversationRead(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "(could not mark conversation read: %v)\n", err)
		}

		self := session.CurrentUserID()
		seen := make(map[string]bool)
		printIncoming := func() {
			for _, msg := range m.Thread() {
				if seen[msg.MessageID] || msg.Pending() {
					continue
				}
				seen[msg.MessageID] = true
				// Own messages are echoed at send time, not re-printed
				// when they round-trip through the poll.
				if msg.SenderID == self {
					continue
				}
				fmt.Printf("[%s] %s: %s\n",
					msg.CreatedAt.Local().Format("15:04"), who, msg.Content)
			}
		}
		printIncoming()

		// Reply loop: stdin lines become optimistic sends.
		lines := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
			close(lines)
		}()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		degraded := false
		for {
			select {
			case <-ctx.Done():
				fmt.Println("\nBye.")
				return nil

			case <-ticker.C:
				printIncoming()
				if err := m.ThreadErr(); err != nil && !degraded {
					fmt.Fprintln(os.Stderr, "(connection trouble, showing last known messages)")
				}
				degraded = m.ThreadErr() != nil

			case line, ok := <-lines:
				if !ok {
					return nil
				}
				text := strings.TrimSpace(line)
				if text == "" {
					continue
				}
				if msg, err := m.Send(ctx, text); err != nil {
					// The composed text is preserved for retry rather than
					// silently dropped with the failed bubble.
					fmt.Fprintf(os.Stderr, "✗ send failed: %v\n", err)
					fmt.Fprintf(os.Stderr, "  your message was not sent: %q\n", text)
				} else {
					seen[msg.MessageID] = true
					fmt.Printf("[%s] you: %s ✓\n",
						msg.CreatedAt.Local().Format("15:04"), msg.Content)
				}
			}
		}
	},
}
