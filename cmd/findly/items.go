package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	findly "github.com/findly-app/findly/sdk/golang"
	"github.com/spf13/cobra"
)

var (
	itemsListJSON bool
	itemsPostType string
)

func init() {
	rootCmd.AddCommand(itemsCmd)
	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsGetCmd)
	itemsCmd.AddCommand(itemsPostCmd)
	itemsCmd.AddCommand(itemsContactCmd)

	itemsListCmd.Flags().BoolVar(&itemsListJSON, "json", false, "raw JSON output")
	itemsPostCmd.Flags().StringVar(&itemsPostType, "type", "other", "item type (bottle, pen, bag, ...)")
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Browse and post lost/found items",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List posted items",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getSession()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		items, err := client.Items.List(ctx)
		if err != nil {
			return err
		}

		if itemsListJSON {
			data, _ := json.MarshalIndent(items, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		if items.Count == 0 {
			fmt.Println("No items posted yet.")
			return nil
		}
		for _, item := range items.Items {
			claimed := " "
			if item.IsClaimed {
				claimed = "✓"
			}
			fmt.Printf("%s  %-12s  %-10s  by %s  %s\n",
				claimed, item.ItemID, item.Type, shortID(item.UserID), item.Description)
		}
		return nil
	},
}

var itemsGetCmd = &cobra.Command{
	Use:   "get <item-id>",
	Short: "Show one item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getSession()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		item, err := client.Items.Get(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Item:        %s\n", item.ItemID)
		fmt.Printf("Type:        %s\n", item.Type)
		fmt.Printf("Description: %s\n", item.Description)
		fmt.Printf("Found by:    %s\n", item.UserID)
		fmt.Printf("Claimed:     %v\n", item.IsClaimed)
		if item.CreatedAt != nil {
			fmt.Printf("Posted:      %s\n", item.CreatedAt.Local().Format(time.RFC822))
		}
		return nil
	},
}

var itemsPostCmd = &cobra.Command{
	Use:   "post <description>",
	Short: "Post a found item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, session := getSession()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		item, err := client.Items.Create(ctx, &findly.ItemCreate{
			UserID:      session.CurrentUserID(),
			Description: args[0],
			Type:        itemsPostType,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Posted item %s\n", item.ItemID)
		return nil
	},
}

var itemsContactCmd = &cobra.Command{
	Use:   "contact <item-id> <message>",
	Short: "Message the finder of an item",
	Long:  "Start (or continue) a conversation with the user who posted an item.\nThe message references the item so the finder has context.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, session := getSession()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		item, err := client.Items.Get(ctx, args[0])
		if err != nil {
			return err
		}

		m := findly.NewMessenger(client.Messages, session)
		msg, err := m.SendTo(ctx, item.UserID, args[1], item.ItemID)
		if err != nil {
			return err
		}

		fmt.Printf("Sent. Conversation: %s\n", msg.ConversationID)
		return nil
	},
}
