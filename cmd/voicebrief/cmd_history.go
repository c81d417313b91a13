package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/voicebrief/internal/store"
	"github.com/user/voicebrief/internal/types"
)

var (
	historyUserID int64
	historyChatID int64
	historyLimit  int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int64Var(&historyUserID, "user", 0, "owner user id")
	historyCmd.Flags().Int64Var(&historyChatID, "chat", 0, "owner chat id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "max records to show")
	historyCmd.MarkFlagRequired("user")
	historyCmd.MarkFlagRequired("chat")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent summary records for an owner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		records, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open record store: %w", err)
		}
		defer records.Close()

		ctx := context.Background()
		owner := types.OwnerKey{UserID: historyUserID, ChatID: historyChatID}
		recs, err := records.ListNewest(ctx, owner, historyLimit)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		if len(recs) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODE\tCREATED\tSUMMARY")
		for _, rec := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				rec.ID,
				rec.Mode,
				rec.CreatedAt.Format("2006-01-02 15:04:05"),
				preview(rec.Summary, 60),
			)
		}
		return w.Flush()
	},
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
