package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajkula/GoAccessGate/adapter/outbound/storeclient"
	"github.com/ajkula/GoAccessGate/domain/model"
)

func newRequestsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"req"},
		Short:   "List and review access requests",
	}

	cmd.AddCommand(
		newRequestsListCmd(opts),
		newRequestsApproveCmd(opts),
		newRequestsRejectCmd(opts),
	)

	return cmd
}

func newRequestsListCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List access requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestsList(cmd, opts)
		},
	}
	cmd.Flags().String("status", "", "Only show requests with this status (Pending|Approved|Rejected)")
	cmd.Flags().String("user", "", "Only show requests of this user")
	return cmd
}

func newRequestsApproveCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending access request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestsReview(cmd, opts, args[0], true)
		},
	}
	cmd.Flags().Duration("ttl", 0, "Grant duration from now, e.g. 30m (0 never expires)")
	cmd.Flags().String("until", "", "Absolute expiry in RFC3339, wins over --ttl")
	return cmd
}

func newRequestsRejectCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending access request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestsReview(cmd, opts, args[0], false)
		},
	}
	cmd.Flags().String("reason", "", "Reason shown to the requester")
	return cmd
}

func (o *options) requireStore() error {
	if o.storeURL == "" {
		return fmt.Errorf("--store is required")
	}
	if o.token == "" {
		return fmt.Errorf("--token is required")
	}
	return nil
}

func runRequestsList(cmd *cobra.Command, opts *options) error {
	if err := opts.requireStore(); err != nil {
		return err
	}

	status, _ := cmd.Flags().GetString("status")
	user, _ := cmd.Flags().GetString("user")

	requests, err := opts.client().ListRequests(cmd.Context(), opts.token)
	if err != nil {
		return fmt.Errorf("failed to list access requests: %w", err)
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODULE\tTYPE\tUSER\tSTATUS\tEXPIRES\tREMARKS")

	shown := 0
	for _, r := range requests {
		if status != "" && !strings.EqualFold(string(r.Status), status) {
			continue
		}
		if user != "" && r.Username != user {
			continue
		}
		expires := "-"
		if r.ExpiresAt != nil {
			expires = r.ExpiresAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.RequestID, r.Module, r.RequestType, r.Username, r.Status, expires, r.Remarks)
		shown++
	}

	if shown == 0 {
		fmt.Fprintln(out, "No access requests.")
		return nil
	}
	return w.Flush()
}

func runRequestsReview(cmd *cobra.Command, opts *options, id string, approve bool) error {
	if err := opts.requireStore(); err != nil {
		return err
	}

	review := storeclient.ReviewRequest{Approve: approve}
	if approve {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		until, _ := cmd.Flags().GetString("until")
		switch {
		case until != "":
			at, err := time.Parse(time.RFC3339, until)
			if err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}
			review.ExpiresAt = &at
		case ttl < 0:
			return fmt.Errorf("--ttl must not be negative")
		case ttl > 0:
			review.ExpiresIn = ttl.String()
		}
	} else {
		reason, _ := cmd.Flags().GetString("reason")
		review.RejectReason = strings.TrimSpace(reason)
	}

	reviewed, err := opts.client().ReviewRequest(cmd.Context(), opts.token, id, review)
	if err != nil {
		if message := model.StoreMessage(err); message != "" {
			return fmt.Errorf("failed to review %s: %s", id, message)
		}
		return fmt.Errorf("failed to review %s: %w", id, err)
	}

	out := cmd.OutOrStdout()
	if !approve {
		fmt.Fprintf(out, "Access request %s rejected.\n", reviewed.RequestID)
		return nil
	}
	if reviewed.ExpiresAt != nil {
		fmt.Fprintf(out, "Access request %s approved until %s.\n", reviewed.RequestID, reviewed.ExpiresAt.Local().Format(time.DateTime))
		return nil
	}
	fmt.Fprintf(out, "Access request %s approved.\n", reviewed.RequestID)
	return nil
}
