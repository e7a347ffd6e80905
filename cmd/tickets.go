package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ticket-reconcile/internal/services"
	"ticket-reconcile/models"

	"github.com/pocketbase/pocketbase"
	"github.com/spf13/cobra"
)

// registerTicketCommands exposes the reconciliation flows on the CLI, e.g.
//
//	ticket-reconcile tickets reconcile --reference ref_123 --token $TOKEN
func registerTicketCommands(app *pocketbase.PocketBase, d *deps) {
	var token, sessionID string

	root := &cobra.Command{
		Use:   "tickets",
		Short: "Purchase tickets and reconcile their payments against the ticketing backend",
	}
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("BACKEND_TOKEN"), "backend access token")
	root.PersistentFlags().StringVar(&sessionID, "session", os.Getenv("BACKEND_SESSION_ID"), "backend session id")

	session := func(ctx context.Context) (models.Session, error) {
		return d.sessions.Resolve(ctx, token, sessionID)
	}

	root.AddCommand(
		listCommand(d, session),
		purchaseCommand(d, session),
		reconcileCommand(d, session),
		verifyCommand(d, session),
		retryCommand(d, session),
		cancelCommand(d, session),
	)
	app.RootCmd.AddCommand(root)
}

type sessionFunc func(ctx context.Context) (models.Session, error)

func listCommand(d *deps, session sessionFunc) *cobra.Command {
	var landing string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List my tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()

			sess, err := session(ctx)
			if err != nil {
				return err
			}
			if banner := d.actions.Landing(ctx, sess, landing); banner != "" {
				fmt.Fprintln(cmd.OutOrStdout(), banner)
			}
			tickets, err := d.view.List(ctx, sess)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tickets)
		},
	}
	cmd.Flags().StringVar(&landing, "payment", "", "landing flag from the return path (success|failed)")
	return cmd
}

func purchaseCommand(d *deps, session sessionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "purchase <eventId>",
		Short: "Create a pending ticket and print the payment authorization url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()

			sess, err := session(ctx)
			if err != nil {
				return err
			}
			event, err := d.client.GetEvent(ctx, sess, args[0])
			if err != nil {
				return err
			}
			result, err := d.purchase.Purchase(ctx, sess, event)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func reconcileCommand(d *deps, session sessionFunc) *cobra.Command {
	var reference, trxref string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Settle a payment reference from the gateway return path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()

			sess, err := session(ctx)
			if err != nil {
				return err
			}
			outcome, err := d.reconciler.Reconcile(ctx, sess, services.ResolveReference(reference, trxref))
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
				return err
			}

			done := make(chan struct{})
			services.ScheduleNavigation(ctx, outcome, func(target string) {
				fmt.Fprintf(cmd.OutOrStdout(), "next: %s\n", target)
				close(done)
			})
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "payment reference")
	cmd.Flags().StringVar(&trxref, "trxref", "", "legacy alias of --reference")
	return cmd
}

func verifyCommand(d *deps, session sessionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <ticketId>",
		Short: "Re-check where a ticket's payment stands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()

			sess, err := session(ctx)
			if err != nil {
				return err
			}
			result, err := d.actions.VerifyPayment(ctx, sess, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func retryCommand(d *deps, session sessionFunc) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "retry <ticketId>",
		Short: "Cancel a pending ticket and start a fresh payment for the same event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()

			sess, err := session(ctx)
			if err != nil {
				return err
			}
			tickets, err := d.view.List(ctx, sess)
			if err != nil {
				return err
			}
			ticket := models.FindTicket(tickets, args[0])
			if ticket == nil {
				return fmt.Errorf("ticket %s not found", args[0])
			}

			result, err := d.actions.RetryPayment(ctx, sess, ticket, terminalConfirmer(cmd, yes))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func cancelCommand(d *deps, session sessionFunc) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "cancel <ticketId>",
		Short: "Cancel a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext(cmd)
			defer stop()

			sess, err := session(ctx)
			if err != nil {
				return err
			}
			if err := d.actions.CancelTicket(ctx, sess, args[0], terminalConfirmer(cmd, yes)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Ticket cancelled")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// terminalConfirmer asks on stdin unless the caller already said yes.
func terminalConfirmer(cmd *cobra.Command, yes bool) services.Confirmer {
	if yes {
		return services.Answer(true)
	}
	return services.ConfirmFunc(func(_ context.Context, p services.Prompt) (services.Decision, error) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", p.Text)

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return services.Declined, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return services.Confirmed, nil
		default:
			return services.Declined, nil
		}
	})
}

// commandContext ends on Ctrl-C, which stops polling and pending timers.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
