package cmd

import (
	"fmt"
	"os"
	"strings"

	log "github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/service"
)

var (
	notifyReq     service.NotificationRequest
	notifyConfirm bool
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a staff message to subscribers near addresses or proposals",
	Long: `Notify finds the subscribers near the given addresses and proposals and
shows who would receive the message. Nothing is sent without --yes.

Example:
  cornerwise notify --region "Somerville, MA" --address "12 Elm St" \
      --title "Public hearing" --message "The hearing moved to Thursday." --yes`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := buildDeps(ctx, loadConfig())
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer d.Close()

		notifier := d.notifier()
		draft, err := notifier.Prepare(ctx, notifyReq)
		if err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				for _, p := range verr.Problems {
					fmt.Fprintln(os.Stderr, p)
				}
				d.Close()
				os.Exit(2)
			}
			log.Fatalf("Failed to prepare notification: %v", err)
		}

		fmt.Printf("Recipients: %d\n", len(draft.Recipients))
		for _, f := range draft.Failures {
			fmt.Printf("Could not place %s: %s\n", f.Address, f.Reason)
		}
		fmt.Printf("\n%s\n\n", strings.ReplaceAll(draft.Example, "<br/>", ""))

		if !notifyConfirm {
			fmt.Printf("Draft %s saved. Re-run with --yes to send.\n", draft.ID)
			return
		}
		note, err := notifier.Send(ctx, draft.ID)
		if err != nil {
			log.Fatalf("Failed to send notification: %v", err)
		}
		fmt.Printf("Notification %d queued for %d subscribers\n", note.ID, note.Subscribers)
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	f := notifyCmd.Flags()
	f.StringVar(&notifyReq.Region, "region", "", "Region the message comes from")
	f.StringVar(&notifyReq.Title, "title", "", "Subject line")
	f.StringVar(&notifyReq.Sender, "sender", "", "Staff member sending the message")
	f.StringVar(&notifyReq.Message, "message", "", "Message body (HTML allowed)")
	f.StringVar(&notifyReq.Greeting, "greeting", "", "Greeting; %region%, %proposals% and %addresses% are expanded")
	f.StringArrayVar(&notifyReq.Addresses, "address", nil, "Address to notify around (repeatable)")
	f.Int64SliceVar(&notifyReq.ProposalIDs, "proposal", nil, "Proposal id to notify around (repeatable)")
	f.Float64Var(&notifyReq.RadiusFeet, "radius", 0, "Radius in feet (default from CORNERWISE_NOTIFY_RADIUS_FEET)")
	f.BoolVarP(&notifyConfirm, "yes", "y", false, "Send without further confirmation")
}
