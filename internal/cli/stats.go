package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new mailer id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := NewClient(serverURL).CreateMailer(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to create mailer: %w", err)
		}
		log.Info("Generated mailer id", "mailerId", id)
		fmt.Println(id)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <mailerId>",
	Short: "Show delivery counts and the email log of a mailer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := NewClient(serverURL).Logs(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEPARTMENT\tSENT\tSUCCESSFUL")
		for _, d := range sortedKeys(stats.TotalEmailSent) {
			fmt.Fprintf(w, "%s\t%d\t%d\n", d, stats.TotalEmailSent[d], stats.SuccessfulEmailSent[d])
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "SENT AT\tRECIPIENT\tDEPARTMENT\tRESULT")
		for _, l := range stats.EmailLogs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.SentAt.Format("2006-01-02 15:04:05"), l.RecipientEmail, l.RecipientDepartment, l.LogMessage)
		}
		return w.Flush()
	},
}

var clicksCmd = &cobra.Command{
	Use:   "clicks <mailerId>",
	Short: "Show open counts of a mailer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := NewClient(serverURL).Clicks(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Total opens: %d\n\n", stats.ClickCount)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tOPENS")
		for _, c := range stats.Last5Days {
			fmt.Fprintf(w, "%s\t%d\n", c.Date.Format("2006-01-02"), c.Count)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "MONTH\tOPENS")
		for _, c := range stats.Last5Months {
			fmt.Fprintf(w, "%s\t%d\n", c.Date.Format("2006-01"), c.Count)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <jobId>",
	Short: "Show the progress of a submitted batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := NewClient(serverURL).Job(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Job %s (mailer %s): %s\n", st.ID, st.MailerID, st.State)
		fmt.Printf("Processed %d/%d, sent %d, failed %d, skipped %d\n", st.Processed, st.Total, st.Sent, st.Failed, st.Skipped)
		if st.Aborted {
			log.Warn("Batch was aborted because delivery logs could not be written")
		}
		return nil
	},
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
