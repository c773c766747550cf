package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	sendDepartments []string
	sendMailerID    string
	sendSubject     string
	sendFrom        string
	sendPassword    string
)

var sendCmd = &cobra.Command{
	Use:   "send <recipients.csv> <template.html>",
	Short: "Submit a batch to the server",
	Long: `Submit a recipient CSV (email,name,department) and an HTML template.

The template may start with a "Subject: ..." line which is used when
--subject is not given. Use -d All (the default) to target every department.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipients, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read recipients file: %w", err)
		}
		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}

		subject, template := SplitSubject(content)
		if sendSubject != "" {
			subject = sendSubject
		}
		if subject == "" {
			return fmt.Errorf("no subject: pass --subject or start the template with a Subject: line")
		}

		preview, err := PreviewRecipients(recipients, sendDepartments)
		if err != nil {
			return err
		}
		log.Info("Recipients targeted", "targeted", preview.Targeted, "total", preview.Total)
		for _, d := range preview.Departments() {
			log.Debug("Department", "department", d, "recipients", preview.ByDepartment[d])
		}
		if preview.Targeted == 0 {
			log.Warn("No recipient matches the selected departments")
		}

		if sendMailerID != "" {
			log.Info("Using existing mailer id", "mailerId", sendMailerID)
		}

		res, err := NewClient(serverURL).SubmitBatch(cmd.Context(), Batch{
			SenderAddress: sendFrom,
			SenderSecret:  sendPassword,
			Subject:       subject,
			MailerID:      sendMailerID,
			Departments:   sendDepartments,
			Recipients:    recipients,
			Template:      template,
		})
		if err != nil {
			return fmt.Errorf("failed to submit batch: %w", err)
		}

		log.Info("Batch accepted", "mailerId", res.MailerID, "jobId", res.JobID)
		fmt.Printf("Track opens with: mailer clicks %s\n", res.MailerID)
		fmt.Printf("Follow progress with: mailer status %s\n", res.JobID)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringSliceVarP(&sendDepartments, "departments", "d", []string{"All"}, "department code(s), repeat or comma separate")
	sendCmd.Flags().StringVarP(&sendMailerID, "mailer-id", "m", "", "existing mailer id (a new one is created when empty)")
	sendCmd.Flags().StringVarP(&sendSubject, "subject", "s", "", "email subject")
	sendCmd.Flags().StringVar(&sendFrom, "from", os.Getenv("SENDER_EMAIL"), "sender email address")
	sendCmd.Flags().StringVar(&sendPassword, "password", os.Getenv("SENDER_PASSWORD"), "sender SMTP password or API key")
}
