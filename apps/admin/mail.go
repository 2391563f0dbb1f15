package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/klabu/core/member"
)

func (cli *commandLine) checkMailConfig() error {
	if err := cli.mailSvc.CheckConfig(); err != nil {
		return err
	}
	fmt.Printf("mail configuration OK (backend: %s)\n", cli.conf.Mail.Backend)
	return nil
}

func (cli *commandLine) testEmail(to string) error {
	data := map[string]interface{}{"SentAt": time.Now().UTC().Format(time.RFC1123)}
	if _, err := cli.mailSvc.SendOne(to, "Test Email", member.TestEmailTmpl, data, "", false); err != nil {
		return err
	}
	fmt.Printf("test email sent to %s\n", to)
	return nil
}

type bulkEmailOptions struct {
	target     string // member selector; mutually exclusive with recipients
	recipients string // comma-separated emails
	subject    string
	message    string
	template   string
	batchSize  int
}

func (cli *commandLine) bulkEmail(opts bulkEmailOptions) error {
	var emails []string
	if opts.target != "" {
		var err error
		if emails, err = cli.svc.ResolveRecipients(context.Background(), opts.target); err != nil {
			return err
		}
	} else {
		for _, r := range strings.Split(opts.recipients, ",") {
			if r = strings.TrimSpace(r); r != "" {
				emails = append(emails, r)
			}
		}
	}
	if len(emails) == 0 {
		fmt.Println("no recipients matched the target")
		return nil
	}

	data := map[string]interface{}{"Message": opts.message}
	res := cli.mailSvc.SendBatch(emails, opts.subject, opts.template, data, opts.message, opts.batchSize)
	fmt.Printf("sent %d/%d emails (failed: %d)\n", res.Successful, res.Total, res.Failed)
	if len(res.Errors) > 0 {
		fmt.Println("errors:\n  " + strings.Join(res.Errors, "\n  "))
	}
	return nil
}

func (cli *commandLine) pictureReminders() error {
	sent, err := cli.svc.SendPictureReminders(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("sent %d picture reminder(s)\n", sent)
	return nil
}
