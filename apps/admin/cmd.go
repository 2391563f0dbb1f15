package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/klabu/core"
	"github.com/trezcool/klabu/core/member"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	conf    *core.Config
	repo    member.Repository
	svc     *member.Service
	mailSvc core.EmailGateway
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run database migrations (goose commands)")
	fmt.Println("  addstaff -regnumber REGNUMBER -email EMAIL -name NAME - create or promote a staff member; the password is prompted")
	fmt.Println("  approve -regnumber REGNUMBER - approve a pending member")
	fmt.Println("  reject -regnumber REGNUMBER [-reason REASON] - reject a pending member")
	fmt.Println("  setupdepartments - create the default departments")
	fmt.Println("  setupcourses - create the default courses")
	fmt.Println("  checkmailconfig - verify the mail transport configuration")
	fmt.Println("  testemail -to EMAIL - send a test email")
	fmt.Println("  bulkemail (-target TARGET | -recipients A@X,B@Y) -subject SUBJECT -message MESSAGE [-template NAME] [-batchsize N] - send an announcement email")
	fmt.Println("           TARGET: all_members | approved_members | pending_members | department:NAME")
	fmt.Println("  picturereminders - email members whose picture upload deadline is near")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStaffCmd := flag.NewFlagSet("addstaff", flag.ExitOnError)
	addStaffRegNum := addStaffCmd.String("regnumber", "", "The staff member's registration number.")
	addStaffEmail := addStaffCmd.String("email", "", "The staff member's email.")
	addStaffName := addStaffCmd.String("name", "", "The staff member's full name.")

	approveCmd := flag.NewFlagSet("approve", flag.ExitOnError)
	approveRegNum := approveCmd.String("regnumber", "", "The member's registration number.")

	rejectCmd := flag.NewFlagSet("reject", flag.ExitOnError)
	rejectRegNum := rejectCmd.String("regnumber", "", "The member's registration number.")
	rejectReason := rejectCmd.String("reason", "", "An optional reason included in the notification.")

	testEmailCmd := flag.NewFlagSet("testemail", flag.ExitOnError)
	testEmailTo := testEmailCmd.String("to", "", "The recipient's email address.")

	bulkEmailCmd := flag.NewFlagSet("bulkemail", flag.ExitOnError)
	bulkEmailTarget := bulkEmailCmd.String("target", "", "The target member selector.")
	bulkEmailRecipients := bulkEmailCmd.String("recipients", "", "Comma-separated recipient emails; an alternative to -target.")
	bulkEmailSubject := bulkEmailCmd.String("subject", "", "The email subject.")
	bulkEmailMessage := bulkEmailCmd.String("message", "", "The email body.")
	bulkEmailTemplate := bulkEmailCmd.String("template", member.AnnouncementTmpl, "The email template name.")
	bulkEmailBatchSize := bulkEmailCmd.Int("batchsize", 0, "Batch size; 0 uses the configured default.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addstaff":
		if err := addStaffCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStaffRegNum == "" || *addStaffEmail == "" || *addStaffName == "" {
			addStaffCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addStaffCmd.Usage()
			return errHelp
		}
		return cli.addStaff(*addStaffRegNum, *addStaffEmail, *addStaffName, string(pwd))

	case "approve":
		if err := approveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *approveRegNum == "" {
			approveCmd.Usage()
			return errHelp
		}
		return cli.approve(*approveRegNum)

	case "reject":
		if err := rejectCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rejectRegNum == "" {
			rejectCmd.Usage()
			return errHelp
		}
		return cli.reject(*rejectRegNum, *rejectReason)

	case "setupdepartments":
		return cli.setupDepartments()

	case "setupcourses":
		return cli.setupCourses()

	case "checkmailconfig":
		return cli.checkMailConfig()

	case "testemail":
		if err := testEmailCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *testEmailTo == "" {
			testEmailCmd.Usage()
			return errHelp
		}
		return cli.testEmail(*testEmailTo)

	case "bulkemail":
		if err := bulkEmailCmd.Parse(args[2:]); err != nil {
			return err
		}
		if (*bulkEmailTarget == "") == (*bulkEmailRecipients == "") || *bulkEmailSubject == "" || *bulkEmailMessage == "" {
			bulkEmailCmd.Usage()
			return errHelp
		}
		return cli.bulkEmail(bulkEmailOptions{
			target:     *bulkEmailTarget,
			recipients: *bulkEmailRecipients,
			subject:    *bulkEmailSubject,
			message:    *bulkEmailMessage,
			template:   *bulkEmailTemplate,
			batchSize:  *bulkEmailBatchSize,
		})

	case "picturereminders":
		return cli.pictureReminders()

	default:
		cli.printUsage()
		return errHelp
	}
}
