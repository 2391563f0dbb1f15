package main

import (
	"context"
	"fmt"

	"github.com/trezcool/klabu/core/member"
)

// cliActor stands in for the operator running the command.
var cliActor = member.Member{FullName: "admin", IsStaff: true}

func (cli *commandLine) approve(regNum string) error {
	ctx := context.Background()
	mbr, err := cli.svc.GetByRegNumber(ctx, regNum)
	if err != nil {
		return err
	}
	if mbr, err = cli.svc.Approve(ctx, mbr.ID, cliActor); err != nil {
		return err
	}
	fmt.Printf("approved %s (%s)\n", mbr.FullName, mbr.RegNumber)
	return nil
}

func (cli *commandLine) reject(regNum, reason string) error {
	ctx := context.Background()
	mbr, err := cli.svc.GetByRegNumber(ctx, regNum)
	if err != nil {
		return err
	}
	if mbr, err = cli.svc.Reject(ctx, mbr.ID, cliActor, reason); err != nil {
		return err
	}
	fmt.Printf("rejected %s (%s)\n", mbr.FullName, mbr.RegNumber)
	return nil
}
