package main

import (
	"context"
	"strings"
	"time"

	"github.com/trezcool/klabu/core"
	"github.com/trezcool/klabu/core/member"
)

// addStaff updates or creates a staff Member. Staff accounts are approved
// immediately; they never go through moderation.
func (cli *commandLine) addStaff(regNum, email, name, pwd string) error {
	ctx := context.Background()
	regNum = strings.ToUpper(core.CleanString(regNum))
	email = core.CleanString(email, true /* lower */)

	mbr, err := cli.repo.GetMember(ctx, member.GetFilter{RegNumber: regNum})
	if err == member.ErrNotFound {
		mbr, err = cli.repo.GetMember(ctx, member.GetFilter{Email: email})
	}
	now := time.Now().UTC()
	if err != nil {
		if err != member.ErrNotFound {
			return err
		}
		mbr = member.Member{
			RegNumber:    regNum,
			Email:        email,
			RegisteredAt: now,
		}
	}
	mbr.FullName = core.CleanString(name)
	mbr.IsStaff = true
	mbr.Status = member.StatusApproved
	if mbr.ApprovedAt == nil {
		mbr.ApprovedAt = &now
	}
	mbr.UpdatedAt = now
	if err := mbr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.repo.UpdateOrCreateMember(ctx, mbr); err != nil {
		return err
	}
	return nil
}
