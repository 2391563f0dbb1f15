package main

import (
	"context"
	"fmt"

	"github.com/trezcool/klabu/core/member"
)

var defaultDepartments = []member.Department{
	{Name: "Programming", Description: "Software development in Python, JavaScript, PHP, etc."},
	{Name: "Cybersecurity", Description: "Ethical hacking, digital forensics, and secure computing."},
	{Name: "Networking", Description: "Design and implementation of robust networks."},
	{Name: "Computer Maintenance", Description: "Hardware/software troubleshooting and repair."},
	{Name: "Graphic Design", Description: "Visual design using Adobe tools & Canva."},
	{Name: "AI & Machine Learning", Description: "AI-driven automation and intelligent prototyping."},
}

func (cli *commandLine) setupDepartments() error {
	created, err := cli.svc.SeedDepartments(context.Background(), defaultDepartments)
	if err != nil {
		return err
	}
	fmt.Printf("department setup complete: %d created, %d already present\n", created, len(defaultDepartments)-created)
	return nil
}
