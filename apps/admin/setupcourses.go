package main

import (
	"context"
	"fmt"

	"github.com/trezcool/klabu/core/member"
)

// IT and Education programs from the university's official catalog. Students
// from other programs register with a free-text course instead.
var defaultCourses = []member.Course{
	{Name: "Bachelor of Science in Computer Science", Code: "MW009"},
	{Name: "Bachelor of Science with Education", Code: "MW002"},
	{Name: "Bachelor of Arts with Education", Code: "MW001"},
	{Name: "Master of Science with Education", Code: "MWM07"},
	{Name: "Master of Business Administration", Code: "MWM06"},
	{Name: "Master of Education in Assessment and Evaluation", Code: "MWM02"},
	{Name: "Master of Education in Curriculum and Instruction", Code: "MWM03"},
	{Name: "Master of Education in Educational Planning and Administration", Code: "MWM04"},
	{Name: "Doctor of Philosophy in Education", Code: "MWPH01"},
}

func (cli *commandLine) setupCourses() error {
	created, err := cli.svc.SeedCourses(context.Background(), defaultCourses)
	if err != nil {
		return err
	}
	fmt.Printf("course setup complete: %d created, %d already present\n", created, len(defaultCourses)-created)
	return nil
}
