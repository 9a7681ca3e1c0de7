package grades

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	gradesApp "github.com/felixgeelhaar/schooldesk/internal/grades/application"
	"github.com/felixgeelhaar/schooldesk/internal/grades/domain"
	"github.com/spf13/cobra"
)

var (
	classID    string
	subjectID  int64
	term       string
	jsonOutput bool
)

// Cmd is the grades command group
var Cmd = &cobra.Command{
	Use:   "grades",
	Short: "Enter and list grades",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List grades",
	Long: `List the grades of a class, optionally for one subject and term.

Examples:
  schooldesk grades list --class 4 --term T1
  schooldesk grades list --class 4 --subject 2 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Grades == nil {
			return cli.ErrNotInitialized
		}
		query := gradesApp.ListGradesQuery{Filter: filter()}
		grades, err := gradesApp.NewListGradesHandler(app.Grades).Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to list grades: %w", err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return cli.PrintJSON(out, grades)
		}
		if len(grades) == 0 {
			fmt.Fprintln(out, "No grades found.")
			return nil
		}
		cli.Header(out, "Grades (%d)", len(grades))
		for _, g := range grades {
			fmt.Fprintf(out, "  subject %-5d student %-6d %6.2f %s\n", g.Subject, g.Student, g.Score, g.Term)
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <student-id> <subject-id> <score>",
	Short: "Enter a grade",
	Long: `Enter or change a grade. A comma is accepted as decimal separator.

Examples:
  schooldesk grades set 31 2 14,5 --class 4 --term T1`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid student id %q", args[0])
		}
		subject, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid subject id %q", args[1])
		}
		sheet, err := loadSheet(cmd)
		if err != nil {
			return err
		}

		key := domain.Key{StudentID: student, SubjectID: subject}
		if err := sheet.Handle(cmd.Context(), gradesApp.SetScoreCommand{Key: key, Raw: args[2]}); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				return verr
			}
			return fmt.Errorf("failed to save grade: %w", err)
		}
		saved, _ := sheet.Grade(key)
		fmt.Fprintf(cmd.OutOrStdout(), "Grade saved: %s = %.2f\n", key, saved.Score)
		return nil
	},
}

func init() {
	Cmd.PersistentFlags().StringVar(&classID, "class", "", "school class id")
	Cmd.PersistentFlags().StringVar(&term, "term", "", "term")
	Cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	listCmd.Flags().Int64Var(&subjectID, "subject", 0, "only this subject id")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(setCmd)
}

func loadSheet(cmd *cobra.Command) (*gradesApp.Sheet, error) {
	app := cli.GetApp()
	if app == nil || app.Grades == nil {
		return nil, cli.ErrNotInitialized
	}
	if err := app.Grades.Load(cmd.Context(), filter()); err != nil {
		return nil, fmt.Errorf("failed to load grades: %w", err)
	}
	return app.Grades, nil
}

func filter() domain.Filter {
	return domain.Filter{ClassID: classID, SubjectID: subjectID, Term: term}
}
