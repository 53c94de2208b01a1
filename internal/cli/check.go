package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/rules"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <a> <b> [c]",
		Short: "Check a triple, or complete a pair",
		Long: `With three card ids, report whether they form a set.
With two, print the id of the unique card that completes them.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseCards(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 2 {
				_, err = fmt.Fprintf(out, "%d %d -> %d\n", ids[0], ids[1], rules.ThirdCard(ids[0], ids[1]))
				return err
			}
			verdict := "is not a set"
			if rules.IsSet(ids[0], ids[1], ids[2]) {
				verdict = "is a set"
			}
			_, err = fmt.Fprintf(out, "%d %d %d %s\n", ids[0], ids[1], ids[2], verdict)
			return err
		},
	}
}

func parseCards(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("card %q is not a number", a)
		}
		if !rules.ValidCard(id) {
			return nil, fmt.Errorf("card %d out of range [%d,%d]", id, rules.MinCard, rules.MaxCard)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
