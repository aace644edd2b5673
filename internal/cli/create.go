package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new experiment",
		Long: `Create a new experiment interactively: variants with landing
pages and traffic weights, plus a conversion goal. The experiment is
created as a draft; use 'landerd start' to run it.

Examples:
  landerd create
  landerd create hero-test`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runCreate(name)
		},
	}
	return cmd
}

func runCreate(name string) error {
	var err error
	if name == "" {
		name, err = promptString("Experiment name", func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("name must not be empty")
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	variants, err := promptVariants()
	if err != nil {
		return err
	}

	goal, err := promptGoal()
	if err != nil {
		return err
	}

	return withRegistry(func(r *experiment.Registry, _ *store.SQLiteStore) error {
		e := &store.Experiment{
			Name:     name,
			Variants: variants,
			Goals:    []store.Goal{goal},
		}
		if err := r.Create(context.Background(), e); err != nil {
			return fmt.Errorf("failed to create experiment: %w", err)
		}

		fmt.Printf("Created experiment '%s' (%s) with %d variants:\n", e.Name, e.ID, len(e.Variants))
		for _, v := range e.Variants {
			control := ""
			if v.IsControl {
				control = " (control)"
			}
			fmt.Printf("  %s -> page %s, %.1f%%%s\n", v.Name, v.LandingPageID, v.Weight, control)
		}
		fmt.Printf("Goal: %s (%s on %s)\n", goal.Name, goal.Type, goal.Target)
		fmt.Printf("\nStart it with: landerd start %s\n", e.ID)
		return nil
	})
}

func promptVariants() ([]store.Variant, error) {
	countStr, err := promptString("Number of variants", func(input string) error {
		n, err := strconv.Atoi(input)
		if err != nil || n < 2 || n > 10 {
			return fmt.Errorf("enter a number between 2 and 10")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	count, _ := strconv.Atoi(countStr)

	defaultWeight := 100.0 / float64(count)
	variants := make([]store.Variant, 0, count)
	for i := 0; i < count; i++ {
		fmt.Printf("\nVariant %d of %d\n", i+1, count)

		vname, err := promptString("  Name", nonEmpty("name"))
		if err != nil {
			return nil, err
		}
		pageID, err := promptString("  Landing page id", nonEmpty("landing page id"))
		if err != nil {
			return nil, err
		}
		weightStr, err := promptStringDefault("  Traffic weight (%)",
			strconv.FormatFloat(defaultWeight, 'f', -1, 64),
			func(input string) error {
				w, err := strconv.ParseFloat(input, 64)
				if err != nil || w < 0 || w > 100 {
					return fmt.Errorf("enter a weight between 0 and 100")
				}
				return nil
			})
		if err != nil {
			return nil, err
		}
		weight, _ := strconv.ParseFloat(weightStr, 64)

		variants = append(variants, store.Variant{
			Name:          vname,
			LandingPageID: pageID,
			Weight:        weight,
			IsControl:     i == 0,
		})
	}
	return variants, nil
}

func promptGoal() (store.Goal, error) {
	fmt.Println("\nConversion goal")

	name, err := promptString("  Name", nonEmpty("goal name"))
	if err != nil {
		return store.Goal{}, err
	}

	sel := promptui.Select{
		Label: "  Type",
		Items: []string{"click", "conversion", "engagement", "custom"},
		Size:  4,
	}
	_, goalType, err := sel.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return store.Goal{}, err
	}

	target, err := promptString("  Target (selector or path)", nonEmpty("target"))
	if err != nil {
		return store.Goal{}, err
	}

	return store.Goal{Name: name, Type: goalType, Target: target, IsPrimary: true}, nil
}

func promptString(label string, validate promptui.ValidateFunc) (string, error) {
	return promptStringDefault(label, "", validate)
}

func promptStringDefault(label, def string, validate promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  def,
		Validate: validate,
	}
	value, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func nonEmpty(what string) promptui.ValidateFunc {
	return func(input string) error {
		if strings.TrimSpace(input) == "" {
			return fmt.Errorf("%s must not be empty", what)
		}
		return nil
	}
}
