package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rankwise/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load tenants, accounts, keywords, content and observations from a fixture file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		f, err := readFixture(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Seed(ctx, f); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "seeded %d tenants, %d accounts, %d keywords, %d contents, %d observations\n",
			len(f.Tenants), len(f.Accounts), len(f.Keywords), len(f.Contents), len(f.Observations))
		return nil
	},
}

func readFixture(path string) (*store.Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}
	var f store.Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "seed: parse %s", path)
	}
	return &f, nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
