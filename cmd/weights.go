package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rankwise/internal/weights"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect and manage the weight document",
}

// -- weights show --

var weightsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective weight document, defaults merged in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("weights"); err != nil {
			return err
		}

		src, closeFn, err := configuredWeightsSource(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		w, _, err := weights.Load(ctx, src)
		if err != nil {
			return err
		}
		data, err := weights.Marshal(w)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "# source: %s\n# hash: %s\n", src.Name(), weights.Hash(w))
		_, err = os.Stdout.Write(data)
		return err
	},
}

// -- weights validate --

var weightsValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a weight document and print warnings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var src weights.Source
		closeFn := func() {}
		if len(args) == 1 {
			src = weights.FileSource{Path: args[0]}
		} else {
			if err := cfg.Validate("weights"); err != nil {
				return err
			}
			var err error
			src, closeFn, err = configuredWeightsSource(cmd)
			if err != nil {
				return err
			}
		}
		defer closeFn()

		_, warnings, err := weights.Load(ctx, src)
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: ok (%d warnings)\n", src.Name(), len(warnings))
		return nil
	},
}

// -- weights save --

var weightsSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Validate a weight document and store it as the latest version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "weights: read %s", args[0])
		}
		w, err := weights.Parse(data)
		if err != nil {
			return err
		}
		if _, err := weights.Validate(w); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SaveWeightDocument(ctx, data); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "saved weight document %s\n", weights.Hash(w))
		return nil
	},
}

// configuredWeightsSource resolves the source from config, opening the store
// only when the document lives there.
func configuredWeightsSource(cmd *cobra.Command) (weights.Source, func(), error) {
	if cfg.Engine.WeightsSource != "store" {
		return weights.FileSource{Path: cfg.Engine.WeightsPath}, func() {}, nil
	}
	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return weights.StoreSource{Store: st}, func() { _ = st.Close() }, nil
}

func init() {
	weightsCmd.AddCommand(weightsShowCmd, weightsValidateCmd, weightsSaveCmd)
	rootCmd.AddCommand(weightsCmd)
}
