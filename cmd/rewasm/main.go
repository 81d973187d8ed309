// Command rewasm loads a WebAssembly module and executes its exported _start
// function, printing the produced values.
package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rewasm/rewasm"
	"github.com/rewasm/rewasm/api"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rewasm",
		Short:         "rewasm runs WebAssembly modules in a register-based interpreter",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		args       []string
		stackSlots int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run <module.wasm>",
		Short: "Run the module's exported _start function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			log := zap.NewNop()
			if verbose {
				var err error
				if log, err = zap.NewDevelopment(); err != nil {
					return err
				}
				defer log.Sync() //nolint:errcheck
			}

			r := rewasm.NewRuntime(
				rewasm.WithLogger(log),
				rewasm.WithStackSlots(stackSlots),
			)

			mod, err := r.LoadModule(cmdArgs[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", cmdArgs[0], err)
			}
			defer mod.Close()

			params, results, err := mod.EntryType()
			if err != nil {
				return err
			}
			callArgs, err := parseArgs(args, params)
			if err != nil {
				return err
			}

			values, err := r.Call(mod, callArgs...)
			if err != nil {
				return fmt.Errorf("eval %s: %w", cmdArgs[0], err)
			}

			out := cmd.OutOrStdout()
			for i, v := range values {
				fmt.Fprintf(out, "%s\n", formatValue(results[i], v))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&args, "arg", "a", nil,
		"argument to _start as type:value, e.g. i32:10 or f64:1.5 (repeatable)")
	cmd.Flags().IntVar(&stackSlots, "stack-slots", 1<<16,
		"size of the value stack in 64-bit slots")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"log load-time diagnostics to stderr")
	return cmd
}

// parseArgs converts type:value flags into stack cells, checking them against
// the entry function's parameter types.
func parseArgs(flags []string, params []api.ValueType) ([]uint64, error) {
	if len(flags) != len(params) {
		return nil, fmt.Errorf("_start takes %d arguments, but %d were given", len(params), len(flags))
	}

	out := make([]uint64, len(flags))
	for i, f := range flags {
		typ, val, found := strings.Cut(f, ":")
		if !found {
			return nil, fmt.Errorf("argument %q must have the form type:value", f)
		}
		if name := api.ValueTypeName(params[i]); name != typ {
			return nil, fmt.Errorf("argument %d must have type %s, but was %s", i, name, typ)
		}
		switch params[i] {
		case api.ValueTypeI32:
			v, err := strconv.ParseInt(val, 0, 64)
			if err != nil || v > math.MaxUint32 || v < math.MinInt32 {
				return nil, fmt.Errorf("invalid i32 argument: %q", val)
			}
			out[i] = api.EncodeI32(int32(v))
		case api.ValueTypeI64:
			v, err := strconv.ParseInt(val, 0, 64)
			if err != nil {
				// Large unsigned values are accepted as their bit pattern.
				u, uerr := strconv.ParseUint(val, 0, 64)
				if uerr != nil {
					return nil, fmt.Errorf("invalid i64 argument: %q", val)
				}
				out[i] = u
				continue
			}
			out[i] = api.EncodeI64(v)
		case api.ValueTypeF32:
			v, err := strconv.ParseFloat(val, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid f32 argument: %q", val)
			}
			out[i] = api.EncodeF32(float32(v))
		case api.ValueTypeF64:
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid f64 argument: %q", val)
			}
			out[i] = api.EncodeF64(v)
		default:
			return nil, fmt.Errorf("unsupported parameter type %s", api.ValueTypeName(params[i]))
		}
	}
	return out, nil
}

func formatValue(t api.ValueType, v uint64) string {
	switch t {
	case api.ValueTypeI32:
		return fmt.Sprintf("i32:%d", api.DecodeI32(v))
	case api.ValueTypeI64:
		return fmt.Sprintf("i64:%d", int64(v))
	case api.ValueTypeF32:
		return fmt.Sprintf("f32:%g", api.DecodeF32(v))
	case api.ValueTypeF64:
		return fmt.Sprintf("f64:%g", api.DecodeF64(v))
	}
	return fmt.Sprintf("%s:%#x", api.ValueTypeName(t), v)
}
