// Package cli wires command-line flags and environment variables into one
// option list, so every binary is configured the same way.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option.
type Opt struct {
	DestP   interface{} // pointer to the destination
	Flag    string
	Default interface{}
	Desc    string
}

// Program parses CLI options.
type Program struct {
	// Run is invoked by cobra on execute.
	Run func() error
	// Name is the name of the program in help usage.
	Name string
	// EnvPrefix prefixes every environment variable. Defaults to the
	// upper-case Name.
	EnvPrefix string
	// Short is the one-line help text.
	Short string
	// Opts are the command line/env var options to the program.
	Opts []Opt
}

// NewCommand creates a cobra command whose options can also be set through
// environment variables: flag "shard-timeout" of program prefix SEGROUTER is
// read from SEGROUTER_SHARD_TIMEOUT. An explicit flag wins over the
// environment, which wins over the default.
func NewCommand(v *viper.Viper, p *Program) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   p.Name,
		Short: p.Short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return p.Run()
		},
		SilenceUsage: true,
	}

	prefix := p.EnvPrefix
	if prefix == "" {
		prefix = strings.ToUpper(p.Name)
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := BindOptions(v, cmd, p.Opts); err != nil {
		return nil, err
	}
	return cmd, nil
}

// BindOptions adds opts to cmd and registers them with v. Each destination
// is seeded from v immediately, so values from the environment apply unless
// the flag is given explicitly.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) error {
	for _, o := range opts {
		flags := cmd.Flags()
		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			flags.StringVar(destP, o.Flag, d, o.Desc)
			if err := bind(v, cmd, o.Flag); err != nil {
				return err
			}
			*destP = v.GetString(o.Flag)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			flags.IntVar(destP, o.Flag, d, o.Desc)
			if err := bind(v, cmd, o.Flag); err != nil {
				return err
			}
			*destP = v.GetInt(o.Flag)
		case *int64:
			var d int64
			if o.Default != nil {
				d = o.Default.(int64)
			}
			flags.Int64Var(destP, o.Flag, d, o.Desc)
			if err := bind(v, cmd, o.Flag); err != nil {
				return err
			}
			*destP = v.GetInt64(o.Flag)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			flags.BoolVar(destP, o.Flag, d, o.Desc)
			if err := bind(v, cmd, o.Flag); err != nil {
				return err
			}
			*destP = v.GetBool(o.Flag)
		case *time.Duration:
			var d time.Duration
			if o.Default != nil {
				d = o.Default.(time.Duration)
			}
			flags.DurationVar(destP, o.Flag, d, o.Desc)
			if err := bind(v, cmd, o.Flag); err != nil {
				return err
			}
			parsed, err := cast.ToDurationE(v.Get(o.Flag))
			if err != nil {
				return fmt.Errorf("%s: %w", o.Flag, err)
			}
			*destP = parsed
		case *[]string:
			var d []string
			if o.Default != nil {
				d = o.Default.([]string)
			}
			flags.StringSliceVar(destP, o.Flag, d, o.Desc)
			if err := bind(v, cmd, o.Flag); err != nil {
				return err
			}
			*destP = v.GetStringSlice(o.Flag)
		case *zapcore.Level:
			var d zapcore.Level
			if o.Default != nil {
				d = o.Default.(zapcore.Level)
			}
			LevelVar(flags, destP, o.Flag, d, o.Desc)
			if err := bind(v, cmd, o.Flag); err != nil {
				return err
			}
			if s := v.GetString(o.Flag); s != "" {
				if err := destP.Set(s); err != nil {
					return fmt.Errorf("%s: %w", o.Flag, err)
				}
			}
		default:
			return fmt.Errorf("option %s: unsupported destination type %T", o.Flag, o.DestP)
		}
	}
	return nil
}

func bind(v *viper.Viper, cmd *cobra.Command, key string) error {
	return v.BindPFlag(key, cmd.Flags().Lookup(key))
}
