package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type serverOverrides struct {
	Addr      string
	AuthToken string
	RateLimit *int
	RateBurst *int
}

func loadServerOverrides() serverOverrides {
	overrides := serverOverrides{}

	if viper.IsSet("server.addr") {
		overrides.Addr = viper.GetString("server.addr")
	}
	if viper.IsSet("server.auth_token") {
		overrides.AuthToken = viper.GetString("server.auth_token")
	}
	if viper.IsSet("server.rate_limit") {
		val := viper.GetInt("server.rate_limit")
		overrides.RateLimit = &val
	}
	if viper.IsSet("server.rate_burst") {
		val := viper.GetInt("server.rate_burst")
		overrides.RateBurst = &val
	}

	return overrides
}

// applyConfigDefaults merges config file values into serve flags when the user
// did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadServerOverrides()

	if overrides.Addr != "" {
		setStringFlagIfUnset(cmd.Flags(), "addr", overrides.Addr)
	}
	if overrides.AuthToken != "" {
		setStringFlagIfUnset(cmd.Flags(), "auth-token", overrides.AuthToken)
	}
	if overrides.RateLimit != nil {
		setIntFlagIfUnset(cmd.Flags(), "rate-limit", *overrides.RateLimit)
	}
	if overrides.RateBurst != nil {
		setIntFlagIfUnset(cmd.Flags(), "rate-burst", *overrides.RateBurst)
	}
}

func setIntFlagIfUnset(flags *pflag.FlagSet, name string, value int) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(strconv.Itoa(value))
}

func setStringFlagIfUnset(flags *pflag.FlagSet, name, value string) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(value)
}
