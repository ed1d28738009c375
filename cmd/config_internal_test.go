package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestSetIntFlagIfUnset(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("rate-limit", 10, "")

	setIntFlagIfUnset(flags, "rate-limit", 25)
	if got := flags.Lookup("rate-limit").Value.String(); got != "25" {
		t.Fatalf("expected rate-limit 25, got %s", got)
	}

	// When flag already set, the config value should not win.
	if err := flags.Set("rate-limit", "7"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	setIntFlagIfUnset(flags, "rate-limit", 50)
	if got := flags.Lookup("rate-limit").Value.String(); got != "7" {
		t.Fatalf("expected rate-limit to remain 7, got %s", got)
	}
}

func TestSetStringFlagIfUnset(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "127.0.0.1:8080", "")

	setStringFlagIfUnset(flags, "addr", "0.0.0.0:9090")
	if got := flags.Lookup("addr").Value.String(); got != "0.0.0.0:9090" {
		t.Fatalf("expected addr to take config default, got %s", got)
	}

	if err := flags.Set("addr", "127.0.0.1:3000"); err != nil {
		t.Fatalf("failed to set addr: %v", err)
	}
	setStringFlagIfUnset(flags, "addr", "0.0.0.0:8000")
	if got := flags.Lookup("addr").Value.String(); got != "127.0.0.1:3000" {
		t.Fatalf("expected addr to remain user-provided, got %s", got)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("server.addr", "0.0.0.0:9090")
	viper.Set("server.auth_token", "cfg-token")
	viper.Set("server.rate_limit", 25)
	viper.Set("server.rate_burst", 50)

	overrides := loadServerOverrides()

	if overrides.Addr != "0.0.0.0:9090" {
		t.Fatalf("expected addr override, got %s", overrides.Addr)
	}
	if overrides.AuthToken != "cfg-token" {
		t.Fatalf("expected auth token override, got %s", overrides.AuthToken)
	}
	if overrides.RateLimit == nil || *overrides.RateLimit != 25 {
		t.Fatalf("expected rate limit override 25, got %+v", overrides.RateLimit)
	}
	if overrides.RateBurst == nil || *overrides.RateBurst != 50 {
		t.Fatalf("expected rate burst override 50, got %+v", overrides.RateBurst)
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("server.addr", "0.0.0.0:9090")
	viper.Set("server.rate_limit", 25)

	testCmd := &cobra.Command{Use: "serve"}
	testCmd.Flags().String("addr", "127.0.0.1:8080", "")
	testCmd.Flags().String("auth-token", "", "")
	testCmd.Flags().Int("rate-limit", 10, "")
	testCmd.Flags().Int("rate-burst", 20, "")

	applyConfigDefaults(testCmd)

	if got := testCmd.Flags().Lookup("addr").Value.String(); got != "0.0.0.0:9090" {
		t.Fatalf("expected addr from config, got %s", got)
	}
	if got := testCmd.Flags().Lookup("rate-limit").Value.String(); got != "25" {
		t.Fatalf("expected rate-limit from config, got %s", got)
	}
	if got := testCmd.Flags().Lookup("rate-burst").Value.String(); got != "20" {
		t.Fatalf("expected rate-burst to keep its flag default, got %s", got)
	}
}
