package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/specs-feup/weaver/internal/model"
)

// bindOverride makes the config key settable by the flag and by the
// WEAVER_<KEY> environment variable, WEAVER_POOL_SIZE for pool.size.
func bindOverride(v *viper.Viper, key string, flag *pflag.Flag) {
	v.SetEnvPrefix("weaver")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if flag != nil {
		if err := v.BindPFlag(key, flag); err != nil {
			panic(err)
		}
	}
	if err := v.BindEnv(key); err != nil {
		panic(err)
	}
}

// applyOverrides copies values set by flags or environment into cfg. The
// caller has to Check the result.
func applyOverrides(v *viper.Viper, cfg *model.Config) error {
	// legacy variable of the node.js service
	if port, ok := os.LookupEnv("PORT"); ok && !v.IsSet("server.addr") && port != "" {
		cfg.Server.Addr = ":" + port
	}

	strs := map[string]*string{
		"server.addr":     &cfg.Server.Addr,
		"weaver.launcher": &cfg.Weaver.Launcher,
		"weaver.temp_dir": &cfg.Weaver.TempDir,
		"weaver.timeout":  &cfg.Weaver.Timeout,
		"service.log":     &cfg.Service.Log,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet("pool.size") {
		n := v.GetInt("pool.size")
		if n < 1 {
			return fmt.Errorf("pool.size must be positive, got %q", v.GetString("pool.size"))
		}
		cfg.Pool.Size = n
	}
	if v.IsSet("janitor.enabled") {
		cfg.Janitor.Enabled = v.GetBool("janitor.enabled")
	}
	if v.IsSet("service.verbose") {
		cfg.Service.Verbose = v.GetBool("service.verbose")
	}
	return nil
}
