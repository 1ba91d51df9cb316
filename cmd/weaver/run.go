package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/specs-feup/weaver/internal/log"
	"github.com/specs-feup/weaver/internal/model"
	"github.com/specs-feup/weaver/internal/session"
	"github.com/specs-feup/weaver/internal/weave"
)

var errJobFailed = errors.New("weaving failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run weaves a single source file and prints the result as JSON",
	RunE:  doRun,
}

var (
	flagTool           string
	flagSource         string
	flagSourceFilename string
	flagScript         string
	flagArgs           []string
	flagOut            string
)

func bindRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagTool, "tool", "", "weaving tool, for example clava")
	f.StringVar(&flagSource, "source", "", "source file to weave")
	f.StringVar(&flagSourceFilename, "source-filename", "", "name of the source inside the session, default is base name of --source")
	f.StringVar(&flagScript, "script", "", "transformation script")
	f.StringArrayVar(&flagArgs, "flag", nil, "extra argument passed to the tool, can be repeated")
	f.StringVar(&flagOut, "out", "", "directory to store the output files to")
	f.String("launcher", "", "executable starting the weaving tool (weaver.launcher)")
	f.String("temp-dir", "", "directory holding the session directory (weaver.temp_dir)")
	f.String("timeout", "", "deadline of the tool run, 0s disables it (weaver.timeout)")
	for _, name := range []string{"tool", "source", "script"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("weaver",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	// flags of run are not bound to viper, they would clash with serve
	f := cmd.Flags()
	for flag, dst := range map[string]*string{
		"launcher": &config.Weaver.Launcher,
		"temp-dir": &config.Weaver.TempDir,
		"timeout":  &config.Weaver.Timeout,
	} {
		if f.Changed(flag) {
			*dst, _ = f.GetString(flag)
		}
	}
	if err := config.Check(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	source, err := os.ReadFile(flagSource)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	script, err := os.ReadFile(flagScript)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	sourceFilename := flagSourceFilename
	if sourceFilename == "" {
		sourceFilename = filepath.Base(flagSource)
	}

	sessions := session.NewManager(config.Weaver.TempDir)
	executor := weave.NewExecutor(weave.NewConfig(config.Weaver), sessions)
	res, err := executor.ExecuteJob(ctx, model.JobRequest{
		Tool:           flagTool,
		SourceCode:     string(source),
		SourceFilename: sourceFilename,
		ScriptCode:     string(script),
		Args:           flagArgs,
		SessionDir:     sessions.Path(uuid.NewString()),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if flagOut != "" && !res.ExceptionOccurred {
		x, err := weave.NewExporter(flagOut)
		if err != nil {
			return fmt.Errorf("opening output directory: %w", err)
		}
		defer func() {
			_ = x.Close()
		}()
		if err := x.Export(ctx, res); err != nil {
			return fmt.Errorf("exporting outputs: %w", err)
		}
	}

	if res.ExceptionOccurred {
		return errJobFailed
	}
	return nil
}
