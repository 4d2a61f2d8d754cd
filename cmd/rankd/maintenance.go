package main

import (
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	app "github.com/akashca-pro/codex-problem-service-sub000/internal/app"
)

func newResyncCmd(env *runtimeEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Rebuild the namespace from the submission store and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, src, closeAll, err := openAll(ctx, env)
			if err != nil {
				return err
			}
			defer closeAll()

			svc := app.New(store, src, append(app.OptionsFromConfig(env.cfg), app.WithLogger(env.log))...)
			res, err := svc.Resync(ctx)
			if err != nil {
				return err
			}
			p := message.NewPrinter(language.English)
			cmd.Print(p.Sprintf("resync %s: %d users, %d entities, %d keys replaced in %.1fms\n",
				res.RunID, res.Users, res.Entities, res.KeysDeleted, res.DurationMS))
			return nil
		},
	}
}

func newClearCmd(env *runtimeEnv) *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every key of a namespace (not atomic)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if namespace == "" {
				return errors.New("--namespace is required")
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, env.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := app.New(store, nil, app.WithNamespace(env.cfg.Namespace), app.WithScanBatchSize(env.cfg.ScanBatchSize), app.WithLogger(env.log))
			n, err := svc.ForceClear(ctx, namespace)
			if err != nil {
				return err
			}
			p := message.NewPrinter(language.English)
			cmd.Print(p.Sprintf("cleared %d keys from %q\n", n, namespace))
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace to clear")
	return cmd
}
