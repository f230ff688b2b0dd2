package cmd

import "github.com/dotcommander/scour/internal/config"

func isNoArgs(cfg *config.Config) bool {
	return cfg.Prefix == "" &&
		!cfg.ShowHelp &&
		!cfg.Dirs &&
		!cfg.EditSettings &&
		!cfg.ResetSettings
}
