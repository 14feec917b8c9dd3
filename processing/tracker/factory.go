package tracker

import (
	"fmt"

	"visitordash/internal/config"
)

// Script is a counting script run by the configured interpreter.
type Script struct {
	Source config.SourceType
	Path   string
	Args   []string
}

func ScriptFor(cfg *config.Config, source config.SourceType) (Script, error) {
	switch source {
	case config.SourceVideo, config.SourceWebcam:
		path := cfg.Script(source)
		if path == "" {
			return Script{}, fmt.Errorf("no script configured for %s", source)
		}
		return Script{Source: source, Path: path}, nil
	default:
		return Script{}, fmt.Errorf("unknown source: %s", source)
	}
}
