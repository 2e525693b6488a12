// Package common holds guard helpers shared by the ledger and risk modules.
package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// Module names recognised by the pause switchboard.
const (
	ModuleHub   = "hub"
	ModuleSpoke = "spoke"
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed PauseView for configuration-driven deployments.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool { return s[module] }
