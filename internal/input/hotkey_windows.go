//go:build windows

package input

import "golang.design/x/hotkey"

const (
	altModifier   = hotkey.ModAlt
	superModifier = hotkey.ModWin
)
