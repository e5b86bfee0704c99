//go:build darwin

package input

import "golang.design/x/hotkey"

const (
	altModifier   = hotkey.ModOption
	superModifier = hotkey.ModCmd
)
