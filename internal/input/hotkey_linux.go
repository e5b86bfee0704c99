//go:build linux

package input

import "golang.design/x/hotkey"

// X11 maps Alt to Mod1 and Super to Mod4 on most keyboards
const (
	altModifier   = hotkey.Mod1
	superModifier = hotkey.Mod4
)
