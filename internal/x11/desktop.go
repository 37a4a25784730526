package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// PublishDesktop advertises the single desktop the manager runs.
func (c *Connection) PublishDesktop() {
	if err := ewmh.NumberOfDesktopsSet(c.XUtil, 1); err != nil {
		c.logger.Warn("failed to set _NET_NUMBER_OF_DESKTOPS", "error", err)
	}
	if err := ewmh.CurrentDesktopSet(c.XUtil, 0); err != nil {
		c.logger.Warn("failed to set _NET_CURRENT_DESKTOP", "error", err)
	}
	if err := ewmh.DesktopNamesSet(c.XUtil, []string{WMName}); err != nil {
		c.logger.Warn("failed to set _NET_DESKTOP_NAMES", "error", err)
	}
}

// PlaceOnDesktop writes _NET_WM_DESKTOP for a managed client.
func (c *Connection) PlaceOnDesktop(id xproto.Window) {
	if err := ewmh.WmDesktopSet(c.XUtil, id, 0); err != nil {
		c.logger.Debug("failed to set _NET_WM_DESKTOP", "window", id, "error", err)
	}
}
