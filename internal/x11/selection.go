package x11

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/tessera/internal/geom"
)

// ErrAnotherManager means a different window manager holds the screen.
var ErrAnotherManager = errors.New("another window manager is running")

// RootEventMask is selected on the root once the manager selection is held.
const RootEventMask = xproto.EventMaskSubstructureRedirect |
	xproto.EventMaskSubstructureNotify |
	xproto.EventMaskStructureNotify |
	xproto.EventMaskPropertyChange |
	xproto.EventMaskFocusChange

// WMName is advertised through _NET_WM_NAME on the supporting window.
const WMName = "tessera"

// RegisterAsWindowManager acquires WM_S<screen>, takes SubstructureRedirect
// on the root and announces the new owner. Failure is fatal for a manager.
func (c *Connection) RegisterAsWindowManager(screen int) error {
	conn := c.XUtil.Conn()
	name := fmt.Sprintf("WM_S%d", screen)
	atom, err := xprop.Atm(c.XUtil, name)
	if err != nil {
		return fmt.Errorf("failed to intern %s: %w", name, err)
	}

	owner, err := xproto.GetSelectionOwner(conn, atom).Reply()
	if err != nil {
		return fmt.Errorf("failed to query %s owner: %w", name, err)
	}
	if owner.Owner != xproto.WindowNone {
		return fmt.Errorf("%w: %s is owned by 0x%x", ErrAnotherManager, name, owner.Owner)
	}

	win, err := c.CreateWindow(c.Root, geom.R(-100, -100, 1, 1), 0, 0, CreateOptions{
		InputOnly:        true,
		OverrideRedirect: true,
		EventMask:        xproto.EventMaskPropertyChange,
	})
	if err != nil {
		return fmt.Errorf("failed to create selection window: %w", err)
	}
	if err := xproto.SetSelectionOwnerChecked(conn, win.ID, atom, xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("failed to acquire %s: %w", name, err)
	}
	owner, err = xproto.GetSelectionOwner(conn, atom).Reply()
	if err != nil {
		return fmt.Errorf("failed to verify %s owner: %w", name, err)
	}
	if owner.Owner != win.ID {
		return fmt.Errorf("%w: lost %s to 0x%x", ErrAnotherManager, name, owner.Owner)
	}

	err = xproto.ChangeWindowAttributesChecked(conn, c.Root, xproto.CwEventMask, []uint32{RootEventMask}).Check()
	if err != nil {
		var access xproto.AccessError
		if errors.As(err, &access) {
			return fmt.Errorf("%w: substructure redirect denied", ErrAnotherManager)
		}
		return fmt.Errorf("failed to select root events: %w", err)
	}

	c.selectionWin = win.ID
	c.selectionAtom = atom
	if err := c.announceManager(atom); err != nil {
		c.logger.Warn("MANAGER broadcast failed", "error", err)
	}
	c.setSupporting()
	c.logger.Info("window manager selection acquired", "selection", name, "window", win.ID)
	return nil
}

// announceManager sends the ICCCM MANAGER client message to root.
func (c *Connection) announceManager(selection xproto.Atom) error {
	manager, err := xprop.Atm(c.XUtil, "MANAGER")
	if err != nil {
		return err
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: c.Root,
		Type:   manager,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime), uint32(selection), uint32(c.selectionWin), 0, 0,
		}),
	}
	return xproto.SendEventChecked(c.XUtil.Conn(), false, c.Root,
		xproto.EventMaskStructureNotify, string(ev.Bytes())).Check()
}

func (c *Connection) setSupporting() {
	xu := c.XUtil
	if err := ewmh.SupportingWmCheckSet(xu, c.Root, c.selectionWin); err != nil {
		c.logger.Warn("failed to set _NET_SUPPORTING_WM_CHECK on root", "error", err)
	}
	if err := ewmh.SupportingWmCheckSet(xu, c.selectionWin, c.selectionWin); err != nil {
		c.logger.Warn("failed to set _NET_SUPPORTING_WM_CHECK", "error", err)
	}
	if err := ewmh.WmNameSet(xu, c.selectionWin, WMName); err != nil {
		c.logger.Warn("failed to set _NET_WM_NAME", "error", err)
	}
	if err := ewmh.SupportedSet(xu, supportedAtoms); err != nil {
		c.logger.Warn("failed to set _NET_SUPPORTED", "error", err)
	}
}

// AcquireCompositeSelection takes _NET_WM_CM_S<screen> for the compositor.
func (c *Connection) AcquireCompositeSelection(screen int) error {
	if c.selectionWin == 0 {
		return errors.New("manager selection not held")
	}
	name := fmt.Sprintf("_NET_WM_CM_S%d", screen)
	atom, err := xprop.Atm(c.XUtil, name)
	if err != nil {
		return err
	}
	owner, err := xproto.GetSelectionOwner(c.XUtil.Conn(), atom).Reply()
	if err != nil {
		return err
	}
	if owner.Owner != xproto.WindowNone && owner.Owner != c.selectionWin {
		return fmt.Errorf("%s is owned by 0x%x", name, owner.Owner)
	}
	return xproto.SetSelectionOwnerChecked(c.XUtil.Conn(), c.selectionWin, atom, xproto.TimeCurrentTime).Check()
}

// SelectionWindow is the manager's own InputOnly window.
func (c *Connection) SelectionWindow() xproto.Window { return c.selectionWin }

// IsManagerSelection reports whether ev takes the manager selection away.
func (c *Connection) IsManagerSelection(ev xproto.SelectionClearEvent) bool {
	return c.selectionAtom != 0 && ev.Selection == c.selectionAtom && ev.Owner == c.selectionWin
}
