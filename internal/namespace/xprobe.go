package namespace

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xprop"
)

// XServer answers probes and property reads against a live connection.
type XServer struct {
	xu *xgbutil.XUtil
}

// NewXServer wraps xu.
func NewXServer(xu *xgbutil.XUtil) *XServer {
	return &XServer{xu: xu}
}

// Probe asks the server whether extension name is present.
func (s *XServer) Probe(name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	reply, err := xproto.QueryExtension(s.xu.Conn(), uint16(len(name)), name).Reply()
	if err != nil {
		return false, err
	}
	return reply.Present, nil
}

// AtomName returns the cached name of a.
func (s *XServer) AtomName(a xproto.Atom) (string, error) {
	return xprop.AtomName(s.xu, a)
}

// NamespaceProperty reads the UTF-8 namespace id of win.
func (s *XServer) NamespaceProperty(win xproto.Window) (string, error) {
	return xprop.PropValStr(xprop.GetProperty(s.xu, win, PropNamespaceID))
}
