package model

// GNUstep window attributes, published by GNUstep applications in the
// _GNUSTEP_WM_ATTR property as nine CARD32 values.
const (
	GSWindowStyleAttr       = 1 << 0
	GSWindowLevelAttr       = 1 << 1
	GSMiniaturizePixmapAttr = 1 << 2
	GSCloseButtonPixmapAttr = 1 << 3
	GSExtraFlagsAttr        = 1 << 7

	GSDocumentEditedFlag = 1 << 0
)

// Window style mask bits.
const (
	StyleBorderless     = 0
	StyleTitled         = 1 << 0
	StyleClosable       = 1 << 1
	StyleMiniaturizable = 1 << 2
	StyleResizable      = 1 << 3
)

// Window levels that change how a window is treated.
const (
	LevelDesktop  = -1000
	LevelNormal   = 0
	LevelDock     = 5
	LevelMainMenu = 20
)

// GNUstepAttributes is the decoded _GNUSTEP_WM_ATTR property.
type GNUstepAttributes struct {
	Flags       uint32
	WindowStyle uint32
	WindowLevel int32
	ExtraFlags  uint32
}

// ParseGNUstepAttributes decodes the raw property values. It reports false
// when the property is too short to be valid.
func ParseGNUstepAttributes(vals []uint) (*GNUstepAttributes, bool) {
	if len(vals) < 9 {
		return nil, false
	}
	return &GNUstepAttributes{
		Flags:       uint32(vals[0]),
		WindowStyle: uint32(vals[1]),
		WindowLevel: int32(uint32(vals[2])),
		ExtraFlags:  uint32(vals[8]),
	}, true
}

// HasStyleAttr reports whether the client published a style mask at all.
func (a *GNUstepAttributes) HasStyleAttr() bool { return a.Flags&GSWindowStyleAttr != 0 }

// HasStyle reports whether the style attribute is present and includes bit.
func (a *GNUstepAttributes) HasStyle(bit uint32) bool {
	return a.HasStyleAttr() && a.WindowStyle&bit != 0
}

// Level returns the window level, or LevelNormal when unset.
func (a *GNUstepAttributes) Level() int32 {
	if a.Flags&GSWindowLevelAttr == 0 {
		return LevelNormal
	}
	return a.WindowLevel
}

// DocumentEdited reports whether the client marked its document dirty.
func (a *GNUstepAttributes) DocumentEdited() bool {
	return a.Flags&GSExtraFlagsAttr != 0 && a.ExtraFlags&GSDocumentEditedFlag != 0
}
