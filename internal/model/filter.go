package model

// Detection selects which path decides whether a window is managed.
type Detection string

const (
	// DetectLegacy filters on the per-window GNUstep attributes.
	DetectLegacy Detection = "legacy"
	// DetectWrapper classifies by EWMH window type.
	DetectWrapper Detection = "wrapper"
)

// ShouldManage reports whether the manager should frame w. Exactly one
// detection path applies, chosen by d.
func ShouldManage(w *Window, d Detection) bool {
	if w.Flags.Has(FlagOverrideRedirect) || w.Flags.Has(FlagHelper) {
		return false
	}
	if d == DetectLegacy {
		return shouldManageLegacy(w)
	}
	return shouldManageWrapper(w)
}

func shouldManageLegacy(w *Window) bool {
	a := w.Attrs
	if a == nil {
		return true
	}
	switch a.Level() {
	case LevelDesktop, LevelDock, LevelMainMenu:
		return false
	}
	if a.HasStyleAttr() && a.WindowStyle == StyleBorderless {
		return false
	}
	return true
}

func shouldManageWrapper(w *Window) bool {
	switch w.Type {
	case TypeNormal, TypeDialog:
		return true
	default:
		return false
	}
}

// ShowInSwitcher reports whether alt-tab should offer w.
func ShowInSwitcher(w *Window) bool {
	return !w.Flags.Has(FlagSkipTaskbar)
}

// ApplyAttributes folds GNUstep attributes into w's flags.
func ApplyAttributes(w *Window, a *GNUstepAttributes) {
	w.Attrs = a
	if a == nil {
		return
	}
	w.SetFlag(FlagDocumentEdited, a.DocumentEdited())
	if a.HasStyleAttr() && !a.HasStyle(StyleResizable) {
		w.SetFlag(FlagFixedSize, true)
	}
}
