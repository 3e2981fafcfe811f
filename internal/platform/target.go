package platform

import (
	"strings"
)

// Target is the build target a postbuild hook was invoked for.
type Target int

const (
	Unsupported Target = iota
	DesktopX64
	DesktopX86
	IOS
)

// ParseTarget accepts the engine's build target names as well as a few short aliases.
// Anything it does not recognize is Unsupported.
func ParseTarget(name string) Target {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "standalonewindows64", "windows64", "win64", "x86_64":
		return DesktopX64
	case "standalonewindows", "windows", "win32", "x86":
		return DesktopX86
	case "ios", "iphone":
		return IOS
	default:
		return Unsupported
	}
}

func (t Target) String() string {
	switch t {
	case DesktopX64:
		return "StandaloneWindows64"
	case DesktopX86:
		return "StandaloneWindows"
	case IOS:
		return "iOS"
	case Unsupported:
		return "Unsupported"
	}
	return "Unsupported"
}

// PluginArch returns the Assets/Plugins subdirectory holding native plugins for
// targets whose symbols are uploaded by the pipeline.
func (t Target) PluginArch() (string, bool) {
	switch t {
	case DesktopX64:
		return "x86_64", true
	case DesktopX86:
		return "x86", true
	case IOS, Unsupported:
		return "", false
	}
	return "", false
}

// SymbolExtensions is the discovery allow-list for the target.
func (t Target) SymbolExtensions() []string {
	switch t {
	case DesktopX64, DesktopX86:
		return []string{".dll", ".pdb"}
	case IOS, Unsupported:
		return nil
	}
	return nil
}

// NeedsNativeProject reports whether the export must be post-processed before the
// native toolchain builds it.
func (t Target) NeedsNativeProject() bool {
	switch t {
	case IOS:
		return true
	case DesktopX64, DesktopX86, Unsupported:
		return false
	}
	return false
}
