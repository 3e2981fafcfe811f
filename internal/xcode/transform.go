package xcode

import (
	_ "embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
)

//go:embed upload_dsyms.sh
var uploadScript string

// UploadScript is the body of the injected dSYM upload phase.
func UploadScript() string {
	return uploadScript
}

const (
	DefaultProjectName     = "Unity-iPhone.xcodeproj"
	DefaultFrameworkTarget = "UnityFramework"
	DefaultMainTarget      = "Unity-iPhone"
	DefaultBundleName      = "HockeySDKResources.bundle"
	DefaultPhaseName       = "Upload dSYM files to BugSplat"
	DefaultServerURLKey    = "BugsplatServerURL"

	frameworksDir = "Frameworks"
	shellPath     = "/bin/sh"
	// Past the end of any real phase list, so the phase runs after linking.
	phaseIndex = 999
)

type Options struct {
	// ServerURL is written to the app manifest for the native crash reporter.
	ServerURL       string
	ProjectName     string
	FrameworkTarget string
	MainTarget      string
	BundleName      string
	PhaseName       string
	ServerURLKey    string
}

func DefaultOptions(serverURL string) Options {
	return Options{
		ServerURL:       serverURL,
		ProjectName:     DefaultProjectName,
		FrameworkTarget: DefaultFrameworkTarget,
		MainTarget:      DefaultMainTarget,
		BundleName:      DefaultBundleName,
		PhaseName:       DefaultPhaseName,
		ServerURLKey:    DefaultServerURLKey,
	}
}

// ServerURL is the base URL of a crash database on the reporting service.
func ServerURL(database, domain string) string {
	return fmt.Sprintf("https://%s.%s/", database, domain)
}

// Patch prepares an exported iOS project for symbol upload. It can be run any number
// of times against the same export. Missing targets or bundles only produce warnings;
// an error means the descriptor or manifest could not be read or written.
func Patch(exportDir string, opts Options) error {
	projectPath := ProjectPath(exportDir, opts.ProjectName)
	project, err := LoadProject(projectPath)
	if err != nil {
		return err
	}

	mainTarget, mainOK := project.TargetByName(opts.MainTarget)
	if !mainOK {
		slog.Warn("Could not find main target, skipping build setting changes", "target", opts.MainTarget)
	}
	// Older exports build everything in the main target.
	frameworkTarget, frameworkOK := project.TargetByName(opts.FrameworkTarget)
	if !frameworkOK && mainOK {
		frameworkTarget, frameworkOK = mainTarget, true
	}
	if !frameworkOK {
		slog.Warn("Could not find framework target", "target", opts.FrameworkTarget)
	}

	if frameworkOK {
		if err := configureTarget(project, frameworkTarget, true); err != nil {
			return err
		}
	}
	if mainOK && mainTarget != frameworkTarget {
		if err := configureTarget(project, mainTarget, false); err != nil {
			return err
		}
	}

	manifestPath := filepath.Join(exportDir, "Info.plist")
	if err := SetManifestString(manifestPath, opts.ServerURLKey, opts.ServerURL); err != nil {
		return err
	}

	if mainOK {
		if err := addBundle(project, exportDir, mainTarget, opts.BundleName); err != nil {
			return err
		}
		if err := addUploadPhase(project, mainTarget, opts.PhaseName); err != nil {
			return err
		}
	}

	if err := project.Save(projectPath); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	slog.Info("Patched iOS project", "project", projectPath)
	return nil
}

func configureTarget(project *Project, targetID string, framework bool) error {
	if err := project.SetBuildProperty(targetID, "ENABLE_BITCODE", "NO"); err != nil {
		return err
	}
	if err := project.SetBuildProperty(targetID, "DEBUG_INFORMATION_FORMAT", "dwarf-with-dsym"); err != nil {
		return err
	}
	if framework {
		return project.AddBuildProperty(targetID, "OTHER_LDFLAGS", "-ObjC")
	}
	return nil
}

func addBundle(project *Project, exportDir, targetID, bundleName string) error {
	bundlePath, err := findBundle(filepath.Join(exportDir, frameworksDir), bundleName)
	if err != nil {
		return err
	}
	if bundlePath == "" {
		slog.Warn("Could not find the resource bundle", "bundle", bundleName)
		return nil
	}

	relative, err := filepath.Rel(exportDir, bundlePath)
	if err != nil {
		return fmt.Errorf("failed to resolve bundle path: %w", err)
	}
	ref, err := project.AddFolderReference(filepath.ToSlash(relative), bundleName)
	if err != nil {
		return err
	}
	return project.AddFileToBuild(targetID, ref)
}

var errFound = errors.New("found")

// findBundle returns the first directory named bundleName under root in lexical walk
// order, or "" if there is none.
func findBundle(root, bundleName string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() && d.Name() == bundleName {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", fmt.Errorf("failed to search %s: %w", root, err)
	}
	return found, nil
}

func addUploadPhase(project *Project, targetID, name string) error {
	if _, ok := project.ShellScriptPhase(targetID, name); ok {
		return nil
	}
	_, err := project.InsertShellScriptPhase(phaseIndex, targetID, name, shellPath, strings.TrimSpace(uploadScript)+"\n")
	return err
}
