package xcode

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"howett.net/plist"
)

const (
	projectHeader = "// !$*UTF8*$!\n"

	isaNativeTarget       = "PBXNativeTarget"
	isaFileReference      = "PBXFileReference"
	isaBuildFile          = "PBXBuildFile"
	isaResourcesPhase     = "PBXResourcesBuildPhase"
	isaShellScriptPhase   = "PBXShellScriptBuildPhase"
	defaultBuildActionMsk = "2147483647"
)

var (
	ErrInvalidProject = errors.New("invalid project descriptor")
	ErrTargetNotFound = errors.New("target not found")
	ErrObjectNotFound = errors.New("project object not found")
)

// Project is an Xcode project graph loaded from a project.pbxproj file. Objects are
// kept as the generic dictionaries the plist decoder produces so that unknown keys
// survive a round trip.
type Project struct {
	root    map[string]any
	objects map[string]any
}

// ProjectPath returns the descriptor path inside an exported iOS project.
func ProjectPath(exportDir, projectName string) string {
	return filepath.Join(exportDir, projectName, "project.pbxproj")
}

func ParseProject(data []byte) (*Project, error) {
	var root map[string]any
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}
	objects, ok := root["objects"].(map[string]any)
	if !ok {
		return nil, ErrInvalidProject
	}
	if _, ok := root["rootObject"].(string); !ok {
		return nil, ErrInvalidProject
	}
	return &Project{root: root, objects: objects}, nil
}

func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	return ParseProject(data)
}

func (p *Project) Marshal() ([]byte, error) {
	data, err := plist.MarshalIndent(p.root, plist.OpenStepFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to encode project: %w", err)
	}
	return append([]byte(projectHeader), append(data, '\n')...), nil
}

func (p *Project) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (p *Project) object(id string) (map[string]any, bool) {
	obj, ok := p.objects[id].(map[string]any)
	return obj, ok
}

// Object returns the raw dictionary of a project object.
func (p *Project) Object(id string) (map[string]any, bool) {
	return p.object(id)
}

// BuildPhases returns the phase IDs of a target in build order.
func (p *Project) BuildPhases(targetID string) []string {
	target, ok := p.object(targetID)
	if !ok {
		return nil
	}
	return stringList(target["buildPhases"])
}

func (p *Project) objectIDs(isa string) []string {
	var ids []string
	for id, raw := range p.objects {
		obj, ok := raw.(map[string]any)
		if ok && obj["isa"] == isa {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// TargetByName returns the ID of the native target with the given name.
func (p *Project) TargetByName(name string) (string, bool) {
	for _, id := range p.objectIDs(isaNativeTarget) {
		obj, _ := p.object(id)
		if obj["name"] == name {
			return id, true
		}
	}
	return "", false
}

// BuildSettings returns the settings dictionaries of every build configuration of
// the target. They are live: changes are written back by Save.
func (p *Project) BuildSettings(targetID string) ([]map[string]any, error) {
	target, ok := p.object(targetID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}
	listID, _ := target["buildConfigurationList"].(string)
	list, ok := p.object(listID)
	if !ok {
		return nil, fmt.Errorf("%w: configuration list of %s", ErrObjectNotFound, targetID)
	}
	var settings []map[string]any
	for _, configID := range stringList(list["buildConfigurations"]) {
		conf, ok := p.object(configID)
		if !ok {
			return nil, fmt.Errorf("%w: build configuration %s", ErrObjectNotFound, configID)
		}
		bs, ok := conf["buildSettings"].(map[string]any)
		if !ok {
			bs = map[string]any{}
			conf["buildSettings"] = bs
		}
		settings = append(settings, bs)
	}
	return settings, nil
}

// SetBuildProperty replaces key in every build configuration of the target.
func (p *Project) SetBuildProperty(targetID, key, value string) error {
	settings, err := p.BuildSettings(targetID)
	if err != nil {
		return err
	}
	for _, bs := range settings {
		bs[key] = value
	}
	return nil
}

// AddBuildProperty adds value to a list-valued setting unless it is already present.
func (p *Project) AddBuildProperty(targetID, key, value string) error {
	settings, err := p.BuildSettings(targetID)
	if err != nil {
		return err
	}
	for _, bs := range settings {
		switch current := bs[key].(type) {
		case nil:
			bs[key] = []any{"$(inherited)", value}
		case string:
			if current != value && !containsField(current, value) {
				bs[key] = []any{current, value}
			}
		case []any:
			if !contains(stringList(current), value) {
				bs[key] = append(current, value)
			}
		default:
			return fmt.Errorf("%w: unexpected %T for %s", ErrInvalidProject, current, key)
		}
	}
	return nil
}

// AddFolderReference registers path as a folder reference in the main group and
// returns its file reference ID. An existing reference to the same path is reused.
func (p *Project) AddFolderReference(path, name string) (string, error) {
	for _, id := range p.objectIDs(isaFileReference) {
		obj, _ := p.object(id)
		if obj["path"] == path {
			return id, nil
		}
	}

	rootObject, _ := p.root["rootObject"].(string)
	project, ok := p.object(rootObject)
	if !ok {
		return "", fmt.Errorf("%w: root object", ErrObjectNotFound)
	}
	mainGroupID, _ := project["mainGroup"].(string)
	mainGroup, ok := p.object(mainGroupID)
	if !ok {
		return "", fmt.Errorf("%w: main group", ErrObjectNotFound)
	}

	id := p.newID()
	p.objects[id] = map[string]any{
		"isa":               isaFileReference,
		"lastKnownFileType": "folder",
		"name":              name,
		"path":              path,
		"sourceTree":        "SOURCE_ROOT",
	}
	mainGroup["children"] = append(anyList(mainGroup["children"]), id)
	return id, nil
}

// AddFileToBuild copies fileRefID into the target's product through its resources
// phase, creating the phase if the target has none.
func (p *Project) AddFileToBuild(targetID, fileRefID string) error {
	target, ok := p.object(targetID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}

	var phase map[string]any
	for _, phaseID := range stringList(target["buildPhases"]) {
		obj, ok := p.object(phaseID)
		if ok && obj["isa"] == isaResourcesPhase {
			phase = obj
			break
		}
	}
	if phase == nil {
		phase = map[string]any{
			"isa":                                isaResourcesPhase,
			"buildActionMask":                    defaultBuildActionMsk,
			"files":                              []any{},
			"runOnlyForDeploymentPostprocessing": "0",
		}
		phaseID := p.newID()
		p.objects[phaseID] = phase
		target["buildPhases"] = append(anyList(target["buildPhases"]), phaseID)
	}

	for _, buildFileID := range stringList(phase["files"]) {
		obj, ok := p.object(buildFileID)
		if ok && obj["fileRef"] == fileRefID {
			return nil
		}
	}

	buildFileID := p.newID()
	p.objects[buildFileID] = map[string]any{
		"isa":     isaBuildFile,
		"fileRef": fileRefID,
	}
	phase["files"] = append(anyList(phase["files"]), buildFileID)
	return nil
}

// ShellScriptPhase finds a shell script build phase of the target by name.
func (p *Project) ShellScriptPhase(targetID, name string) (string, bool) {
	target, ok := p.object(targetID)
	if !ok {
		return "", false
	}
	for _, phaseID := range stringList(target["buildPhases"]) {
		obj, ok := p.object(phaseID)
		if ok && obj["isa"] == isaShellScriptPhase && obj["name"] == name {
			return phaseID, true
		}
	}
	return "", false
}

// InsertShellScriptPhase adds a shell script phase at index in the target's phase
// list. Indexes past the end append, so a large index runs the script last.
func (p *Project) InsertShellScriptPhase(index int, targetID, name, shellPath, script string) (string, error) {
	target, ok := p.object(targetID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}

	id := p.newID()
	p.objects[id] = map[string]any{
		"isa":                                isaShellScriptPhase,
		"buildActionMask":                    defaultBuildActionMsk,
		"files":                              []any{},
		"inputPaths":                         []any{},
		"name":                               name,
		"outputPaths":                        []any{},
		"runOnlyForDeploymentPostprocessing": "0",
		"shellPath":                          shellPath,
		"shellScript":                        script,
	}

	phases := anyList(target["buildPhases"])
	if index < 0 {
		index = 0
	}
	if index > len(phases) {
		index = len(phases)
	}
	phases = append(phases, nil)
	copy(phases[index+1:], phases[index:])
	phases[index] = id
	target["buildPhases"] = phases
	return id, nil
}

func (p *Project) newID() string {
	for {
		id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:24]
		if _, taken := p.objects[id]; !taken {
			return id
		}
	}
}

func anyList(v any) []any {
	list, _ := v.([]any)
	return list
}

func stringList(v any) []string {
	var out []string
	for _, item := range anyList(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func containsField(s, value string) bool {
	return contains(strings.Fields(s), value)
}
