package config

import (
	"go.dot.industries/strata/internal/jsontree"
)

const (
	// ConfigFileName is the team layer file of a directory.
	ConfigFileName = "strata.config.json"
	// UserConfigFileName is the user layer file of a directory.
	UserConfigFileName = "strata.config.user.json"

	// HomeEnvVar overrides the global configuration directory.
	HomeEnvVar = "STRATA_CLI_HOME"

	globalDirName = ".strata"
)

// Recognized top-level keys of a layer document.
const (
	KeySchema    = "$schema"
	KeyProfiles  = "profiles"
	KeyDefaults  = "defaults"
	KeyPlugins   = "plugins"
	KeySecure    = "secure"
	KeyAutoStore = "autoStore"

	keyType       = "type"
	keyProperties = "properties"
)

// Layer is one configuration file in the {project, global} x {team, user}
// matrix.
type Layer struct {
	Path       string
	Exists     bool
	Global     bool
	User       bool
	Properties *jsontree.Object
}

// Name describes the layer's slot, e.g. "global user".
func (l *Layer) Name() string {
	name := "project"
	if l.Global {
		name = "global"
	}
	if l.User {
		name += " user"
	}
	return name
}

// SecurePaths returns every property path the layer declares secure: the
// top-level secure array plus names listed in profile-level secure arrays.
func (l *Layer) SecurePaths() []string {
	return securePaths(l.Properties)
}

// IsSecure reports whether the layer declares propertyPath secure.
func (l *Layer) IsSecure(propertyPath string) bool {
	for _, p := range l.SecurePaths() {
		if p == propertyPath {
			return true
		}
	}
	return false
}

// LayerInfo is the view of the active layer returned by Store.Get.
type LayerInfo struct {
	Path       string
	Exists     bool
	Properties *jsontree.Object
}

// SetOptions control how Store.Set writes a value.
type SetOptions struct {
	// Secure stores the value in the vault instead of the file.
	Secure bool
	// JSON parses a string value as JSON before storing it.
	JSON bool
}
