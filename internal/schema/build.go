// Package schema declares the media index layout for every supported version.
//
// The layout is data: a list of tables, indexes, views and triggers that can be
// created on an empty database with Apply, or introspected and compared with
// Snapshot and Diff.
package schema

import "fmt"

// Build returns every object of the layout at version, ordered so that each
// object only depends on objects before it. With internal set, the playlist
// and genre objects are left out.
func Build(version int, internal bool) ([]Object, error) {
	if !Supported(version) {
		return nil, fmt.Errorf("%w: %d (supported %d..%d)", ErrUnsupportedVersion, version, VersionP, Latest)
	}

	var out []Object
	out = append(out, tables(version, internal)...)
	out = append(out, indexes(version)...)
	out = append(out, views(version, internal)...)
	out = append(out, triggers(internal)...)
	return out, nil
}

// MustBuild is Build for versions known to be supported.
func MustBuild(version int, internal bool) []Object {
	objects, err := Build(version, internal)
	if err != nil {
		panic(err)
	}
	return objects
}
