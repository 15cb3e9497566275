// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version houses the version information of rpcwebd.
package version

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
)

// semanticAlphabet is the set of characters allowed in the pre-release and
// build metadata portions of a semantic version.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

// semverRE splits a semantic version 2.0.0 string into its parts.
var semverRE = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
	`(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*` +
	`[a-zA-Z-][0-9a-zA-Z-]*))*))?(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

// Version is the application version.  It may be overridden at build time
// with:
// '-ldflags "-X github.com/bitcoin-rpc-web/rpcweb/internal/version.Version=fullsemver"'
//
// It MUST be a full semantic version or the package panics on init.
var Version = "0.1.0-pre"

// SemVer is a parsed semantic version.
type SemVer struct {
	Major         uint
	Minor         uint
	Patch         uint
	PreRelease    string
	BuildMetadata string
}

// String returns the version in semantic version form.
func (v SemVer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		b.WriteString("-" + v.PreRelease)
	}
	if v.BuildMetadata != "" {
		b.WriteString("+" + v.BuildMetadata)
	}
	return b.String()
}

// Parse parses a semantic version 2.0.0 string.
func Parse(s string) (SemVer, error) {
	m := semverRE.FindStringSubmatch(s)
	if m == nil {
		return SemVer{}, fmt.Errorf("malformed version string %q: does not "+
			"conform to semver specification", s)
	}

	var v SemVer
	fields := []struct {
		name string
		dst  *uint
	}{{"major", &v.Major}, {"minor", &v.Minor}, {"patch", &v.Patch}}
	for i, f := range fields {
		n, err := strconv.ParseUint(m[i+1], 10, 0)
		if err != nil {
			return SemVer{}, fmt.Errorf("malformed semver %s: %w", f.name, err)
		}
		*f.dst = uint(n)
	}
	v.PreRelease, v.BuildMetadata = m[4], m[5]
	return v, nil
}

// parsed is Version parsed on init.
var parsed SemVer

func init() {
	v, err := Parse(Version)
	if err != nil {
		panic(err)
	}
	parsed = v
}

// String returns the application version.
func String() string {
	return parsed.String()
}

// Full returns the application version with the VCS commit the binary was
// built from appended as build metadata when it is known and no build
// metadata was set.
func Full() string {
	v := parsed
	if v.BuildMetadata == "" {
		v.BuildMetadata = NormalizeString(vcsCommitID())
	}
	return v.String()
}

// NormalizeString strips every character not valid in pre-release and build
// metadata strings.
func NormalizeString(str string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(semanticAlphabet, r) {
			return r
		}
		return -1
	}, str)
}

// vcsCommitID returns the abbreviated commit recorded in the build info, if
// any.
func vcsCommitID() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var vcs, revision string
	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs":
			vcs = bs.Value
		case "vcs.revision":
			revision = bs.Value
		}
	}
	if vcs == "git" && len(revision) > 9 {
		revision = revision[:9]
	}
	if vcs == "" {
		return ""
	}
	return revision
}
