// Package image selects the base machine image a box is launched from.
package image

import (
	"fmt"

	"github.com/gobwas/glob"
)

type Family string

const (
	CentOS Family = "centos"
	Ubuntu Family = "ubuntu"
)

// ParseFamily maps a configuration string onto a Family.
func ParseFamily(s string) (Family, bool) {
	switch Family(s) {
	case CentOS, Ubuntu:
		return Family(s), true
	}
	return "", false
}

const (
	StorageEBS           = "ebs"
	StorageInstanceStore = "instance-store"

	ArchAMD64 = "amd64"
	ArchARM64 = "arm64"

	HypervisorParavirtual = "paravirtual"
	HypervisorHVM         = "hvm"
)

// Candidate is one entry of an image catalog.
type Candidate struct {
	Family       Family
	Release      string
	Version      string
	Region       string
	StorageType  string
	Architecture string
	Hypervisor   string
	OwnerID      string

	ImageID     string
	Name        string
	Purpose     string
	ReleaseType string
	ReleaseDate string
	KernelID    string
}

// Query is a template of required field values. Empty fields are wildcards.
type Query struct {
	Family       Family
	Release      string
	Version      string
	Region       string
	StorageType  string
	Architecture string
	Hypervisor   string
	OwnerID      string
	Purpose      string
	ReleaseType  string

	// NameGlob is matched against Candidate.Name with shell glob syntax.
	NameGlob string
}

func (q Query) fields(c Candidate) [][2]string {
	return [][2]string{
		{string(q.Family), string(c.Family)},
		{q.Release, c.Release},
		{q.Version, c.Version},
		{q.Region, c.Region},
		{q.StorageType, c.StorageType},
		{q.Architecture, c.Architecture},
		{q.Hypervisor, c.Hypervisor},
		{q.OwnerID, c.OwnerID},
		{q.Purpose, c.Purpose},
		{q.ReleaseType, c.ReleaseType},
	}
}

func (q Query) fieldsMatch(c Candidate) bool {
	for _, f := range q.fields(c) {
		if f[0] != "" && f[0] != f[1] {
			return false
		}
	}
	return true
}

func (q Query) compileGlob() (glob.Glob, error) {
	if q.NameGlob == "" {
		return nil, nil
	}
	g, err := glob.Compile(q.NameGlob)
	if err != nil {
		return nil, fmt.Errorf("invalid image name pattern %q: %w", q.NameGlob, err)
	}
	return g, nil
}

// Matches reports whether every non-wildcard field of q equals the corresponding
// field of c.
func (q Query) Matches(c Candidate) (bool, error) {
	matches, err := q.Filter([]Candidate{c})
	return len(matches) == 1, err
}

// Filter returns the candidates matching q, preserving their order.
func (q Query) Filter(candidates []Candidate) ([]Candidate, error) {
	g, err := q.compileGlob()
	if err != nil {
		return nil, err
	}
	var matches []Candidate
	for _, c := range candidates {
		if !q.fieldsMatch(c) {
			continue
		}
		if g != nil && !g.Match(c.Name) {
			continue
		}
		matches = append(matches, c)
	}
	return matches, nil
}
