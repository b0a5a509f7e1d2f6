package image

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/prometheus"
)

// rightImageName is the naming scheme of RightScale's CentOS AMIs. The first
// group is the CentOS release, the second the image build version.
var rightImageName = regexp.MustCompile(`^RightImage_CentOS_(\d+(?:\.\d+)*)_x64_v(\d+(?:\.\d+)*)_EBS`)

// Select picks the base image for a box of the given family and release.
// CentOS catalogs carry several builds per release and the latest build wins,
// Ubuntu catalogs must yield exactly one match.
func Select(family Family, release string, query Query, candidates []Candidate) (Candidate, error) {
	var (
		c   Candidate
		err error
	)
	switch family {
	case CentOS:
		c, err = SelectLatestBuild(release, query, candidates)
	case Ubuntu:
		query.Release = release
		c, err = SelectExactlyOne(query, candidates)
	default:
		err = fmt.Errorf("unsupported image family: %q", family)
	}
	prometheus.ImageSelection(string(family), err)
	if err != nil {
		return Candidate{}, err
	}
	logrus.WithField("family", family).Infof("Selected image %s (%s)", c.ImageID, c.Name)
	return c, nil
}

// SelectExactlyOne returns the only candidate matching query. Ambiguity is an
// error, never resolved silently.
func SelectExactlyOne(query Query, candidates []Candidate) (Candidate, error) {
	matches, err := query.Filter(candidates)
	if err != nil {
		return Candidate{}, err
	}
	switch len(matches) {
	case 0:
		return Candidate{}, ErrNoMatchFound
	case 1:
		return matches[0], nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ImageID)
	}
	return Candidate{}, fmt.Errorf("%w: %s", ErrAmbiguousMatch, strings.Join(ids, ", "))
}

// SelectLatestBuild returns the matching candidate with the highest build
// version encoded in its name. Candidates whose name does not follow the
// naming scheme are skipped; a name encoding a different release than the
// one requested means the catalog is broken.
func SelectLatestBuild(release string, query Query, candidates []Candidate) (Candidate, error) {
	var (
		best  Candidate
		found bool
	)
	matches, err := query.Filter(candidates)
	if err != nil {
		return Candidate{}, err
	}
	for _, c := range matches {
		m := rightImageName.FindStringSubmatch(c.Name)
		if m == nil {
			logrus.Debugf("Skipping image %s, unexpected name %q", c.ImageID, c.Name)
			continue
		}
		if m[1] != release {
			return Candidate{}, fmt.Errorf("%w: image %s (%s) is for release %s, expected %s",
				ErrCatalogCorruption, c.ImageID, c.Name, m[1], release)
		}
		c.Release = m[1]
		c.Version = m[2]
		if !found || CompareVersions(c.Version, best.Version) > 0 {
			best = c
			found = true
		}
	}
	if !found {
		return Candidate{}, fmt.Errorf("%w: CentOS release %s", ErrNoMatchFound, release)
	}
	return best, nil
}
