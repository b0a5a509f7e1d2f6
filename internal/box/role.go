package box

import (
	"context"
	"fmt"

	"github.com/fnothaft/cgcloud/internal/image"
)

// Role describes a kind of box, e.g. a Spark master on Ubuntu trusty.
type Role struct {
	Name    string
	Family  image.Family
	Release string
	// Generation is 0 for boxes launched from a stock base image and is
	// incremented for every image derived from a customized box.
	Generation int
	Region     string
	Packages   []string
}

func (r Role) Validate() error {
	if _, err := lookupFamily(r.Family); err != nil {
		return fmt.Errorf("role %s: %w", r.Name, err)
	}
	if r.Release == "" {
		return fmt.Errorf("role %s: release is required", r.Name)
	}
	if r.Generation < 0 {
		return fmt.Errorf("role %s: generation must not be negative", r.Name)
	}
	return nil
}

// ImageQuery is the template base images of this role must match.
func (r Role) ImageQuery() (image.Query, error) {
	fam, err := lookupFamily(r.Family)
	if err != nil {
		return image.Query{}, err
	}
	return fam.baseImageQuery(r), nil
}

// BaseImage selects the image to launch instances of this role from.
func (r Role) BaseImage(ctx context.Context, catalog image.Catalog) (image.Candidate, error) {
	if err := r.Validate(); err != nil {
		return image.Candidate{}, err
	}
	q, err := r.ImageQuery()
	if err != nil {
		return image.Candidate{}, err
	}
	candidates, err := catalog.Candidates(ctx, q)
	if err != nil {
		return image.Candidate{}, err
	}
	return image.Select(r.Family, r.Release, q, candidates)
}
