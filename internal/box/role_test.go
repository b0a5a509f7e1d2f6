package box

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnothaft/cgcloud/internal/image"
)

type staticCatalog struct {
	candidates []image.Candidate
	queries    []image.Query
	err        error
}

func (c *staticCatalog) Candidates(ctx context.Context, q image.Query) ([]image.Candidate, error) {
	c.queries = append(c.queries, q)
	return c.candidates, c.err
}

func TestCentOSBaseImage(t *testing.T) {
	catalog := &staticCatalog{candidates: []image.Candidate{
		{Family: image.CentOS, ImageID: "ami-1", Name: "RightImage_CentOS_6.4_x64_v13.4_EBS", OwnerID: RightScaleOwnerID, StorageType: image.StorageEBS},
		{Family: image.CentOS, ImageID: "ami-3", Name: "RightImage_CentOS_6.4_x64_v13.5.0.1_EBS", OwnerID: RightScaleOwnerID, StorageType: image.StorageEBS},
		{Family: image.CentOS, ImageID: "ami-2", Name: "RightImage_CentOS_6.4_x64_v13.5_EBS", OwnerID: RightScaleOwnerID, StorageType: image.StorageEBS},
	}}

	c, err := centosRole.BaseImage(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, "ami-3", c.ImageID)

	require.Len(t, catalog.queries, 1)
	assert.Equal(t, image.Query{
		Family:      image.CentOS,
		OwnerID:     RightScaleOwnerID,
		NameGlob:    "RightImage_CentOS_6.4_x64*",
		StorageType: image.StorageEBS,
	}, catalog.queries[0])
}

func TestUbuntuBaseImage(t *testing.T) {
	base := image.Candidate{
		Family: image.Ubuntu, Release: "trusty", Purpose: "server", ReleaseType: "release",
		StorageType: image.StorageEBS, Architecture: image.ArchAMD64, Region: "us-west-1",
		Hypervisor: image.HypervisorParavirtual,
	}
	one, two := base, base
	one.ImageID, two.ImageID = "ami-a", "ami-b"

	c, err := ubuntuRole.BaseImage(context.Background(), &staticCatalog{candidates: []image.Candidate{one}})
	require.NoError(t, err)
	assert.Equal(t, "ami-a", c.ImageID)

	_, err = ubuntuRole.BaseImage(context.Background(), &staticCatalog{candidates: []image.Candidate{one, two}})
	assert.ErrorIs(t, err, image.ErrAmbiguousMatch)
}

func TestBaseImageCatalogError(t *testing.T) {
	_, err := ubuntuRole.BaseImage(context.Background(), &staticCatalog{err: errors.New("offline")})
	assert.Error(t, err)
}
