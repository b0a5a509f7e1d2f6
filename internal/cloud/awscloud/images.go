package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/common"
	"github.com/fnothaft/cgcloud/internal/image"
)

var ec2ArchToArch = map[ec2types.ArchitectureValues]string{
	ec2types.ArchitectureValuesX8664: image.ArchAMD64,
	ec2types.ArchitectureValuesArm64: image.ArchARM64,
}

var archToEC2Arch = map[string]string{
	image.ArchAMD64: string(ec2types.ArchitectureValuesX8664),
	image.ArchARM64: string(ec2types.ArchitectureValuesArm64),
}

// imageFilters translates the query fields EC2 can filter on server side.
func imageFilters(q image.Query) []ec2types.Filter {
	var filters []ec2types.Filter
	add := func(name, value string) {
		if value != "" {
			filters = append(filters, ec2types.Filter{Name: aws.String(name), Values: []string{value}})
		}
	}
	add("name", q.NameGlob)
	add("root-device-type", q.StorageType)
	add("virtualization-type", q.Hypervisor)
	if q.Architecture != "" {
		arch, ok := archToEC2Arch[q.Architecture]
		if !ok {
			arch = q.Architecture
		}
		add("architecture", arch)
	}
	return filters
}

func (a *AWS) candidate(family image.Family, img ec2types.Image) image.Candidate {
	arch, ok := ec2ArchToArch[img.Architecture]
	if !ok {
		arch = string(img.Architecture)
	}
	return image.Candidate{
		Family:       family,
		Region:       a.region,
		StorageType:  string(img.RootDeviceType),
		Architecture: arch,
		Hypervisor:   string(img.VirtualizationType),
		OwnerID:      common.ValueOrEmpty(img.OwnerId),
		ImageID:      common.ValueOrEmpty(img.ImageId),
		Name:         common.ValueOrEmpty(img.Name),
		ReleaseDate:  common.ValueOrEmpty(img.CreationDate),
		KernelID:     common.ValueOrEmpty(img.KernelId),
	}
}

// Candidates lists the images owned by query.OwnerID whose name matches
// query.NameGlob, narrowed by the other fields EC2 can filter on.
func (a *AWS) Candidates(ctx context.Context, query image.Query) ([]image.Candidate, error) {
	input := &ec2.DescribeImagesInput{
		Filters: imageFilters(query),
	}
	if query.OwnerID != "" {
		input.Owners = []string{query.OwnerID}
	}

	logrus.Debugf("[AWS] Describing images owned by %q matching %q", query.OwnerID, query.NameGlob)
	out, err := a.ec2.DescribeImages(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("cannot describe images: %w", err)
	}

	candidates := make([]image.Candidate, 0, len(out.Images))
	for _, img := range out.Images {
		candidates = append(candidates, a.candidate(query.Family, img))
	}
	return candidates, nil
}

// Image looks up a single image by ID.
func (a *AWS) Image(ctx context.Context, family image.Family, imageID string) (image.Candidate, error) {
	out, err := a.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{imageID},
	})
	if err != nil {
		return image.Candidate{}, err
	}
	if len(out.Images) != 1 {
		return image.Candidate{}, fmt.Errorf("%w: expected exactly one image with id %s, got %d", image.ErrNoMatchFound, imageID, len(out.Images))
	}
	return a.candidate(family, out.Images[0]), nil
}
