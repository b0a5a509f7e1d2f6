package awscloud_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnothaft/cgcloud/internal/cloud/awscloud"
	"github.com/fnothaft/cgcloud/internal/image"
)

func TestCandidates(t *testing.T) {
	m := newEc2Mock(t)
	m.images = []ec2types.Image{
		{
			ImageId:            aws.String("ami-1"),
			Name:               aws.String("RightImage_CentOS_6.4_x64_v5.8.8.5_EBS"),
			OwnerId:            aws.String("411009282317"),
			Architecture:       ec2types.ArchitectureValuesX8664,
			RootDeviceType:     ec2types.DeviceTypeEbs,
			VirtualizationType: ec2types.VirtualizationTypeParavirtual,
			CreationDate:       aws.String("2013-05-01T00:00:00.000Z"),
		},
	}
	a := awscloud.NewForTest(m, "us-west-1")

	query := image.Query{
		Family:       image.CentOS,
		OwnerID:      "411009282317",
		NameGlob:     "RightImage_CentOS_6.4_x64*",
		StorageType:  image.StorageEBS,
		Architecture: image.ArchAMD64,
	}
	candidates, err := a.Candidates(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, image.CentOS, c.Family)
	assert.Equal(t, "ami-1", c.ImageID)
	assert.Equal(t, "us-west-1", c.Region)
	assert.Equal(t, image.ArchAMD64, c.Architecture)
	assert.Equal(t, image.StorageEBS, c.StorageType)
	assert.Equal(t, image.HypervisorParavirtual, c.Hypervisor)

	require.NotNil(t, m.lastImagesInput)
	assert.Equal(t, []string{"411009282317"}, m.lastImagesInput.Owners)
	filters := map[string][]string{}
	for _, f := range m.lastImagesInput.Filters {
		filters[aws.ToString(f.Name)] = f.Values
	}
	assert.Equal(t, map[string][]string{
		"name":             {"RightImage_CentOS_6.4_x64*"},
		"root-device-type": {"ebs"},
		"architecture":     {"x86_64"},
	}, filters)
}

func TestImage(t *testing.T) {
	m := newEc2Mock(t)
	m.images = []ec2types.Image{{ImageId: aws.String("ami-1")}}
	a := awscloud.NewForTest(m, "us-west-1")

	c, err := a.Image(context.Background(), image.Ubuntu, "ami-1")
	require.NoError(t, err)
	assert.Equal(t, "ami-1", c.ImageID)

	_, err = a.Image(context.Background(), image.Ubuntu, "ami-missing")
	require.ErrorIs(t, err, image.ErrNoMatchFound)
}

func TestRunAndTerminateInstance(t *testing.T) {
	m := newEc2Mock(t)
	a := awscloud.NewForTest(m, "us-west-1")

	inst, err := a.RunInstance(context.Background(), awscloud.LaunchSpec{
		ImageID:          "ami-1",
		InstanceType:     "m3.large",
		KeyName:          "key",
		SecurityGroupIDs: []string{"sg-1"},
		Tags:             map[string]string{"role": "spark-master", "cluster": "c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "i-1", inst.ID)
	assert.Equal(t, "ami-1", inst.ImageID)
	assert.Equal(t, "running", inst.State)
	assert.Equal(t, "ec2-1.compute.amazonaws.com", inst.PublicAddress)
	assert.Equal(t, map[string]string{"role": "spark-master", "cluster": "c1"}, inst.Tags)

	require.Equal(t, 1, m.calledFn["RunInstances"])
	require.NotNil(t, m.lastRunInput.ClientToken)
	assert.Equal(t, int32(1), aws.ToInt32(m.lastRunInput.MaxCount))
	assert.Equal(t, "key", aws.ToString(m.lastRunInput.KeyName))
	require.Len(t, m.lastRunInput.TagSpecifications, 1)
	assert.Equal(t, ec2types.ResourceTypeInstance, m.lastRunInput.TagSpecifications[0].ResourceType)
	// sorted by key
	assert.Equal(t, "cluster", aws.ToString(m.lastRunInput.TagSpecifications[0].Tags[0].Key))

	found, err := a.InstancesByTag(context.Background(), "cluster", "c1")
	require.NoError(t, err)
	require.Len(t, found, 1)

	err = a.TerminateInstances(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, 1, m.calledFn["TerminateInstances"])

	found, err = a.InstancesByTag(context.Background(), "cluster", "c1")
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestTerminateNothing(t *testing.T) {
	m := newEc2Mock(t)
	a := awscloud.NewForTest(m, "us-west-1")
	require.NoError(t, a.TerminateInstances(context.Background()))
	require.Equal(t, 0, m.calledFn["TerminateInstances"])
}

func TestEnsureSSHSecurityGroup(t *testing.T) {
	m := newEc2Mock(t)
	a := awscloud.NewForTest(m, "us-west-1")

	id, err := a.EnsureSSHSecurityGroup(context.Background(), "cgcloud", "0.0.0.0/0")
	require.NoError(t, err)
	assert.Equal(t, "sg-cgcloud", id)
	require.Equal(t, 1, m.calledFn["CreateSecurityGroup"])
	require.Equal(t, 1, m.calledFn["AuthorizeSecurityGroupIngress"])

	id, err = a.EnsureSSHSecurityGroup(context.Background(), "cgcloud", "0.0.0.0/0")
	require.NoError(t, err)
	assert.Equal(t, "sg-cgcloud", id)
	require.Equal(t, 1, m.calledFn["CreateSecurityGroup"])
	require.Equal(t, 2, m.calledFn["DescribeSecurityGroups"])
}

func TestEnsureSSHSecurityGroupCreatedConcurrently(t *testing.T) {
	m := newEc2Mock(t)
	m.lostGroupRace = true
	a := awscloud.NewForTest(m, "us-west-1")

	id, err := a.EnsureSSHSecurityGroup(context.Background(), "cgcloud", "0.0.0.0/0")
	require.NoError(t, err)
	assert.Equal(t, "sg-cgcloud", id)
	require.Equal(t, 1, m.calledFn["CreateSecurityGroup"])
	require.Equal(t, 0, m.calledFn["AuthorizeSecurityGroupIngress"])
	require.Equal(t, 2, m.calledFn["DescribeSecurityGroups"])
}

func TestRegion(t *testing.T) {
	a := awscloud.NewForTest(newEc2Mock(t), "eu-central-1")
	assert.Equal(t, "eu-central-1", a.Region())
}

func TestRegionFromIdentity(t *testing.T) {
	region, err := awscloud.RegionFromIdentity(context.Background(), &ec2imdsmock{t, "i-1", "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region)

	_, err = awscloud.RegionFromIdentity(context.Background(), &ec2imdsmock{t, "i-1", ""})
	require.Error(t, err)
}
