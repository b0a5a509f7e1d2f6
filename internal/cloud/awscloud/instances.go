package awscloud

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/common"
	"github.com/fnothaft/cgcloud/internal/prometheus"
)

// LaunchSpec describes a single instance to run.
type LaunchSpec struct {
	ImageID          string
	InstanceType     string
	KeyName          string
	SecurityGroupIDs []string
	Tags             map[string]string
}

type Instance struct {
	ID            string
	ImageID       string
	State         string
	PublicAddress string
	PrivateIP     string
	Tags          map[string]string
}

func instanceFromEC2(i ec2types.Instance) *Instance {
	inst := &Instance{
		ID:        common.ValueOrEmpty(i.InstanceId),
		ImageID:   common.ValueOrEmpty(i.ImageId),
		PrivateIP: common.ValueOrEmpty(i.PrivateIpAddress),
		Tags:      make(map[string]string, len(i.Tags)),
	}
	if i.State != nil {
		inst.State = string(i.State.Name)
	}
	inst.PublicAddress = common.ValueOrEmpty(i.PublicDnsName)
	if inst.PublicAddress == "" {
		inst.PublicAddress = common.ValueOrEmpty(i.PublicIpAddress)
	}
	for _, t := range i.Tags {
		inst.Tags[common.ValueOrEmpty(t.Key)] = common.ValueOrEmpty(t.Value)
	}
	return inst
}

func ec2Tags(tags map[string]string) []ec2types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]ec2types.Tag, 0, len(tags))
	for _, k := range keys {
		result = append(result, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return result
}

// RunInstance launches one instance and waits until it is running.
func (a *AWS) RunInstance(ctx context.Context, spec LaunchSpec) (inst *Instance, err error) {
	defer prometheus.RunInstanceObserver()()
	defer func() { prometheus.InstanceLaunched(err) }()

	input := &ec2.RunInstancesInput{
		ImageId:          aws.String(spec.ImageID),
		InstanceType:     ec2types.InstanceType(spec.InstanceType),
		MinCount:         common.ToPtr(int32(1)),
		MaxCount:         common.ToPtr(int32(1)),
		ClientToken:      aws.String(uuid.NewString()),
		SecurityGroupIds: spec.SecurityGroupIDs,
	}
	if spec.KeyName != "" {
		input.KeyName = aws.String(spec.KeyName)
	}
	if len(spec.Tags) > 0 {
		input.TagSpecifications = []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags:         ec2Tags(spec.Tags),
			},
		}
	}

	logrus.Infof("[AWS] Launching %s instance from %s", spec.InstanceType, spec.ImageID)
	res, err := a.ec2.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("cannot create a new instance: %w", err)
	}
	if len(res.Instances) != 1 {
		return nil, fmt.Errorf("expected exactly one instance to be launched, got %d", len(res.Instances))
	}
	id := common.ValueOrEmpty(res.Instances[0].InstanceId)
	logrus.WithField("instance", id).Info("[AWS] Waiting for the instance to be running")

	// The instance has no address until it is running.
	err = ec2.NewInstanceRunningWaiter(a.ec2).Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	}, a.waitTimeout)
	if err != nil {
		return &Instance{ID: id}, fmt.Errorf("waiting for instance %s to be running failed: %w", id, err)
	}
	return a.DescribeInstance(ctx, id)
}

func (a *AWS) DescribeInstance(ctx context.Context, id string) (*Instance, error) {
	out, err := a.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return nil, fmt.Errorf("cannot describe instance %s: %w", id, err)
	}
	if len(out.Reservations) != 1 || len(out.Reservations[0].Instances) != 1 {
		return nil, fmt.Errorf("expected exactly one reservation with one instance for %s", id)
	}
	return instanceFromEC2(out.Reservations[0].Instances[0]), nil
}

// InstancesByTag returns the pending or running instances carrying the tag.
func (a *AWS) InstancesByTag(ctx context.Context, key, value string) ([]*Instance, error) {
	out, err := a.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String(fmt.Sprintf("tag:%s", key)),
				Values: []string{value},
			},
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{string(ec2types.InstanceStateNamePending), string(ec2types.InstanceStateNameRunning)},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	var instances []*Instance
	for _, r := range out.Reservations {
		for _, i := range r.Instances {
			instances = append(instances, instanceFromEC2(i))
		}
	}
	return instances, nil
}

// TerminateInstances terminates the instances and waits for them to be gone.
func (a *AWS) TerminateInstances(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	defer prometheus.TerminateInstancesObserver()()

	logrus.Infof("[AWS] Terminating instances %v", ids)
	_, err := a.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: ids,
	})
	if err != nil {
		return fmt.Errorf("cannot terminate instances: %w", err)
	}

	err = ec2.NewInstanceTerminatedWaiter(a.ec2).Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: ids,
	}, a.waitTimeout)
	if err != nil {
		return fmt.Errorf("waiting for the instance termination failed: %w", err)
	}
	return nil
}
