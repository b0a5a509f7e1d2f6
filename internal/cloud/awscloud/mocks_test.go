package awscloud_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

type ec2mock struct {
	t *testing.T

	mu       sync.Mutex
	calledFn map[string]int

	images    []ec2types.Image
	instances map[string]*ec2types.Instance
	tags      map[string]map[string]string
	groups    map[string]string

	lastImagesInput *ec2.DescribeImagesInput
	lastRunInput    *ec2.RunInstancesInput

	// number of tag calls answered with InvalidInstanceID.NotFound first
	notFoundTagCalls int
	// another client wins the race to create every security group
	lostGroupRace bool
}

func newEc2Mock(t *testing.T) *ec2mock {
	return &ec2mock{
		t:         t,
		calledFn:  make(map[string]int),
		instances: make(map[string]*ec2types.Instance),
		tags:      make(map[string]map[string]string),
		groups:    make(map[string]string),
	}
}

func (m *ec2mock) called(fn string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calledFn[fn]++
}

func (m *ec2mock) notFound() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notFoundTagCalls > 0 {
		m.notFoundTagCalls--
		return &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: "not yet"}
	}
	return nil
}

func (m *ec2mock) AuthorizeSecurityGroupIngress(ctx context.Context, input *ec2.AuthorizeSecurityGroupIngressInput, optfns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	m.called("AuthorizeSecurityGroupIngress")
	return &ec2.AuthorizeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}

func (m *ec2mock) CreateSecurityGroup(ctx context.Context, input *ec2.CreateSecurityGroupInput, optfns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	m.called("CreateSecurityGroup")
	id := "sg-" + aws.ToString(input.GroupName)
	m.groups[aws.ToString(input.GroupName)] = id
	if m.lostGroupRace {
		return nil, &smithy.GenericAPIError{Code: "InvalidGroup.Duplicate", Message: aws.ToString(input.GroupName)}
	}
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String(id)}, nil
}

func (m *ec2mock) DescribeSecurityGroups(ctx context.Context, input *ec2.DescribeSecurityGroupsInput, optfns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	m.called("DescribeSecurityGroups")
	var out ec2.DescribeSecurityGroupsOutput
	for _, name := range input.GroupNames {
		id, ok := m.groups[name]
		if !ok {
			return nil, &smithy.GenericAPIError{Code: "InvalidGroup.NotFound", Message: name}
		}
		out.SecurityGroups = append(out.SecurityGroups, ec2types.SecurityGroup{GroupId: aws.String(id), GroupName: aws.String(name)})
	}
	return &out, nil
}

func (m *ec2mock) DescribeInstances(ctx context.Context, input *ec2.DescribeInstancesInput, optfns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	m.called("DescribeInstances")
	var res ec2types.Reservation

	ids := input.InstanceIds
	if len(ids) == 0 {
		for id := range m.instances {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	for _, id := range ids {
		inst, ok := m.instances[id]
		if !ok {
			return nil, &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: id}
		}
		if matchesFilters(*inst, m.tags[id], input.Filters) {
			res.Instances = append(res.Instances, *inst)
		}
	}
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{res}}, nil
}

func matchesFilters(inst ec2types.Instance, tags map[string]string, filters []ec2types.Filter) bool {
	for _, f := range filters {
		name := aws.ToString(f.Name)
		var value string
		switch {
		case name == "instance-state-name":
			value = string(inst.State.Name)
		case len(name) > 4 && name[:4] == "tag:":
			value = tags[name[4:]]
		default:
			continue
		}
		found := false
		for _, v := range f.Values {
			if v == value {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *ec2mock) RunInstances(ctx context.Context, input *ec2.RunInstancesInput, optfns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	m.called("RunInstances")
	m.lastRunInput = input

	id := fmt.Sprintf("i-%d", len(m.instances)+1)
	inst := ec2types.Instance{
		InstanceId:    aws.String(id),
		ImageId:       input.ImageId,
		PublicDnsName: aws.String(fmt.Sprintf("ec2-%d.compute.amazonaws.com", len(m.instances)+1)),
		State:         &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
	}
	m.tags[id] = make(map[string]string)
	for _, spec := range input.TagSpecifications {
		for _, tag := range spec.Tags {
			inst.Tags = append(inst.Tags, tag)
			m.tags[id][aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	m.instances[id] = &inst
	return &ec2.RunInstancesOutput{Instances: []ec2types.Instance{inst}}, nil
}

func (m *ec2mock) TerminateInstances(ctx context.Context, input *ec2.TerminateInstancesInput, optfns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	m.called("TerminateInstances")
	for _, id := range input.InstanceIds {
		if inst, ok := m.instances[id]; ok {
			inst.State = &ec2types.InstanceState{Name: ec2types.InstanceStateNameTerminated}
		}
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func (m *ec2mock) DescribeImages(ctx context.Context, input *ec2.DescribeImagesInput, optfns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	m.called("DescribeImages")
	m.lastImagesInput = input
	if len(input.ImageIds) == 0 {
		return &ec2.DescribeImagesOutput{Images: m.images}, nil
	}
	var out ec2.DescribeImagesOutput
	for _, img := range m.images {
		for _, id := range input.ImageIds {
			if aws.ToString(img.ImageId) == id {
				out.Images = append(out.Images, img)
			}
		}
	}
	return &out, nil
}

func (m *ec2mock) CreateTags(ctx context.Context, input *ec2.CreateTagsInput, optfns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	m.called("CreateTags")
	if err := m.notFound(); err != nil {
		return nil, err
	}
	for _, id := range input.Resources {
		if m.tags[id] == nil {
			m.tags[id] = make(map[string]string)
		}
		for _, tag := range input.Tags {
			m.tags[id][aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	return &ec2.CreateTagsOutput{}, nil
}

func (m *ec2mock) DescribeTags(ctx context.Context, input *ec2.DescribeTagsInput, optfns ...func(*ec2.Options)) (*ec2.DescribeTagsOutput, error) {
	m.called("DescribeTags")
	if err := m.notFound(); err != nil {
		return nil, err
	}
	var resource, key string
	for _, f := range input.Filters {
		switch aws.ToString(f.Name) {
		case "resource-id":
			resource = f.Values[0]
		case "key":
			key = f.Values[0]
		}
	}
	var out ec2.DescribeTagsOutput
	if value, ok := m.tags[resource][key]; ok {
		out.Tags = append(out.Tags, ec2types.TagDescription{
			Key:        aws.String(key),
			Value:      aws.String(value),
			ResourceId: aws.String(resource),
		})
	}
	return &out, nil
}

type ec2imdsmock struct {
	t *testing.T

	instanceID string
	region     string
}

func (m *ec2imdsmock) GetInstanceIdentityDocument(ctx context.Context, input *imds.GetInstanceIdentityDocumentInput, optfns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error) {
	return &imds.GetInstanceIdentityDocumentOutput{
		InstanceIdentityDocument: imds.InstanceIdentityDocument{
			InstanceID: m.instanceID,
			Region:     m.region,
		},
	}, nil
}
