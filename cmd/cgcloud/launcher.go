package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/box"
	"github.com/fnothaft/cgcloud/internal/cloud/awscloud"
	"github.com/fnothaft/cgcloud/internal/cluster"
	"github.com/fnothaft/cgcloud/internal/image"
	"github.com/fnothaft/cgcloud/internal/remote"
)

const (
	roleTag       = "role"
	generationTag = "generation"
	clusterTag    = "cluster"

	sshIngressCIDR = "0.0.0.0/0"
)

// cloud is the part of the EC2 adapter the commands use.
type cloud interface {
	image.Catalog
	Region() string
	Image(ctx context.Context, family image.Family, imageID string) (image.Candidate, error)
	RunInstance(ctx context.Context, spec awscloud.LaunchSpec) (*awscloud.Instance, error)
	DescribeInstance(ctx context.Context, id string) (*awscloud.Instance, error)
	InstancesByTag(ctx context.Context, key, value string) ([]*awscloud.Instance, error)
	TerminateInstances(ctx context.Context, ids ...string) error
	EnsureSSHSecurityGroup(ctx context.Context, name, cidr string) (string, error)
	Tags(instanceID string) box.TagStore
}

type awsCloud struct {
	*awscloud.AWS
}

func (a awsCloud) Tags(instanceID string) box.TagStore {
	return a.InstanceTags(instanceID)
}

type launcher struct {
	config  *cgcloudConfig
	cloud   cloud
	ubuntu  image.Catalog
	channel func(host string) box.Channel
}

func newLauncher(config *cgcloudConfig, aws *awscloud.AWS) *launcher {
	return &launcher{
		config: config,
		cloud:  awsCloud{aws},
		ubuntu: image.NewUbuntuCatalog(config.Catalog.UbuntuBaseURL),
		channel: func(host string) box.Channel {
			s := remote.NewSSH(host, config.SSH.Port, config.PrivateKey)
			s.ConnectTimeout = config.SSH.ConnectTimeout.Duration
			s.Attempts = config.SSH.Attempts
			s.RetryDelay = config.SSH.RetryDelay.Duration
			return s
		},
	}
}

func (l *launcher) catalog(family image.Family) image.Catalog {
	if family == image.Ubuntu {
		return l.ubuntu
	}
	return l.cloud
}

// role resolves a configured role in the region the cloud client talks to.
func (l *launcher) role(name string) (box.Role, error) {
	role, err := l.config.role(name)
	if err != nil {
		return box.Role{}, err
	}
	if role.Region == "" {
		role.Region = l.cloud.Region()
	}
	return role, nil
}

func (l *launcher) baseImage(ctx context.Context, role box.Role) (image.Candidate, error) {
	img, err := role.BaseImage(ctx, l.catalog(role.Family))
	if err != nil {
		return image.Candidate{}, err
	}
	if role.Family == image.Ubuntu {
		// the catalog lags behind EC2, make sure the image still exists
		if _, err := l.cloud.Image(ctx, role.Family, img.ImageID); err != nil {
			return image.Candidate{}, fmt.Errorf("image %s listed in the Ubuntu catalog: %w", img.ImageID, err)
		}
	}
	return img, nil
}

func (l *launcher) selectImage(ctx context.Context, roleName string) (image.Candidate, error) {
	role, err := l.role(roleName)
	if err != nil {
		return image.Candidate{}, err
	}
	return l.baseImage(ctx, role)
}

func (l *launcher) securityGroupIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(l.config.SecurityGroups))
	for _, name := range l.config.SecurityGroups {
		id, err := l.cloud.EnsureSSHSecurityGroup(ctx, name, sshIngressCIDR)
		if err != nil {
			return nil, fmt.Errorf("cannot set up security group %s: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// waitForSSH polls until the box answers on SSH as its login account.
func (l *launcher) waitForSSH(ctx context.Context, b *box.Box, channel remote.Runner) error {
	user, err := b.Username(ctx)
	if err != nil {
		return err
	}
	return cluster.Poll(ctx, l.config.Readiness.Interval.Duration, l.config.Readiness.Timeout.Duration, func(ctx context.Context) error {
		err := remote.Probe(ctx, channel, user)
		if err != nil && !errors.Is(err, remote.ErrRemoteCommandFailure) && !errors.Is(err, remote.ErrConnection) {
			return fmt.Errorf("%w: %w", cluster.ErrFatal, err)
		}
		return err
	})
}

func (l *launcher) create(ctx context.Context, roleName string, extraTags map[string]string) (*awscloud.Instance, error) {
	groups, err := l.securityGroupIDs(ctx)
	if err != nil {
		return nil, err
	}
	return l.launch(ctx, roleName, groups, extraTags)
}

// launch starts an instance of the role in the given security groups,
// bootstraps it on first boot and installs the role's packages. A failure
// after launch leaves the instance running; it is reported alongside the
// error so it can be terminated.
func (l *launcher) launch(ctx context.Context, roleName string, groups []string, extraTags map[string]string) (*awscloud.Instance, error) {
	role, err := l.role(roleName)
	if err != nil {
		return nil, err
	}
	img, err := l.baseImage(ctx, role)
	if err != nil {
		return nil, err
	}

	tags := map[string]string{
		roleTag:       role.Name,
		generationTag: strconv.Itoa(role.Generation),
	}
	for k, v := range extraTags {
		tags[k] = v
	}
	inst, err := l.cloud.RunInstance(ctx, awscloud.LaunchSpec{
		ImageID:          img.ImageID,
		InstanceType:     l.config.InstanceType,
		KeyName:          l.config.KeyName,
		SecurityGroupIDs: groups,
		Tags:             tags,
	})
	if err != nil {
		return inst, err
	}

	channel := l.channel(inst.PublicAddress)
	b, err := box.New(role, box.Instance{ID: inst.ID, Generation: role.Generation}, channel, l.cloud.Tags(inst.ID))
	if err != nil {
		return inst, err
	}
	if err := l.waitForSSH(ctx, b, channel); err != nil {
		return inst, fmt.Errorf("instance %s is not reachable: %w", inst.ID, err)
	}
	if err := b.OnInstanceReady(ctx, true); err != nil {
		return inst, err
	}
	if err := b.Setup(ctx); err != nil {
		return inst, err
	}
	logrus.WithField("instance", inst.ID).Infof("Box %s is ready at %s", role.Name, inst.PublicAddress)
	return inst, nil
}

// box reconstructs the box of a running instance from its tags.
func (l *launcher) box(ctx context.Context, instanceID string) (*box.Box, remote.Runner, error) {
	inst, err := l.cloud.DescribeInstance(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	roleName, ok := inst.Tags[roleTag]
	if !ok {
		return nil, nil, fmt.Errorf("instance %s has no %s tag", instanceID, roleTag)
	}
	role, err := l.role(roleName)
	if err != nil {
		return nil, nil, err
	}
	generation := role.Generation
	if g, ok := inst.Tags[generationTag]; ok {
		generation, err = strconv.Atoi(g)
		if err != nil {
			return nil, nil, fmt.Errorf("instance %s has an invalid %s tag %q: %w", instanceID, generationTag, g, err)
		}
	}
	channel := l.channel(inst.PublicAddress)
	b, err := box.New(role, box.Instance{ID: inst.ID, Generation: generation}, channel, l.cloud.Tags(inst.ID))
	if err != nil {
		return nil, nil, err
	}
	return b, channel, nil
}

func (l *launcher) run(ctx context.Context, instanceID, line string) (remote.Result, error) {
	b, _, err := l.box(ctx, instanceID)
	if err != nil {
		return remote.Result{}, err
	}
	return b.Run(ctx, line)
}

func (l *launcher) createCluster(ctx context.Context, name string, slaves int) ([]string, error) {
	// Set up the groups once, concurrent creates of a missing group collide.
	groups, err := l.securityGroupIDs(ctx)
	if err != nil {
		return nil, err
	}
	nodes := cluster.Nodes(l.config.Cluster.MasterRole, l.config.Cluster.SlaveRole, slaves)
	return cluster.ProvisionAll(ctx, nodes, func(ctx context.Context, node cluster.Node) (string, error) {
		inst, err := l.launch(ctx, node.Role, groups, map[string]string{clusterTag: name})
		if err != nil {
			if inst != nil {
				return inst.ID, fmt.Errorf("%s %d (%s): %w", node.Role, node.Index, inst.ID, err)
			}
			return "", fmt.Errorf("%s %d: %w", node.Role, node.Index, err)
		}
		return inst.ID, nil
	})
}

func (l *launcher) clusterMaster(ctx context.Context, name string) (*awscloud.Instance, error) {
	instances, err := l.cloud.InstancesByTag(ctx, clusterTag, name)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if inst.Tags[roleTag] == l.config.Cluster.MasterRole {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("cluster %s has no %s instance", name, l.config.Cluster.MasterRole)
}

func (l *launcher) waitCluster(ctx context.Context, name string, slaves int) error {
	master, err := l.clusterMaster(ctx, name)
	if err != nil {
		return err
	}
	b, channel, err := l.box(ctx, master.ID)
	if err != nil {
		return err
	}
	user, err := b.Username(ctx)
	if err != nil {
		return err
	}
	return cluster.WaitForSlaves(ctx, channel, user, cluster.WaitOptions{
		InstallDir: l.config.Cluster.InstallDir,
		Slaves:     slaves,
		Interval:   l.config.Readiness.Interval.Duration,
		Timeout:    l.config.Readiness.Timeout.Duration,
	})
}

func (l *launcher) terminateCluster(ctx context.Context, name string) ([]string, error) {
	instances, err := l.cloud.InstancesByTag(ctx, clusterTag, name)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.ID)
	}
	return ids, l.cloud.TerminateInstances(ctx, ids...)
}
