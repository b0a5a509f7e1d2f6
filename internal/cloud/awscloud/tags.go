package awscloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/prometheus"
)

// InstanceTags reads and writes the tags of one instance.
type InstanceTags struct {
	aws        *AWS
	instanceID string
}

func (a *AWS) InstanceTags(instanceID string) *InstanceTags {
	return &InstanceTags{aws: a, instanceID: instanceID}
}

// A freshly launched instance may not be visible to the tagging API yet.
func isInstanceNotFoundErr(err error) bool {
	return isErrorCode(err, "InvalidInstanceID.NotFound")
}

func (t *InstanceTags) retry(ctx context.Context, op func() error) error {
	var err error
	for i := 1; i <= t.aws.tagAttempts; i++ {
		err = op()
		if err == nil || !isInstanceNotFoundErr(err) {
			return err
		}
		logrus.WithField("instance", t.instanceID).Debugf("[AWS] Instance not visible yet (attempt %d)", i)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.aws.tagDelay):
		}
	}
	return err
}

func (t *InstanceTags) Get(ctx context.Context, key string) (string, bool, error) {
	var out *ec2.DescribeTagsOutput
	err := t.retry(ctx, func() error {
		var err error
		out, err = t.aws.ec2.DescribeTags(ctx, &ec2.DescribeTagsInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("resource-id"), Values: []string{t.instanceID}},
				{Name: aws.String("key"), Values: []string{key}},
			},
		})
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("cannot describe tags of %s: %w", t.instanceID, err)
	}
	for _, tag := range out.Tags {
		if aws.ToString(tag.Key) == key {
			return aws.ToString(tag.Value), true, nil
		}
	}
	return "", false, nil
}

func (t *InstanceTags) Set(ctx context.Context, key, value string) error {
	err := t.retry(ctx, func() error {
		_, err := t.aws.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
			Resources: []string{t.instanceID},
			Tags: []ec2types.Tag{
				{Key: aws.String(key), Value: aws.String(value)},
			},
		})
		return err
	})
	prometheus.TagWritten(key, err)
	if err != nil {
		return fmt.Errorf("cannot tag %s with %s: %w", t.instanceID, key, err)
	}
	logrus.WithField("instance", t.instanceID).Infof("[AWS] Tagged %s=%s", key, value)
	return nil
}
