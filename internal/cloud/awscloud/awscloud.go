package awscloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

type AWS struct {
	ec2    EC2
	region string

	// how long to wait for instance state transitions
	waitTimeout time.Duration
	// how often to retry tag lookups of instances EC2 doesn't know yet
	tagAttempts int
	tagDelay    time.Duration
}

func newForTest(ec2cli EC2, region string) *AWS {
	return &AWS{
		ec2:         ec2cli,
		region:      region,
		waitTimeout: time.Second,
		tagAttempts: 3,
		tagDelay:    time.Millisecond,
	}
}

func newAwsFromConfig(cfg aws.Config) *AWS {
	return &AWS{
		ec2:         ec2.NewFromConfig(cfg),
		region:      cfg.Region,
		waitTimeout: 10 * time.Minute,
		tagAttempts: 10,
		tagDelay:    3 * time.Second,
	}
}

// Initializes a new AWS object with the credentials info found at filename's location.
// The credential files should match the AWS format, such as:
// [default]
// aws_access_key_id = secretString1
// aws_secret_access_key = secretString2
//
// If filename is empty the underlying function will look for the
// "AWS_SHARED_CREDENTIALS_FILE" env variable or will default to
// $HOME/.aws/credentials.
func NewFromFile(filename string, region string) (*AWS, error) {
	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion(region),
		config.WithSharedCredentialsFiles([]string{
			filename,
			"default",
		}),
	)
	if err != nil {
		return nil, err
	}
	return newAwsFromConfig(cfg), nil
}

// Initialize a new AWS object from defaults.
// Looks for env variables, shared credential file, and EC2 Instance Roles.
func NewDefault(region string) (*AWS, error) {
	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, err
	}
	return newAwsFromConfig(cfg), nil
}

// RegionFromInstanceMetadata asks the metadata service for the region of
// the instance cgcloud runs on.
func RegionFromInstanceMetadata(ctx context.Context) (string, error) {
	return regionFromIdentity(ctx, imds.New(imds.Options{}))
}

func regionFromIdentity(ctx context.Context, client EC2Imds) (string, error) {
	identity, err := client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return "", err
	}
	if identity.Region == "" {
		return "", fmt.Errorf("instance identity document of %s has no region", identity.InstanceID)
	}
	return identity.Region, nil
}

func (a *AWS) Region() string {
	return a.region
}
